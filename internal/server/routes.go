// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sigil-dev/walletlink/internal/walletconnect"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "bridge-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Bridge status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions",
		Summary:     "List sessions",
		Description: "Filter by linked account address or by disconnected state.",
		Tags:        []string{"sessions"},
	}, s.handleListSessions)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get session details",
		Tags:        []string{"sessions"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "connect-session",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/connect",
		Summary:       "Connect to a dApp from a scanned URI",
		Description:   "The proposal arrives as a session_proposal event.",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleConnect)

	huma.Register(s.api, huma.Operation{
		OperationID:   "approve-session",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/{id}/approve",
		Summary:       "Approve a session proposal",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleApproveSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "reject-session",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/{id}/reject",
		Summary:       "Reject a session proposal",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleRejectSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "update-session",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/{id}/update",
		Summary:       "Update session accounts",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleUpdateSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "kill-session",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/{id}",
		Summary:       "Kill a session",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleKillSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "approve-request",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/{id}/requests/{requestId}/approve",
		Summary:       "Answer a peer request with signed data",
		Tags:          []string{"requests"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleApproveRequest)

	huma.Register(s.api, huma.Operation{
		OperationID:   "reject-request",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/{id}/requests/{requestId}/reject",
		Summary:       "Reject a peer request",
		Tags:          []string{"requests"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleRejectRequest)

	huma.Register(s.api, huma.Operation{
		OperationID:   "disconnect-all",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/disconnect",
		Summary:       "Disconnect every live session",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleDisconnectAll)

	huma.Register(s.api, huma.Operation{
		OperationID:   "reconnect-all",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/reconnect",
		Summary:       "Reconnect every disconnected session",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleReconnectAll)
}

// --- Request/Response types for huma ---

// SessionDetail is a session with its live request and retry state.
type SessionDetail struct {
	walletconnect.Session
	HasOngoingRequest bool `json:"has_ongoing_request" doc:"A peer request is awaiting an answer"`
	RetryCount        int  `json:"retry_count" doc:"Reconnect attempts since the last successful connection"`
}

type statusOutput struct {
	Body struct {
		Status       string `json:"status" example:"ok" doc:"Bridge status"`
		Sessions     int    `json:"sessions" doc:"Persisted sessions"`
		Disconnected int    `json:"disconnected" doc:"Persisted sessions without a relay connection"`
	}
}

type listSessionsInput struct {
	Address      string `query:"address" doc:"Only sessions linked to this account address"`
	Disconnected bool   `query:"disconnected" doc:"Only sessions marked disconnected"`
}
type listSessionsOutput struct {
	Body struct {
		Sessions []*walletconnect.Session `json:"sessions"`
	}
}

type sessionPathInput struct {
	ID string `path:"id" doc:"Session ID"`
}
type getSessionOutput struct {
	Body SessionDetail
}

type acceptedOutput struct {
	Body struct {
		Status string `json:"status" example:"accepted"`
	}
}

func accepted() *acceptedOutput {
	out := &acceptedOutput{}
	out.Body.Status = "accepted"
	return out
}

type connectInput struct {
	Body struct {
		URI                          string `json:"uri" minLength:"1" doc:"wc: connection URI"`
		FallbackBrowserGroupResponse string `json:"fallback_browser_group_response,omitempty" doc:"In-app browser group to return to"`
	}
}

type approveSessionInput struct {
	ID   string `path:"id"`
	Body struct {
		Accounts []string `json:"accounts" minItems:"1" doc:"Account addresses to expose"`
		ChainID  string   `json:"chain_id,omitempty" doc:"Chain to approve on"`
	}
}

type updateSessionInput struct {
	ID   string `path:"id"`
	Body struct {
		Accounts              []string `json:"accounts" minItems:"1"`
		ChainID               string   `json:"chain_id,omitempty"`
		RemovedAccountAddress string   `json:"removed_account_address,omitempty" doc:"Account to unlink from the session"`
	}
}

type requestPathInput struct {
	ID        string `path:"id"`
	RequestID string `path:"requestId"`
}

type approveRequestInput struct {
	ID        string `path:"id"`
	RequestID string `path:"requestId"`
	Body      struct {
		Kind  string   `json:"kind" enum:"signed_transactions,signed_data"`
		Items []string `json:"items" doc:"Base64 items; an empty string marks an item left unsigned"`
	}
}

type rejectRequestInput struct {
	ID        string `path:"id"`
	RequestID string `path:"requestId"`
	Body      struct {
		Code    int    `json:"code,omitempty" doc:"Rejection code, default 4001"`
		Message string `json:"message,omitempty"`
	}
}

// --- Handlers ---

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	all, err := s.sessions.GetAllSessions(ctx)
	if err != nil {
		return nil, apiError("listing sessions", err)
	}
	out := &statusOutput{}
	out.Body.Status = "ok"
	out.Body.Sessions = len(all)
	for _, sess := range all {
		if !sess.IsConnected {
			out.Body.Disconnected++
		}
	}
	return out, nil
}

func (s *Server) handleListSessions(ctx context.Context, input *listSessionsInput) (*listSessionsOutput, error) {
	var (
		sessions []*walletconnect.Session
		err      error
	)
	switch {
	case input.Address != "":
		sessions, err = s.sessions.GetSessionsByAccountAddress(ctx, input.Address)
	case input.Disconnected:
		sessions, err = s.sessions.GetDisconnectedSessions(ctx)
	default:
		sessions, err = s.sessions.GetAllSessions(ctx)
	}
	if err != nil {
		return nil, apiError("listing sessions", err)
	}

	if input.Address != "" && input.Disconnected {
		filtered := sessions[:0]
		for _, sess := range sessions {
			if !sess.IsConnected {
				filtered = append(filtered, sess)
			}
		}
		sessions = filtered
	}

	out := &listSessionsOutput{}
	out.Body.Sessions = sessions
	if out.Body.Sessions == nil {
		out.Body.Sessions = []*walletconnect.Session{}
	}
	return out, nil
}

func (s *Server) handleGetSession(ctx context.Context, input *sessionPathInput) (*getSessionOutput, error) {
	id, err := parseSessionID(input.ID)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, apiError(fmt.Sprintf("session %q", input.ID), err)
	}
	return &getSessionOutput{Body: SessionDetail{
		Session:           *sess,
		HasOngoingRequest: s.sessions.HasOngoingRequest(id),
		RetryCount:        s.sessions.GetSessionRetryCount(id),
	}}, nil
}

func (s *Server) handleConnect(ctx context.Context, input *connectInput) (*acceptedOutput, error) {
	if !s.sessions.IsValidSessionURL(input.Body.URI) {
		return nil, huma.Error400BadRequest("connection uri not recognised")
	}
	var opts []walletconnect.ConnectOption
	if input.Body.FallbackBrowserGroupResponse != "" {
		opts = append(opts, walletconnect.WithFallbackBrowserGroupResponse(input.Body.FallbackBrowserGroupResponse))
	}
	s.sessions.Connect(commandContext(ctx), input.Body.URI, opts...)
	return accepted(), nil
}

func (s *Server) handleApproveSession(ctx context.Context, input *approveSessionInput) (*acceptedOutput, error) {
	id, err := parseSessionID(input.ID)
	if err != nil {
		return nil, err
	}
	s.sessions.ApproveSession(commandContext(ctx), id, input.Body.Accounts, input.Body.ChainID)
	return accepted(), nil
}

func (s *Server) handleRejectSession(ctx context.Context, input *sessionPathInput) (*acceptedOutput, error) {
	id, err := parseSessionID(input.ID)
	if err != nil {
		return nil, err
	}
	s.sessions.RejectSession(commandContext(ctx), id)
	return accepted(), nil
}

func (s *Server) handleUpdateSession(ctx context.Context, input *updateSessionInput) (*acceptedOutput, error) {
	id, err := parseSessionID(input.ID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateSession(commandContext(ctx), id, input.Body.Accounts, input.Body.ChainID, input.Body.RemovedAccountAddress)
	return accepted(), nil
}

func (s *Server) handleKillSession(ctx context.Context, input *sessionPathInput) (*acceptedOutput, error) {
	id, err := parseSessionID(input.ID)
	if err != nil {
		return nil, err
	}
	s.sessions.KillSession(commandContext(ctx), id)
	return accepted(), nil
}

func (s *Server) handleApproveRequest(ctx context.Context, input *approveRequestInput) (*acceptedOutput, error) {
	id, reqID, err := parseRequestPath(input.ID, input.RequestID)
	if err != nil {
		return nil, err
	}

	items := make([]*string, len(input.Body.Items))
	for i := range input.Body.Items {
		if input.Body.Items[i] != "" {
			items[i] = &input.Body.Items[i]
		}
	}
	payload, err := protocol.DecodePayload(input.Body.Kind, items)
	if err != nil {
		return nil, apiError("decoding payload", err)
	}

	s.sessions.ApproveRequest(commandContext(ctx), id, reqID, payload)
	return accepted(), nil
}

func (s *Server) handleRejectRequest(ctx context.Context, input *rejectRequestInput) (*acceptedOutput, error) {
	id, reqID, err := parseRequestPath(input.ID, input.RequestID)
	if err != nil {
		return nil, err
	}

	resp := protocol.Reject(protocol.RejectUserRejected)
	if input.Body.Code != 0 {
		resp = protocol.Reject(input.Body.Code)
	}
	if input.Body.Message != "" {
		resp.Message = input.Body.Message
	}

	s.sessions.RejectRequest(commandContext(ctx), id, reqID, resp)
	return accepted(), nil
}

func (s *Server) handleDisconnectAll(ctx context.Context, _ *struct{}) (*acceptedOutput, error) {
	s.sessions.DisconnectFromAllSessions(ctx)
	return accepted(), nil
}

func (s *Server) handleReconnectAll(ctx context.Context, _ *struct{}) (*acceptedOutput, error) {
	s.sessions.ConnectToDisconnectedSessions(commandContext(ctx))
	return accepted(), nil
}

func parseSessionID(raw string) (walletconnect.SessionIdentifier, error) {
	id, ok := walletconnect.ParseSessionIdentifier(raw)
	if !ok {
		return id, huma.Error404NotFound(fmt.Sprintf("session %q not found", raw))
	}
	return id, nil
}

func parseRequestPath(rawID, rawRequestID string) (walletconnect.SessionIdentifier, walletconnect.RequestIdentifier, error) {
	id, err := parseSessionID(rawID)
	if err != nil {
		return id, walletconnect.RequestIdentifier{}, err
	}
	reqID, ok := walletconnect.ParseRequestIdentifier(rawRequestID)
	if !ok {
		return id, reqID, huma.Error404NotFound(fmt.Sprintf("request %q not found", rawRequestID))
	}
	return id, reqID, nil
}

// commandContext detaches queued commands from the HTTP request, which ends
// as soon as the command is accepted.
func commandContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
