// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sigil-dev/walletlink/internal/walletconnect"
	"github.com/sigil-dev/walletlink/internal/walletconnect/protocol"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

var _ SessionService = (*walletconnect.Client)(nil)

// SessionService is the part of walletconnect.Client the API drives.
// Commands are asynchronous: their outcome arrives on the event stream.
type SessionService interface {
	IsValidSessionURL(uri string) bool
	Connect(ctx context.Context, uri string, opts ...walletconnect.ConnectOption)
	ApproveSession(ctx context.Context, id walletconnect.SessionIdentifier, accounts []string, chainID string)
	RejectSession(ctx context.Context, id walletconnect.SessionIdentifier)
	UpdateSession(ctx context.Context, id walletconnect.SessionIdentifier, accounts []string, chainID, removedAccountAddress string)
	KillSession(ctx context.Context, id walletconnect.SessionIdentifier)
	ApproveRequest(ctx context.Context, id walletconnect.SessionIdentifier, requestID walletconnect.RequestIdentifier, payload protocol.Payload)
	RejectRequest(ctx context.Context, id walletconnect.SessionIdentifier, requestID walletconnect.RequestIdentifier, resp protocol.ErrorResponse)
	DisconnectFromAllSessions(ctx context.Context)
	ConnectToDisconnectedSessions(ctx context.Context)

	GetSession(ctx context.Context, id walletconnect.SessionIdentifier) (*walletconnect.Session, error)
	GetAllSessions(ctx context.Context) ([]*walletconnect.Session, error)
	GetSessionsByAccountAddress(ctx context.Context, address string) ([]*walletconnect.Session, error)
	GetDisconnectedSessions(ctx context.Context) ([]*walletconnect.Session, error)
	HasOngoingRequest(id walletconnect.SessionIdentifier) bool
	GetSessionRetryCount(id walletconnect.SessionIdentifier) int

	Subscribe(l walletconnect.Listener) func()
}

// apiError converts a coded error to a huma error with the matching status.
func apiError(msg string, err error) error {
	return huma.NewError(wlerr.HTTPStatus(err), msg, err)
}
