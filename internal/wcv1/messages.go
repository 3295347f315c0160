// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package wcv1

import (
	"encoding/json"
	"math/rand/v2"
	"time"
)

// JSON-RPC methods defined by the v1 protocol.
const (
	MethodSessionRequest = "wc_sessionRequest"
	MethodSessionUpdate  = "wc_sessionUpdate"
)

// Socket message types understood by the bridge.
const (
	SocketPublish   = "pub"
	SocketSubscribe = "sub"
	SocketAck       = "ack"
)

const jsonRPCVersion = "2.0"

// PeerMeta describes either side of a session.
type PeerMeta struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

// SocketMessage is the bridge envelope. Payload carries a JSON-encoded
// EncryptedPayload for publish messages and is empty for subscriptions.
type SocketMessage struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Silent  bool   `json:"silent"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcMessage decodes either a request or a response.
type rpcMessage struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (m *rpcMessage) isRequest() bool { return m.Method != "" }

type sessionRequestParams struct {
	PeerID   string   `json:"peerId"`
	PeerMeta PeerMeta `json:"peerMeta"`
	ChainID  *int64   `json:"chainId"`
}

// sessionParams is the approval result and the wc_sessionUpdate parameter.
type sessionParams struct {
	Approved  bool      `json:"approved"`
	ChainID   *int64    `json:"chainId"`
	NetworkID *int64    `json:"networkId,omitempty"`
	Accounts  []string  `json:"accounts"`
	RPCURL    string    `json:"rpcUrl,omitempty"`
	PeerID    string    `json:"peerId,omitempty"`
	PeerMeta  *PeerMeta `json:"peerMeta,omitempty"`
}

func newRequest(method string, params any) (*rpcMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &rpcMessage{ID: newRequestID(), JSONRPC: jsonRPCVersion, Method: method, Params: raw}, nil
}

func newResult(id int64, result any) (*rpcMessage, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &rpcMessage{ID: id, JSONRPC: jsonRPCVersion, Result: raw}, nil
}

func newError(id int64, code int, message string) *rpcMessage {
	return &rpcMessage{ID: id, JSONRPC: jsonRPCVersion, Error: &RPCError{Code: code, Message: message}}
}

// newRequestID follows the v1 convention of millisecond time with three
// random trailing digits.
func newRequestID() int64 {
	return time.Now().UnixMilli()*1000 + rand.Int64N(1000)
}
