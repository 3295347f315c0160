// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package wcv1

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// Transport carries socket messages to and from a bridge server.
//
// onMessage is invoked from the transport's read goroutine. onClose is
// invoked once when the connection ends: with nil after Close, otherwise
// with the read error. A Transport is single use: Connect after Close fails.
type Transport interface {
	Connect(ctx context.Context, onMessage func(SocketMessage), onClose func(error)) error
	Send(ctx context.Context, msg SocketMessage) error
	Close() error
}

// TransportFactory creates a Transport for a bridge URL.
type TransportFactory func(bridgeURL string) Transport

const defaultWriteTimeout = 10 * time.Second

// WebSocketTransport is a Transport over gorilla/websocket.
type WebSocketTransport struct {
	bridge string
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool

	writeMu sync.Mutex
}

// NewWebSocketTransport returns a Transport dialing bridgeURL. http(s)
// bridge URLs are rewritten to ws(s).
func NewWebSocketTransport(bridgeURL string) Transport {
	return &WebSocketTransport{bridge: bridgeURL, dialer: websocket.DefaultDialer}
}

func (t *WebSocketTransport) Connect(ctx context.Context, onMessage func(SocketMessage), onClose func(error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}
	if t.closing {
		return wlerr.New(wlerr.CodeWalletConnectTransportFailure, "transport is closed")
	}

	endpoint, err := socketURL(t.bridge)
	if err != nil {
		return err
	}

	conn, _, err := t.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectTransportFailure, "dialing bridge %s", t.bridge)
	}
	t.conn = conn

	go t.readLoop(conn, onMessage, onClose)
	return nil
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn, onMessage func(SocketMessage), onClose func(error)) {
	var readErr error
	for {
		var msg SocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			readErr = err
			break
		}
		if msg.Type == SocketAck {
			continue
		}
		onMessage(msg)
	}

	t.mu.Lock()
	intentional := t.closing && t.conn != conn
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	conn.Close() //nolint:errcheck

	if intentional {
		onClose(nil)
		return
	}
	if websocket.IsUnexpectedCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		slog.Debug("wcv1: bridge connection closed unexpectedly", "bridge", t.bridge, "error", readErr)
	}
	onClose(wlerr.Wrapf(readErr, wlerr.CodeWalletConnectTransportFailure, "reading from bridge %s", t.bridge))
}

func (t *WebSocketTransport) Send(ctx context.Context, msg SocketMessage) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return wlerr.New(wlerr.CodeWalletConnectTransportFailure, "bridge is not connected")
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectTransportFailure, "setting write deadline")
	}
	if err := conn.WriteJSON(msg); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeWalletConnectTransportFailure, "writing to bridge %s", t.bridge)
	}
	return nil
}

// Close closes the connection. The read goroutine reports onClose(nil).
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.closing = true
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()

	if err := conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectTransportFailure, "closing bridge connection")
	}
	return nil
}

func socketURL(bridge string) (string, error) {
	u, err := url.Parse(bridge)
	if err != nil {
		return "", wlerr.Wrapf(err, wlerr.CodeWalletConnectURIInvalid, "parsing bridge url %s", bridge)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", wlerr.Errorf(wlerr.CodeWalletConnectURIInvalid, "unsupported bridge scheme %q", u.Scheme)
	}
	return u.String(), nil
}
