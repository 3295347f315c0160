// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package wcv1_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sigil-dev/walletlink/internal/wcv1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEchoBridge starts a bridge that acks every message and echoes publishes.
func newEchoBridge(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg wcv1.SocketMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if err := conn.WriteJSON(wcv1.SocketMessage{Topic: msg.Topic, Type: wcv1.SocketAck}); err != nil {
				return
			}
			if msg.Type == wcv1.SocketPublish {
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocketTransport_RoundTrip(t *testing.T) {
	srv := newEchoBridge(t)

	received := make(chan wcv1.SocketMessage, 4)
	closed := make(chan error, 1)

	tr := wcv1.NewWebSocketTransport(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, tr.Connect(ctx,
		func(msg wcv1.SocketMessage) { received <- msg },
		func(err error) { closed <- err }))

	require.NoError(t, tr.Send(ctx, wcv1.SocketMessage{Topic: "t1", Type: wcv1.SocketSubscribe}))
	require.NoError(t, tr.Send(ctx, wcv1.SocketMessage{Topic: "t1", Type: wcv1.SocketPublish, Payload: "p"}))

	select {
	case msg := <-received:
		// Acks are filtered; only the echoed publish arrives.
		assert.Equal(t, wcv1.SocketPublish, msg.Type)
		assert.Equal(t, "p", msg.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	require.NoError(t, tr.Close())
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close")
	}

	assert.Error(t, tr.Send(ctx, wcv1.SocketMessage{Topic: "t1", Type: wcv1.SocketPublish}))
	assert.Error(t, tr.Connect(ctx, func(wcv1.SocketMessage) {}, func(error) {}))
}

func TestWebSocketTransport_ServerDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Drop the connection without a close frame.
		conn.Close()
	}))
	defer srv.Close()

	closed := make(chan error, 1)
	tr := wcv1.NewWebSocketTransport(srv.URL)
	require.NoError(t, tr.Connect(context.Background(), func(wcv1.SocketMessage) {}, func(err error) { closed <- err }))

	select {
	case err := <-closed:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close")
	}
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	tr := wcv1.NewWebSocketTransport("ftp://bridge.example.org")
	err := tr.Connect(context.Background(), func(wcv1.SocketMessage) {}, func(error) {})
	assert.Error(t, err)
}
