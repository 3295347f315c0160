// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sigil-dev/walletlink/internal/walletconnect"
)

// eventQueueSize bounds events held for a slow stream reader. Listeners run
// on session lanes and must not block, so overflow is dropped.
const eventQueueSize = 64

func (s *Server) registerEventRoute() {
	s.router.Get(eventsPath, s.handleEvents)

	// The stream needs the raw ResponseWriter, so the chi route serves it
	// and the operation is added to the OpenAPI document by hand.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "stream-events",
		Method:      http.MethodGet,
		Path:        eventsPath,
		Summary:     "Stream client events via SSE",
		Description: "Each event is sent with its kind as the SSE event name and its JSON encoding as data: " +
			"session_proposal, session_update, session_settle, session_delete, session_error, " +
			"session_request, connection_changed.",
		Tags: []string{"events"},
		Parameters: []*huma.Param{{
			Name:        "session_id",
			In:          "query",
			Description: "Only stream events for this session",
			Schema:      &huma.Schema{Type: "string"},
		}},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Server-sent event stream",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {
						Schema: &huma.Schema{Type: "string", Description: "Server-sent event stream"},
					},
				},
			},
			"500": {Description: "Streaming not supported by the connection"},
		},
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming not supported"}`, http.StatusInternalServerError)
		return
	}
	sessionFilter := r.URL.Query().Get("session_id")

	ch := make(chan walletconnect.Event, eventQueueSize)
	unsubscribe := s.sessions.Subscribe(walletconnect.ListenerFunc(func(ev walletconnect.Event) {
		if sessionFilter != "" && ev.Subject() != sessionFilter {
			return
		}
		select {
		case ch <- ev:
		default:
			slog.Warn("event stream backlog full, dropping event",
				"kind", ev.Kind(),
				"session_id", ev.Subject(),
				"remote", r.RemoteAddr,
			)
		}
	}))
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("encoding event", "kind", ev.Kind(), "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind(), data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
