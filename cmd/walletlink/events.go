// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/cobra"
)

// streamHTTPClient has no timeout; event streams stay open until cancelled.
var streamHTTPClient = &http.Client{}

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow the bridge event stream",
		Long:  "Print session proposals, requests, updates and deletions as the bridge emits them.",
		Args:  cobra.NoArgs,
		RunE:  runEvents,
	}

	addClientFlags(cmd)
	cmd.Flags().String("session", "", "only events for this session id")

	return cmd
}

func runEvents(cmd *cobra.Command, _ []string) error {
	bc, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := "/api/v1/events"
	if session, _ := cmd.Flags().GetString("session"); session != "" {
		path += "?" + url.Values{"session_id": {session}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bc.baseURL+path, nil)
	if err != nil {
		return wlerr.Errorf(wlerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	bc.authorize(req)

	resp, err := streamHTTPClient.Do(req)
	if err != nil {
		if isDialError(err) {
			return wlerr.New(wlerr.CodeCLIGatewayNotRunning, "walletlink is not running (connection refused)")
		}
		if ctx.Err() != nil {
			return nil
		}
		return wlerr.Errorf(wlerr.CodeCLIRequestFailure, "opening event stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	err = copyEvents(cmd.OutOrStdout(), resp.Body)
	if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)) {
		return nil
	}
	return err
}

// copyEvents prints each server-sent event as "<kind> <data>". Comment lines
// such as keep-alives are skipped.
func copyEvents(w io.Writer, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var kind string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				if kind == "" {
					kind = "message"
				}
				if _, err := fmt.Fprintf(w, "%s %s\n", kind, strings.Join(data, "\n")); err != nil {
					return err
				}
			}
			kind, data = "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			kind = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return wlerr.Errorf(wlerr.CodeCLIResponseInvalid, "reading event stream: %w", err)
	}
	return nil
}
