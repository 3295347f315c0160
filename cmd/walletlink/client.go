// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sigil-dev/walletlink/internal/secrets"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultHTTPClient is the package-level HTTP client used by bridge commands.
// Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// bridgeClient provides HTTP access to a running walletlink bridge.
type bridgeClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// newBridgeClient creates a client targeting the given host:port address.
func newBridgeClient(addr, token string) *bridgeClient {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &bridgeClient{
		baseURL: strings.TrimSuffix(base, "/"),
		token:   token,
		http:    defaultHTTPClient,
	}
}

// addClientFlags registers the flags shared by commands talking to a
// running bridge.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("address", "", "bridge address (defaults to networking.listen)")
	cmd.Flags().String("token", "", "API token (defaults to server.api_token)")
}

// clientFromFlags builds a bridgeClient from --address and --token, falling
// back to config. A keyring:// token is resolved through the secret store.
func clientFromFlags(cmd *cobra.Command) (*bridgeClient, error) {
	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = viper.GetString("networking.listen")
	}
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = viper.GetString("server.api_token")
	}
	if secrets.IsKeyringURI(token) {
		resolved, err := secrets.ResolveKeyringURI(secretStoreFactory(), token)
		if err != nil {
			return nil, wlerr.Errorf(wlerr.CodeCLISetupFailure, "resolving api token: %w", err)
		}
		token = resolved
	}
	return newBridgeClient(addr, token), nil
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *bridgeClient) getJSON(path string, dest any) error {
	return c.send(http.MethodGet, path, nil, dest)
}

// send performs a request with an optional JSON body and decodes a JSON
// response into dest when dest is non-nil. Connection failures return
// CodeCLIGatewayNotRunning.
func (c *bridgeClient) send(method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return wlerr.Errorf(wlerr.CodeCLIInputInvalid, "encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return wlerr.Errorf(wlerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return wlerr.New(wlerr.CodeCLIGatewayNotRunning, "walletlink is not running (connection refused)")
		}
		return wlerr.Errorf(wlerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return wlerr.Errorf(wlerr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

func (c *bridgeClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// responseError turns a non-2xx response into an error, preferring the
// detail of a problem+json body.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var problem struct {
		Detail string `json:"detail"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &problem) == nil && problem.Detail != "" {
		msg = problem.Detail
	}
	return wlerr.Errorf(wlerr.CodeCLIRequestFailure, "walletlink returned status %d: %s", resp.StatusCode, msg)
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
