// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Command openapi-gen writes the OpenAPI document of the walletlink bridge
// API. The format follows the output extension: .yaml/.yml or JSON.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sigil-dev/walletlink/internal/server"
	"github.com/sigil-dev/walletlink/internal/store"
	_ "github.com/sigil-dev/walletlink/internal/store/memory" // register memory backend
	"github.com/sigil-dev/walletlink/internal/walletconnect"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

func main() {
	outPath := "api/openapi/walletlink.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	spec, err := generateSpec(formatFor(outPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

// generateSpec builds a server over a client with an in-memory store and no
// protocol adapters, then extracts the document huma derives from the route
// types. No handler runs.
func generateSpec(format string) ([]byte, error) {
	st, err := store.NewSessionStore(&store.StorageConfig{Backend: "memory"}, "")
	if err != nil {
		return nil, wlerr.Errorf(wlerr.CodeCLISetupFailure, "creating store: %w", err)
	}
	defer func() { _ = st.Close() }()

	client := walletconnect.NewClient(st, nil)
	defer func() { _ = client.Close() }()

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, client)
	if err != nil {
		return nil, wlerr.Errorf(wlerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	if format == "yaml" {
		return srv.API().OpenAPI().YAML()
	}
	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
