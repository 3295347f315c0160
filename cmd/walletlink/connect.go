// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"net/http"

	"github.com/spf13/cobra"
)

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect <uri>",
		Short: "Open a session from a wc: URI",
		Long: "Hand a WalletConnect v1 or v2 URI to the bridge. The session proposal " +
			"arrives on the event stream; answer it with 'session approve' or 'session reject'.",
		Args: cobra.ExactArgs(1),
		RunE: runConnect,
	}

	addClientFlags(cmd)
	cmd.Flags().String("fallback-browser-group", "", "in-app browser group to return to after signing")

	return cmd
}

func runConnect(cmd *cobra.Command, args []string) error {
	body := map[string]any{"uri": args[0]}
	if group, _ := cmd.Flags().GetString("fallback-browser-group"); group != "" {
		body["fallback_browser_group_response"] = group
	}
	return sessionCommand(cmd, http.MethodPost, "/api/v1/sessions/connect", body, "Connection submitted")
}
