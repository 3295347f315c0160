// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show bridge status",
		Long:  "Check the running bridge's status endpoint and display session counts.",
		RunE:  runStatus,
	}

	addClientFlags(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	bc, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var body struct {
		Status       string `json:"status"`
		Sessions     int    `json:"sessions"`
		Disconnected int    `json:"disconnected"`
	}
	if err := bc.getJSON("/api/v1/status", &body); err != nil {
		if wlerr.HasCode(err, wlerr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "walletlink at %s is not running (connection refused)\n", bc.baseURL)
			return nil
		}
		_, _ = fmt.Fprintf(out, "walletlink at %s: %s\n", bc.baseURL, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "walletlink at %s: %s (%d sessions, %d disconnected)\n",
		bc.baseURL, body.Status, body.Sessions, body.Disconnected)
	return nil
}
