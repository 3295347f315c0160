// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"net/http"
	"net/url"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/cobra"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Answer peer requests",
		Long:  "Approve or reject a signing request a dApp sent on a session.",
	}

	cmd.AddCommand(
		newRequestApproveCmd(),
		newRequestRejectCmd(),
	)

	return cmd
}

func newRequestApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <session-id> <request-id>",
		Short: "Respond to a request with signed items",
		Long: "Respond with base64 signed transactions or signed data. Pass an empty " +
			"--item for each transaction the wallet left unsigned.",
		Args: cobra.ExactArgs(2),
		RunE: runRequestApprove,
	}

	addClientFlags(cmd)
	cmd.Flags().String("kind", "signed_transactions", "payload kind: signed_transactions or signed_data")
	cmd.Flags().StringArray("item", nil, "base64 payload item (repeatable)")

	return cmd
}

func runRequestApprove(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	if kind != "signed_transactions" && kind != "signed_data" {
		return wlerr.Errorf(wlerr.CodeCLIInputInvalid, "unsupported payload kind %q", kind)
	}
	items, _ := cmd.Flags().GetStringArray("item")
	if len(items) == 0 {
		return wlerr.New(wlerr.CodeCLIInputInvalid, "at least one --item is required")
	}

	body := map[string]any{"kind": kind, "items": items}
	return sessionCommand(cmd, http.MethodPost, requestPath(args[0], args[1], "approve"), body,
		fmt.Sprintf("Response to request %s submitted", args[1]))
}

func newRequestRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <session-id> <request-id>",
		Short: "Reject a request",
		Args:  cobra.ExactArgs(2),
		RunE:  runRequestReject,
	}

	addClientFlags(cmd)
	cmd.Flags().Int("code", 4001, "JSON-RPC error code")
	cmd.Flags().String("message", "", "error message sent to the peer")

	return cmd
}

func runRequestReject(cmd *cobra.Command, args []string) error {
	code, _ := cmd.Flags().GetInt("code")
	message, _ := cmd.Flags().GetString("message")

	body := map[string]any{"code": code}
	if message != "" {
		body["message"] = message
	}
	return sessionCommand(cmd, http.MethodPost, requestPath(args[0], args[1], "reject"), body,
		fmt.Sprintf("Rejection of request %s submitted", args[1]))
}

func requestPath(sessionID, requestID, action string) string {
	return "/api/v1/sessions/" + url.PathEscape(sessionID) + "/requests/" + url.PathEscape(requestID) + "/" + action
}
