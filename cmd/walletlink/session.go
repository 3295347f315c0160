// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"text/tabwriter"
	"time"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// sessionView is the CLI rendering of a session as served by the bridge.
type sessionView struct {
	ID                string    `json:"id" yaml:"id"`
	Version           int       `json:"version" yaml:"version"`
	Topic             string    `json:"topic" yaml:"topic"`
	PeerMeta          peerView  `json:"peer_meta" yaml:"peer"`
	ChainID           string    `json:"chain_id" yaml:"chain_id"`
	Accounts          []string  `json:"accounts" yaml:"accounts"`
	IsSubscribed      bool      `json:"is_subscribed" yaml:"subscribed"`
	IsConnected       bool      `json:"is_connected" yaml:"connected"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
	HasOngoingRequest *bool     `json:"has_ongoing_request,omitempty" yaml:"ongoing_request,omitempty"`
	RetryCount        *int      `json:"retry_count,omitempty" yaml:"retry_count,omitempty"`
}

type peerView struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url,omitempty"`
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage WalletConnect sessions",
		Long:  "List, inspect, approve and terminate sessions held by a running bridge.",
	}

	cmd.AddCommand(
		newSessionListCmd(),
		newSessionShowCmd(),
		newSessionApproveCmd(),
		newSessionRejectCmd(),
		newSessionKillCmd(),
		newSessionDisconnectCmd(),
		newSessionReconnectCmd(),
	)

	return cmd
}

func newSessionListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE:  runSessionList,
	}

	addClientFlags(cmd)
	cmd.Flags().String("account", "", "only sessions linked to this account address")
	cmd.Flags().Bool("disconnected", false, "only sessions marked disconnected")
	cmd.Flags().StringP("output", "o", "table", "output format: table, yaml or json")

	return cmd
}

func runSessionList(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("output")
	if err := checkOutputFormat(format); err != nil {
		return err
	}

	bc, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}

	query := url.Values{}
	if account, _ := cmd.Flags().GetString("account"); account != "" {
		query.Set("address", account)
	}
	if disconnected, _ := cmd.Flags().GetBool("disconnected"); disconnected {
		query.Set("disconnected", "true")
	}
	path := "/api/v1/sessions"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var body struct {
		Sessions []sessionView `json:"sessions"`
	}
	if err := bc.getJSON(path, &body); err != nil {
		return wlerr.Errorf(wlerr.CodeCLIRequestFailure, "listing sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return printJSON(out, body.Sessions)
	case "yaml":
		return printYAML(out, body.Sessions)
	}

	if len(body.Sessions) == 0 {
		_, _ = fmt.Fprintln(out, "No sessions found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tVERSION\tPEER\tCHAIN\tACCOUNTS\tCONNECTED")
	for _, s := range body.Sessions {
		_, _ = fmt.Fprintf(tw, "%s\tv%d\t%s\t%s\t%d\t%t\n",
			s.ID, s.Version, s.PeerMeta.Name, s.ChainID, len(s.Accounts), s.IsConnected)
	}
	return tw.Flush()
}

func newSessionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionShow,
	}

	addClientFlags(cmd)
	cmd.Flags().StringP("output", "o", "yaml", "output format: yaml or json")

	return cmd
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	if format != "yaml" && format != "json" {
		return wlerr.Errorf(wlerr.CodeCLIInputInvalid, "unsupported output format %q", format)
	}

	bc, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}

	var s sessionView
	if err := bc.getJSON("/api/v1/sessions/"+url.PathEscape(args[0]), &s); err != nil {
		return wlerr.Errorf(wlerr.CodeCLIRequestFailure, "fetching session %s: %w", args[0], err)
	}

	if format == "json" {
		return printJSON(cmd.OutOrStdout(), s)
	}
	return printYAML(cmd.OutOrStdout(), s)
}

func newSessionApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending session proposal",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionApprove,
	}

	addClientFlags(cmd)
	cmd.Flags().StringSlice("accounts", nil, "account addresses to expose (required)")
	cmd.Flags().String("chain", "", "chain id to approve on")

	return cmd
}

func runSessionApprove(cmd *cobra.Command, args []string) error {
	accounts, _ := cmd.Flags().GetStringSlice("accounts")
	if len(accounts) == 0 {
		return wlerr.New(wlerr.CodeCLIInputInvalid, "--accounts is required")
	}
	chainID, _ := cmd.Flags().GetString("chain")

	body := map[string]any{"accounts": accounts}
	if chainID != "" {
		body["chain_id"] = chainID
	}
	return sessionCommand(cmd, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(args[0])+"/approve", body,
		fmt.Sprintf("Approval of %s submitted", args[0]))
}

func newSessionRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending session proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionCommand(cmd, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(args[0])+"/reject", nil,
				fmt.Sprintf("Rejection of %s submitted", args[0]))
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newSessionKillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kill <id>",
		Short: "Terminate a session and forget it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionCommand(cmd, http.MethodDelete, "/api/v1/sessions/"+url.PathEscape(args[0]), nil,
				fmt.Sprintf("Kill of %s submitted", args[0]))
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newSessionDisconnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disconnect-all",
		Short: "Drop relay connections for all sessions, keeping them persisted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sessionCommand(cmd, http.MethodPost, "/api/v1/sessions/disconnect", nil,
				"Disconnect of all sessions submitted")
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newSessionReconnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconnect-all",
		Short: "Reconnect every disconnected session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sessionCommand(cmd, http.MethodPost, "/api/v1/sessions/reconnect", nil,
				"Reconnect of disconnected sessions submitted")
		},
	}
	addClientFlags(cmd)
	return cmd
}

// sessionCommand sends an asynchronous command. The bridge answers 202 and
// reports the outcome on the event stream.
func sessionCommand(cmd *cobra.Command, method, path string, body any, done string) error {
	bc, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := bc.send(method, path, body, nil); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), done)
	return nil
}

func checkOutputFormat(format string) error {
	switch format {
	case "table", "yaml", "json":
		return nil
	}
	return wlerr.Errorf(wlerr.CodeCLIInputInvalid, "unsupported output format %q (want table, yaml or json)", format)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return enc.Close()
}
