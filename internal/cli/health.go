// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// health.go - Service reachability check.
//
// Command: health
// Short:   Check that the chat service is reachable

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the chat service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			status, err := a.client.Health(cmd.Context())
			if jsonOut {
				result := map[string]any{"url": a.client.BaseURL(), "ok": err == nil && status.OK()}
				if err != nil {
					result["error"] = err.Error()
				} else {
					result["status"] = status.Status
					result["latency_ms"] = status.Latency.Milliseconds()
				}
				if werr := writeJSON(out, result); werr != nil {
					return werr
				}
				return err
			}

			fmt.Fprintln(out, RenderLabel("Service"), a.client.BaseURL())
			if err != nil {
				fmt.Fprintln(out, RenderLabel("Status"), RenderStatus("error"), "unreachable")
				return err
			}
			state := "ok"
			if !status.OK() {
				state = "warning"
			}
			fmt.Fprintln(out, RenderLabel("Status"), RenderStatus(state), status.Status)
			fmt.Fprintln(out, RenderLabel("Latency"), status.Latency.Round(time.Millisecond).String())
			if !status.OK() {
				return fmt.Errorf("service reported status %q", status.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}
