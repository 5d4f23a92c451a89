// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// devserver.go - Local stand-in for the chat service.
//
// Command: devserver
// Short:   Run an in-memory chat service for local testing
//
// Answers are built from the uploaded documents by keyword overlap and
// streamed word by word, which is enough to exercise every client feature.

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat/internal/devserver"
)

func newDevserverCmd(a *app) *cobra.Command {
	var (
		addr       string
		prefix     string
		tokenDelay time.Duration
		history    int
	)
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run an in-memory chat service for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			srv := devserver.New(devserver.Config{
				Prefix:       prefix,
				HistoryLimit: history,
				TokenDelay:   tokenDelay,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "%s listening on http://%s%s (Ctrl+C to stop)\n",
				TitleStyle.Render("devserver"), addr, prefix)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "127.0.0.1:8000", "Listen address")
	flags.StringVar(&prefix, "prefix", devserver.DefaultPrefix, "API route prefix")
	flags.DurationVar(&tokenDelay, "token-delay", 30*time.Millisecond, "Delay between streamed words")
	flags.IntVar(&history, "history", devserver.DefaultHistoryLimit, "Conversations returned by the list endpoint")
	return cmd
}
