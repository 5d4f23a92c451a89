// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversations.go - Conversation management.
//
// Command: conversations [subcommand]
// Short:   Manage conversations
// Aliases: conv
//
// Subcommands:
//   list (default)      List recent conversations
//   create [title]      Create a conversation
//   show ID             Print a conversation
//   rename ID TITLE     Rename a conversation
//   delete ID           Delete a conversation
//   export ID           Export a conversation to Markdown or JSON
//
// Examples:
//   ragchat conv
//   ragchat conv show 42 --json
//   ragchat conv export 42 --format json --output ./exports

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat/internal/export"
	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/util"
)

func newConversationsCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listConversations(cmd, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")

	cmd.AddCommand(
		newConvListCmd(a),
		newConvCreateCmd(a),
		newConvShowCmd(a),
		newConvRenameCmd(a),
		newConvDeleteCmd(a),
		newConvExportCmd(a),
	)
	return cmd
}

func newConvListCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listConversations(cmd, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func (a *app) listConversations(cmd *cobra.Command, jsonOut bool) error {
	items, err := a.client.ListConversations(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOut {
		if items == nil {
			items = []model.ConversationSummary{}
		}
		return writeJSON(out, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No conversations yet."))
		return nil
	}

	fmt.Fprintln(out, TitleStyle.Render("Recent conversations"))
	for _, item := range items {
		fmt.Fprintf(out, "%s  %s  %s\n",
			util.PadWidth(item.ID, 10),
			util.PadWidth(util.TruncateWidth(item.Title, 40), 40),
			DimStyle.Render(item.UpdatedAt.Local().Format("Jan 2 15:04")))
		if preview := item.Preview(); preview != "" {
			fmt.Fprintf(out, "%s  %s\n",
				strings.Repeat(" ", 10),
				DimStyle.Render(util.TruncateWidth(util.CollapseWhitespace(preview), 60)))
		}
	}
	return nil
}

func newConvCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create [title]",
		Short: "Create a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := ""
			if len(args) == 1 {
				title = strings.TrimSpace(args[0])
			}
			conv, err := a.client.CreateConversation(cmd.Context(), title)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderStatus("ok"), "Created", conv.ID, DimStyle.Render(conv.Title))
			return nil
		},
	}
}

func newConvShowCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := a.client.GetConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, conv)
			}
			fmt.Fprintf(out, "%s %s\n\n", TitleStyle.Render(conv.Title), DimStyle.Render("("+conv.ID+")"))
			printTranscript(out, conv, a.cfg.UI.ShowCitations)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func newConvRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID TITLE",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return fmt.Errorf("title cannot be empty")
			}
			conv, err := a.client.RenameConversation(cmd.Context(), args[0], title)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderStatus("ok"), "Renamed", conv.ID, "to", conv.Title)
			return nil
		},
	}
}

func newConvDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderStatus("ok"), "Deleted", args[0])
			return nil
		},
	}
}

func newConvExportCmd(a *app) *cobra.Command {
	var (
		format   string
		output   string
		toStdout bool
		open     bool
	)
	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Export a conversation to Markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.OutputDir = output
			opts.OpenAfterExport = open
			opts.IncludeCitations = a.cfg.UI.ShowCitations

			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return err
			}
			conv, err := a.client.GetConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if toStdout {
				return export.Write(out, conv, exporter)
			}
			path, err := export.ExportToFile(conv, exporter, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, RenderStatus("ok"), "Exported to", path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&format, "format", "f", "md", "Output format: md or json")
	flags.StringVarP(&output, "output", "o", ".", "Output directory")
	flags.BoolVar(&toStdout, "stdout", false, "Write to standard output instead of a file")
	flags.BoolVar(&open, "open", false, "Open the file after exporting")
	return cmd
}
