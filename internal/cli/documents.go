// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// documents.go - Knowledge base management.
//
// Command: documents [subcommand]
// Short:   Manage the documents answers are drawn from
// Aliases: docs
//
// Subcommands:
//   list (default)      List documents
//   show ID             Print a document
//   put FILE            Upload a file (or replace a document with --id)
//   rm ID               Delete a document
//   watch DIR           Keep a directory's .md and .txt files uploaded
//
// Examples:
//   ragchat docs put handbook.md
//   ragchat docs put handbook.md --id 3f2c...
//   ragchat docs watch ./kb --initial

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat/internal/docsync"
	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/util"
)

func newDocumentsCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage the documents answers are drawn from",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listDocuments(cmd, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")

	cmd.AddCommand(
		newDocListCmd(a),
		newDocShowCmd(a),
		newDocPutCmd(a),
		newDocRmCmd(a),
		newDocWatchCmd(a),
	)
	return cmd
}

func newDocListCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List documents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listDocuments(cmd, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func (a *app) listDocuments(cmd *cobra.Command, jsonOut bool) error {
	docs, err := a.client.ListDocuments(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOut {
		if docs == nil {
			docs = []model.Document{}
		}
		return writeJSON(out, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No documents."))
		return nil
	}

	fmt.Fprintln(out, TitleStyle.Render("Documents"))
	for _, doc := range docs {
		fmt.Fprintf(out, "%s  %s  %s\n",
			util.PadWidth(util.TruncateWidth(doc.ID, 36), 36),
			util.PadWidth(util.TruncateWidth(doc.Filename, 30), 30),
			DimStyle.Render(doc.UpdatedAt.Local().Format("Jan 2 15:04")))
		if doc.Summary != nil && *doc.Summary != "" {
			fmt.Fprintf(out, "%s  %s\n", strings.Repeat(" ", 36),
				DimStyle.Render(util.TruncateWidth(util.CollapseWhitespace(*doc.Summary), 60)))
		}
	}
	return nil
}

func newDocShowCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.client.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, doc)
			}
			fmt.Fprintf(out, "%s %s\n", TitleStyle.Render(doc.Filename), DimStyle.Render("("+doc.ID+")"))
			fmt.Fprintln(out, RenderLabel("Uploaded"), doc.UploadedAt.Local().Format(time.RFC1123))
			fmt.Fprintln(out, RenderLabel("Updated"), doc.UpdatedAt.Local().Format(time.RFC1123))
			fmt.Fprintln(out)
			fmt.Fprintln(out, doc.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func newDocPutCmd(a *app) *cobra.Command {
	var (
		id   string
		name string
	)
	cmd := &cobra.Command{
		Use:   "put FILE",
		Short: "Upload a file, or replace a document's text with --id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(args[0])
			}

			var doc *model.Document
			if id != "" {
				doc, err = a.client.UpdateDocument(cmd.Context(), id, model.DocumentUpsert{Filename: name, Content: string(content)})
			} else {
				doc, err = a.client.UploadDocument(cmd.Context(), name, content)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderStatus("ok"), "Saved", doc.Filename, DimStyle.Render("("+doc.ID+")"))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Replace the document with this ID")
	cmd.Flags().StringVar(&name, "name", "", "Filename to store (default: the file's base name)")
	return cmd
}

func newDocRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a document",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderStatus("ok"), "Deleted", args[0])
			return nil
		},
	}
}

func newDocWatchCmd(a *app) *cobra.Command {
	var (
		initial  bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Keep a directory's .md and .txt files uploaded",
		Long: "Upload files in DIR as they change and delete their documents when they are\n" +
			"removed. Files are matched to existing documents by name. Stop with Ctrl+C.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watchDocuments(cmd, args[0], initial, debounce)
		},
	}
	cmd.Flags().BoolVar(&initial, "initial", false, "Upload every file in DIR before watching")
	cmd.Flags().DurationVar(&debounce, "debounce", docsync.DefaultDebounce, "Quiet period before a changed file is uploaded")
	return cmd
}

func (a *app) watchDocuments(cmd *cobra.Command, dir string, initial bool, debounce time.Duration) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	out := cmd.OutOrStdout()

	s, err := docsync.New(a.client, docsync.Config{
		Dir:      dir,
		Debounce: debounce,
		OnResult: func(r docsync.Result) { printSyncResult(out, r) },
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Load(ctx); err != nil {
		return err
	}
	if initial {
		results, err := s.SyncAll(ctx)
		for _, r := range results {
			printSyncResult(out, r)
		}
		if err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
	}

	fmt.Fprintln(out, DimStyle.Render("Watching "+dir+" (Ctrl+C to stop)"))
	return s.Run(ctx)
}

func printSyncResult(out io.Writer, r docsync.Result) {
	status := "ok"
	switch r.Action {
	case docsync.ActionFailed:
		status = "error"
	case docsync.ActionSkipped:
		status = "skip"
	}
	line := fmt.Sprintf("%s %s %s", RenderStatus(status), r.Action, r.Filename)
	if r.Err != nil {
		line += ": " + r.Err.Error()
	}
	fmt.Fprintln(out, line)
}
