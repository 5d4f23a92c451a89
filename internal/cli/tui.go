// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Full-screen chat interface.
//
// Command: tui
// Short:   Start the chat TUI (default command)

package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat/internal/ui/chat"
	"github.com/jeranaias/ragchat/internal/ui/styles"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "tui",
		Short:       "Start the chat TUI (default command)",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationLogToFile: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}
}

// runTUI runs the Bubble Tea program until the user quits.
func (a *app) runTUI(ctx context.Context) error {
	ctrl := a.newController(ctx)
	defer ctrl.Close()

	theme := styles.NewTheme(a.cfg.UI.Theme)
	m := chat.New(ctrl, theme, chat.Options{
		RenderMarkdown: a.cfg.UI.RenderMarkdown,
		ShowCitations:  a.cfg.UI.ShowCitations,
	})

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
