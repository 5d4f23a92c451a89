// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// answer.go - Streaming answers and rendering shared by ask and chat.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/session"
	"github.com/jeranaias/ragchat/internal/util"
)

// =============================================================================
// SESSION RUNNER
// =============================================================================

// runner drives a session controller outside of Bubble Tea.
type runner struct {
	ctrl   *session.Controller
	driver *session.Driver
}

func newRunner(ctrl *session.Controller) *runner {
	return &runner{ctrl: ctrl, driver: session.NewDriver(ctrl)}
}

// run executes cmd until the controller is quiescent. An interrupt while it
// runs aborts the current stream instead of killing the process.
func (r *runner) run(ctx context.Context, cmd tea.Cmd) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-sig:
				r.driver.Send(session.AbortMsg{})
			case <-done:
				return
			}
		}
	}()

	return r.driver.Run(ctx, cmd)
}

// open selects the conversation to ask in: id when set, a new one when
// create is set, otherwise the most recent (created if there is none).
func (r *runner) open(ctx context.Context, id string, create bool) (*model.Conversation, error) {
	var cmd tea.Cmd
	switch {
	case id != "":
		cmd = r.ctrl.Select(id)
	case create:
		cmd = r.ctrl.Create("")
	default:
		cmd = r.ctrl.Init()
	}
	if err := r.run(ctx, cmd); err != nil {
		return nil, err
	}

	state := r.ctrl.Snapshot()
	if state.Conversation == nil {
		if state.Banner != nil {
			return nil, state.Banner
		}
		return nil, session.ErrNoConversation
	}
	return state.Conversation, nil
}

// ask submits question and writes the answer to out as it streams. Stream
// failures are returned as *session.Error; a failed refresh afterwards is
// reported on errOut only.
func (r *runner) ask(ctx context.Context, question string, out, errOut io.Writer) (session.State, error) {
	printed := 0
	unsubscribe := r.ctrl.Subscribe(func(s session.State) {
		if out == nil || s.Session.Status != session.StatusStreaming {
			return
		}
		if buf := s.Session.Buffer; len(buf) > printed {
			fmt.Fprint(out, buf[printed:])
			printed = len(buf)
		}
	})
	defer unsubscribe()

	cmd, err := r.ctrl.Submit(question)
	if err != nil {
		return r.ctrl.Snapshot(), err
	}
	if err := r.run(ctx, cmd); err != nil {
		return r.ctrl.Snapshot(), err
	}
	if out != nil && printed > 0 {
		fmt.Fprintln(out)
	}

	state := r.ctrl.Snapshot()
	if state.Banner != nil && errOut != nil {
		fmt.Fprintln(errOut, WarningStyle.Render(state.Banner.Message))
	}
	if e := state.Session.LastError; e != nil {
		return state, e
	}
	return state, nil
}

// lastAnswer returns the final assistant message of the conversation.
func lastAnswer(state session.State) (model.Message, bool) {
	if state.Conversation == nil {
		return model.Message{}, false
	}
	msg, ok := state.Conversation.LastMessage()
	if !ok || msg.Role != model.RoleAssistant {
		return model.Message{}, false
	}
	return msg, true
}

// =============================================================================
// RENDERING
// =============================================================================

// renderMarkdown renders content for a terminal of the given width, falling
// back to the raw text when glamour is unavailable.
func renderMarkdown(content, style string, width int) string {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// displayAnswer prints content, rendering markdown only for a terminal so
// piped output stays plain.
func (a *app) displayAnswer(out io.Writer, content string) {
	if a.cfg.UI.RenderMarkdown && IsStdoutTTY() && out == os.Stdout {
		fmt.Fprint(out, renderMarkdown(content, a.cfg.UI.Theme, a.cfg.UI.WordWrap))
		return
	}
	fmt.Fprintln(out, content)
}

// printCitations lists the sources of an answer.
func printCitations(out io.Writer, citations []model.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Fprintln(out, DimStyle.Render("Sources:"))
	for i, c := range citations {
		name := c.Filename
		if name == "" {
			name = c.Source
		}
		if c.HasPage() {
			name = fmt.Sprintf("%s (p. %d)", name, *c.Page)
		}
		fmt.Fprintf(out, "  %d. %s\n", i+1, name)
		if excerpt := strings.TrimSpace(c.Content); excerpt != "" {
			fmt.Fprintln(out, DimStyle.Render("     "+util.TruncateRunes(util.CollapseWhitespace(excerpt), 100)))
		}
	}
}
