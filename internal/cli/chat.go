// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat.
//
// Command: chat
// Short:   Chat in the terminal without the full-screen interface
//
// Type a question to ask it in the current conversation. Lines starting with
// a slash are commands; /help lists them. Ctrl+C stops an answer while it
// streams; Ctrl+D leaves.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat/internal/config"
	"github.com/jeranaias/ragchat/internal/logging"
	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/session"
	"github.com/jeranaias/ragchat/internal/util"
)

func newChatCmd(a *app) *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal without the full-screen interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd.InOrStdin())
			defer p.Close()
			return a.runChat(cmd.Context(), p, cmd.OutOrStdout(), cmd.ErrOrStderr(), conversationID)
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation ID (default: most recent)")
	return cmd
}

// =============================================================================
// INPUT
// =============================================================================

// errPromptAborted is returned by Prompt when the user pressed Ctrl+C.
var errPromptAborted = errors.New("prompt aborted")

// prompter reads input lines.
type prompter interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// newPrompter uses liner with persistent history on a terminal and plain
// line reads otherwise.
func newPrompter(in io.Reader) prompter {
	if f, ok := in.(*os.File); ok && f == os.Stdin && IsTTY() {
		return newLinePrompter()
	}
	return &scanPrompter{scanner: bufio.NewScanner(in)}
}

// linePrompter provides line editing and history.
type linePrompter struct {
	line        *liner.State
	historyFile string
}

func newLinePrompter() *linePrompter {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	p := &linePrompter{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(p.historyFile); err == nil {
		p.line.ReadHistory(f)
		f.Close()
	}
	return p
}

func (p *linePrompter) Prompt(prompt string) (string, error) {
	input, err := p.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", errPromptAborted
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		p.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (p *linePrompter) Close() error {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			p.line.WriteHistory(f)
			f.Close()
		}
	}
	return p.line.Close()
}

// scanPrompter reads lines from a pipe; prompts are not echoed.
type scanPrompter struct {
	scanner *bufio.Scanner
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}

func (p *scanPrompter) Close() error { return nil }

// =============================================================================
// LOOP
// =============================================================================

// chatSession is the state of one chat run.
type chatSession struct {
	app    *app
	runner *runner
	out    io.Writer
	errOut io.Writer
}

func (a *app) runChat(ctx context.Context, p prompter, out, errOut io.Writer, conversationID string) error {
	ctrl := a.newController(ctx)
	defer ctrl.Close()

	s := &chatSession{app: a, runner: newRunner(ctrl), out: out, errOut: errOut}
	conv, err := s.runner.open(ctx, conversationID, false)
	if err != nil {
		return err
	}
	log := logging.For("chat")
	log.Debug().Str("conversation_id", conv.ID).Msg("chat started")
	fmt.Fprintf(out, "%s %s\n", TitleStyle.Render("ragchat"), DimStyle.Render("type /help for commands"))
	s.printHeader(conv)

	for {
		input, err := p.Prompt(PromptStyle.Render("you> "))
		if errors.Is(err, errPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Fprintln(out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			quit, err := s.command(ctx, input)
			if err != nil {
				s.printError(err)
			}
			if quit {
				return nil
			}
			continue
		}
		if err := s.ask(ctx, input); err != nil {
			s.printError(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *chatSession) ask(ctx context.Context, question string) error {
	state, err := s.runner.ask(ctx, question, s.out, s.errOut)
	if err != nil {
		return err
	}
	if msg, ok := lastAnswer(state); ok && s.app.cfg.UI.ShowCitations {
		printCitations(s.out, msg.Citations)
	}
	return nil
}

func (s *chatSession) printError(err error) {
	fmt.Fprintf(s.errOut, "%s %v\n", ErrorStyle.Render("[Error]"), err)
}

func (s *chatSession) printHeader(conv *model.Conversation) {
	fmt.Fprintf(s.out, "%s %s %s\n",
		LabelStyle.Render("Conversation"),
		conv.Title,
		DimStyle.Render("("+conv.ID+")"))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const chatHelp = `Commands:
  /new [title]        Start a new conversation
  /list               List recent conversations
  /switch ID|N        Switch to a conversation by ID or list number
  /rename TITLE       Rename the current conversation
  /delete [ID]        Delete a conversation (default: current)
  /history            Show the current conversation
  /help               Show this help
  /quit               Leave`

// command runs a slash command and reports whether to quit.
func (s *chatSession) command(ctx context.Context, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	ctrl := s.runner.ctrl

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/?":
		fmt.Fprintln(s.out, chatHelp)

	case "/new":
		conv, err := s.runner.open(ctx, "", true)
		if err != nil {
			return false, err
		}
		if arg != "" {
			if err := s.rename(ctx, conv.ID, arg); err != nil {
				return false, err
			}
		}
		s.printHeader(ctrl.Snapshot().Conversation)

	case "/list", "/ls":
		if err := s.runner.run(ctx, ctrl.Refresh()); err != nil {
			return false, err
		}
		state := ctrl.Snapshot()
		if err := bannerErr(state); err != nil {
			return false, err
		}
		s.printList(state)

	case "/switch":
		id, err := s.resolveID(arg)
		if err != nil {
			return false, err
		}
		conv, err := s.runner.open(ctx, id, false)
		if err != nil {
			return false, err
		}
		s.printHeader(conv)

	case "/rename":
		state := ctrl.Snapshot()
		if state.Conversation == nil {
			return false, session.ErrNoConversation
		}
		if err := s.rename(ctx, state.Conversation.ID, arg); err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, RenderStatus("ok"), "Renamed to "+arg)

	case "/delete", "/rm":
		id := arg
		if id == "" {
			id = ctrl.Snapshot().SelectedID
		}
		if id == "" {
			return false, session.ErrNoConversation
		}
		if err := s.runner.run(ctx, ctrl.Delete(id)); err != nil {
			return false, err
		}
		state := ctrl.Snapshot()
		if err := bannerErr(state); err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, RenderStatus("ok"), "Deleted "+id)
		if state.Conversation != nil {
			s.printHeader(state.Conversation)
		}

	case "/history":
		state := ctrl.Snapshot()
		if state.Conversation == nil {
			return false, session.ErrNoConversation
		}
		printTranscript(s.out, state.Conversation, s.app.cfg.UI.ShowCitations)

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

func (s *chatSession) rename(ctx context.Context, id, title string) error {
	cmd, err := s.runner.ctrl.Rename(id, title)
	if err != nil {
		return err
	}
	if err := s.runner.run(ctx, cmd); err != nil {
		return err
	}
	return bannerErr(s.runner.ctrl.Snapshot())
}

// resolveID accepts a conversation ID or a 1-based position in the list.
func (s *chatSession) resolveID(arg string) (string, error) {
	if arg == "" {
		return "", errors.New("usage: /switch ID|N")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		items := s.runner.ctrl.Snapshot().Summaries
		if n >= 1 && n <= len(items) {
			return items[n-1].ID, nil
		}
	}
	return arg, nil
}

func (s *chatSession) printList(state session.State) {
	if len(state.Summaries) == 0 {
		fmt.Fprintln(s.out, DimStyle.Render("No conversations yet."))
		return
	}
	for i, item := range state.Summaries {
		marker := "  "
		if item.ID == state.SelectedID {
			marker = "> "
		}
		fmt.Fprintf(s.out, "%s%d. %s %s\n", marker, i+1,
			util.TruncateWidth(item.Title, 40),
			DimStyle.Render("("+item.ID+")"))
		if preview := item.Preview(); preview != "" {
			fmt.Fprintf(s.out, "     %s\n", DimStyle.Render(util.TruncateWidth(util.CollapseWhitespace(preview), 60)))
		}
	}
}

// bannerErr returns the controller's banner as an error.
func bannerErr(state session.State) error {
	if state.Banner == nil {
		return nil
	}
	return state.Banner
}

// printTranscript writes every message of conv.
func printTranscript(out io.Writer, conv *model.Conversation, citations bool) {
	if conv.IsEmpty() {
		fmt.Fprintln(out, DimStyle.Render("No messages yet."))
		return
	}
	for _, msg := range conv.Messages {
		label := LabelStyle.Render(msg.Role.DisplayName())
		if !msg.CreatedAt.IsZero() {
			label += DimStyle.Render(msg.CreatedAt.Local().Format("Jan 2 15:04"))
		}
		fmt.Fprintln(out, label)
		fmt.Fprintln(out, msg.Content)
		if citations {
			printCitations(out, msg.Citations)
		}
		fmt.Fprintln(out)
	}
}
