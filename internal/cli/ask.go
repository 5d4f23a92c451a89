// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question.
//
// Command: ask [question...]
// Short:   Ask a question and print the answer
//
// Examples:
//
//	ragchat ask "How many vacation days do I get?"
//	ragchat ask --new "What is the expense policy?"
//	echo "Summarize the handbook" | ragchat ask -c 42
//	ragchat ask --no-stream --json "Who approves travel?"

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat/internal/logging"
	"github.com/jeranaias/ragchat/internal/model"
)

type askOptions struct {
	conversationID string
	newConv        bool
	noStream       bool
	jsonOut        bool
}

// askResult is the --json output.
type askResult struct {
	ConversationID string           `json:"conversation_id"`
	Answer         string           `json:"answer"`
	Citations      []model.Citation `json:"citations"`
}

func newAskCmd(a *app) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a question and print the answer",
		Long: "Ask a question in a conversation and print the answer as it streams.\n" +
			"Without arguments the question is read from standard input.",
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readQuestion(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return a.runAsk(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), question, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.conversationID, "conversation", "c", "", "Conversation ID (default: most recent)")
	flags.BoolVar(&opts.newConv, "new", false, "Start a new conversation")
	flags.BoolVar(&opts.noStream, "no-stream", false, "Wait for the complete answer instead of streaming")
	flags.BoolVar(&opts.jsonOut, "json", false, "Print the answer as JSON")
	cmd.MarkFlagsMutuallyExclusive("conversation", "new")
	return cmd
}

// readQuestion joins args, or reads in when there are none and it is not a
// terminal.
func readQuestion(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if f, ok := in.(*os.File); ok && f == os.Stdin && IsTTY() {
		return "", errors.New("no question given")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read question: %w", err)
	}
	question := strings.TrimSpace(string(data))
	if question == "" {
		return "", errors.New("no question given")
	}
	return question, nil
}

func (a *app) runAsk(ctx context.Context, out, errOut io.Writer, question string, opts askOptions) error {
	log := logging.For("ask")

	ctrl := a.newController(ctx)
	defer ctrl.Close()
	r := newRunner(ctrl)

	conv, err := r.open(ctx, opts.conversationID, opts.newConv)
	if err != nil {
		return err
	}
	log.Debug().Str("conversation_id", conv.ID).Bool("stream", !opts.noStream).Msg("asking")

	if opts.noStream {
		answer, err := a.client.Respond(ctx, conv.ID, question)
		if err != nil {
			return err
		}
		result := askResult{ConversationID: conv.ID, Answer: answer.Answer, Citations: answer.Citations}
		if opts.jsonOut {
			return writeJSON(out, result)
		}
		a.displayAnswer(out, answer.Answer)
		if a.cfg.UI.ShowCitations {
			printCitations(out, answer.Citations)
		}
		return nil
	}

	var live io.Writer
	if !opts.jsonOut {
		live = out
	}
	state, err := r.ask(ctx, question, live, errOut)
	if err != nil {
		return err
	}

	msg, ok := lastAnswer(state)
	if !ok {
		msg = model.Message{Content: state.Session.Buffer, Citations: state.Session.Citations}
	}
	if opts.jsonOut {
		return writeJSON(out, askResult{ConversationID: conv.ID, Answer: msg.Content, Citations: msg.Citations})
	}
	if a.cfg.UI.ShowCitations {
		printCitations(out, msg.Citations)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
