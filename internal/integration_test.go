// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package internal provides end-to-end tests for ragchat.
//
// These tests wire the real pieces together against the in-memory dev
// server:
// - Configuration to client construction
// - Streaming answers through the session controller
// - Reconciliation and the summary list
// - Superseded streams
// - Document sync feeding answers
package internal

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragchat/internal/api"
	"github.com/jeranaias/ragchat/internal/config"
	"github.com/jeranaias/ragchat/internal/devserver"
	"github.com/jeranaias/ragchat/internal/docsync"
	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/session"
	"github.com/jeranaias/ragchat/internal/stream"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testStack struct {
	cfg    *config.Config
	client *api.Client
	ctrl   *session.Controller
	driver *session.Driver
}

// newStack starts a dev server and builds the client the way the CLI does,
// from a configuration pointing at it.
func newStack(t *testing.T, dcfg devserver.Config) *testStack {
	t.Helper()
	ts := httptest.NewServer(devserver.New(dcfg).Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.Server.BaseURL = ts.URL
	cfg.Server.StreamIdleTimeoutSecs = 5
	require.NoError(t, cfg.Validate())

	client := api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:           cfg.APIBase(),
		Timeout:           cfg.RequestTimeout(),
		StreamIdleTimeout: cfg.StreamIdleTimeout(),
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		Burst:             cfg.Server.Burst,
	})
	ctrl := session.New(session.FromAPI(client), session.Options{SummaryLimit: cfg.Cache.SummaryLimit})
	t.Cleanup(ctrl.Close)

	return &testStack{cfg: cfg, client: client, ctrl: ctrl, driver: session.NewDriver(ctrl)}
}

func (s *testStack) submit(t *testing.T, question string) session.State {
	t.Helper()
	cmd, err := s.ctrl.Submit(question)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.driver.Run(ctx, cmd))
	return s.ctrl.Snapshot()
}

func (s *testStack) init(t *testing.T) session.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.driver.Run(ctx, s.ctrl.Init()))
	return s.ctrl.Snapshot()
}

func wordAnswer(text string, citations []model.Citation) devserver.AnswerFunc {
	return func(context.Context, []model.Message, string, []model.Document) (devserver.Reply, error) {
		return devserver.Reply{Tokens: devserver.Tokenize(text), Citations: citations}, nil
	}
}

// =============================================================================
// END-TO-END CHAT
// =============================================================================

// TestEndToEndChat asks two questions and checks that the client view after
// each answer matches what the server stored.
func TestEndToEndChat(t *testing.T) {
	s := newStack(t, devserver.Config{Answerer: wordAnswer("Five vacation days per year.", []model.Citation{
		{Source: "handbook.md", Filename: "handbook.md", Content: "five vacation days"},
	})})

	state := s.init(t)
	require.NotNil(t, state.Conversation)
	assert.Equal(t, model.DefaultTitle, state.Conversation.Title)

	var statuses []session.Status
	cancel := s.ctrl.Subscribe(func(st session.State) {
		if n := len(statuses); n == 0 || statuses[n-1] != st.Session.Status {
			statuses = append(statuses, st.Session.Status)
		}
	})
	state = s.submit(t, "How many vacation days do I get?")
	cancel()

	assert.Equal(t, []session.Status{
		session.StatusStreaming,
		session.StatusCompleted,
		session.StatusReconciling,
		session.StatusIdle,
	}, statuses)
	assert.Equal(t, session.StatusCompleted, state.Session.Outcome)
	assert.Nil(t, state.Session.LastError)
	assert.Empty(t, state.Session.Buffer)

	server, err := s.client.GetConversation(context.Background(), state.Conversation.ID)
	require.NoError(t, err)
	require.Len(t, state.Conversation.Messages, 2)
	assert.Equal(t, server.Messages[1].Content, state.Conversation.Messages[1].Content)
	assert.Equal(t, "Five vacation days per year.", state.Conversation.Messages[1].Content)
	assert.Len(t, state.Conversation.Messages[1].Citations, 1)

	// The auto-title from the first question reaches the summary list.
	require.NotEmpty(t, state.Summaries)
	assert.Equal(t, "How many vacation days do I get?", state.Summaries[0].Title)
	assert.False(t, state.Provisional)

	state = s.submit(t, "And sick days?")
	assert.Len(t, state.Conversation.Messages, 4)
}

// TestSummaryListCapped checks that the list never exceeds the service's
// recent-conversation limit and stays most recent first.
func TestSummaryListCapped(t *testing.T) {
	s := newStack(t, devserver.Config{})
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := s.client.CreateConversation(ctx, "conv "+string(rune('A'+i)))
		require.NoError(t, err)
	}

	state := s.init(t)
	require.Len(t, state.Summaries, devserver.DefaultHistoryLimit)
	assert.Equal(t, "conv G", state.Summaries[0].Title)
	assert.Equal(t, "conv G", state.Conversation.Title)
}

// TestSupersededStream switches conversations while an answer streams. The
// old stream's remaining events must not reach the new conversation.
func TestSupersededStream(t *testing.T) {
	s := newStack(t, devserver.Config{
		Answerer:   wordAnswer(strings.Repeat("word ", 50), nil),
		TokenDelay: 10 * time.Millisecond,
	})
	ctx := context.Background()
	other, err := s.client.CreateConversation(ctx, "Other")
	require.NoError(t, err)
	_, err = s.client.CreateConversation(ctx, "Current")
	require.NoError(t, err)

	state := s.init(t)
	require.Equal(t, "Current", state.Conversation.Title)

	cmd, err := s.ctrl.Submit("tell me a long story")
	require.NoError(t, err)

	// Step the stream by hand until some text has arrived.
	next := cmd
	for i := 0; i < 10 && s.ctrl.Snapshot().Session.Buffer == ""; i++ {
		msg := next()
		require.IsType(t, session.StreamEventMsg{}, msg)
		next = s.ctrl.Update(msg)
		require.NotNil(t, next)
	}
	require.NotEmpty(t, s.ctrl.Snapshot().Session.Buffer)

	load := s.ctrl.Select(other.ID)

	// Drain the superseded stream; every message is ignored.
	for i := 0; next != nil && i < 200; i++ {
		msg := next()
		if msg == nil {
			break
		}
		next = s.ctrl.Update(msg)
		assert.Empty(t, s.ctrl.Snapshot().Session.Buffer)
	}

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, s.driver.Run(runCtx, load))

	state = s.ctrl.Snapshot()
	require.NotNil(t, state.Conversation)
	assert.Equal(t, other.ID, state.Conversation.ID)
	assert.Empty(t, state.Conversation.Messages)
	assert.Equal(t, session.StatusIdle, state.Session.Status)
	assert.Nil(t, state.Session.LastError)

	server, err := s.client.GetConversation(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, server.Messages)
}

// TestStreamProtocolEndToEnd reads a raw stream from the dev server with the
// frame decoder and checks the terminal sequence.
func TestStreamProtocolEndToEnd(t *testing.T) {
	s := newStack(t, devserver.Config{Answerer: wordAnswer("Lot B.", []model.Citation{{Source: "faq.txt"}})})
	ctx := context.Background()
	conv, err := s.client.CreateConversation(ctx, "")
	require.NoError(t, err)

	st, err := s.client.OpenStream(ctx, conv.ID, "Where do I park?")
	require.NoError(t, err)
	defer st.Close()

	var text strings.Builder
	var kinds []stream.EventKind
	require.NoError(t, st.Pump(ctx, func(ev stream.Event) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == stream.EventToken {
			text.WriteString(ev.Token)
		}
	}))

	assert.Equal(t, "Lot B.", text.String())
	require.NotEmpty(t, kinds)
	assert.Equal(t, stream.EventCompletion, kinds[len(kinds)-1])
	assert.Contains(t, kinds, stream.EventCitations)
}

// =============================================================================
// DOCUMENTS TO ANSWERS
// =============================================================================

// TestDocumentSyncFeedsAnswers uploads a directory with the syncer and asks
// the keyword answerer a question only that document can answer.
func TestDocumentSyncFeedsAnswers(t *testing.T) {
	s := newStack(t, devserver.Config{})
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "parking.md"),
		[]byte("Visitors park in lot B behind the library."), 0644))

	syncer, err := docsync.New(s.client, docsync.Config{Dir: dir})
	require.NoError(t, err)
	defer syncer.Close()
	require.NoError(t, syncer.Load(context.Background()))
	results, err := syncer.SyncAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, docsync.ActionUploaded, results[0].Action)

	s.init(t)
	state := s.submit(t, "Where do visitors park?")
	require.Nil(t, state.Session.LastError)

	answer, ok := state.Conversation.LastMessage()
	require.True(t, ok)
	assert.Equal(t, model.RoleAssistant, answer.Role)
	assert.Contains(t, answer.Content, "lot B")
	require.NotEmpty(t, answer.Citations)
	assert.Equal(t, "parking.md", answer.Citations[0].Filename)
}
