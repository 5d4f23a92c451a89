// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragchat/internal/model"
)

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(ts.Close)
	return ts
}

// call performs a JSON request and returns the status and body.
func call(t *testing.T, ts *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+DefaultPrefix+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func createConversation(t *testing.T, ts *httptest.Server, title string) model.Conversation {
	t.Helper()
	var body any = map[string]any{}
	if title != "" {
		body = map[string]string{"title": title}
	}
	status, data := call(t, ts, http.MethodPost, "/conversations/", body)
	require.Equal(t, http.StatusCreated, status)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(data, &conv))
	return conv
}

// =============================================================================
// TITLE GENERATION
// =============================================================================

func TestTitleFromMessage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"How long do refunds take?", "How long do refunds take?"},
		{"  spaced \n\t out  ", "spaced out"},
		{"one two three four five six seven eight nine ten", "one two three four five six seven eight…"},
		{"", model.DefaultTitle},
		{strings.Repeat("abcdefghij", 7), strings.Repeat("abcdefghij", 6) + "…"},
		{"one two three four five six seven eight, nine", "one two three four five six seven eight…"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, titleFromMessage(tt.in), "input %q", tt.in)
	}
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestConversations_ListRecentFirstCapped(t *testing.T) {
	ts := newTestServer(t, Config{})

	var ids []string
	for i := 0; i < 7; i++ {
		ids = append(ids, createConversation(t, ts, "").ID)
	}

	status, data := call(t, ts, http.MethodGet, "/conversations/", nil)
	require.Equal(t, http.StatusOK, status)
	var list []model.ConversationSummary
	require.NoError(t, json.Unmarshal(data, &list))

	require.Len(t, list, DefaultHistoryLimit)
	for i, s := range list {
		assert.Equal(t, ids[len(ids)-1-i], s.ID)
		assert.Nil(t, s.LastMessagePreview)
	}
}

func TestConversations_RenameMovesToFront(t *testing.T) {
	ts := newTestServer(t, Config{})
	first := createConversation(t, ts, "first")
	createConversation(t, ts, "second")

	status, data := call(t, ts, http.MethodPatch, "/conversations/"+first.ID, map[string]string{"title": "renamed"})
	require.Equal(t, http.StatusOK, status)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(data, &conv))
	assert.Equal(t, "renamed", conv.Title)

	_, data = call(t, ts, http.MethodGet, "/conversations/", nil)
	var list []model.ConversationSummary
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, first.ID, list[0].ID)
}

func TestConversations_NotFound(t *testing.T) {
	ts := newTestServer(t, Config{})

	status, data := call(t, ts, http.MethodGet, "/conversations/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"detail":"Conversation not found"}`, string(data))

	status, _ = call(t, ts, http.MethodDelete, "/conversations/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestConversations_Delete(t *testing.T) {
	ts := newTestServer(t, Config{})
	conv := createConversation(t, ts, "")

	status, _ := call(t, ts, http.MethodDelete, "/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = call(t, ts, http.MethodGet, "/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

// =============================================================================
// CHAT
// =============================================================================

func fixedAnswer(text string, citations []model.Citation) AnswerFunc {
	return func(context.Context, []model.Message, string, []model.Document) (Reply, error) {
		return Reply{Tokens: Tokenize(text), Citations: citations}, nil
	}
}

func TestStream_FramesAndPersistence(t *testing.T) {
	page := 2
	citations := []model.Citation{{Source: "docs/a.txt", Filename: "a.txt", Page: &page, Content: "quote"}}
	ts := newTestServer(t, Config{Answerer: fixedAnswer("Five days.", citations)})
	conv := createConversation(t, ts, "")

	status, data := call(t, ts, http.MethodPost, "/chat/stream", map[string]string{
		"conversation_id": conv.ID,
		"question":        "How long do refunds take?",
	})
	require.Equal(t, http.StatusOK, status)

	frames := strings.Split(strings.TrimSuffix(string(data), "\n\n"), "\n\n")
	require.Len(t, frames, 4)
	assert.Equal(t, `data: {"delta":"Five "}`, frames[0])
	assert.Equal(t, `data: {"delta":"days."}`, frames[1])
	assert.True(t, strings.HasPrefix(frames[2], `data: {"citations":[`))
	assert.Equal(t, "data: [DONE]", frames[3])

	_, data = call(t, ts, http.MethodGet, "/conversations/"+conv.ID, nil)
	var stored model.Conversation
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "How long do refunds take?", stored.Title, "auto-titled from the first question")
	assert.Equal(t, model.RoleAssistant, stored.Messages[1].Role)
	assert.Equal(t, "Five days.", stored.Messages[1].Content)
	require.Len(t, stored.Messages[1].Citations, 1)
	assert.Equal(t, 2, *stored.Messages[1].Citations[0].Page)
}

func TestStream_AnswerErrorIsInBand(t *testing.T) {
	failing := AnswerFunc(func(context.Context, []model.Message, string, []model.Document) (Reply, error) {
		return Reply{}, errors.New("model offline")
	})
	ts := newTestServer(t, Config{Answerer: failing})
	conv := createConversation(t, ts, "")

	status, data := call(t, ts, http.MethodPost, "/chat/stream", map[string]string{
		"conversation_id": conv.ID,
		"question":        "hi",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "data: {\"error\":\"model offline\"}\n\ndata: [DONE]\n\n", string(data))

	// The question was persisted before generation failed.
	_, data = call(t, ts, http.MethodGet, "/conversations/"+conv.ID, nil)
	var stored model.Conversation
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Len(t, stored.Messages, 1)
}

func TestStream_UnknownConversation(t *testing.T) {
	ts := newTestServer(t, Config{})
	status, _ := call(t, ts, http.MethodPost, "/chat/stream", map[string]string{
		"conversation_id": "3f1f0f7e-55b5-4b7a-9d49-1b1a6d7b2c11",
		"question":        "hi",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestChat_ValidationErrors(t *testing.T) {
	ts := newTestServer(t, Config{})
	conv := createConversation(t, ts, "")

	status, _ := call(t, ts, http.MethodPost, "/chat/respond", map[string]string{"conversation_id": conv.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = call(t, ts, http.MethodPost, "/chat/respond", map[string]string{"conversation_id": "nope", "question": "q"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestRespond_UsesDocuments(t *testing.T) {
	ts := newTestServer(t, Config{})
	conv := createConversation(t, ts, "")
	upload(t, ts, "handbook.txt", "Refunds are processed within five business days. Shipping is free.")

	status, data := call(t, ts, http.MethodPost, "/chat/respond", map[string]string{
		"conversation_id": conv.ID,
		"question":        "When are refunds processed?",
	})
	require.Equal(t, http.StatusOK, status)

	var out struct {
		Answer    string           `json:"answer"`
		Citations []model.Citation `json:"citations"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out.Answer, "handbook.txt")
	require.Len(t, out.Citations, 1)
	assert.Equal(t, "handbook.txt", out.Citations[0].Filename)
	assert.Contains(t, out.Citations[0].Content, "Refunds are processed")
}

func TestKeywordAnswerer_NoMatch(t *testing.T) {
	reply, err := KeywordAnswerer{}.Answer(context.Background(), nil, "anything relevant?", nil)
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, reply.Text())
	assert.Empty(t, reply.Citations)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func upload(t *testing.T, ts *httptest.Server, name, content string) model.Document {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+DefaultPrefix+"/documents/", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var doc model.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	return doc
}

func TestDocuments_Lifecycle(t *testing.T) {
	ts := newTestServer(t, Config{})
	doc := upload(t, ts, "faq.txt", strings.Repeat("x", 250))
	require.NotNil(t, doc.Summary)
	assert.Equal(t, strings.Repeat("x", 200)+"...", *doc.Summary)

	status, data := call(t, ts, http.MethodPut, "/documents/"+doc.ID, map[string]string{"filename": "faq-v2.txt", "content": "short"})
	require.Equal(t, http.StatusOK, status)
	var updated model.Document
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Equal(t, "faq-v2.txt", updated.Filename)

	status, data = call(t, ts, http.MethodGet, "/documents/"+doc.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var detail model.Document
	require.NoError(t, json.Unmarshal(data, &detail))
	assert.Equal(t, "short", detail.Content)

	status, _ = call(t, ts, http.MethodDelete, "/documents/"+doc.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, ts, http.MethodGet, "/documents/"+doc.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDocuments_RejectsUnsupportedType(t *testing.T) {
	ts := newTestServer(t, Config{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "scan.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+DefaultPrefix+"/documents/", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{})
	status, data := call(t, ts, http.MethodGet, "/health/", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}
