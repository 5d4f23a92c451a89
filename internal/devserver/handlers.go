// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jeranaias/ragchat/internal/model"
)

// =============================================================================
// CONVERSATIONS
// =============================================================================

type createConversationBody struct {
	Title *string `json:"title"`
}

type renameConversationBody struct {
	Title string `json:"title" binding:"required"`
}

func (s *Server) listConversations(c *gin.Context) {
	c.JSON(http.StatusOK, s.conversations.listRecent(s.cfg.HistoryLimit))
}

func (s *Server) createConversation(c *gin.Context) {
	var body createConversationBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			detail(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}
	title := ""
	if body.Title != nil {
		title = *body.Title
	}
	c.JSON(http.StatusCreated, s.conversations.create(title))
}

func (s *Server) getConversation(c *gin.Context) {
	conv, err := s.conversations.get(c.Param("id"))
	if err != nil {
		detail(c, http.StatusNotFound, "Conversation not found")
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) renameConversation(c *gin.Context) {
	var body renameConversationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	conv, err := s.conversations.rename(c.Param("id"), body.Title)
	if err != nil {
		detail(c, http.StatusNotFound, "Conversation not found")
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) deleteConversation(c *gin.Context) {
	if err := s.conversations.delete(c.Param("id")); err != nil {
		detail(c, http.StatusNotFound, "Conversation not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// CHAT
// =============================================================================

type chatBody struct {
	ConversationID string `json:"conversation_id" binding:"required,uuid"`
	Question       string `json:"question" binding:"required"`
}

// bindChat validates a chat request and checks the conversation exists.
func (s *Server) bindChat(c *gin.Context) (chatBody, *model.Conversation, bool) {
	var body chatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return body, nil, false
	}
	conv, err := s.conversations.get(body.ConversationID)
	if err != nil {
		detail(c, http.StatusNotFound, "Conversation not found")
		return body, nil, false
	}
	return body, conv, true
}

// generate persists the question, then asks the answerer.
func (s *Server) generate(ctx context.Context, conv *model.Conversation, question string) (Reply, error) {
	history := conv.Messages
	if _, err := s.conversations.appendMessage(conv.ID, model.Message{Role: model.RoleUser, Content: question}); err != nil {
		return Reply{}, err
	}
	return s.cfg.Answerer.Answer(ctx, history, question, s.documents.snapshot())
}

// persistAnswer stores a non-empty answer with its citations.
func (s *Server) persistAnswer(id string, reply Reply) {
	answer := strings.TrimSpace(reply.Text())
	if answer == "" {
		return
	}
	msg := model.Message{Role: model.RoleAssistant, Content: answer}
	if len(reply.Citations) > 0 {
		msg.Citations = reply.Citations
	}
	if _, err := s.conversations.appendMessage(id, msg); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", id).Msg("answer not persisted")
	}
}

func (s *Server) respond(c *gin.Context) {
	body, conv, ok := s.bindChat(c)
	if !ok {
		return
	}
	reply, err := s.generate(c.Request.Context(), conv, body.Question)
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistAnswer(conv.ID, reply)

	citations := reply.Citations
	if citations == nil {
		citations = []model.Citation{}
	}
	c.JSON(http.StatusOK, gin.H{
		"answer":    strings.TrimSpace(reply.Text()),
		"citations": citations,
	})
}

// stream answers a question as a sequence of "data:" frames: one per token,
// then the citations, then always a final [DONE]. Failures are reported
// in-band as an error frame.
func (s *Server) stream(c *gin.Context) {
	body, conv, ok := s.bindChat(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	w := c.Writer
	frame := func(payload string) {
		fmt.Fprintf(w, "data: %s\n\n", payload)
		w.Flush()
	}
	event := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			data, _ = json.Marshal(gin.H{"error": err.Error()})
		}
		frame(string(data))
	}
	defer frame("[DONE]")

	reply, err := s.generate(ctx, conv, body.Question)
	if err != nil {
		event(gin.H{"error": err.Error()})
		return
	}

	for _, token := range reply.Tokens {
		if !sleepCtx(ctx, s.cfg.TokenDelay) {
			return
		}
		event(gin.H{"delta": token})
	}

	s.persistAnswer(conv.ID, reply)
	if len(reply.Citations) > 0 {
		event(gin.H{"citations": reply.Citations})
	}
}

// sleepCtx waits for d and reports whether ctx is still live.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// supportedExtensions are the upload types the dev server can read as text.
var supportedExtensions = map[string]bool{".txt": true, ".md": true}

type documentBody struct {
	Filename string `json:"filename" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

func (s *Server) listDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, s.documents.list())
}

func (s *Server) uploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "File is required.")
		return
	}
	name := strings.TrimSpace(c.PostForm("filename"))
	if name == "" {
		name = strings.TrimSpace(file.Filename)
	}
	if name == "" {
		detail(c, http.StatusBadRequest, "Filename is required.")
		return
	}
	if !supportedExtensions[strings.ToLower(filepath.Ext(file.Filename))] {
		detail(c, http.StatusBadRequest, "Unsupported file type. Allowed extensions: .txt, .md.")
		return
	}

	f, err := file.Open()
	if err != nil {
		detail(c, http.StatusInternalServerError, "Failed to process document.")
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		detail(c, http.StatusInternalServerError, "Failed to process document.")
		return
	}
	content := strings.TrimSpace(string(raw))
	if content == "" {
		detail(c, http.StatusBadRequest, "Uploaded file is empty.")
		return
	}

	doc, err := s.documents.upsert("", name, content)
	if err != nil {
		detail(c, http.StatusBadRequest, documentDetail(err))
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) getDocument(c *gin.Context) {
	doc, err := s.documents.get(c.Param("id"))
	if err != nil {
		detail(c, http.StatusNotFound, "Document not found")
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) updateDocument(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.documents.get(id); err != nil {
		detail(c, http.StatusNotFound, "Document not found")
		return
	}
	var body documentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	doc, err := s.documents.upsert(id, body.Filename, body.Content)
	if err != nil {
		detail(c, http.StatusBadRequest, documentDetail(err))
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) deleteDocument(c *gin.Context) {
	if err := s.documents.delete(c.Param("id")); err != nil {
		detail(c, http.StatusNotFound, "Document not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func documentDetail(err error) string {
	if errors.Is(err, errEmptyDocument) {
		return "Document does not contain any text."
	}
	return err.Error()
}
