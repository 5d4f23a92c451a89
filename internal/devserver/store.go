// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/util"
)

// Title generation limits.
const (
	titleMaxWords  = 8
	titleMaxLength = 60
	titleEllipsis  = "…"
)

// DocumentSummaryLength is how much document text the summary keeps.
const DocumentSummaryLength = 200

var (
	errConversationNotFound = errors.New("conversation not found")
	errDocumentNotFound     = errors.New("document not found")
	errEmptyDocument        = errors.New("document does not contain any text")
)

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// conversationStore keeps conversations in recency order: the last entry is
// the most recently touched one.
type conversationStore struct {
	mu    sync.Mutex
	byID  map[string]*model.Conversation
	order []string
	now   func() time.Time
}

func newConversationStore(now func() time.Time) *conversationStore {
	return &conversationStore{
		byID: make(map[string]*model.Conversation),
		now:  now,
	}
}

// touch moves id to the most recent position.
func (s *conversationStore) touch(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.order = append(s.order, id)
}

func (s *conversationStore) create(title string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title == "" {
		title = model.DefaultTitle
	}
	now := s.now()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[conv.ID] = conv
	s.order = append(s.order, conv.ID)
	return conv.Clone()
}

func (s *conversationStore) get(id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[id]
	if !ok {
		return nil, errConversationNotFound
	}
	return conv.Clone(), nil
}

// listRecent returns up to limit summaries, most recent first.
func (s *conversationStore) listRecent(limit int) []model.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.ConversationSummary, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.byID[s.order[i]].Summary())
	}
	return out
}

// appendMessage adds a message, auto-titling the conversation from its
// first user message.
func (s *conversationStore) appendMessage(id string, msg model.Message) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[id]
	if !ok {
		return nil, errConversationNotFound
	}
	msg.CreatedAt = s.now()
	msg.LocalID = ""
	msg.Pending = false
	conv.Append(msg)
	s.touch(id)

	if shouldAutoTitle(conv) {
		conv.Title = titleFromMessage(msg.Content)
	}
	return conv.Clone(), nil
}

func (s *conversationStore) rename(id, title string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[id]
	if !ok {
		return nil, errConversationNotFound
	}
	conv.Title = title
	conv.UpdatedAt = s.now()
	s.touch(id)
	return conv.Clone(), nil
}

func (s *conversationStore) delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return errConversationNotFound
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// shouldAutoTitle reports whether conv still has the default title and
// exactly one message, sent by the user.
func shouldAutoTitle(conv *model.Conversation) bool {
	title := strings.ToLower(strings.TrimSpace(conv.Title))
	if title != "" && title != strings.ToLower(model.DefaultTitle) {
		return false
	}
	return len(conv.Messages) == 1 && conv.Messages[0].Role == model.RoleUser
}

// titleFromMessage builds a title from the opening words of a message:
// at most eight words and sixty characters, with an ellipsis when cut.
func titleFromMessage(content string) string {
	sanitized := util.CollapseWhitespace(content)
	if sanitized == "" {
		return model.DefaultTitle
	}

	words := strings.Split(sanitized, " ")
	selected := words
	if len(selected) > titleMaxWords {
		selected = selected[:titleMaxWords]
	}
	title := strings.Join(selected, " ")
	if util.RuneLen(title) > titleMaxLength {
		title = strings.TrimRight(util.TruncateRunesNoEllipsis(title, titleMaxLength), " ")
	}

	if len(words) > titleMaxWords || util.RuneLen(sanitized) > util.RuneLen(title) {
		title = strings.TrimRight(title, ".,;:!-— ") + titleEllipsis
	}
	return title
}

// =============================================================================
// DOCUMENT STORE
// =============================================================================

type storedDocument struct {
	meta    model.Document
	content string
}

type documentStore struct {
	mu    sync.Mutex
	byID  map[string]*storedDocument
	order []string
	now   func() time.Time
}

func newDocumentStore(now func() time.Time) *documentStore {
	return &documentStore{
		byID: make(map[string]*storedDocument),
		now:  now,
	}
}

func summarize(content string) *string {
	src := strings.TrimSpace(content)
	summary := util.TruncateRunesNoEllipsis(src, DocumentSummaryLength)
	if util.RuneLen(src) > DocumentSummaryLength {
		summary += "..."
	}
	return &summary
}

// upsert creates a document, or replaces one when id names an existing entry.
func (s *documentStore) upsert(id, filename, content string) (model.Document, error) {
	if strings.TrimSpace(content) == "" {
		return model.Document{}, errEmptyDocument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if doc, ok := s.byID[id]; ok && id != "" {
		doc.meta.Filename = filename
		doc.meta.Summary = summarize(content)
		doc.meta.UpdatedAt = now
		doc.content = content
		return doc.meta, nil
	}

	if id == "" {
		id = uuid.NewString()
	}
	doc := &storedDocument{
		meta: model.Document{
			ID:         id,
			Filename:   filename,
			Summary:    summarize(content),
			UploadedAt: now,
			UpdatedAt:  now,
		},
		content: content,
	}
	s.byID[id] = doc
	s.order = append(s.order, id)
	return doc.meta, nil
}

func (s *documentStore) list() []model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].meta)
	}
	return out
}

func (s *documentStore) get(id string) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.byID[id]
	if !ok {
		return model.Document{}, errDocumentNotFound
	}
	out := doc.meta
	out.Content = doc.content
	return out, nil
}

func (s *documentStore) delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return errDocumentNotFound
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// snapshot returns every document with its content, for retrieval.
func (s *documentStore) snapshot() []model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Document, 0, len(s.order))
	for _, id := range s.order {
		doc := s.byID[id].meta
		doc.Content = s.byID[id].content
		out = append(out, doc)
	}
	return out
}
