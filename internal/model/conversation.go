// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import "time"

// PreviewLength is the number of characters the chat service keeps in a
// summary's last message preview.
const PreviewLength = 120

// DefaultTitle is the title the service gives conversations created without one.
const DefaultTitle = "New conversation"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a chat conversation as last returned by the server.
// The client copy may be stale; it is replaced wholesale on reconciliation.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = msg.CreatedAt
}

// LastMessage returns the most recent message, or false if empty.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Clone returns a deep copy. A nil receiver yields nil.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		for i, m := range c.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	return &out
}

// Summary projects the conversation the same way the server does for listings.
func (c *Conversation) Summary() ConversationSummary {
	s := ConversationSummary{
		ID:        c.ID,
		Title:     c.Title,
		UpdatedAt: c.UpdatedAt,
	}
	if last, ok := c.LastMessage(); ok {
		preview := last.Preview(PreviewLength)
		s.LastMessagePreview = &preview
	}
	return s
}

// =============================================================================
// SUMMARY TYPE
// =============================================================================

// ConversationSummary is the list projection of a Conversation. It is never
// independently authoritative.
type ConversationSummary struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	LastMessagePreview *string   `json:"last_message_preview"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Preview returns the last message preview or an empty string.
func (s ConversationSummary) Preview() string {
	if s.LastMessagePreview == nil {
		return ""
	}
	return *s.LastMessagePreview
}

// Clone returns a deep copy of the summary.
func (s ConversationSummary) Clone() ConversationSummary {
	if s.LastMessagePreview != nil {
		p := *s.LastMessagePreview
		s.LastMessagePreview = &p
	}
	return s
}
