// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/ragchat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the roles the chat service emits.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// =============================================================================
// CITATION TYPE
// =============================================================================

// Citation points at the retrieved passage an assistant answer relied on.
type Citation struct {
	Source   string `json:"source"`
	Filename string `json:"filename"`
	Page     *int   `json:"page"`
	Content  string `json:"content"`
}

// HasPage reports whether the citation carries a page number.
func (c Citation) HasPage() bool {
	return c.Page != nil
}

// CloneCitations returns a deep copy of a citation slice, preserving nil.
func CloneCitations(in []Citation) []Citation {
	if in == nil {
		return nil
	}
	out := make([]Citation, len(in))
	for i, c := range in {
		out[i] = c
		if c.Page != nil {
			p := *c.Page
			out[i].Page = &p
		}
	}
	return out
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
// Messages are immutable once created; the server's copy is authoritative.
type Message struct {
	// LocalID identifies optimistic messages created on the client. It is never
	// sent to or returned by the server.
	LocalID string `json:"-"`

	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	Citations []Citation `json:"citations,omitempty"`

	// Pending marks a client-side message that the server has not confirmed yet.
	Pending bool `json:"-"`
}

// NewUserMessage creates an optimistic user message stamped with the client clock.
func NewUserMessage(content string) Message {
	return Message{
		LocalID:   uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
		Pending:   true,
	}
}

// NewStreamingAssistantMessage builds the synthetic trailing assistant message
// rendered while an answer is still streaming.
func NewStreamingAssistantMessage(content string, citations []Citation) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
		Citations: CloneCitations(citations),
		Pending:   true,
	}
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.Citations = CloneCitations(m.Citations)
	return m
}

// Preview returns at most maxLen leading characters of the content.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunesNoEllipsis(m.Content, maxLen)
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}
