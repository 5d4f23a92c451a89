// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	before := time.Now()
	msg := NewUserMessage("Hello")

	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want 'user'", msg.Role)
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", msg.Content)
	}
	if !msg.Pending {
		t.Error("optimistic message should be pending")
	}
	if msg.LocalID == "" {
		t.Error("optimistic message should carry a local id")
	}
	if msg.CreatedAt.Before(before) {
		t.Error("CreatedAt should use the client clock")
	}
}

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Assistant"},
		{RoleSystem, "System"},
		{Role("other"), "other"},
	}
	for _, tt := range tests {
		if got := tt.role.DisplayName(); got != tt.want {
			t.Errorf("%q.DisplayName() = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestMessage_CloneIsDeep(t *testing.T) {
	page := 3
	msg := Message{Role: RoleAssistant, Citations: []Citation{{Source: "a.pdf", Page: &page}}}

	clone := msg.Clone()
	*clone.Citations[0].Page = 9
	clone.Citations[0].Source = "b.pdf"

	if *msg.Citations[0].Page != 3 || msg.Citations[0].Source != "a.pdf" {
		t.Errorf("mutating the clone changed the original: %+v", msg.Citations[0])
	}
}

func TestCloneCitations_PreservesNil(t *testing.T) {
	if CloneCitations(nil) != nil {
		t.Error("nil citations should stay nil")
	}
	if got := CloneCitations([]Citation{}); got == nil || len(got) != 0 {
		t.Errorf("empty citations should stay empty, got %#v", got)
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_SummaryPreview(t *testing.T) {
	conv := &Conversation{ID: "c1", Title: "Docs"}
	if s := conv.Summary(); s.LastMessagePreview != nil {
		t.Errorf("empty conversation should have no preview, got %q", *s.LastMessagePreview)
	}

	conv.Append(Message{Role: RoleUser, Content: strings.Repeat("é", 200), CreatedAt: time.Now()})
	s := conv.Summary()
	if s.LastMessagePreview == nil {
		t.Fatal("expected a preview")
	}
	if n := len([]rune(*s.LastMessagePreview)); n != PreviewLength {
		t.Errorf("preview length = %d runes, want %d", n, PreviewLength)
	}
	if s.ID != "c1" || s.Title != "Docs" {
		t.Errorf("unexpected summary identity: %+v", s)
	}
}

func TestConversation_CloneIsDeep(t *testing.T) {
	conv := &Conversation{ID: "c1", Messages: []Message{{Role: RoleUser, Content: "q"}}}
	clone := conv.Clone()
	clone.Messages[0].Content = "changed"
	clone.Messages = append(clone.Messages, Message{Role: RoleAssistant})

	if conv.Messages[0].Content != "q" || len(conv.Messages) != 1 {
		t.Errorf("mutating the clone changed the original: %+v", conv.Messages)
	}

	var nilConv *Conversation
	if nilConv.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestConversation_LastMessage(t *testing.T) {
	conv := &Conversation{}
	if _, ok := conv.LastMessage(); ok {
		t.Error("empty conversation should have no last message")
	}
	conv.Append(Message{Role: RoleUser, Content: "first"})
	conv.Append(Message{Role: RoleAssistant, Content: "second"})
	last, ok := conv.LastMessage()
	if !ok || last.Content != "second" {
		t.Errorf("LastMessage() = %+v, %v", last, ok)
	}
	if conv.MessageCount() != 2 || conv.IsEmpty() {
		t.Errorf("unexpected message count %d", conv.MessageCount())
	}
}
