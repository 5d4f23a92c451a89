// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC)

	for _, in := range []string{
		"2025-03-14T09:26:53.589Z",
		"2025-03-14T09:26:53.589+00:00",
		"2025-03-14T09:26:53.589000",
	} {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", in, err)
		}
		if !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}

func TestConversation_UnmarshalServerPayload(t *testing.T) {
	payload := `{
		"id": "0b6f0c38-8f43-4bd4-9a37-2d3f0d0b7f10",
		"title": "Refund policy",
		"messages": [
			{"role": "user", "content": "How long do refunds take?", "created_at": "2025-03-14T09:26:53.589000", "citations": null},
			{"role": "assistant", "content": "Five days.", "created_at": "2025-03-14T09:26:55.100000",
			 "citations": [{"source": "docs/handbook.txt", "filename": "handbook.txt", "page": null, "content": "Refunds take 5 days."}]}
		],
		"created_at": "2025-03-14T09:26:50.000000",
		"updated_at": "2025-03-14T09:26:55.100000"
	}`

	var conv Conversation
	if err := json.Unmarshal([]byte(payload), &conv); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if conv.Title != "Refund policy" || len(conv.Messages) != 2 {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
	if conv.Messages[0].Role != RoleUser || conv.Messages[0].CreatedAt.IsZero() {
		t.Errorf("first message not decoded: %+v", conv.Messages[0])
	}
	if conv.Messages[0].Citations != nil {
		t.Errorf("null citations should stay nil")
	}
	if got := conv.Messages[1].Citations; len(got) != 1 || got[0].HasPage() {
		t.Errorf("citations not decoded: %+v", got)
	}
	if conv.UpdatedAt.Location() != time.UTC {
		t.Errorf("naive timestamps should be UTC, got %v", conv.UpdatedAt.Location())
	}
}

func TestConversationSummary_UnmarshalNullPreview(t *testing.T) {
	var s ConversationSummary
	err := json.Unmarshal([]byte(`{"id":"a","title":"New conversation","last_message_preview":null,"updated_at":"2025-01-01T00:00:00"}`), &s)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s.LastMessagePreview != nil || s.Preview() != "" {
		t.Errorf("expected no preview, got %v", s.LastMessagePreview)
	}
	if s.UpdatedAt.Year() != 2025 {
		t.Errorf("updated_at not decoded: %v", s.UpdatedAt)
	}
}

func TestDocument_Unmarshal(t *testing.T) {
	var d Document
	err := json.Unmarshal([]byte(`{"id":"d1","filename":"faq.txt","summary":"Q&A","uploaded_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-02T00:00:00","content":"body"}`), &d)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if d.Filename != "faq.txt" || d.Content != "body" || d.Summary == nil || *d.Summary != "Q&A" {
		t.Errorf("unexpected document: %+v", d)
	}
	if !d.UpdatedAt.After(d.UploadedAt) {
		t.Errorf("timestamps not decoded: %v %v", d.UploadedAt, d.UpdatedAt)
	}
}
