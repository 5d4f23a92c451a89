// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// Document is a knowledge-base entry managed by the chat service.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Summary    *string   `json:"summary,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Content is only populated on detail responses.
	Content string `json:"content,omitempty"`
}

// DocumentUpsert is the payload for creating or replacing a document.
type DocumentUpsert struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}
