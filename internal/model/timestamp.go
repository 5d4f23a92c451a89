// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// naiveLayout is how the chat service writes UTC timestamps without an offset.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// ParseTimestamp parses an RFC 3339 timestamp. Timestamps without a zone
// offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t, nil
}

// flexTime decodes timestamps with or without a zone offset.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = flexTime(time.Time{})
		return nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*f = flexTime(t)
	return nil
}

// =============================================================================
// LENIENT DECODERS
// =============================================================================

// UnmarshalJSON decodes a message, accepting offset-less timestamps.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		*alias
		CreatedAt flexTime `json:"created_at"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.CreatedAt = time.Time(aux.CreatedAt)
	return nil
}

// UnmarshalJSON decodes a conversation, accepting offset-less timestamps.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	type alias Conversation
	aux := struct {
		*alias
		CreatedAt flexTime `json:"created_at"`
		UpdatedAt flexTime `json:"updated_at"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.CreatedAt = time.Time(aux.CreatedAt)
	c.UpdatedAt = time.Time(aux.UpdatedAt)
	return nil
}

// UnmarshalJSON decodes a summary, accepting offset-less timestamps.
func (s *ConversationSummary) UnmarshalJSON(data []byte) error {
	type alias ConversationSummary
	aux := struct {
		*alias
		UpdatedAt flexTime `json:"updated_at"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.UpdatedAt = time.Time(aux.UpdatedAt)
	return nil
}

// UnmarshalJSON decodes a document, accepting offset-less timestamps.
func (d *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	aux := struct {
		*alias
		UploadedAt flexTime `json:"uploaded_at"`
		UpdatedAt  flexTime `json:"updated_at"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.UploadedAt = time.Time(aux.UploadedAt)
	d.UpdatedAt = time.Time(aux.UpdatedAt)
	return nil
}
