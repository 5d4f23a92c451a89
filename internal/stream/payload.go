// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/jeranaias/ragchat/internal/model"
)

// DoneSentinel is the payload that signals the end of an answer.
const DoneSentinel = "[DONE]"

// MalformedPayloadMessage is reported for payloads that fail structural parsing,
// independent of what the server sent.
const MalformedPayloadMessage = "malformed streaming payload"

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventKind classifies an interpreted payload.
type EventKind int

const (
	// EventToken carries an append-only text increment.
	EventToken EventKind = iota + 1
	// EventCitations carries the citation batch for the answer.
	EventCitations
	// EventCompletion signals the answer is finished.
	EventCompletion
	// EventServerError carries an error the server reported in-band.
	EventServerError
	// EventProtocolError reports a payload that could not be parsed.
	EventProtocolError
)

// String returns a short name for logging.
func (k EventKind) String() string {
	switch k {
	case EventToken:
		return "token"
	case EventCitations:
		return "citations"
	case EventCompletion:
		return "completion"
	case EventServerError:
		return "server_error"
	case EventProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

// Event is the typed result of interpreting one payload.
type Event struct {
	Kind      EventKind
	Token     string
	Citations []model.Citation
	Message   string // ServerError and ProtocolError only
}

// Terminal reports whether the event ends the stream session.
func (e Event) Terminal() bool {
	switch e.Kind {
	case EventCompletion, EventServerError, EventProtocolError:
		return true
	}
	return false
}

// IsError reports whether the event is a terminal failure.
func (e Event) IsError() bool {
	return e.Kind == EventServerError || e.Kind == EventProtocolError
}

// =============================================================================
// INTERPRETER
// =============================================================================

// wirePayload mirrors the JSON object the server sends. Fields stay raw so that
// presence and type can be checked independently.
type wirePayload struct {
	Delta     json.RawMessage `json:"delta"`
	Error     json.RawMessage `json:"error"`
	Citations json.RawMessage `json:"citations"`
}

// Interpret classifies a raw payload string into at most one event.
//
// Checks run in order and the first match wins: the [DONE] sentinel,
// structural parsing (failure is a ProtocolError), a non-empty error,
// a string delta, then a citation array. An empty payload, or an object
// carrying none of the known fields, yields no event.
func Interpret(raw string) (Event, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Event{}, false
	}
	if trimmed == DoneSentinel {
		return Event{Kind: EventCompletion}, true
	}

	data := []byte(trimmed)
	if data[0] != '{' {
		return protocolError(), true
	}
	var p wirePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return protocolError(), true
	}

	if msg, ok := rawString(p.Error); ok && msg != "" {
		return Event{Kind: EventServerError, Message: msg}, true
	}
	if delta, ok := rawString(p.Delta); ok {
		return Event{Kind: EventToken, Token: delta}, true
	}
	if isArray(p.Citations) {
		var citations []model.Citation
		if err := json.Unmarshal(p.Citations, &citations); err != nil {
			return protocolError(), true
		}
		if citations == nil {
			citations = []model.Citation{}
		}
		return Event{Kind: EventCitations, Citations: citations}, true
	}

	return Event{}, false
}

func protocolError() Event {
	return Event{Kind: EventProtocolError, Message: MalformedPayloadMessage}
}

// rawString decodes a raw JSON value when it is a string.
func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isArray(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '['
}
