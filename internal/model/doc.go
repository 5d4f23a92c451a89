// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the API client, the
// session controller and the user interfaces.
//
// # Key Types
//
//   - Conversation: Server-owned conversation with its ordered message history
//   - Message: Single immutable message with role, content, timestamp and citations
//   - Citation: Retrieved passage attached to assistant messages
//   - ConversationSummary: List projection of a conversation for the sidebar
//   - Document: Knowledge-base entry (outside the chat core)
//
// # Usage
//
//	conv := &model.Conversation{ID: id, Title: "Docs"}
//	conv.Append(model.NewUserMessage("What is the refund policy?"))
//	summary := conv.Summary()
package model
