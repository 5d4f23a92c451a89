// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jeranaias/ragchat/internal/model"
)

// createConversationRequest omits the title so the server applies its default.
type createConversationRequest struct {
	Title *string `json:"title"`
}

type renameConversationRequest struct {
	Title string `json:"title"`
}

func conversationPath(id string) string {
	return "/conversations/" + url.PathEscape(id)
}

// ListConversations returns the server's recent-conversation list, most
// recent first.
func (c *Client) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	var out []model.ConversationSummary
	if err := c.doJSON(ctx, http.MethodGet, "/conversations/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConversation creates a conversation. An empty title lets the server
// pick its default.
func (c *Client) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	req := createConversationRequest{}
	if title != "" {
		req.Title = &title
	}
	var out model.Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/conversations/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation fetches a conversation with its full message history.
func (c *Client) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var out model.Conversation
	if err := c.doJSON(ctx, http.MethodGet, conversationPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameConversation sets a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, id, title string) (*model.Conversation, error) {
	var out model.Conversation
	if err := c.doJSON(ctx, http.MethodPatch, conversationPath(id), renameConversationRequest{Title: title}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, conversationPath(id), nil, nil)
}
