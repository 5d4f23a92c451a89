// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/jeranaias/ragchat/internal/model"
)

func documentPath(id string) string {
	return "/documents/" + url.PathEscape(id)
}

// ListDocuments returns metadata for every document in the knowledge base.
func (c *Client) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var out []model.Document
	if err := c.doJSON(ctx, http.MethodGet, "/documents/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDocument returns a document including its text content.
func (c *Client) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var out model.Document
	if err := c.doJSON(ctx, http.MethodGet, documentPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDocument posts file contents as a multipart upload. The service
// extracts the text and indexes it; filename doubles as the display name.
func (c *Client) UploadDocument(ctx context.Context, filename string, content []byte) (*model.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, &Error{Type: ErrTypeInvalidResponse, Message: "failed to build upload", Cause: err}
	}
	if _, err := part.Write(content); err != nil {
		return nil, &Error{Type: ErrTypeInvalidResponse, Message: "failed to build upload", Cause: err}
	}
	if err := mw.WriteField("filename", filepath.Base(filename)); err != nil {
		return nil, &Error{Type: ErrTypeInvalidResponse, Message: "failed to build upload", Cause: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &Error{Type: ErrTypeInvalidResponse, Message: "failed to build upload", Cause: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/documents/", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var out model.Document
	if err := c.roundTrip(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDocument replaces a document's name and text.
func (c *Client) UpdateDocument(ctx context.Context, id string, doc model.DocumentUpsert) (*model.Document, error) {
	var out model.Document
	if err := c.doJSON(ctx, http.MethodPut, documentPath(id), doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDocument removes a document and its index entries.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, documentPath(id), nil, nil)
}
