// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package devserver implements an in-memory stand-in for the chat service.
//
// It serves the same routes, status codes and streaming framing as the real
// service so the client can be developed and tested without a model or a
// vector store. Answers come from a pluggable Answerer; the default one does
// naive keyword retrieval over uploaded documents.
//
// # Usage
//
//	srv := devserver.New(devserver.Config{})
//	ts := httptest.NewServer(srv.Handler())
//	defer ts.Close()
//	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: ts.URL + devserver.DefaultPrefix})
package devserver
