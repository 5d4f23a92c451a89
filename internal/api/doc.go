// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the retrieval-augmented chat service.
//
// All routes live under a configurable prefix (default /api/v1). Responses
// with a non-2xx status become *Error values whose message is the response
// body text.
//
// # Key Types
//
//   - Client: conversations, chat, documents and health endpoints
//   - ClientConfig: base URL, timeouts and client-side rate limit
//   - Stream: an open answer stream, read with Stream.Pump
//   - Error: a non-2xx response or a transport failure
//
// # Usage
//
//	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: cfg.APIBase()})
//	s, err := client.OpenStream(ctx, conversationID, "How long do refunds take?")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	err = s.Pump(ctx, func(ev stream.Event) { ... })
package api
