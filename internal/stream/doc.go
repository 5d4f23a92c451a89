// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the chat service's streaming answer protocol.
//
// The response body of POST /chat/stream is a chunked text stream. Frames are
// separated by a blank line ("\n\n"); inside a frame, lines starting with the
// literal prefix "data:" carry a payload. A payload is either the sentinel
// "[DONE]" or a JSON object with optional "delta", "error" and "citations"
// fields.
//
// # Key Types
//
//   - FrameDecoder: Incremental frame reassembly over arbitrarily split chunks
//   - FrameReader: Lazy frame sequence over an io.Reader
//   - Event: Typed result of interpreting one payload
//   - Pump: Drives reader, decoder and interpreter until a terminal event
//
// # Usage
//
//	err := stream.Pump(ctx, resp.Body, func(ev stream.Event) {
//	    switch ev.Kind {
//	    case stream.EventToken:
//	        buf.WriteString(ev.Token)
//	    }
//	})
//
// Malformed framing never fails: it degrades to frames without payloads.
// Malformed payloads surface as EventProtocolError.
package stream
