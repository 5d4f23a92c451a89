// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/stream"
)

// ErrStreamStalled is returned when a stream delivers no bytes within the
// idle timeout.
var ErrStreamStalled = errors.New("stream stalled: no data received within idle timeout")

// ChatRequest is the body of both chat endpoints.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Question       string `json:"question"`
}

// Answer is the non-streaming chat response.
type Answer struct {
	Answer    string           `json:"answer"`
	Citations []model.Citation `json:"citations"`
}

// Respond asks a question and waits for the complete answer.
func (c *Client) Respond(ctx context.Context, conversationID, question string) (*Answer, error) {
	var out Answer
	req := ChatRequest{ConversationID: conversationID, Question: question}
	if err := c.doJSON(ctx, http.MethodPost, "/chat/respond", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// STREAMING
// =============================================================================

// Stream is an open answer stream. Close must be called once reading is done;
// it releases the connection even if frames remain unread.
type Stream struct {
	// RequestID is the X-Request-ID sent with the request.
	RequestID string

	body   io.ReadCloser
	reader io.Reader
	cancel context.CancelCauseFunc
	timer  *time.Timer
	once   sync.Once
}

// OpenStream posts a question and returns the streaming response once the
// headers have arrived. A non-2xx status is returned as an *Error before any
// frame is read.
func (c *Client) OpenStream(ctx context.Context, conversationID, question string) (*Stream, error) {
	data, err := json.Marshal(ChatRequest{ConversationID: conversationID, Question: question})
	if err != nil {
		return nil, &Error{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	streamCtx, cancel := context.WithCancelCause(ctx)
	idle := c.config.StreamIdleTimeout
	timer := time.AfterFunc(idle, func() { cancel(ErrStreamStalled) })

	req, err := c.newRequest(streamCtx, http.MethodPost, "/chat/stream", bytes.NewReader(data), "application/json")
	if err != nil {
		timer.Stop()
		cancel(context.Canceled)
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.send(req)
	if err != nil {
		timer.Stop()
		stalled := errors.Is(context.Cause(streamCtx), ErrStreamStalled)
		cancel(context.Canceled)
		if stalled {
			return nil, &Error{Type: ErrTypeTimeout, Message: "POST /chat/stream", Cause: ErrStreamStalled}
		}
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		timer.Stop()
		cancel(context.Canceled)
		return nil, statusError(resp)
	}

	s := &Stream{
		RequestID: req.Header.Get("X-Request-ID"),
		body:      resp.Body,
		cancel:    cancel,
		timer:     timer,
	}
	s.reader = &idleReader{r: resp.Body, ctx: streamCtx, timer: timer, timeout: idle}
	return s, nil
}

// Read implements io.Reader. Every successful read resets the idle timer.
func (s *Stream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

// Pump decodes frames and emits events until the first terminal event.
// See stream.Pump for the error contract.
func (s *Stream) Pump(ctx context.Context, emit func(stream.Event)) error {
	return stream.Pump(ctx, s.reader, emit)
}

// Close stops the idle timer, cancels the request and closes the body.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		s.timer.Stop()
		s.cancel(context.Canceled)
		err = s.body.Close()
	})
	return err
}

// idleReader fails with ErrStreamStalled once the idle timer has cancelled
// the request.
type idleReader struct {
	r       io.Reader
	ctx     context.Context
	timer   *time.Timer
	timeout time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.timeout)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		if errors.Is(context.Cause(ir.ctx), ErrStreamStalled) {
			return n, ErrStreamStalled
		}
	}
	return n, err
}
