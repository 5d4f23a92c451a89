// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
)

// ErrUnterminated is returned when the body ends before any terminal event.
var ErrUnterminated = errors.New("stream closed before completion")

// Pump reads frames from r, interprets every payload line and emits the
// resulting events in arrival order.
//
// Pump returns nil as soon as a terminal event has been emitted; frames that
// follow a terminal event are never parsed. It returns ErrUnterminated when
// the body ends first, ctx.Err() when the context is cancelled between
// frames, and the read error for any other transport failure.
func Pump(ctx context.Context, r io.Reader, emit func(Event)) error {
	fr := NewFrameReader(r)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := fr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrUnterminated
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		for _, payload := range PayloadLines(frame) {
			ev, ok := Interpret(payload)
			if !ok {
				continue
			}
			emit(ev)
			if ev.Terminal() {
				return nil
			}
		}
	}
}
