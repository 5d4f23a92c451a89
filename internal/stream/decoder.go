// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"io"
	"iter"
	"strings"
)

// =============================================================================
// PROTOCOL CONSTANTS
// =============================================================================

const (
	// FrameDelimiter separates frames on the wire.
	FrameDelimiter = "\n\n"

	// PayloadPrefix marks a payload-carrying line inside a frame.
	PayloadPrefix = "data:"

	// MaxChunkSize is the read size used when pulling from the network body (64KB).
	MaxChunkSize = 64 * 1024

	// MaxFrameSize bounds the bytes a FrameReader buffers while waiting for a
	// delimiter (4MB).
	MaxFrameSize = 4 * 1024 * 1024
)

// ErrFrameTooLarge is returned by FrameReader when more than MaxFrameSize
// bytes arrive without a frame delimiter.
var ErrFrameTooLarge = errors.New("stream frame exceeds size limit")

// =============================================================================
// FRAME DECODER
// =============================================================================

// FrameDecoder reassembles frames from incrementally delivered text chunks.
// Chunks may split frames, lines or even the delimiter itself at any point.
// The zero value is ready to use.
type FrameDecoder struct {
	buf strings.Builder
}

// Feed appends a chunk and returns every frame completed by it, in order.
// Whatever follows the last delimiter stays buffered for the next call.
func (d *FrameDecoder) Feed(chunk string) []string {
	if chunk == "" {
		return nil
	}
	// Only a delimiter straddling the old tail and the new chunk can be new.
	from := max(0, d.buf.Len()-len(FrameDelimiter)+1)
	d.buf.WriteString(chunk)

	pending := d.buf.String()
	var frames []string
	for {
		idx := strings.Index(pending[from:], FrameDelimiter)
		if idx < 0 {
			break
		}
		idx += from
		frames = append(frames, pending[:idx])
		pending = pending[idx+len(FrameDelimiter):]
		from = 0
	}

	if frames != nil {
		d.buf.Reset()
		d.buf.WriteString(pending)
	}
	return frames
}

// Flush returns the buffered remainder once the stream has ended.
// The remainder may be an incomplete frame; callers must tolerate that.
func (d *FrameDecoder) Flush() (string, bool) {
	rest := d.buf.String()
	d.buf.Reset()
	if rest == "" {
		return "", false
	}
	return rest, true
}

// Buffered returns the number of bytes waiting for a delimiter.
func (d *FrameDecoder) Buffered() int {
	return d.buf.Len()
}

// PayloadLines extracts the payload of every "data:" line in a frame.
// The text after the prefix is returned unmodified, including any leading
// space the sender inserted. Lines without the prefix are ignored.
func PayloadLines(frame string) []string {
	var payloads []string
	for _, line := range strings.Split(frame, "\n") {
		if strings.HasPrefix(line, PayloadPrefix) {
			payloads = append(payloads, line[len(PayloadPrefix):])
		}
	}
	return payloads
}

// =============================================================================
// FRAME READER
// =============================================================================

// FrameReader yields complete frames from a network body as they arrive.
type FrameReader struct {
	r       io.Reader
	dec     FrameDecoder
	chunk   []byte
	pending []string
	done    bool
	err     error
}

// NewFrameReader creates a frame reader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		r:     r,
		chunk: make([]byte, MaxChunkSize),
	}
}

// Next returns the next complete frame. At end of stream the non-empty
// remainder is returned as a final frame, then io.EOF. Any other read error
// is returned as is, after the frames completed by the bytes read with it.
func (fr *FrameReader) Next() (string, error) {
	for len(fr.pending) == 0 {
		if fr.err != nil {
			return "", fr.err
		}
		if fr.done {
			return "", io.EOF
		}

		n, err := fr.r.Read(fr.chunk)
		if n > 0 {
			fr.pending = fr.dec.Feed(string(fr.chunk[:n]))
			if fr.dec.Buffered() > MaxFrameSize {
				fr.err = ErrFrameTooLarge
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				if fr.err == nil {
					fr.err = err
				}
				continue
			}
			fr.done = true
			if rest, ok := fr.dec.Flush(); ok && fr.err == nil {
				fr.pending = append(fr.pending, rest)
			}
		}
	}

	frame := fr.pending[0]
	fr.pending = fr.pending[1:]
	return frame, nil
}

// Frames adapts a FrameReader to a range-over-func sequence. Iteration stops
// after the first read error, which is yielded with an empty frame.
func Frames(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		fr := NewFrameReader(r)
		for {
			frame, err := fr.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}
