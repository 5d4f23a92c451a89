// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeFrames = "data: {\"delta\":\"Hel\"}\n\ndata: {\"delta\":\"lo\"}\n\ndata: [DONE]\n\n"

var threeFramesWant = []string{
	`data: {"delta":"Hel"}`,
	`data: {"delta":"lo"}`,
	`data: [DONE]`,
}

// decodeAll feeds chunks in order and flushes the remainder.
func decodeAll(chunks []string) []string {
	var dec FrameDecoder
	var frames []string
	for _, c := range chunks {
		frames = append(frames, dec.Feed(c)...)
	}
	if rest, ok := dec.Flush(); ok {
		frames = append(frames, rest)
	}
	return frames
}

// =============================================================================
// FRAME DECODER TESTS
// =============================================================================

func TestFrameDecoder_SplitExample(t *testing.T) {
	chunks := []string{
		"data: {\"del",
		"ta\":\"Hel\"}\n\ndata: {\"delta\":\"lo\"}\n",
		"\ndata: [DONE]\n\n",
	}
	assert.Equal(t, threeFramesWant, decodeAll(chunks))
}

func TestFrameDecoder_AnySplitMatchesWhole(t *testing.T) {
	whole := decodeAll([]string{threeFrames})
	require.Equal(t, threeFramesWant, whole)

	// Every two-way and three-way split point, including splits inside the delimiter.
	for i := 0; i <= len(threeFrames); i++ {
		got := decodeAll([]string{threeFrames[:i], threeFrames[i:]})
		require.Equal(t, whole, got, "split at %d", i)

		for j := i; j <= len(threeFrames); j += 7 {
			got := decodeAll([]string{threeFrames[:i], threeFrames[i:j], threeFrames[j:]})
			require.Equal(t, whole, got, "split at %d,%d", i, j)
		}
	}
}

func TestFrameDecoder_ByteAtATime(t *testing.T) {
	chunks := make([]string, 0, len(threeFrames))
	for i := 0; i < len(threeFrames); i++ {
		chunks = append(chunks, threeFrames[i:i+1])
	}
	assert.Equal(t, threeFramesWant, decodeAll(chunks))
}

func TestFrameDecoder_RemainderKeptUntilDelimiter(t *testing.T) {
	var dec FrameDecoder
	assert.Empty(t, dec.Feed("data: partial"))
	assert.Equal(t, len("data: partial"), dec.Buffered())

	frames := dec.Feed(" frame\n\ndata: next")
	assert.Equal(t, []string{"data: partial frame"}, frames)

	rest, ok := dec.Flush()
	assert.True(t, ok)
	assert.Equal(t, "data: next", rest)

	_, ok = dec.Flush()
	assert.False(t, ok, "flush should drain the buffer")
}

func TestFrameDecoder_EmptyFrames(t *testing.T) {
	frames := decodeAll([]string{"\n\n\n\ndata: x\n\n"})
	assert.Equal(t, []string{"", "", "data: x"}, frames)
}

// =============================================================================
// PAYLOAD LINE TESTS
// =============================================================================

func TestPayloadLines(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  []string
	}{
		{"single line keeps leading space", `data: {"delta":"a"}`, []string{` {"delta":"a"}`}},
		{"no space after colon", `data:[DONE]`, []string{`[DONE]`}},
		{"multiple data lines", "data: a\ndata: b", []string{" a", " b"}},
		{"other fields ignored", "event: message\nid: 7\ndata: x\n: comment", []string{" x"}},
		{"prefix must be exact", "Data: x\n data: y\ndata", nil},
		{"empty frame", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PayloadLines(tt.frame))
		})
	}
}

// =============================================================================
// FRAME READER TESTS
// =============================================================================

func TestFrameReader_OneByteReads(t *testing.T) {
	fr := NewFrameReader(iotest.OneByteReader(strings.NewReader(threeFrames + "data: tail")))

	var got []string
	for {
		frame, err := fr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, frame)
	}
	assert.Equal(t, append(append([]string{}, threeFramesWant...), "data: tail"), got)
}

func TestFrameReader_ReadErrorSurfaces(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data: a\n\ndata: b"), iotest.ErrReader(boom))
	fr := NewFrameReader(r)

	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, "data: a", frame)

	_, err = fr.Next()
	assert.ErrorIs(t, err, boom)
}

// lastReadErrReader returns all of data together with err in one Read.
type lastReadErrReader struct {
	data string
	err  error
}

func (r *lastReadErrReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	if r.data == "" {
		return n, r.err
	}
	return n, nil
}

func TestFrameReader_FramesBeforeErrorInSameRead(t *testing.T) {
	boom := errors.New("connection reset")
	fr := NewFrameReader(&lastReadErrReader{data: threeFrames + "data: cut", err: boom})

	var got []string
	for {
		frame, err := fr.Next()
		if err != nil {
			assert.ErrorIs(t, err, boom)
			break
		}
		got = append(got, frame)
	}
	assert.Equal(t, threeFramesWant, got, "the unterminated tail is dropped with the error")

	_, err := fr.Next()
	assert.ErrorIs(t, err, boom, "the error sticks")
}

func TestFrameReader_FrameTooLarge(t *testing.T) {
	body := "data: a\n\n" + strings.Repeat("x", MaxFrameSize+1)
	fr := NewFrameReader(strings.NewReader(body))

	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, "data: a", frame)

	_, err = fr.Next()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestFrames_RangeFunc(t *testing.T) {
	var got []string
	for frame, err := range Frames(strings.NewReader(threeFrames)) {
		require.NoError(t, err)
		got = append(got, frame)
	}
	assert.Equal(t, threeFramesWant, got)
}
