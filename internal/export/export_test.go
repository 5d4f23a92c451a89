// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragchat/internal/model"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func sampleConversation() *model.Conversation {
	page := 4
	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	return &model.Conversation{
		ID:        "6a0c7a4e-2f7c-4f0e-9f43-2b1f4d0c9a11",
		Title:     "Refund policy",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Minute),
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "How long do refunds take?", CreatedAt: created},
			{
				Role:      model.RoleAssistant,
				Content:   "Refunds take five business days.",
				CreatedAt: created.Add(time.Minute),
				Citations: []model.Citation{
					{Source: "docs/refunds.md", Filename: "refunds.md", Page: &page, Content: "five business days\nafter approval"},
					{Source: "docs/faq.txt", Content: "see refunds"},
				},
			},
		},
	}
}

func testOptions() *Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions()).Export(sampleConversation())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: Refund policy\n"))
	assert.Contains(t, md, "generator: ragchat\n")
	assert.Contains(t, md, "messages: 2\n")
	assert.Contains(t, md, "# Refund policy\n\n")
	assert.Contains(t, md, "### [You] <sub>09:00:00</sub>\n\nHow long do refunds take?\n\n")
	assert.Contains(t, md, "### [Assistant] <sub>09:01:00</sub>")
	assert.Contains(t, md, "1. `refunds.md` (page 4)\n   > five business days\n   > after approval\n")
	assert.Contains(t, md, "2. `docs/faq.txt`\n   > see refunds\n")
	assert.Contains(t, md, "*Exported from ragchat on March 14, 2025 at 9:26 AM*")
}

func TestMarkdownExport_OptionsOff(t *testing.T) {
	opts := &Options{Now: func() time.Time { return fixedNow }}
	out, err := NewMarkdownExporter(opts).Export(sampleConversation())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "# Refund policy"))
	assert.NotContains(t, md, "<sub>")
	assert.NotContains(t, md, "**Sources**")
}

func TestMarkdownExport_Errors(t *testing.T) {
	e := NewMarkdownExporter(nil)
	_, err := e.Export(nil)
	assert.Error(t, err)
	_, err = e.Export(&model.Conversation{ID: "x", Title: "empty"})
	assert.Error(t, err)
}

func TestYAMLNewlineInjection(t *testing.T) {
	conv := sampleConversation()
	conv.Title = "Test\nInjection: malicious"

	out, err := NewMarkdownExporter(testOptions()).Export(conv)
	require.NoError(t, err)

	for _, line := range strings.Split(string(out), "\n")[:10] {
		assert.False(t, strings.HasPrefix(line, "Injection:"), "newline in title must be escaped")
	}
	assert.Contains(t, string(out), `title: "Test\nInjection: malicious"`)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `\# \*bold\* \_x\_ \[link\]`, escapeMarkdown("# *bold* _x_ [link]"))
}

func TestJSONExport(t *testing.T) {
	conv := sampleConversation()
	conv.Messages[0].LocalID = "local-only"

	out, err := NewJSONExporter(nil).Export(conv)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "local-only")

	var back model.Conversation
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, conv.ID, back.ID)
	require.Len(t, back.Messages, 2)
	assert.Equal(t, 4, *back.Messages[1].Citations[0].Page)
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"md", "Markdown", " json "} {
		e, err := ForFormat(name, nil)
		require.NoError(t, err, name)
		assert.NotNil(t, e)
	}
	_, err := ForFormat("html", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	opts := testOptions()
	opts.OutputDir = dir

	path, err := ExportToFile(sampleConversation(), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conversation_Refund_policy_20250314_092653.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Refund policy")
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleConversation(), NewJSONExporter(nil)))
	assert.True(t, strings.HasSuffix(buf.String(), "}\n"))

	assert.Error(t, Write(&buf, nil, NewJSONExporter(nil)))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Refund policy", "Refund_policy"},
		{"a/b\\c:d", "a-b-c-d"},
		{"", "conversation"},
		{"   ", "conversation"},
		{strings.Repeat("x", 60), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}
