// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// formatTimestamp formats a message time: clock only for today, date and
// clock otherwise.
func formatTimestamp(t time.Time) string {
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("Jan 2 15:04")
}

// wrapText wraps text at word boundaries to maxWidth columns, keeping
// existing line breaks. Words wider than maxWidth are hard-wrapped.
func wrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}

	var out strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out.WriteByte('\n')
		}
		width := 0
		for j, word := range strings.Fields(line) {
			for runewidth.StringWidth(word) > maxWidth {
				head := runewidth.Truncate(word, maxWidth, "")
				if head == "" {
					head = string([]rune(word)[:1])
				}
				if width > 0 {
					out.WriteByte('\n')
				}
				out.WriteString(head)
				word = word[len(head):]
				width = maxWidth
			}
			if word == "" {
				continue
			}
			w := runewidth.StringWidth(word)
			switch {
			case j == 0 && width == 0:
			case width+1+w > maxWidth:
				out.WriteByte('\n')
				width = 0
			default:
				out.WriteByte(' ')
				width++
			}
			out.WriteString(word)
			width += w
		}
	}
	return out.String()
}
