// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTheme_ForcedModes(t *testing.T) {
	dark := NewTheme("dark")
	require.NotNil(t, dark)
	assert.True(t, dark.IsDark)
	assert.Equal(t, "dark", dark.GlamourStyle())

	light := NewTheme(" LIGHT ")
	assert.False(t, light.IsDark)
	assert.Equal(t, "light", light.GlamourStyle())
}

func TestThemeStylesRender(t *testing.T) {
	theme := NewTheme("dark")
	for name, out := range map[string]string{
		"SidebarSelected": theme.SidebarSelected.Render("Refunds"),
		"UserBubble":      theme.UserBubble.Render("question"),
		"AssistantBody":   theme.AssistantBody.Render("answer"),
		"ErrorBanner":     theme.ErrorBanner.Render("connection lost"),
		"StatusBar":       theme.StatusBar.Render("idle"),
	} {
		assert.NotEmpty(t, out, name)
	}
	assert.Contains(t, theme.ErrorBanner.Render("connection lost"), "connection lost")
}

func TestLayoutMode(t *testing.T) {
	tests := []struct {
		width   int
		mode    LayoutMode
		sidebar int
	}{
		{40, LayoutNarrow, 0},
		{59, LayoutNarrow, 0},
		{60, LayoutMedium, 26},
		{99, LayoutMedium, 26},
		{100, LayoutWide, 34},
		{200, LayoutWide, 34},
	}

	theme := NewTheme("dark")
	for _, tt := range tests {
		theme.SetSize(tt.width, 30)
		assert.Equal(t, tt.mode, theme.GetLayoutMode(), "width %d", tt.width)
		assert.Equal(t, tt.sidebar, theme.SidebarWidth(), "width %d", tt.width)
	}
}

func TestSpinnerConfig(t *testing.T) {
	assert.Equal(t, time.Second/6, DotsSpinner.Duration())
	assert.Equal(t, time.Second, SpinnerConfig{}.Duration())

	sp := BrailleSpinner.Spinner()
	assert.Equal(t, BrailleSpinner.Frames, sp.Frames)
	assert.Equal(t, time.Second/12, sp.FPS)

	// The conversion copies frames.
	sp.Frames[0] = "x"
	assert.Equal(t, "|", BrailleSpinner.Frames[0])
}
