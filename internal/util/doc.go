// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across ragchat.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateRunesNoEllipsis: UTF-8 safe prefix, used for message previews
//   - TruncateWidth, StringWidth: terminal-column aware helpers
//   - CollapseWhitespace: squeeze runs of whitespace into single spaces
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	preview := util.TruncateRunesNoEllipsis(msg.Content, 120)
//	title := util.TruncateWidth(conv.Title, sidebarWidth)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
