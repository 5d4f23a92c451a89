// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to files for sharing or archiving.
//
// # Supported Formats
//
//   - Markdown: human-readable transcript with citations listed per answer
//   - JSON: the conversation exactly as the service returned it
//
// # Usage
//
//	exporter, err := export.ForFormat("md", nil)
//	path, err := export.ExportToFile(conv, exporter, &export.Options{OutputDir: "."})
package export
