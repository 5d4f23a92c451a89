// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the main chat screen of the ragchat TUI.

The Model is a Bubble Tea model wrapped around a session.Controller. The
controller owns all conversation and stream state; the model only holds view
state (focus, sidebar cursor, dialogs, widgets) and re-renders from a
controller snapshot after every message.

# Layout

  - Header with the selected conversation title and session status
  - Sidebar listing the recent conversation summaries (hidden when narrow)
  - Transcript viewport: messages, the streaming answer and its citations
  - Banner for stream, reconciliation and request errors
  - Text area input and a status bar with key hints

# Messages

Every message the model does not handle itself (stream events, load and
reconcile results) is forwarded to Controller.Update, and the returned
command is handed back to Bubble Tea.
*/
package chat
