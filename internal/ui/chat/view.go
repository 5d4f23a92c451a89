// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/session"
	"github.com/jeranaias/ragchat/internal/ui/styles"
	"github.com/jeranaias/ragchat/internal/util"
)

// =============================================================================
// MAIN VIEW
// =============================================================================

// renderChat assembles the full screen.
func (m Model) renderChat() string {
	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.renderBanner(),
		m.renderInput(),
	)

	body := main
	if w := m.theme.SidebarWidth(); w > 0 {
		sidebar := m.theme.Sidebar.
			Width(w - 2).
			Height(max(m.height-2, 1)).
			Render(m.renderSidebar(w - 2))
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
	}

	parts := []string{m.renderHeader(), body, m.renderStatusBar()}
	if m.showHelp {
		parts = append(parts, m.help.FullHelpView(m.keyMap.FullHelp()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderHeader shows the conversation title and session status.
func (m Model) renderHeader() string {
	title := model.DefaultTitle
	if m.state.Conversation != nil && m.state.Conversation.Title != "" {
		title = m.state.Conversation.Title
	}
	brand := m.theme.HeaderTitle.Render("ragchat")
	name := m.theme.HeaderSubtitle.Render(util.TruncateWidth(title, max(m.width-20, 10)))
	return m.theme.Header.Width(m.width).Render(brand + "  " + name)
}

// =============================================================================
// SIDEBAR
// =============================================================================

// renderSidebar lists the recent conversations with their previews.
func (m Model) renderSidebar(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Conversations"))
	b.WriteString("\n")

	if len(m.state.Summaries) == 0 {
		b.WriteString(m.theme.SidebarPreview.Render("none yet"))
		return b.String()
	}

	inner := max(width-2, 4)
	for i, s := range m.state.Summaries {
		marker := "  "
		if m.focus == FocusSidebar && i == m.cursor {
			marker = "> "
		}
		title := s.Title
		if title == "" {
			title = model.DefaultTitle
		}
		line := marker + util.TruncateWidth(title, inner-2)

		style := m.theme.SidebarItem
		if s.ID == m.state.SelectedID {
			style = m.theme.SidebarSelected
		}
		b.WriteString(style.Render(util.PadWidth(line, inner)))
		b.WriteString("\n")

		if preview := util.CollapseWhitespace(s.Preview()); preview != "" {
			b.WriteString(m.theme.SidebarPreview.Render("  " + util.TruncateWidth(preview, inner-2)))
			b.WriteString("\n")
		}
	}
	if m.state.Provisional || m.state.Refreshing {
		b.WriteString(m.theme.SidebarPending.Render("syncing..."))
	}
	return strings.TrimRight(b.String(), "\n")
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders every message of the display list.
func (m Model) renderTranscript() string {
	if m.state.Loading && m.state.Conversation == nil {
		return m.theme.EmptyState.Render(m.spinner.View() + " Loading conversation")
	}
	messages := m.state.Messages()
	if len(messages) == 0 {
		return m.theme.EmptyState.Render("Ask a question to get started.")
	}

	width := m.viewport.Width
	blocks := make([]string, 0, len(messages))
	for _, msg := range messages {
		blocks = append(blocks, m.renderMessage(msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

// renderMessage renders one message with its header line.
func (m Model) renderMessage(msg model.Message, width int) string {
	header := m.renderMessageHeader(msg)
	contentWidth := max(width-4, 10)

	var body string
	switch msg.Role {
	case model.RoleUser:
		body = m.theme.UserBubble.Width(contentWidth).Render(msg.Content)
	case model.RoleAssistant:
		body = m.renderAssistantBody(msg, contentWidth)
	default:
		body = m.theme.SystemBubble.Width(contentWidth).Render(msg.Content)
	}
	return header + "\n" + body
}

func (m Model) renderMessageHeader(msg model.Message) string {
	var label string
	switch msg.Role {
	case model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	case model.RoleAssistant:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	default:
		label = m.theme.SystemLabel.Render(msg.Role.DisplayName())
	}
	if msg.Pending || msg.CreatedAt.IsZero() {
		return label
	}
	return label + " " + m.theme.Timestamp.Render(formatTimestamp(msg.CreatedAt))
}

// renderAssistantBody renders an answer. The streaming answer is shown raw
// with a cursor; markdown is rendered once the answer is final.
func (m Model) renderAssistantBody(msg model.Message, width int) string {
	var content string
	if msg.Pending {
		content = m.renderPending(msg)
	} else {
		content = m.renderMarkdown(msg.Content, width)
	}
	body := m.theme.AssistantBody.Width(width).Render(content)

	if m.opts.ShowCitations && len(msg.Citations) > 0 {
		body += "\n" + m.renderCitations(msg.Citations, width)
	}
	return body
}

// renderPending renders the transient answer of the current session.
func (m Model) renderPending(msg model.Message) string {
	s := m.state.Session
	switch {
	case s.Status == session.StatusStreaming && msg.Content == "":
		return m.spinner.View() + " Thinking"
	case s.Status == session.StatusStreaming:
		return msg.Content + styles.TypingCursor
	case s.Status == session.StatusReconciling && msg.Content == "":
		return m.spinner.View() + " Saving"
	default:
		return msg.Content
	}
}

// renderMarkdown renders content with glamour, falling back to plain text.
func (m Model) renderMarkdown(content string, width int) string {
	if m.renderer == nil {
		return wrapText(content, width)
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return wrapText(content, width)
	}
	return strings.Trim(out, "\n")
}

// renderCitations lists the sources of an answer.
func (m Model) renderCitations(citations []model.Citation, width int) string {
	var b strings.Builder
	b.WriteString(m.theme.CitationTitle.Render("Sources"))
	for i, c := range citations {
		b.WriteString("\n")
		b.WriteString(m.theme.CitationItem.Render(fmt.Sprintf("%d. %s", i+1, citationLabel(c))))
		if excerpt := util.CollapseWhitespace(c.Content); excerpt != "" {
			b.WriteString("\n")
			b.WriteString(m.theme.CitationQuote.Render(util.TruncateWidth(excerpt, max(width-6, 10))))
		}
	}
	return b.String()
}

// citationLabel names the cited document, with its page when known.
func citationLabel(c model.Citation) string {
	name := c.Filename
	if name == "" {
		name = c.Source
	}
	if c.HasPage() {
		return fmt.Sprintf("%s (p. %d)", name, *c.Page)
	}
	return name
}

// =============================================================================
// BANNER, INPUT AND STATUS BAR
// =============================================================================

// renderBanner shows the last error: the stream failure first, then the
// controller banner, then a local notice.
func (m Model) renderBanner() string {
	width := m.transcriptWidth()
	if text := bannerText(m.state); text != "" {
		style := m.theme.ErrorBanner
		if m.state.Banner != nil && m.state.Banner.Kind == session.KindReconciliation && m.state.Session.LastError == nil {
			style = m.theme.WarningBanner
		}
		return style.Width(width).Render(styles.StatusIndicators.Error + " " + text)
	}
	if m.notice != "" {
		return m.theme.WarningBanner.Width(width).Render(styles.StatusIndicators.Warning + " " + m.notice)
	}
	return ""
}

// bannerText joins the stream error and the banner error.
func bannerText(s session.State) string {
	var parts []string
	if e := s.Session.LastError; e != nil && s.Session.ConversationID == s.SelectedID {
		parts = append(parts, e.Message)
	}
	if s.Banner != nil {
		parts = append(parts, s.Banner.Message)
	}
	return strings.Join(parts, "; ")
}

// renderInput shows the text area, or the open dialog in its place.
func (m Model) renderInput() string {
	width := m.transcriptWidth()
	switch m.dialog {
	case DialogRename:
		return m.theme.Dialog.Width(max(width-2, 10)).Render(m.title.View())
	case DialogDelete:
		prompt := fmt.Sprintf("Delete %q? (y/n)", util.TruncateWidth(m.target.Title, max(width-20, 10)))
		return m.theme.Dialog.Width(max(width-2, 10)).Render(prompt)
	}

	view := m.input.View()
	if m.state.Session.Active() {
		view = m.theme.InputDisabled.Render(view)
	}
	return m.theme.InputContainer.Width(width).Render(view)
}

// renderStatusBar shows the session status and key hints.
func (m Model) renderStatusBar() string {
	status := m.statusText()
	hints := m.help.ShortHelpView(m.keyMap.ShortHelp())

	gap := m.width - lipgloss.Width(status) - lipgloss.Width(hints) - 2
	if gap < 1 {
		return m.theme.StatusBar.Width(m.width).Render(status)
	}
	return m.theme.StatusBar.Width(m.width).Render(status + strings.Repeat(" ", gap) + hints)
}

func (m Model) statusText() string {
	s := m.state.Session
	switch s.Status {
	case session.StatusStreaming:
		return m.theme.StatusActive.Render(m.spinner.View() + " streaming")
	case session.StatusReconciling:
		return m.theme.StatusActive.Render(m.spinner.View() + " refreshing")
	case session.StatusCompleted:
		return m.theme.StatusSuccess.Render(styles.StatusIndicators.Success + " completed")
	case session.StatusFailed:
		return m.theme.StatusError.Render(styles.StatusIndicators.Error + " failed")
	}
	if m.state.Loading {
		return m.theme.StatusActive.Render(m.spinner.View() + " loading")
	}
	if s.Outcome == session.StatusFailed && s.ConversationID == m.state.SelectedID {
		return m.theme.StatusError.Render(styles.StatusIndicators.Error + " last answer failed")
	}
	return m.theme.StatusSuccess.Render(styles.StatusIndicators.Active + " ready")
}
