// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"

	"github.com/jeranaias/ragchat/internal/logging"
	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/session"
	"github.com/jeranaias/ragchat/internal/ui/styles"
)

// =============================================================================
// VIEW STATE
// =============================================================================

// Focus is the widget receiving key presses.
type Focus int

const (
	FocusInput   Focus = iota // Text area
	FocusSidebar              // Conversation list
)

// Dialog is the modal prompt currently shown, if any.
type Dialog int

const (
	DialogNone    Dialog = iota
	DialogRename         // Title input for the highlighted conversation
	DialogDelete         // Delete confirmation
)

// Options configures the chat screen.
type Options struct {
	// RenderMarkdown renders assistant answers through glamour.
	RenderMarkdown bool

	// ShowCitations lists the sources under assistant answers.
	ShowCitations bool
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctrl  *session.Controller
	state session.State

	theme  *styles.Theme
	keyMap KeyMap
	opts   Options
	log    zerolog.Logger

	// Dimensions
	width  int
	height int
	ready  bool

	// Widgets
	viewport viewport.Model
	input    textarea.Model
	title    textinput.Model
	spinner  spinner.Model
	help     help.Model

	focus    Focus
	dialog   Dialog
	target   model.ConversationSummary
	cursor   int
	spinning bool
	showHelp bool

	// notice is a local validation message, cleared on the next key press.
	notice string

	// Markdown renderer, rebuilt when the transcript width changes.
	renderer      *glamour.TermRenderer
	rendererWidth int
}

// New creates the chat screen for ctrl.
func New(ctrl *session.Controller, theme *styles.Theme, opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a question about your documents..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 8192
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = DefaultKeyMap().Newline
	ta.Focus()

	ti := textinput.New()
	ti.Prompt = "Title: "
	ti.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = styles.DotsSpinner.Spinner()
	sp.Style = theme.Spinner

	return Model{
		ctrl:     ctrl,
		state:    ctrl.Snapshot(),
		theme:    theme,
		keyMap:   DefaultKeyMap(),
		opts:     opts,
		log:      logging.For("tui"),
		viewport: viewport.New(80, 20),
		input:    ta,
		title:    ti,
		spinner:  sp,
		help:     help.New(),
		focus:    FocusInput,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init loads the first conversation.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.ctrl.Init())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.state.Session.Active() && !m.state.Loading {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshTranscript()
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// Controller messages: stream events, loads, reconciliation.
	cmd := m.ctrl.Update(msg)
	syncCmd := m.sync()
	return m, tea.Batch(cmd, syncCmd)
}

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return m.renderChat()
}

// =============================================================================
// STATE SYNC
// =============================================================================

// sync pulls a fresh snapshot from the controller and re-renders the
// transcript. It returns the spinner tick when a spinner should start.
func (m *Model) sync() tea.Cmd {
	prevConv := m.state.SelectedID
	m.state = m.ctrl.Snapshot()

	if n := len(m.state.Summaries); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	if m.state.SelectedID != prevConv {
		if i := m.selectedIndex(); i >= 0 {
			m.cursor = i
		}
	}

	m.refreshTranscript()

	if (m.state.Session.Active() || m.state.Loading) && !m.spinning {
		m.spinning = true
		return m.spinner.Tick
	}
	return nil
}

// refreshTranscript re-renders the transcript, keeping the view pinned to
// the bottom when it already was.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) selectedIndex() int {
	for i, s := range m.state.Summaries {
		if s.ID == m.state.SelectedID {
			return i
		}
	}
	return -1
}

// =============================================================================
// RESIZE
// =============================================================================

// Fixed rows: header, status bar, input border.
const chromeHeight = 3

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width, m.height = msg.Width, msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	transcriptWidth := m.transcriptWidth()
	m.input.SetWidth(transcriptWidth)

	vpHeight := max(m.height-chromeHeight-m.input.Height()-1, 3)
	if !m.ready {
		m.viewport = viewport.New(transcriptWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = transcriptWidth
		m.viewport.Height = vpHeight
	}
	m.title.Width = max(transcriptWidth-12, 10)
	m.help.Width = msg.Width

	m.ensureRenderer(transcriptWidth)
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
	return m, nil
}

// transcriptWidth is the space left of the sidebar.
func (m Model) transcriptWidth() int {
	return max(m.width-m.theme.SidebarWidth(), 20)
}

// ensureRenderer builds the markdown renderer for width.
func (m *Model) ensureRenderer(width int) {
	if !m.opts.RenderMarkdown || (m.renderer != nil && m.rendererWidth == width) {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		m.log.Warn().Err(err).Msg("markdown renderer unavailable")
		m.renderer = nil
		return
	}
	m.renderer = r
	m.rendererWidth = width
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""

	if key.Matches(msg, m.keyMap.Quit) {
		m.ctrl.Close()
		return m, tea.Quit
	}

	switch m.dialog {
	case DialogRename:
		return m.handleRenameKey(msg)
	case DialogDelete:
		return m.handleDeleteKey(msg)
	}

	switch {
	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keyMap.Abort) && m.state.Session.Status == session.StatusStreaming:
		cmd := m.ctrl.Update(session.AbortMsg{})
		syncCmd := m.sync()
		return m, tea.Batch(cmd, syncCmd)

	case key.Matches(msg, m.keyMap.Focus):
		return m.toggleFocus()

	case key.Matches(msg, m.keyMap.New):
		return m, m.ctrl.Create("")

	case key.Matches(msg, m.keyMap.Refresh):
		return m, m.ctrl.Refresh()

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	if m.focus == FocusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focus == FocusInput && len(m.state.Summaries) > 0 {
		m.focus = FocusSidebar
		m.input.Blur()
		if i := m.selectedIndex(); i >= 0 {
			m.cursor = i
		}
		return m, nil
	}
	m.focus = FocusInput
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Submit) {
		return m.submit()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input text. The text is kept when the controller rejects
// it so the user can retry.
func (m Model) submit() (tea.Model, tea.Cmd) {
	cmd, err := m.ctrl.Submit(m.input.Value())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyQuestion):
		case errors.Is(err, session.ErrSessionBusy):
			m.notice = "Wait for the current answer to finish (Esc stops it)."
		default:
			m.notice = err.Error()
		}
		return m, nil
	}
	m.input.Reset()
	m.viewport.GotoBottom()
	syncCmd := m.sync()
	return m, tea.Batch(cmd, syncCmd)
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.state.Summaries)
	switch {
	case key.Matches(msg, m.keyMap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keyMap.Down):
		if m.cursor < n-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keyMap.Open):
		if n == 0 {
			return m, nil
		}
		target := m.state.Summaries[m.cursor]
		m.focus = FocusInput
		focusCmd := m.input.Focus()
		if target.ID == m.state.SelectedID {
			return m, focusCmd
		}
		cmd := m.ctrl.Select(target.ID)
		syncCmd := m.sync()
		return m, tea.Batch(cmd, focusCmd, syncCmd)
	case key.Matches(msg, m.keyMap.Rename):
		if n == 0 {
			return m, nil
		}
		m.target = m.state.Summaries[m.cursor]
		m.dialog = DialogRename
		m.title.SetValue(m.target.Title)
		m.title.CursorEnd()
		cmd := m.title.Focus()
		return m, cmd
	case key.Matches(msg, m.keyMap.Delete):
		if n == 0 {
			return m, nil
		}
		m.target = m.state.Summaries[m.cursor]
		m.dialog = DialogDelete
	}
	return m, nil
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeDialog()
		return m, nil
	case tea.KeyEnter:
		cmd, err := m.ctrl.Rename(m.target.ID, m.title.Value())
		if err != nil {
			m.notice = "Title cannot be empty."
			return m, nil
		}
		m.closeDialog()
		return m, cmd
	}
	var cmd tea.Cmd
	m.title, cmd = m.title.Update(msg)
	return m, cmd
}

func (m Model) handleDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Confirm):
		id := m.target.ID
		m.closeDialog()
		return m, m.ctrl.Delete(id)
	case key.Matches(msg, m.keyMap.Dismiss):
		m.closeDialog()
	}
	return m, nil
}

func (m *Model) closeDialog() {
	m.dialog = DialogNone
	m.target = model.ConversationSummary{}
	m.title.Blur()
	m.title.Reset()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the last controller snapshot the screen rendered.
func (m Model) State() session.State {
	return m.state
}

// Focus returns the focused widget.
func (m Model) Focus() Focus {
	return m.focus
}

// Dialog returns the open dialog.
func (m Model) Dialog() Dialog {
	return m.dialog
}

// Notice returns the current validation message.
func (m Model) Notice() string {
	return m.notice
}
