// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/ragchat/internal/api"
	"github.com/jeranaias/ragchat/internal/logging"
	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/stream"
)

// ErrEmptyTitle is returned by Rename for a blank title.
var ErrEmptyTitle = errors.New("title is empty")

// =============================================================================
// BACKEND
// =============================================================================

// EventStream is an open answer stream.
type EventStream interface {
	// Pump emits events in arrival order until the first terminal event.
	Pump(ctx context.Context, emit func(stream.Event)) error
	Close() error
}

// Backend is the part of the chat service the controller talks to.
type Backend interface {
	ListConversations(ctx context.Context) ([]model.ConversationSummary, error)
	CreateConversation(ctx context.Context, title string) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	RenameConversation(ctx context.Context, id, title string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	OpenStream(ctx context.Context, conversationID, question string) (EventStream, error)
}

type apiBackend struct {
	*api.Client
}

// FromAPI adapts an api.Client to Backend.
func FromAPI(c *api.Client) Backend {
	return apiBackend{Client: c}
}

func (b apiBackend) OpenStream(ctx context.Context, conversationID, question string) (EventStream, error) {
	s, err := b.Client.OpenStream(ctx, conversationID, question)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// =============================================================================
// STATE
// =============================================================================

// Status is the stream session state.
type Status int

const (
	StatusIdle Status = iota
	StatusStreaming
	StatusCompleted
	StatusFailed
	StatusReconciling
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStreaming:
		return "streaming"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusReconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}

// StreamSession describes the current ask.
type StreamSession struct {
	ConversationID string
	Generation     uint64
	Status         Status

	// Outcome is StatusCompleted or StatusFailed once the stream ended.
	Outcome Status

	// Buffer is the transient answer text. Only filled in snapshots.
	Buffer string

	// Citations is nil until the stream delivers a citation batch.
	Citations []model.Citation

	LastError *Error
}

// Active reports whether the session has not returned to idle yet.
func (s StreamSession) Active() bool {
	return s.Status != StatusIdle
}

// State is a snapshot of everything the controller owns.
type State struct {
	Conversation *model.Conversation
	SelectedID   string
	Summaries    []model.ConversationSummary

	// Provisional is set while Summaries holds an unconfirmed local insert.
	Provisional bool

	// Refreshing is set while a summary list request is outstanding.
	Refreshing bool

	Session StreamSession

	// Banner is the last non-stream error (reconciliation or a request).
	Banner *Error

	Loading bool
}

// Messages returns the display list: the conversation's messages followed,
// while a session is active, by one synthetic assistant message holding the
// transient answer.
func (s State) Messages() []model.Message {
	if s.Conversation == nil {
		return nil
	}
	out := make([]model.Message, 0, len(s.Conversation.Messages)+1)
	out = append(out, s.Conversation.Messages...)
	if s.Session.Active() && s.Session.ConversationID == s.Conversation.ID {
		out = append(out, model.NewStreamingAssistantMessage(s.Session.Buffer, s.Session.Citations))
	}
	return out
}

// =============================================================================
// MESSAGES
// =============================================================================

// StreamEventMsg delivers one event of the stream opened for Generation.
type StreamEventMsg struct {
	Generation uint64
	Event      stream.Event

	ch <-chan tea.Msg
}

// StreamEndedMsg reports that the stream for Generation is finished. Err is
// nil when the stream ended with a terminal event.
type StreamEndedMsg struct {
	Generation uint64
	Err        error
}

// ReconciledMsg carries the server state fetched after a stream ended.
type ReconciledMsg struct {
	Generation     uint64
	ConversationID string
	Conversation   *model.Conversation
	Summaries      []model.ConversationSummary
	ListSeq        uint64
	Err            error
}

// ConversationLoadedMsg carries a conversation selected by Init, Select or
// a delete of the selected conversation.
type ConversationLoadedMsg struct {
	Generation   uint64
	Conversation *model.Conversation
	Summaries    []model.ConversationSummary
	ListSeq      uint64
	Err          error
}

// ConversationCreatedMsg carries the result of Create.
type ConversationCreatedMsg struct {
	Conversation *model.Conversation
	Err          error
}

// ConversationRenamedMsg carries the result of Rename.
type ConversationRenamedMsg struct {
	ID           string
	Conversation *model.Conversation
	Err          error
}

// ConversationDeletedMsg carries the result of Delete.
type ConversationDeletedMsg struct {
	ID  string
	Err error
}

// SummariesMsg carries a refreshed summary list. ListSeq orders it against
// every other list request the controller issued.
type SummariesMsg struct {
	Summaries []model.ConversationSummary
	ListSeq   uint64
	Err       error
}

// AbortMsg asks the controller to cancel the current stream.
type AbortMsg struct{}

// listen waits for the next message of a stream.
func listen(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Options configures a Controller.
type Options struct {
	// SummaryLimit caps the summary cache (default: 5)
	SummaryLimit int

	// Context is the parent of every request (default: context.Background)
	Context context.Context
}

// Controller is the only owner of the conversation, summary and stream
// session state. Every method except Subscribe and Close must be called from
// the goroutine that runs Update.
type Controller struct {
	backend Backend
	ctx     context.Context
	stop    context.CancelFunc
	log     zerolog.Logger

	generation uint64
	conv       *model.Conversation
	selectedID string
	loading    bool
	summaries  *SummaryCache
	session    StreamSession

	// listSeq numbers summary list requests; listApplied is the newest one
	// whose result reached the cache.
	listSeq     uint64
	listApplied uint64
	buf        strings.Builder
	banner     *Error

	streamCancel *cancelManager

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New creates a controller. Call Init to load the first conversation.
func New(backend Backend, opts Options) *Controller {
	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := context.WithCancel(parent)
	return &Controller{
		backend:      backend,
		ctx:          ctx,
		stop:         stop,
		log:          logging.For("session"),
		summaries:    NewSummaryCache(opts.SummaryLimit),
		streamCancel: newCancelManager(),
		subs:         make(map[int]func(State)),
	}
}

// Close cancels every in-flight request.
func (c *Controller) Close() {
	c.streamCancel.clear()
	c.stop()
}

// Generation returns the current generation.
func (c *Controller) Generation() uint64 {
	return c.generation
}

// Status returns the current session status.
func (c *Controller) Status() Status {
	return c.session.Status
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	session := c.session
	session.Buffer = c.buf.String()
	session.Citations = model.CloneCitations(c.session.Citations)
	session.LastError = c.session.LastError.Clone()

	return State{
		Conversation: c.conv.Clone(),
		SelectedID:   c.selectedID,
		Summaries:    c.summaries.Items(),
		Provisional:  c.summaries.Provisional(),
		Refreshing:   c.summaries.Stale(),
		Session:      session,
		Banner:       c.banner.Clone(),
		Loading:      c.loading,
	}
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs on the update goroutine and must not block. The returned function
// removes the subscription.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller) notify() {
	c.subMu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	if len(fns) == 0 {
		return
	}
	state := c.Snapshot()
	for _, fn := range fns {
		fn(state)
	}
}

// bump starts a new generation and aborts the previous stream, if any.
func (c *Controller) bump() uint64 {
	c.generation++
	c.streamCancel.cancel()
	return c.generation
}

// resetSession discards the transient answer and returns to idle.
func (c *Controller) resetSession(conversationID string) {
	c.buf.Reset()
	c.session = StreamSession{ConversationID: conversationID, Generation: c.generation}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Init loads the summary list and selects the most recent conversation,
// creating one when the list is empty.
func (c *Controller) Init() tea.Cmd {
	gen := c.bump()
	c.conv = nil
	c.selectedID = ""
	c.loading = true
	c.banner = nil
	c.resetSession("")
	c.notify()
	return c.bootstrap(gen)
}

// Submit sends a question in the selected conversation.
func (c *Controller) Submit(question string) (tea.Cmd, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if c.conv == nil {
		return nil, ErrNoConversation
	}
	if c.session.Status != StatusIdle {
		return nil, ErrSessionBusy
	}

	gen := c.bump()
	c.conv.Append(model.NewUserMessage(question))
	c.banner = nil
	c.resetSession(c.conv.ID)
	c.session.Status = StatusStreaming

	ctx, cancel := context.WithCancel(c.ctx)
	c.streamCancel.set(gen, cancel)

	c.log.Debug().Uint64("generation", gen).Str("conversation_id", c.conv.ID).Msg("stream started")
	c.notify()
	return c.openStream(ctx, gen, c.conv.ID, question), nil
}

// Select switches to another conversation. Any stream in flight is
// superseded: its later events are ignored and its request is cancelled.
func (c *Controller) Select(id string) tea.Cmd {
	gen := c.bump()
	c.conv = nil
	c.selectedID = id
	c.loading = true
	c.banner = nil
	c.resetSession(id)
	c.notify()
	return c.load(gen, id)
}

// Abort cancels the current stream. The stream then ends as a transport
// failure and is reconciled like any other. It reports whether a stream was
// active.
func (c *Controller) Abort() bool {
	if c.session.Status != StatusStreaming {
		return false
	}
	gen, held := c.streamCancel.current()
	if !held {
		return false
	}
	c.log.Debug().Uint64("generation", gen).Msg("stream aborted")
	c.streamCancel.cancel()
	return true
}

// Create creates a conversation and selects it.
func (c *Controller) Create(title string) tea.Cmd {
	backend, ctx := c.backend, c.ctx
	title = strings.TrimSpace(title)
	return func() tea.Msg {
		conv, err := backend.CreateConversation(ctx, title)
		return ConversationCreatedMsg{Conversation: conv, Err: err}
	}
}

// Rename sets a conversation's title.
func (c *Controller) Rename(id, title string) (tea.Cmd, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	backend, ctx := c.backend, c.ctx
	return func() tea.Msg {
		conv, err := backend.RenameConversation(ctx, id, title)
		return ConversationRenamedMsg{ID: id, Conversation: conv, Err: err}
	}, nil
}

// Delete removes a conversation. Deleting the selected conversation selects
// the next most recent one.
func (c *Controller) Delete(id string) tea.Cmd {
	backend, ctx := c.backend, c.ctx
	return func() tea.Msg {
		return ConversationDeletedMsg{ID: id, Err: backend.DeleteConversation(ctx, id)}
	}
}

// Refresh reloads the summary list.
func (c *Controller) Refresh() tea.Cmd {
	c.summaries.Invalidate()
	seq := c.nextListSeq()
	backend, ctx := c.backend, c.ctx
	return func() tea.Msg {
		list, err := backend.ListConversations(ctx)
		return SummariesMsg{Summaries: list, ListSeq: seq, Err: err}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update applies a message produced by one of the controller's commands and
// returns the follow-up command.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case StreamEventMsg:
		return c.handleStreamEvent(msg)
	case StreamEndedMsg:
		return c.handleStreamEnded(msg)
	case ReconciledMsg:
		c.handleReconciled(msg)
	case ConversationLoadedMsg:
		c.handleLoaded(msg)
	case ConversationCreatedMsg:
		c.handleCreated(msg)
	case ConversationRenamedMsg:
		return c.handleRenamed(msg)
	case ConversationDeletedMsg:
		return c.handleDeleted(msg)
	case SummariesMsg:
		c.handleSummaries(msg)
	case AbortMsg:
		c.Abort()
	}
	return nil
}

func (c *Controller) handleStreamEvent(msg StreamEventMsg) tea.Cmd {
	next := listen(msg.ch)
	if msg.Generation != c.generation || c.session.Status != StatusStreaming {
		return next
	}

	ev := msg.Event
	switch ev.Kind {
	case stream.EventToken:
		c.buf.WriteString(ev.Token)
		c.notify()
		return next
	case stream.EventCitations:
		c.session.Citations = model.CloneCitations(ev.Citations)
		c.notify()
		return next
	case stream.EventCompletion:
		return tea.Batch(next, c.finish(StatusCompleted, nil))
	case stream.EventServerError:
		return tea.Batch(next, c.finish(StatusFailed, &Error{Kind: KindServer, Message: ev.Message}))
	case stream.EventProtocolError:
		return tea.Batch(next, c.finish(StatusFailed, &Error{Kind: KindProtocol, Message: ev.Message}))
	}
	return next
}

func (c *Controller) handleStreamEnded(msg StreamEndedMsg) tea.Cmd {
	if msg.Generation != c.generation || c.session.Status != StatusStreaming {
		return nil
	}
	err := msg.Err
	if err == nil {
		err = stream.ErrUnterminated
	}
	return c.finish(StatusFailed, wrap(KindTransport, err))
}

// finish marks the session terminal and starts reconciliation.
func (c *Controller) finish(outcome Status, serr *Error) tea.Cmd {
	c.session.Status = outcome
	c.session.Outcome = outcome
	c.session.LastError = serr

	event := c.log.Debug()
	if serr != nil {
		event = c.log.Warn().Str("kind", serr.Kind.String()).Str("error", serr.Message)
	}
	event.Uint64("generation", c.generation).Str("outcome", outcome.String()).Msg("stream ended")
	c.notify()

	c.session.Status = StatusReconciling
	c.summaries.Invalidate()
	c.notify()

	gen, id, seq := c.generation, c.session.ConversationID, c.nextListSeq()
	backend, ctx := c.backend, c.ctx
	return func() tea.Msg {
		conv, list, err := fetchConversation(ctx, backend, id)
		return ReconciledMsg{Generation: gen, ConversationID: id, Conversation: conv, Summaries: list, ListSeq: seq, Err: err}
	}
}

func (c *Controller) handleReconciled(msg ReconciledMsg) {
	if msg.Generation != c.generation {
		return
	}
	c.streamCancel.clear()
	c.session.Status = StatusIdle

	if msg.Err != nil {
		c.banner = &Error{
			Kind:    KindReconciliation,
			Message: "could not refresh conversation: " + msg.Err.Error(),
			Cause:   msg.Err,
		}
		c.log.Warn().Err(msg.Err).Str("conversation_id", msg.ConversationID).Msg("reconciliation failed")
		c.notify()
		return
	}

	c.conv = msg.Conversation
	c.applySummaries(msg.ListSeq, msg.Summaries)
	c.buf.Reset()
	c.session.Citations = nil
	c.notify()
}

func (c *Controller) handleLoaded(msg ConversationLoadedMsg) {
	if msg.Generation != c.generation {
		return
	}
	c.loading = false
	if msg.Err != nil {
		c.banner = &Error{Kind: KindRequest, Message: "could not load conversation: " + msg.Err.Error(), Cause: msg.Err}
		c.notify()
		return
	}
	c.conv = msg.Conversation
	c.selectedID = msg.Conversation.ID
	c.session.ConversationID = msg.Conversation.ID
	c.applySummaries(msg.ListSeq, msg.Summaries)
	c.notify()
}

func (c *Controller) handleCreated(msg ConversationCreatedMsg) {
	if msg.Err != nil {
		c.banner = &Error{Kind: KindRequest, Message: "could not create conversation: " + msg.Err.Error(), Cause: msg.Err}
		c.notify()
		return
	}
	c.summaries.InsertOptimistic(msg.Conversation.Summary())

	c.bump()
	c.conv = msg.Conversation
	c.selectedID = msg.Conversation.ID
	c.loading = false
	c.banner = nil
	c.resetSession(msg.Conversation.ID)
	c.notify()
}

func (c *Controller) handleRenamed(msg ConversationRenamedMsg) tea.Cmd {
	if msg.Err != nil {
		c.banner = &Error{Kind: KindRequest, Message: "could not rename conversation: " + msg.Err.Error(), Cause: msg.Err}
		c.notify()
		return nil
	}
	if c.conv != nil && c.conv.ID == msg.ID && msg.Conversation != nil {
		c.conv.Title = msg.Conversation.Title
	}
	c.notify()
	return c.Refresh()
}

func (c *Controller) handleDeleted(msg ConversationDeletedMsg) tea.Cmd {
	if msg.Err != nil {
		c.banner = &Error{Kind: KindRequest, Message: "could not delete conversation: " + msg.Err.Error(), Cause: msg.Err}
		c.notify()
		return nil
	}
	if msg.ID != c.selectedID {
		return c.Refresh()
	}

	c.summaries.Invalidate()
	gen := c.bump()
	c.conv = nil
	c.selectedID = ""
	c.loading = true
	c.resetSession("")
	c.notify()
	return c.bootstrap(gen)
}

func (c *Controller) handleSummaries(msg SummariesMsg) {
	if msg.Err != nil {
		c.banner = &Error{Kind: KindRequest, Message: "could not refresh conversations: " + msg.Err.Error(), Cause: msg.Err}
		c.notify()
		return
	}
	if !c.applySummaries(msg.ListSeq, msg.Summaries) {
		c.log.Debug().Uint64("list_seq", msg.ListSeq).Msg("out-of-order summary list dropped")
		return
	}
	c.notify()
}

// nextListSeq numbers a new summary list request.
func (c *Controller) nextListSeq() uint64 {
	c.listSeq++
	return c.listSeq
}

// applySummaries refreshes the cache with the list requested as seq unless
// a list requested later has already been applied.
func (c *Controller) applySummaries(seq uint64, list []model.ConversationSummary) bool {
	if seq < c.listApplied {
		return false
	}
	c.listApplied = seq
	c.summaries.Refresh(list)
	return true
}

// =============================================================================
// COMMANDS
// =============================================================================

// streamBuffer is how many undelivered stream messages may queue up.
const streamBuffer = 64

// openStream opens the stream and pumps its events into a channel that is
// drained one message per Update.
func (c *Controller) openStream(ctx context.Context, gen uint64, conversationID, question string) tea.Cmd {
	backend, done := c.backend, c.ctx.Done()
	return func() tea.Msg {
		s, err := backend.OpenStream(ctx, conversationID, question)
		if err != nil {
			return StreamEndedMsg{Generation: gen, Err: err}
		}

		ch := make(chan tea.Msg, streamBuffer)
		send := func(msg tea.Msg) {
			select {
			case ch <- msg:
			case <-done:
			}
		}
		go func() {
			defer close(ch)
			defer s.Close()
			err := s.Pump(ctx, func(ev stream.Event) {
				send(StreamEventMsg{Generation: gen, Event: ev, ch: ch})
			})
			send(StreamEndedMsg{Generation: gen, Err: err})
		}()
		return listen(ch)()
	}
}

// load fetches a conversation and the summary list for Select.
func (c *Controller) load(gen uint64, id string) tea.Cmd {
	seq := c.nextListSeq()
	backend, ctx := c.backend, c.ctx
	return func() tea.Msg {
		conv, list, err := fetchConversation(ctx, backend, id)
		return ConversationLoadedMsg{Generation: gen, Conversation: conv, Summaries: list, ListSeq: seq, Err: err}
	}
}

// bootstrap lists conversations, creates one if there are none, and loads
// the most recent.
func (c *Controller) bootstrap(gen uint64) tea.Cmd {
	seq := c.nextListSeq()
	backend, ctx := c.backend, c.ctx
	return func() tea.Msg {
		list, err := backend.ListConversations(ctx)
		if err != nil {
			return ConversationLoadedMsg{Generation: gen, Err: err}
		}
		if len(list) == 0 {
			created, err := backend.CreateConversation(ctx, "")
			if err != nil {
				return ConversationLoadedMsg{Generation: gen, Err: err}
			}
			return ConversationLoadedMsg{
				Generation:   gen,
				Conversation: created,
				Summaries:    []model.ConversationSummary{created.Summary()},
				ListSeq:      seq,
			}
		}
		conv, err := backend.GetConversation(ctx, list[0].ID)
		return ConversationLoadedMsg{Generation: gen, Conversation: conv, Summaries: list, ListSeq: seq, Err: err}
	}
}

// fetchConversation gets a conversation's detail and the summary list in
// parallel.
func fetchConversation(ctx context.Context, backend Backend, id string) (*model.Conversation, []model.ConversationSummary, error) {
	var (
		conv *model.Conversation
		list []model.ConversationSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		conv, err = backend.GetConversation(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		list, err = backend.ListConversations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return conv, list, nil
}
