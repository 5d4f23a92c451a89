// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package docsync mirrors a local directory of text files into the chat
// service's knowledge base.
//
// Files are matched to documents by filename. A file that changes is
// uploaded, or its document replaced when one with the same name exists; a
// file that disappears has its document deleted. Changes are debounced so an
// editor's save burst results in a single upload.
package docsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/jeranaias/ragchat/internal/api"
	"github.com/jeranaias/ragchat/internal/logging"
	"github.com/jeranaias/ragchat/internal/model"
)

// Store is the subset of the service client the syncer needs.
type Store interface {
	ListDocuments(ctx context.Context) ([]model.Document, error)
	UploadDocument(ctx context.Context, filename string, content []byte) (*model.Document, error)
	UpdateDocument(ctx context.Context, id string, doc model.DocumentUpsert) (*model.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// =============================================================================
// RESULTS
// =============================================================================

// Action is what the syncer did for a file.
type Action int

const (
	ActionUploaded Action = iota + 1
	ActionUpdated
	ActionDeleted
	ActionSkipped
	ActionFailed
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionUploaded:
		return "uploaded"
	case ActionUpdated:
		return "updated"
	case ActionDeleted:
		return "deleted"
	case ActionSkipped:
		return "skipped"
	case ActionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports the outcome for one file.
type Result struct {
	Action     Action
	Filename   string
	DocumentID string
	Err        error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// DefaultExtensions are the file types the service accepts as text.
var DefaultExtensions = []string{".md", ".txt"}

const (
	// DefaultDebounce is how long a file must be quiet before it is uploaded.
	DefaultDebounce = 500 * time.Millisecond

	// minTick and maxTick bound how often pending files are checked.
	minTick = 10 * time.Millisecond
	maxTick = 100 * time.Millisecond

	// DefaultMaxFileSize skips files larger than this many bytes.
	DefaultMaxFileSize = 10 * 1024 * 1024
)

// Config configures a Syncer. Zero values select defaults.
type Config struct {
	// Dir is the directory to mirror. Subdirectories are ignored.
	Dir string

	Debounce    time.Duration
	Extensions  []string
	MaxFileSize int64

	// OnResult receives every result, on the goroutine running the syncer.
	OnResult func(Result)
}

// =============================================================================
// SYNCER
// =============================================================================

// Syncer uploads a directory's files and keeps them up to date.
type Syncer struct {
	store   Store
	cfg     Config
	exts    map[string]bool
	watcher *fsnotify.Watcher
	log     zerolog.Logger

	// filename -> document ID
	ids map[string]string

	// path -> last change time
	pending map[string]time.Time
}

// New creates a syncer and starts watching cfg.Dir. Events that arrive
// before Run are kept until it starts.
func New(store Store, cfg Config) (*Syncer, error) {
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Dir)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(cfg.Dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.Dir, err)
	}

	exts := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		exts[strings.ToLower(ext)] = true
	}

	return &Syncer{
		store:   store,
		cfg:     cfg,
		exts:    exts,
		watcher: watcher,
		log:     logging.For("docsync").With().Str("dir", cfg.Dir).Logger(),
		ids:     make(map[string]string),
		pending: make(map[string]time.Time),
	}, nil
}

// Close stops watching.
func (s *Syncer) Close() error {
	return s.watcher.Close()
}

// Supported reports whether path has one of the synced extensions.
func (s *Syncer) Supported(path string) bool {
	return s.exts[strings.ToLower(filepath.Ext(path))]
}

// Load fetches the service's documents so files can be matched to them.
func (s *Syncer) Load(ctx context.Context) error {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		s.ids[doc.Filename] = doc.ID
	}
	s.log.Debug().Int("documents", len(docs)).Msg("loaded documents")
	return nil
}

// SyncAll uploads every supported file currently in the directory, in name
// order, and returns the results.
func (s *Syncer) SyncAll(ctx context.Context) ([]Result, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var results []Result
	for _, entry := range entries {
		if entry.IsDir() || !s.Supported(entry.Name()) {
			continue
		}
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		results = append(results, s.upsert(ctx, filepath.Join(s.cfg.Dir, entry.Name())))
	}
	return results, nil
}

// Run processes file events until ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	interval := min(max(s.cfg.Debounce/4, minTick), maxTick)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("watch error")

		case now := <-ticker.C:
			s.flush(ctx, now)
		}
	}
}

func (s *Syncer) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !s.Supported(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(s.pending, event.Name)
		if r, ok := s.remove(ctx, event.Name); ok {
			s.report(r)
		}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		s.pending[event.Name] = time.Now()
	}
}

// flush uploads files that have been quiet for the debounce period.
func (s *Syncer) flush(ctx context.Context, now time.Time) {
	var ready []string
	for path, changed := range s.pending {
		if now.Sub(changed) >= s.cfg.Debounce {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	for _, path := range ready {
		delete(s.pending, path)
		s.report(s.upsert(ctx, path))
	}
}

func (s *Syncer) report(r Result) {
	event := s.log.Info()
	if r.Err != nil {
		event = s.log.Warn().Err(r.Err)
	}
	event.Str("file", r.Filename).Str("action", r.Action.String()).Str("document_id", r.DocumentID).Msg("sync")

	if s.cfg.OnResult != nil {
		s.cfg.OnResult(r)
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// upsert uploads path, replacing the document with the same filename.
func (s *Syncer) upsert(ctx context.Context, path string) Result {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if r, ok := s.remove(ctx, path); ok {
				return r
			}
			return Result{Action: ActionSkipped, Filename: name}
		}
		return Result{Action: ActionFailed, Filename: name, Err: err}
	}
	if info.IsDir() {
		return Result{Action: ActionSkipped, Filename: name}
	}
	if info.Size() > s.cfg.MaxFileSize {
		return Result{Action: ActionSkipped, Filename: name, Err: fmt.Errorf("file is larger than %d bytes", s.cfg.MaxFileSize)}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Result{Action: ActionFailed, Filename: name, Err: err}
	}
	if strings.TrimSpace(string(content)) == "" {
		return Result{Action: ActionSkipped, Filename: name}
	}

	if id, ok := s.ids[name]; ok {
		doc, err := s.store.UpdateDocument(ctx, id, model.DocumentUpsert{Filename: name, Content: string(content)})
		if err == nil {
			return Result{Action: ActionUpdated, Filename: name, DocumentID: doc.ID}
		}
		if !api.IsNotFound(err) {
			return Result{Action: ActionFailed, Filename: name, DocumentID: id, Err: err}
		}
		delete(s.ids, name)
	}

	doc, err := s.store.UploadDocument(ctx, name, content)
	if err != nil {
		return Result{Action: ActionFailed, Filename: name, Err: err}
	}
	s.ids[name] = doc.ID
	return Result{Action: ActionUploaded, Filename: name, DocumentID: doc.ID}
}

// remove deletes the document for path. It reports false when no document
// was known for the file.
func (s *Syncer) remove(ctx context.Context, path string) (Result, bool) {
	name := filepath.Base(path)
	id, ok := s.ids[name]
	if !ok {
		return Result{}, false
	}
	delete(s.ids, name)

	if err := s.store.DeleteDocument(ctx, id); err != nil && !api.IsNotFound(err) {
		return Result{Action: ActionFailed, Filename: name, DocumentID: id, Err: err}, true
	}
	return Result{Action: ActionDeleted, Filename: name, DocumentID: id}, true
}
