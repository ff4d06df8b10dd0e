package syncclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"docsync/internal/model"
	"docsync/internal/service"
)

// Default session timings.
const (
	DefaultDebounce       = time.Second
	DefaultPollInterval   = 10 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// ErrClosed is returned by operations on a closed or failed session.
var ErrClosed = errors.New("syncclient: session closed")

// State is the lifecycle state of a Session.
type State int

const (
	StateLoading State = iota
	StateReady
	StateSaving
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Remote is the part of the document API a session needs.
// Both *Client and an in-process service.DocumentService satisfy it.
type Remote interface {
	Get(ctx context.Context, id string) (*model.Document, error)
	Update(ctx context.Context, id string, in service.UpdateInput) (*model.Document, error)
}

// Options tunes a Session. Zero values select the defaults.
type Options struct {
	Debounce       time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Logger         *zap.Logger
	// OnChange is called, outside the session lock, after a refresh or save changed the local view.
	OnChange func(doc model.Document)
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Session keeps a local copy of one document in sync with the store.
// Local edits apply immediately and are written back after a quiet period;
// a poll loop pulls remote changes while nothing local is pending.
type Session struct {
	api  Remote
	id   string
	opts Options
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	doc          model.Document
	titleDirty   bool
	contentDirty bool
	editGen      uint64
	saving       bool
	saveQueued   bool
	saveSeq      uint64
	idle         chan struct{}
	timer        *time.Timer
	timerGen     uint64
	deleted      bool
	closed       bool

	saves    sync.WaitGroup
	pollDone chan struct{}
}

// saveJob is one Update request together with the edit generation it carries.
type saveJob struct {
	in  service.UpdateInput
	gen uint64
}

// Open loads the document and starts polling.
// If the initial load fails the returned session is in StateError, holds no
// timers, and the error is returned alongside it.
func Open(ctx context.Context, api Remote, id string, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	s := &Session{
		api:      api,
		id:       id,
		opts:     opts,
		log:      opts.Logger.With(zap.String("document_id", id)),
		state:    StateLoading,
		pollDone: make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	rctx, cancel := context.WithTimeout(ctx, opts.RequestTimeout)
	doc, err := api.Get(rctx, id)
	cancel()
	if err != nil {
		s.mu.Lock()
		s.state = StateError
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		close(s.pollDone)
		s.log.Warn("sync_session_open_failed", zap.Error(err))
		return s, err
	}

	s.mu.Lock()
	s.doc = *doc
	s.state = StateReady
	s.mu.Unlock()

	go s.pollLoop()
	return s, nil
}

// ID returns the document ID the session is bound to.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Document returns the local view, including unsaved edits.
func (s *Session) Document() model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Deleted reports whether the store said the document no longer exists.
func (s *Session) Deleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted
}

// Dirty reports whether a local edit has not been saved yet.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

// Edit replaces the local content and schedules a save.
func (s *Session) Edit(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.doc.Content = content
	s.contentDirty = true
	s.editGen++
	s.armLocked()
	return nil
}

// SetTitle replaces the local title and schedules a save. Titles may not be empty.
func (s *Session) SetTitle(title string) error {
	if title == "" {
		return service.ErrTitleRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.doc.Title = title
	s.titleDirty = true
	s.editGen++
	s.armLocked()
	return nil
}

// Flush writes any pending edit now and waits for it, including a save already in flight.
func (s *Session) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if s.saving {
			idle := s.idle
			s.mu.Unlock()
			select {
			case <-idle:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !s.dirtyLocked() {
			s.mu.Unlock()
			return nil
		}
		s.stopTimerLocked()
		job := s.beginSaveLocked()
		s.mu.Unlock()

		doc, err := s.update(ctx, job.in)
		next, changed := s.finishSave(job, doc, err)
		s.notify(changed)
		s.saves.Done()
		if err != nil {
			return err
		}
		if next != nil {
			go s.runSaves(*next)
		}
	}
}

// Close stops the debounce timer and the poll loop, then waits for an
// in-flight save to complete. Edits not yet sent are dropped; call Flush first
// to keep them.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()

	s.cancel()
	<-s.pollDone
	s.saves.Wait()
}

func (s *Session) dirtyLocked() bool {
	return s.titleDirty || s.contentDirty
}

// armLocked replaces the debounce timer. A superseded timer that already fired
// sees a stale generation and does nothing.
func (s *Session) armLocked() {
	s.stopTimerLocked()
	gen := s.timerGen
	s.timer = time.AfterFunc(s.opts.Debounce, func() { s.onTimer(gen) })
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Session) onTimer(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.timerGen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if s.saving {
		s.saveQueued = true
		s.mu.Unlock()
		return
	}
	if !s.dirtyLocked() {
		s.mu.Unlock()
		return
	}
	job := s.beginSaveLocked()
	s.mu.Unlock()

	s.runSaves(job)
}

// beginSaveLocked snapshots the dirty fields and marks a save in flight.
// The caller owns one s.saves count until the save is finished.
func (s *Session) beginSaveLocked() saveJob {
	var in service.UpdateInput
	if s.titleDirty {
		title := s.doc.Title
		in.Title = &title
	}
	if s.contentDirty {
		content := s.doc.Content
		in.Content = &content
	}
	s.saving = true
	s.saveSeq++
	s.state = StateSaving
	s.idle = make(chan struct{})
	s.saves.Add(1)
	return saveJob{in: in, gen: s.editGen}
}

// runSaves sends job and any save queued behind it, one at a time.
func (s *Session) runSaves(job saveJob) {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
		doc, err := s.update(ctx, job.in)
		cancel()

		next, changed := s.finishSave(job, doc, err)
		s.notify(changed)
		s.saves.Done()
		if next == nil {
			return
		}
		job = *next
	}
}

func (s *Session) update(ctx context.Context, in service.UpdateInput) (*model.Document, error) {
	doc, err := s.api.Update(ctx, s.id, in)
	if err == nil && doc == nil {
		err = fmt.Errorf("%w: empty update response", service.ErrStoreUnavailable)
	}
	return doc, err
}

// finishSave records the outcome of a save and returns the next queued save, if any.
// A returned job already holds its own s.saves count.
func (s *Session) finishSave(job saveJob, doc *model.Document, err error) (*saveJob, *model.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saving = false
	s.saveSeq++
	s.state = StateReady
	close(s.idle)

	var changed *model.Document
	switch {
	case err == nil:
		if s.editGen == job.gen {
			s.titleDirty = false
			s.contentDirty = false
			s.doc = *doc
		} else {
			// Newer local edits stay; only server-owned fields are taken.
			s.doc.CreatedAt = doc.CreatedAt
			s.doc.UpdatedAt = doc.UpdatedAt
		}
		s.deleted = false
		snapshot := s.doc
		changed = &snapshot
	case errors.Is(err, service.ErrNotFound):
		s.deleted = true
		s.saveQueued = false
		s.log.Warn("sync_save_document_gone", zap.Error(err))
		return nil, nil
	default:
		s.log.Warn("sync_save_failed", zap.Error(err))
		if !s.closed && s.timer == nil && !errors.Is(err, service.ErrValidation) {
			s.armLocked()
		}
		s.saveQueued = false
		return nil, nil
	}

	// A re-armed timer owns the newest edit and sends it when its own window ends.
	if !s.saveQueued || s.closed || !s.dirtyLocked() || s.timer != nil {
		s.saveQueued = false
		return nil, changed
	}
	s.saveQueued = false
	next := s.beginSaveLocked()
	return &next, changed
}

func (s *Session) pollLoop() {
	defer close(s.pollDone)
	t := time.NewTicker(s.opts.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			s.poll(s.ctx)
		}
	}
}

// poll fetches the stored document and adopts it only if nothing local is
// pending and no edit or save started or finished while the fetch was out.
// A fetched document older than the local one is never adopted.
func (s *Session) poll(ctx context.Context) {
	s.mu.Lock()
	gen, seq := s.editGen, s.saveSeq
	s.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	doc, err := s.api.Get(rctx, s.id)
	cancel()
	if err == nil && doc == nil {
		err = fmt.Errorf("%w: empty get response", service.ErrStoreUnavailable)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			if !s.deleted {
				s.log.Info("sync_document_deleted")
			}
			s.deleted = true
		} else {
			s.log.Warn("sync_poll_failed", zap.Error(err))
		}
		s.mu.Unlock()
		return
	}

	s.deleted = false
	if s.saving || s.dirtyLocked() || s.editGen != gen || s.saveSeq != seq ||
		doc.UpdatedAt.Before(s.doc.UpdatedAt) {
		s.mu.Unlock()
		return
	}
	var changed *model.Document
	if !sameDocument(*doc, s.doc) {
		s.doc = *doc
		snapshot := s.doc
		changed = &snapshot
	}
	s.mu.Unlock()
	s.notify(changed)
}

func sameDocument(a, b model.Document) bool {
	return a.ID == b.ID && a.Title == b.Title && a.Content == b.Content &&
		a.CreatedAt.Equal(b.CreatedAt) && a.UpdatedAt.Equal(b.UpdatedAt)
}

func (s *Session) notify(doc *model.Document) {
	if doc != nil && s.opts.OnChange != nil {
		s.opts.OnChange(*doc)
	}
}
