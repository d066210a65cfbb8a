// Package session owns the live document of an editor. It serializes
// dispatches through the reducer, tells subscribers about new document
// values, and performs the save and share side effects whose outcome is fed
// back as actions.
package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/livetemplate/kayero"
	"github.com/livetemplate/kayero/internal/store"
)

// Session holds the current document of one notebook.
type Session struct {
	reducer *kayero.Reducer
	log     *zap.Logger

	mu        sync.Mutex
	doc       *kayero.Document
	lastSaved []byte // Bytes of our most recent save, to recognise our own writes

	subMu  sync.Mutex
	subs   map[int]chan *kayero.Document
	nextID int
}

// New creates a session holding an empty document.
func New(reducer *kayero.Reducer, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		reducer: reducer,
		log:     log.Named("session"),
		doc:     kayero.NewDocument(),
		subs:    make(map[int]chan *kayero.Document),
	}
}

// Document returns the current document.
func (s *Session) Document() *kayero.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Dispatch applies an action and returns the resulting document.
// Subscribers are notified only when the document value changed.
func (s *Session) Dispatch(action kayero.Action) *kayero.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.doc
	next := s.reducer.Reduce(prev, action)
	if next == prev {
		return prev
	}
	s.doc = next

	// Publishing never blocks, so doing it under mu keeps notifications in
	// dispatch order.
	s.publish(next)
	s.log.Debug("document changed",
		zap.String("action", action.ActionType()),
		zap.Int("undoDepth", next.History.Len()))
	return next
}

// Load parses source and, when it is valid, replaces the document with it.
// The parse error is returned unchanged so callers can show its context.
func (s *Session) Load(source []byte, filename string) error {
	if _, err := s.reducer.ParseDocument(source, filename); err != nil {
		return err
	}
	s.Dispatch(kayero.LoadDocument{Source: source, Filename: filename})
	return nil
}

// LoadFile loads a notebook from disk.
func (s *Session) LoadFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read notebook: %w", err)
	}
	return s.Load(source, path)
}

// Save writes the rendered document to path and records the new location.
func (s *Session) Save(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := kayero.Render(s.Document())
	if err != nil {
		return fmt.Errorf("failed to render notebook: %w", err)
	}

	s.mu.Lock()
	s.lastSaved = out
	s.mu.Unlock()

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write notebook: %w", err)
	}

	s.Dispatch(kayero.DocumentSaved{Filename: path})
	s.log.Info("notebook saved", zap.String("path", path), zap.Int("bytes", len(out)))
	return nil
}

// IsOwnWrite reports whether content is exactly what the last Save wrote.
func (s *Session) IsOwnWrite(content []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved != nil && bytes.Equal(s.lastSaved, content)
}

// Share publishes the rendered document to st and returns the share link.
func (s *Session) Share(ctx context.Context, st store.Store) (string, error) {
	out, err := kayero.Render(s.Document())
	if err != nil {
		return "", fmt.Errorf("failed to render notebook: %w", err)
	}

	id, err := st.Put(ctx, out)
	if err != nil {
		return "", fmt.Errorf("failed to publish notebook: %w", err)
	}

	doc := s.Dispatch(kayero.GistCreated{ID: id})
	s.log.Info("notebook shared", zap.String("id", id))
	return doc.Metadata.GistURL, nil
}

// Subscribe returns a channel receiving each new document value, and a
// function that ends the subscription. Slow subscribers only see the latest
// value.
func (s *Session) Subscribe() (<-chan *kayero.Document, func()) {
	ch := make(chan *kayero.Document, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Session) publish(doc *kayero.Document) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		// Replace an undelivered value with the newer one
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- doc:
		default:
		}
	}
}
