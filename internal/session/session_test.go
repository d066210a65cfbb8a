package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/kayero"
	"github.com/livetemplate/kayero/internal/store"
)

const sample = `---
title: Sample
---

Intro text.

` + "```javascript; runnable\nreturn 1;\n```\n"

func newSession() *Session {
	return New(kayero.NewReducer("http://example.com/", func() string { return "http://editor.local/" }), nil)
}

func receive(t *testing.T, ch <-chan *kayero.Document) *kayero.Document {
	t.Helper()
	select {
	case doc := <-ch:
		return doc
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for document")
		return nil
	}
}

func TestLoad(t *testing.T) {
	s := newSession()
	require.NoError(t, s.Load([]byte(sample), "sample.md"))

	doc := s.Document()
	assert.Equal(t, "Sample", doc.Metadata.Title())
	assert.Equal(t, []string{"0", "1"}, doc.Content)
	assert.Equal(t, "sample.md", doc.Metadata.Path)
}

func TestLoadReportsParseErrors(t *testing.T) {
	s := newSession()
	before := s.Document()

	err := s.Load([]byte("```graph; sometimes\ntype: pieChart\n```\n"), "bad.md")
	var parseErr *kayero.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 1, parseErr.Line)
	assert.Same(t, before, s.Document())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nb.md")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	s := newSession()
	require.NoError(t, s.LoadFile(path))
	assert.Equal(t, path, s.Document().Metadata.Path)

	assert.Error(t, s.LoadFile(filepath.Join(t.TempDir(), "missing.md")))
}

func TestDispatchNotifiesOnChangeOnly(t *testing.T) {
	s := newSession()
	require.NoError(t, s.Load([]byte(sample), "sample.md"))

	ch, cancel := s.Subscribe()
	defer cancel()

	// No-op: same content
	s.Dispatch(kayero.UpdateBlockContent{ID: "0", Text: "Intro text."})
	select {
	case <-ch:
		t.Fatal("unexpected notification for a no-op action")
	default:
	}

	doc := s.Dispatch(kayero.UpdateBlockContent{ID: "0", Text: "Changed"})
	assert.Same(t, doc, receive(t, ch))
	assert.Equal(t, 1, doc.History.Len())
}

func TestSubscribeKeepsLatestValue(t *testing.T) {
	s := newSession()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Dispatch(kayero.UpdateMetadataField{Field: "title", Text: "one"})
	last := s.Dispatch(kayero.UpdateMetadataField{Field: "title", Text: "two"})

	assert.Same(t, last, receive(t, ch))
}

func TestUnsubscribe(t *testing.T) {
	s := newSession()
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	s.Dispatch(kayero.UpdateMetadataField{Field: "title", Text: "x"})
	_, open := <-ch
	assert.False(t, open)
}

func TestSave(t *testing.T) {
	s := newSession()
	require.NoError(t, s.Load([]byte(sample), "sample.md"))
	s.Dispatch(kayero.UpdateBlockContent{ID: "0", Text: "Edited intro."})

	path := filepath.Join(t.TempDir(), "out.md")
	require.NoError(t, s.Save(context.Background(), path))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "Edited intro.")
	assert.True(t, s.IsOwnWrite(written))
	assert.False(t, s.IsOwnWrite([]byte("someone else")))

	doc := s.Document()
	assert.Equal(t, path, doc.Metadata.Path)
	assert.Equal(t, 1, doc.History.Len(), "saving is not undoable")

	reloaded, err := kayero.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Content, reloaded.Content)
}

func TestSaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, newSession().Save(ctx, filepath.Join(t.TempDir(), "x.md")), context.Canceled)
}

func TestShare(t *testing.T) {
	s := newSession()
	require.NoError(t, s.Load([]byte(sample), "sample.md"))
	st := store.NewMemory()

	link, err := s.Share(context.Background(), st)
	require.NoError(t, err)
	assert.Regexp(t, `^http://example\.com/\?id=[0-9a-f-]{36}$`, link)
	assert.Equal(t, link, s.Document().Metadata.GistURL)

	id := link[len("http://example.com/?id="):]
	published, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, string(published), "Intro text.")

	// A tracked edit invalidates the link
	s.Dispatch(kayero.UpdateBlockContent{ID: "0", Text: "New"})
	assert.Empty(t, s.Document().Metadata.GistURL)
}

type failingStore struct{ store.Store }

func (failingStore) Put(context.Context, []byte) (string, error) {
	return "", errors.New("unavailable")
}

func TestShareFailureLeavesDocument(t *testing.T) {
	s := newSession()
	before := s.Document()

	_, err := s.Share(context.Background(), failingStore{})
	assert.Error(t, err)
	assert.Same(t, before, s.Document())
}
