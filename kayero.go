// Package kayero provides the core library for editing notebooks: markdown
// documents made of text, code and graph blocks, edited through actions
// applied by a Reducer with full undo history.
package kayero

import (
	"maps"
	"slices"
)

// Document is an immutable notebook value.
//
// Documents are never modified in place. Every transition produces a new
// Document that shares the parts it did not touch (the Content slice, the
// Blocks map, individual blocks, metadata maps and the history tail) with its
// predecessor, so pointer comparison is a valid "unchanged" check for any of
// them.
type Document struct {
	Metadata Metadata
	Content  []string         // Block ids in display order
	Blocks   map[string]Block // Keyed by block id; same id set as Content
	History  *History         // Undo stack; nil when empty
}

// Metadata holds document-level information.
type Metadata struct {
	// Fields holds free-form frontmatter values (title, author, show_footer...).
	// Values are always string or bool.
	Fields      map[string]any
	Datasources map[string]string
	Path        string    // Where the document was last loaded from or saved to
	GistURL     string    // Share link, cleared by any tracked edit
	Original    *Original // Set on the first tracked edit of a session
}

// reservedFields are frontmatter and read-model keys backed by typed
// Metadata fields rather than Fields.
var reservedFields = []string{datasourcesKey, originalKey, pathKey, gistURLKey}

// IsReservedField reports whether name is a metadata key that free-form
// field edits may not use.
func IsReservedField(name string) bool {
	return slices.Contains(reservedFields, name)
}

// Original points back at the pristine document an edited notebook came from.
type Original struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{
		Metadata: Metadata{
			Fields:      make(map[string]any),
			Datasources: make(map[string]string),
		},
		Content: []string{},
		Blocks:  make(map[string]Block),
	}
}

// Title returns the title field, or "" when it is unset or not a string.
func (m Metadata) Title() string {
	title, _ := m.Fields["title"].(string)
	return title
}

// Equal reports whether two metadata values are structurally equal.
func (m Metadata) Equal(o Metadata) bool {
	return m.Path == o.Path &&
		m.GistURL == o.GistURL &&
		equalOriginal(m.Original, o.Original) &&
		maps.Equal(m.Fields, o.Fields) &&
		maps.Equal(m.Datasources, o.Datasources)
}

func equalOriginal(a, b *Original) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Block returns the block with the given id.
func (d *Document) Block(id string) (Block, bool) {
	b, ok := d.Blocks[id]
	return b, ok
}

// Index returns the display position of a block, or -1.
func (d *Document) Index(id string) int {
	return slices.Index(d.Content, id)
}

// OrderedBlocks returns the blocks in display order.
func (d *Document) OrderedBlocks() []Block {
	blocks := make([]Block, 0, len(d.Content))
	for _, id := range d.Content {
		if b, ok := d.Blocks[id]; ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// Equal reports whether two documents are structurally equal, history
// included. Shared substructures short-circuit on pointer identity.
func (d *Document) Equal(o *Document) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil {
		return false
	}
	return d.Metadata.Equal(o.Metadata) &&
		slices.Equal(d.Content, o.Content) &&
		equalBlocks(d.Blocks, o.Blocks) &&
		d.History.Equal(o.History)
}

func equalBlocks(a, b map[string]Block) bool {
	if len(a) != len(b) {
		return false
	}
	for id, x := range a {
		y, ok := b[id]
		if !ok || !sameBlock(x, y) {
			return false
		}
	}
	return true
}

func sameBlock(a, b Block) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a == b || a.equal(b)
}

// clone returns a shallow copy. Callers replace, never mutate, the shared
// maps and slices of the copy.
func (d *Document) clone() *Document {
	c := *d
	return &c
}

// snapshot returns the form stored on the undo stack.
func (d *Document) snapshot() *Document {
	s := d.clone()
	s.History = nil
	s.Metadata.GistURL = ""
	return s
}

func (d *Document) withBlock(b Block) *Document {
	c := d.clone()
	c.Blocks = cloneMap(d.Blocks)
	c.Blocks[b.BlockID()] = b
	return c
}

func (d *Document) withFields(edit func(map[string]any)) *Document {
	c := d.clone()
	c.Metadata.Fields = cloneMap(d.Metadata.Fields)
	edit(c.Metadata.Fields)
	return c
}

func (d *Document) withDatasources(edit func(map[string]string)) *Document {
	c := d.clone()
	c.Metadata.Datasources = cloneMap(d.Metadata.Datasources)
	edit(c.Metadata.Datasources)
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}
	return maps.Clone(m)
}
