package kayero

import (
	"net/url"
	"slices"
	"strconv"

	"github.com/livetemplate/kayero/internal/charts"
)

// Placeholder content for new blocks.
const (
	NewTextContent  = "New text block"
	NewCodeContent  = "// New code block"
	DefaultLanguage = "javascript"
	DefaultDataPath = "data"
)

// ParseFunc turns notebook source into a document with an empty history.
type ParseFunc func(source []byte, filename string) (*Document, error)

// Reducer applies actions to documents. Its fields are the collaborators the
// reducer consults; the zero value uses the built-in chart schema and parser.
//
// Reduce is a pure function of its inputs and the Reducer's fields, and is
// safe to call from multiple goroutines.
type Reducer struct {
	Schema   HintSchema    // Legal chart hints; nil means the built-in schema
	Parse    ParseFunc     // Used by LoadDocument; nil means ParseWithSchema
	Location func() string // View location recorded on the first edit
	Homepage string        // Base URL of share links
}

// NewReducer returns a reducer using the built-in chart schema.
func NewReducer(homepage string, location func() string) *Reducer {
	return &Reducer{
		Schema:   charts.Default(),
		Location: location,
		Homepage: homepage,
	}
}

func (r *Reducer) schema() HintSchema {
	if r.Schema == nil {
		return charts.Default()
	}
	return r.Schema
}

func (r *Reducer) location() string {
	if r.Location == nil {
		return ""
	}
	return r.Location()
}

// Reduce returns the document that results from applying action to doc.
// Actions that change nothing, and action types the reducer does not know,
// return doc itself.
func (r *Reducer) Reduce(doc *Document, action Action) *Document {
	if doc == nil {
		doc = NewDocument()
	}

	switch a := action.(type) {
	case LoadDocument:
		return r.loadDocument(doc, a)
	case DocumentSaved:
		return documentSaved(doc, a)
	case UpdateBlockContent:
		return r.commit(doc, updateBlockContent(doc, a))
	case UpdateMetadataField:
		return r.commit(doc, updateMetadataField(doc, a))
	case ToggleMetadataField:
		return r.commit(doc, toggleMetadataField(doc, a))
	case AddBlock:
		return r.commit(doc, r.addBlock(doc, a))
	case DeleteBlock:
		return r.commit(doc, deleteBlock(doc, a))
	case MoveBlock:
		return r.commit(doc, moveBlock(doc, a))
	case DeleteDatasource:
		return r.commit(doc, deleteDatasource(doc, a))
	case UpdateDatasource:
		return r.commit(doc, updateDatasource(doc, a))
	case GistCreated:
		return r.gistCreated(doc, a)
	case Undo:
		return undo(doc)
	case ChangeCodeBlockOption:
		return r.commit(doc, changeCodeBlockOption(doc, a))
	case UpdateGraphProperty:
		return r.commit(doc, r.updateGraphProperty(doc, a))
	case UpdateGraphHint:
		return r.commit(doc, r.updateGraphHint(doc, a))
	case UpdateGraphLabel:
		return r.commit(doc, r.updateGraphLabel(doc, a))
	case ClearGraphData:
		return clearGraphData(doc, a)
	default:
		return doc
	}
}

// commit records a tracked change. An unchanged candidate returns previous
// so that no history entry is created. Otherwise previous goes onto the undo
// stack, the share link is dropped, and the first edit of a session records
// where the document came from.
func (r *Reducer) commit(previous, candidate *Document) *Document {
	if candidate == previous || candidate.Equal(previous) {
		return previous
	}

	result := candidate.clone()
	result.History = previous.History.Push(previous.snapshot())
	result.Metadata.GistURL = ""

	if previous.History.Len() == 0 {
		result.Metadata.Original = &Original{
			Title: previous.Metadata.Title(),
			URL:   r.location(),
		}
	}
	return result
}

// undo pops the most recent snapshot. The restored document carries the
// rest of the stack so undo can be repeated back to the start of the session.
func undo(doc *Document) *Document {
	top, rest := doc.History.Pop()
	if top == nil {
		return doc
	}
	restored := top.clone()
	restored.History = rest
	return restored
}

// ParseDocument parses source the way LoadDocument does.
func (r *Reducer) ParseDocument(source []byte, filename string) (*Document, error) {
	if r.Parse != nil {
		return r.Parse(source, filename)
	}
	return ParseWithSchema(source, filename, r.schema())
}

func (r *Reducer) loadDocument(doc *Document, a LoadDocument) *Document {
	loaded, err := r.ParseDocument(a.Source, a.Filename)
	if err != nil || loaded == nil {
		return doc
	}
	next := loaded.clone()
	next.History = doc.History
	return next
}

func documentSaved(doc *Document, a DocumentSaved) *Document {
	if doc.Metadata.Path == a.Filename {
		return doc
	}
	next := doc.clone()
	next.Metadata.Path = a.Filename
	return next
}

func (r *Reducer) gistCreated(doc *Document, a GistCreated) *Document {
	link := r.Homepage + "?id=" + url.QueryEscape(a.ID)
	if doc.Metadata.GistURL == link {
		return doc
	}
	next := doc.clone()
	next.Metadata.GistURL = link
	return next
}

func updateBlockContent(doc *Document, a UpdateBlockContent) *Document {
	switch b := doc.Blocks[a.ID].(type) {
	case *TextBlock:
		next := *b
		next.Content = a.Text
		return doc.withBlock(&next)
	case *CodeBlock:
		next := *b
		next.Content = a.Text
		return doc.withBlock(&next)
	default:
		// Graph content is generated; missing ids are ignored.
		return doc
	}
}

func updateMetadataField(doc *Document, a UpdateMetadataField) *Document {
	if IsReservedField(a.Field) {
		return doc
	}
	return doc.withFields(func(fields map[string]any) {
		fields[a.Field] = a.Text
	})
}

func toggleMetadataField(doc *Document, a ToggleMetadataField) *Document {
	if IsReservedField(a.Field) {
		return doc
	}
	return doc.withFields(func(fields map[string]any) {
		fields[a.Field] = !truthy(fields[a.Field])
	})
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	default:
		return true
	}
}

func (r *Reducer) addBlock(doc *Document, a AddBlock) *Document {
	id := nextID(doc.Content)
	next := doc.withBlock(r.newBlock(id, a.BlockType))
	next.Content = insertAfter(doc.Content, a.AfterID, id)
	return next
}

func (r *Reducer) newBlock(id string, blockType BlockType) Block {
	switch blockType {
	case TypeCode:
		return &CodeBlock{
			ID:       id,
			Content:  NewCodeContent,
			Language: DefaultLanguage,
			Option:   OptionRunnable,
		}
	case TypeGraph:
		return BuildGraph(GraphBlock{
			ID:        id,
			Language:  DefaultLanguage,
			Option:    OptionRunnable,
			GraphType: PieChart,
			DataPath:  DefaultDataPath,
			Hints:     map[string]string{},
		}, r.schema())
	default:
		return &TextBlock{ID: id, Content: NewTextContent}
	}
}

// nextID returns the smallest non-negative integer not used as an id.
func nextID(content []string) string {
	used := make(map[string]struct{}, len(content))
	for _, id := range content {
		used[id] = struct{}{}
	}
	for i := 0; ; i++ {
		id := strconv.Itoa(i)
		if _, ok := used[id]; !ok {
			return id
		}
	}
}

func insertAfter(content []string, after, id string) []string {
	idx := -1
	if after != "" {
		idx = slices.Index(content, after)
	}
	if idx < 0 {
		return append(slices.Clip(content), id)
	}
	return slices.Insert(slices.Clone(content), idx+1, id)
}

func deleteBlock(doc *Document, a DeleteBlock) *Document {
	if _, exists := doc.Block(a.ID); !exists && doc.Index(a.ID) < 0 {
		return doc
	}
	next := doc.clone()
	next.Blocks = cloneMap(doc.Blocks)
	delete(next.Blocks, a.ID)
	next.Content = slices.DeleteFunc(slices.Clone(doc.Content), func(id string) bool {
		return id == a.ID
	})
	return next
}

// moveBlock places the block at NextIndex of the resulting order. Indexes
// are clamped to the valid range.
func moveBlock(doc *Document, a MoveBlock) *Document {
	if a.NextIndex == nil {
		return doc
	}
	index := doc.Index(a.ID)
	if index < 0 || index == *a.NextIndex {
		return doc
	}

	rest := slices.Delete(slices.Clone(doc.Content), index, index+1)
	target := min(max(*a.NextIndex, 0), len(rest))

	next := doc.clone()
	next.Content = slices.Insert(rest, target, a.ID)
	return next
}

func deleteDatasource(doc *Document, a DeleteDatasource) *Document {
	if _, ok := doc.Metadata.Datasources[a.ID]; !ok {
		return doc
	}
	return doc.withDatasources(func(ds map[string]string) {
		delete(ds, a.ID)
	})
}

func updateDatasource(doc *Document, a UpdateDatasource) *Document {
	return doc.withDatasources(func(ds map[string]string) {
		ds[a.ID] = a.Text
	})
}

func changeCodeBlockOption(doc *Document, a ChangeCodeBlockOption) *Document {
	if _, ok := ParseCodeOption(string(a.Option)); a.Option != "" && !ok {
		return doc
	}
	pick := func(current CodeOption) CodeOption {
		if a.Option != "" {
			return a.Option
		}
		return current.Next()
	}

	switch b := doc.Blocks[a.ID].(type) {
	case *CodeBlock:
		next := *b
		next.Option = pick(b.Option)
		return doc.withBlock(&next)
	case *GraphBlock:
		next := *b
		next.Option = pick(b.Option)
		return doc.withBlock(&next)
	default:
		return doc
	}
}

// editGraph applies edit to a copy of a graph block and regenerates its code.
// edit reports false to leave the document untouched.
func (r *Reducer) editGraph(doc *Document, id string, edit func(*GraphBlock) bool) *Document {
	g, ok := doc.Blocks[id].(*GraphBlock)
	if !ok {
		return doc
	}
	next := *g
	if !edit(&next) {
		return doc
	}
	return doc.withBlock(BuildGraph(next, r.schema()))
}

func (r *Reducer) updateGraphProperty(doc *Document, a UpdateGraphProperty) *Document {
	return r.editGraph(doc, a.ID, func(g *GraphBlock) bool {
		switch a.Property {
		case PropertyGraphType:
			g.GraphType = a.Value
		case PropertyDataPath:
			g.DataPath = a.Value
		default:
			return false
		}
		return true
	})
}

func (r *Reducer) updateGraphHint(doc *Document, a UpdateGraphHint) *Document {
	return r.editGraph(doc, a.ID, func(g *GraphBlock) bool {
		g.Hints = cloneMap(g.Hints)
		g.Hints[a.Hint] = a.Value
		return true
	})
}

func (r *Reducer) updateGraphLabel(doc *Document, a UpdateGraphLabel) *Document {
	return r.editGraph(doc, a.ID, func(g *GraphBlock) bool {
		switch a.Label {
		case "x":
			g.Labels.X = a.Value
		case "y":
			g.Labels.Y = a.Value
		default:
			return false
		}
		return true
	})
}

func clearGraphData(doc *Document, a ClearGraphData) *Document {
	g, ok := doc.Blocks[a.ID].(*GraphBlock)
	if !ok {
		return doc
	}
	return doc.withBlock(&CodeBlock{
		ID:       g.ID,
		Content:  g.code,
		Language: g.Language,
		Option:   g.Option,
	})
}
