package kayero

import (
	"encoding/json"
	"maps"
	"slices"
)

// BlockType discriminates the block variants.
type BlockType string

const (
	TypeText  BlockType = "text"
	TypeCode  BlockType = "code"
	TypeGraph BlockType = "graph"
)

// CodeOption controls how a code block behaves in the viewer.
type CodeOption string

const (
	OptionRunnable CodeOption = "runnable" // Run on demand
	OptionAuto     CodeOption = "auto"     // Run on load
	OptionHidden   CodeOption = "hidden"   // Run on load, source hidden
)

var codeOptions = []CodeOption{OptionRunnable, OptionAuto, OptionHidden}

// Next returns the option that follows o in the runnable/auto/hidden cycle.
// Unknown options step to runnable.
func (o CodeOption) Next() CodeOption {
	i := slices.Index(codeOptions, o)
	return codeOptions[(i+1)%len(codeOptions)]
}

// ParseCodeOption validates an option name.
func ParseCodeOption(s string) (CodeOption, bool) {
	o := CodeOption(s)
	return o, slices.Contains(codeOptions, o)
}

// Block is one addressable unit of notebook content. It is implemented by
// *TextBlock, *CodeBlock and *GraphBlock only.
type Block interface {
	BlockID() string
	Type() BlockType
	// Body returns the block's text. For graph blocks this is the generated code.
	Body() string

	equal(Block) bool
}

// TextBlock holds markdown prose.
type TextBlock struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func (b *TextBlock) BlockID() string { return b.ID }
func (b *TextBlock) Type() BlockType { return TypeText }
func (b *TextBlock) Body() string    { return b.Content }

func (b *TextBlock) equal(o Block) bool {
	t, ok := o.(*TextBlock)
	return ok && *b == *t
}

// MarshalJSON adds the type discriminator.
func (b *TextBlock) MarshalJSON() ([]byte, error) {
	type alias TextBlock
	return json.Marshal(struct {
		Type BlockType `json:"type"`
		*alias
	}{TypeText, (*alias)(b)})
}

// CodeBlock holds runnable source.
type CodeBlock struct {
	ID       string     `json:"id"`
	Content  string     `json:"content"`
	Language string     `json:"language"`
	Option   CodeOption `json:"option"`
}

func (b *CodeBlock) BlockID() string { return b.ID }
func (b *CodeBlock) Type() BlockType { return TypeCode }
func (b *CodeBlock) Body() string    { return b.Content }

func (b *CodeBlock) equal(o Block) bool {
	c, ok := o.(*CodeBlock)
	return ok && *b == *c
}

// MarshalJSON adds the type discriminator.
func (b *CodeBlock) MarshalJSON() ([]byte, error) {
	type alias CodeBlock
	return json.Marshal(struct {
		Type BlockType `json:"type"`
		*alias
	}{TypeCode, (*alias)(b)})
}

// Labels are the axis labels of a chart.
type Labels struct {
	X string `json:"x" yaml:"x,omitempty"`
	Y string `json:"y" yaml:"y,omitempty"`
}

// GraphBlock is a code block whose source is generated from chart settings.
// The source is only ever produced by GenerateCode; build graph blocks with
// BuildGraph so it stays in sync.
type GraphBlock struct {
	ID        string
	Language  string
	Option    CodeOption
	GraphType string
	DataPath  string
	Hints     map[string]string
	Labels    Labels

	code string
}

// BuildGraph returns a copy of g with its source generated against schema.
func BuildGraph(g GraphBlock, schema HintSchema) *GraphBlock {
	g.Hints = maps.Clone(g.Hints)
	g.code = GenerateCode(&g, schema)
	return &g
}

func (b *GraphBlock) BlockID() string { return b.ID }
func (b *GraphBlock) Type() BlockType { return TypeGraph }
func (b *GraphBlock) Body() string    { return b.code }

func (b *GraphBlock) equal(o Block) bool {
	g, ok := o.(*GraphBlock)
	if !ok {
		return false
	}
	return b.ID == g.ID &&
		b.Language == g.Language &&
		b.Option == g.Option &&
		b.GraphType == g.GraphType &&
		b.DataPath == g.DataPath &&
		b.Labels == g.Labels &&
		b.code == g.code &&
		maps.Equal(b.Hints, g.Hints)
}

// MarshalJSON emits the graph settings together with the generated content.
func (b *GraphBlock) MarshalJSON() ([]byte, error) {
	hints := b.Hints
	if hints == nil {
		hints = map[string]string{}
	}
	return json.Marshal(struct {
		ID        string            `json:"id"`
		Type      BlockType         `json:"type"`
		Content   string            `json:"content"`
		Language  string            `json:"language"`
		Option    CodeOption        `json:"option"`
		GraphType string            `json:"graphType"`
		DataPath  string            `json:"dataPath"`
		Hints     map[string]string `json:"hints"`
		Labels    Labels            `json:"labels"`
	}{b.ID, TypeGraph, b.code, b.Language, b.Option, b.GraphType, b.DataPath, hints, b.Labels})
}
