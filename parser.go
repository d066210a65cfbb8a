package kayero

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/livetemplate/kayero/internal/charts"
)

// Metadata keys that map onto typed fields. Only datasources and original
// are read from frontmatter; path and gistUrl there are ignored.
const (
	datasourcesKey = "datasources"
	originalKey    = "original"
	pathKey        = "path"
	gistURLKey     = "gistUrl"
)

// frontmatter holds the typed part of the YAML header.
type frontmatter struct {
	Datasources map[string]string `yaml:"datasources"`
	Original    *Original         `yaml:"original"`
}

// graphSettings is the YAML body of a graph block.
type graphSettings struct {
	Type     string            `yaml:"type"`
	Data     string            `yaml:"data"`
	Language string            `yaml:"language,omitempty"`
	Labels   Labels            `yaml:"labels,omitempty"`
	Hints    map[string]string `yaml:"hints,omitempty"`
}

// Parse parses notebook markdown using the built-in chart schema.
func Parse(source []byte, filename string) (*Document, error) {
	return ParseWithSchema(source, filename, charts.Default())
}

// ParseFile reads and parses a notebook file.
func ParseFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(content, path)
}

// ParseWithSchema parses notebook markdown into a document with an empty
// history.
//
// Top-level fenced blocks whose info string is "<language>; <option>" become
// code blocks, "graph" or "graph; <option>" become graph blocks described by
// a YAML body, and the prose between them becomes text blocks. Block ids are
// assigned in document order starting at "0".
func ParseWithSchema(source []byte, filename string, schema HintSchema) (*Document, error) {
	source = bytes.ReplaceAll(source, []byte("\r\n"), []byte("\n"))

	header, body, err := splitFrontmatter(source)
	if err != nil {
		return nil, newParseError(filename, source, 1, err.Error(),
			"Close the frontmatter with a line containing only ---")
	}

	meta, err := parseMetadata(header)
	if err != nil {
		return nil, newParseError(filename, source, 1, fmt.Sprintf("Failed to parse frontmatter: %v", err),
			"Frontmatter must be a YAML mapping of scalar values plus datasources and original")
	}
	meta.Path = filename

	p := &notebookParser{
		doc: &Document{
			Metadata: meta,
			Content:  []string{},
			Blocks:   make(map[string]Block),
		},
		body:       body,
		source:     source,
		filename:   filename,
		lineOffset: bytes.Count(source[:len(source)-len(body)], []byte("\n")),
		schema:     schema,
	}
	if err := p.parseBody(); err != nil {
		return nil, err
	}
	return p.doc, nil
}

type notebookParser struct {
	doc        *Document
	body       []byte
	source     []byte
	filename   string
	lineOffset int
	schema     HintSchema
}

func (p *notebookParser) parseBody() error {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(text.NewReader(p.body))

	cursor := 0
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok || fenced.Info == nil {
			continue
		}

		infoStart := fenced.Info.Segment.Start
		line := p.lineOffset + bytes.Count(p.body[:infoStart], []byte("\n")) + 1

		blockType, language, option, err := classifyFence(string(fenced.Info.Segment.Value(p.body)))
		if err != nil {
			return newParseError(p.filename, p.source, line, err.Error(),
				"Valid options are: runnable, auto, hidden")
		}
		if blockType == "" {
			// Ordinary code sample, part of the surrounding prose
			continue
		}

		start, end := fenceBounds(fenced, p.body)
		p.addText(p.body[cursor:start])
		cursor = end

		content := fenceContent(fenced, p.body)
		id := fmt.Sprint(len(p.doc.Content))

		switch blockType {
		case TypeGraph:
			block, err := p.graphBlock(id, option, content)
			if err != nil {
				return newParseError(p.filename, p.source, line, fmt.Sprintf("Invalid graph block: %v", err),
					"Graph blocks hold YAML with type, data, labels and hints")
			}
			p.add(block)
		default:
			p.add(&CodeBlock{ID: id, Content: content, Language: language, Option: option})
		}
	}
	p.addText(p.body[cursor:])
	return nil
}

func (p *notebookParser) add(b Block) {
	p.doc.Blocks[b.BlockID()] = b
	p.doc.Content = append(p.doc.Content, b.BlockID())
}

func (p *notebookParser) addText(segment []byte) {
	content := strings.TrimSpace(string(segment))
	if content == "" {
		return
	}
	p.add(&TextBlock{ID: fmt.Sprint(len(p.doc.Content)), Content: content})
}

func (p *notebookParser) graphBlock(id string, option CodeOption, content string) (*GraphBlock, error) {
	var settings graphSettings
	if err := yaml.Unmarshal([]byte(content), &settings); err != nil {
		return nil, err
	}
	if settings.Type == "" {
		settings.Type = PieChart
	}
	if settings.Data == "" {
		settings.Data = DefaultDataPath
	}
	if settings.Language == "" {
		settings.Language = DefaultLanguage
	}
	if settings.Hints == nil {
		settings.Hints = map[string]string{}
	}
	return BuildGraph(GraphBlock{
		ID:        id,
		Language:  settings.Language,
		Option:    option,
		GraphType: settings.Type,
		DataPath:  settings.Data,
		Hints:     settings.Hints,
		Labels:    settings.Labels,
	}, p.schema), nil
}

// classifyFence inspects a fence info string. An empty block type means the
// fence is not a notebook block.
func classifyFence(info string) (BlockType, string, CodeOption, error) {
	parts := strings.Split(info, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if parts[0] == string(TypeGraph) {
		option := OptionRunnable
		if len(parts) > 1 && parts[1] != "" {
			o, ok := ParseCodeOption(parts[1])
			if !ok {
				return "", "", "", fmt.Errorf("unknown block option %q", parts[1])
			}
			option = o
		}
		return TypeGraph, DefaultLanguage, option, nil
	}

	if len(parts) < 2 {
		return "", "", "", nil
	}
	option, ok := ParseCodeOption(parts[1])
	if !ok {
		return "", "", "", nil
	}
	language := parts[0]
	if language == "" {
		language = DefaultLanguage
	}
	return TypeCode, language, option, nil
}

// fenceBounds returns the byte range of a fenced block, from the start of
// the opening fence line to the end of the closing fence line.
func fenceBounds(fenced *ast.FencedCodeBlock, src []byte) (int, int) {
	infoStart := fenced.Info.Segment.Start
	start := bytes.LastIndexByte(src[:infoStart], '\n') + 1

	contentEnd := lineEnd(src, infoStart)
	if lines := fenced.Lines(); lines.Len() > 0 {
		contentEnd = lines.At(lines.Len() - 1).Stop
	}

	pos := contentEnd
	if pos > 0 && pos < len(src) && src[pos-1] != '\n' {
		pos = lineEnd(src, pos)
	}
	if pos >= len(src) {
		return start, len(src)
	}

	closing := lineEnd(src, pos)
	fence := strings.TrimSpace(string(src[pos:closing]))
	if strings.HasPrefix(fence, "```") || strings.HasPrefix(fence, "~~~") {
		return start, closing
	}
	// Unclosed fence: the block runs to the end of its content
	return start, pos
}

func lineEnd(src []byte, pos int) int {
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(src)
}

func fenceContent(fenced *ast.FencedCodeBlock, src []byte) string {
	var buf bytes.Buffer
	lines := fenced.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// splitFrontmatter separates the YAML header from the markdown body.
func splitFrontmatter(content []byte) ([]byte, []byte, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return nil, content, nil
	}
	rest := content[4:]

	switch {
	case bytes.HasPrefix(rest, []byte("---\n")):
		return nil, rest[4:], nil
	case bytes.Equal(rest, []byte("---")):
		return nil, nil, nil
	}
	if idx := bytes.Index(rest, []byte("\n---\n")); idx >= 0 {
		return rest[:idx], rest[idx+5:], nil
	}
	if bytes.HasSuffix(rest, []byte("\n---")) {
		return rest[:len(rest)-4], nil, nil
	}
	return nil, nil, fmt.Errorf("unclosed frontmatter")
}

func parseMetadata(header []byte) (Metadata, error) {
	meta := Metadata{
		Fields:      make(map[string]any),
		Datasources: make(map[string]string),
	}
	if len(bytes.TrimSpace(header)) == 0 {
		return meta, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(header, &raw); err != nil {
		return meta, err
	}
	var typed frontmatter
	if err := yaml.Unmarshal(header, &typed); err != nil {
		return meta, err
	}

	for key, value := range raw {
		if IsReservedField(key) {
			continue
		}
		v, err := metadataValue(value)
		if err != nil {
			return meta, fmt.Errorf("field %q: %w", key, err)
		}
		if v != nil {
			meta.Fields[key] = v
		}
	}
	for name, url := range typed.Datasources {
		meta.Datasources[name] = url
	}
	meta.Original = typed.Original
	return meta, nil
}

// metadataValue narrows a YAML scalar to the string/bool values metadata
// fields hold.
func metadataValue(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string, bool:
		return v, nil
	case int, int64, uint64, float64:
		return fmt.Sprint(v), nil
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(time.DateOnly), nil
		}
		return v.Format(time.RFC3339), nil
	default:
		return nil, fmt.Errorf("must be a scalar, got %T", v)
	}
}
