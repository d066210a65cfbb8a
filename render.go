package kayero

import (
	"bytes"
	"fmt"
	"maps"
	"strings"

	"gopkg.in/yaml.v3"
)

// Render serializes a document back to notebook markdown. Parsing the output
// yields a document equal to the input apart from Path, GistURL, history and
// block ids, which are renumbered in display order.
//
// Prose has no delimiter of its own, so two exceptions remain. Adjacent text
// blocks come back as a single block joined by a blank line, and a top-level
// fence inside a text block whose info string names a block option
// ("js; auto", "graph") comes back as a block of its own.
func Render(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFrontmatter(&buf, doc.Metadata); err != nil {
		return nil, err
	}

	for _, block := range doc.OrderedBlocks() {
		switch b := block.(type) {
		case *TextBlock:
			buf.WriteString(strings.TrimSpace(b.Content))
			buf.WriteString("\n\n")
		case *CodeBlock:
			writeFence(&buf, fmt.Sprintf("%s; %s", b.Language, b.Option), b.Content)
		case *GraphBlock:
			body, err := graphBody(b)
			if err != nil {
				return nil, fmt.Errorf("failed to render graph block %s: %w", b.ID, err)
			}
			writeFence(&buf, fmt.Sprintf("%s; %s", TypeGraph, b.Option), body)
		}
	}

	out := bytes.TrimRight(buf.Bytes(), "\n")
	if len(out) == 0 {
		return out, nil
	}
	return append(out, '\n'), nil
}

func writeFrontmatter(buf *bytes.Buffer, m Metadata) error {
	header := make(map[string]any, len(m.Fields)+2)
	maps.Copy(header, m.Fields)
	if len(m.Datasources) > 0 {
		header[datasourcesKey] = m.Datasources
	}
	if m.Original != nil {
		header[originalKey] = m.Original
	}
	if len(header) == 0 {
		return nil
	}

	out, err := yaml.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to render frontmatter: %w", err)
	}
	buf.WriteString("---\n")
	buf.Write(out)
	buf.WriteString("---\n\n")
	return nil
}

func graphBody(g *GraphBlock) (string, error) {
	settings := graphSettings{
		Type:   g.GraphType,
		Data:   g.DataPath,
		Labels: g.Labels,
		Hints:  g.Hints,
	}
	if g.Language != DefaultLanguage {
		settings.Language = g.Language
	}
	out, err := yaml.Marshal(settings)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}

// writeFence writes a fenced block whose fence is longer than any backtick
// run in content.
func writeFence(buf *bytes.Buffer, info, content string) {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	buf.WriteString(fence)
	buf.WriteString(info)
	buf.WriteByte('\n')
	if content != "" {
		buf.WriteString(content)
		buf.WriteByte('\n')
	}
	buf.WriteString(fence)
	buf.WriteString("\n\n")
}
