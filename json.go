package kayero

import (
	"encoding/json"
	"maps"
)

// MarshalJSON emits the read model views consume:
//
//	{"metadata": {...fields, "datasources": {...}, "path", "gistUrl", "original"},
//	 "content": ["0", "1"], "blocks": {"0": {...}}, "undoDepth": 0}
//
// The history itself is not serialized.
func (d *Document) MarshalJSON() ([]byte, error) {
	meta := make(map[string]any, len(d.Metadata.Fields)+4)
	maps.Copy(meta, d.Metadata.Fields)

	datasources := d.Metadata.Datasources
	if datasources == nil {
		datasources = map[string]string{}
	}
	meta[datasourcesKey] = datasources
	if d.Metadata.Path != "" {
		meta[pathKey] = d.Metadata.Path
	}
	if d.Metadata.GistURL != "" {
		meta[gistURLKey] = d.Metadata.GistURL
	}
	if d.Metadata.Original != nil {
		meta[originalKey] = d.Metadata.Original
	}

	content := d.Content
	if content == nil {
		content = []string{}
	}
	blocks := d.Blocks
	if blocks == nil {
		blocks = map[string]Block{}
	}

	return json.Marshal(struct {
		Metadata  map[string]any   `json:"metadata"`
		Content   []string         `json:"content"`
		Blocks    map[string]Block `json:"blocks"`
		UndoDepth int              `json:"undoDepth"`
	}{meta, content, blocks, d.History.Len()})
}
