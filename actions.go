package kayero

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Action is an editing command applied by Reducer.Reduce. ActionType returns
// the wire name used in JSON envelopes.
//
// Types outside this package may implement Action; the reducer passes any
// action it does not know through unchanged.
type Action interface {
	ActionType() string
}

// LoadDocument replaces the document with a freshly parsed one, keeping the
// session's undo history.
type LoadDocument struct {
	Source   []byte
	Filename string
}

// DocumentSaved records where the document was saved. It is not undoable.
type DocumentSaved struct {
	Filename string
}

// UpdateBlockContent sets the text of a text or code block.
type UpdateBlockContent struct {
	ID   string
	Text string
}

// UpdateMetadataField sets a free-form metadata field.
type UpdateMetadataField struct {
	Field string
	Text  string
}

// ToggleMetadataField negates a metadata field; an absent field becomes true.
type ToggleMetadataField struct {
	Field string
}

// AddBlock inserts a new block after AfterID, or at the end when AfterID is
// empty or unknown.
type AddBlock struct {
	AfterID   string
	BlockType BlockType
}

// DeleteBlock removes a block.
type DeleteBlock struct {
	ID string
}

// MoveBlock moves a block so that it ends up at NextIndex. A nil NextIndex
// is a no-op.
type MoveBlock struct {
	ID        string
	NextIndex *int
}

// DeleteDatasource removes a datasource.
type DeleteDatasource struct {
	ID string
}

// UpdateDatasource sets a datasource URL.
type UpdateDatasource struct {
	ID   string
	Text string
}

// GistCreated records the id of a published copy. It is not undoable.
type GistCreated struct {
	ID string
}

// Undo restores the previous tracked state.
type Undo struct{}

// ChangeCodeBlockOption sets the option of a code or graph block, or steps
// it through runnable/auto/hidden when Option is empty.
type ChangeCodeBlockOption struct {
	ID     string
	Option CodeOption
}

// GraphProperty names a scalar graph setting.
type GraphProperty string

const (
	PropertyGraphType GraphProperty = "graphType"
	PropertyDataPath  GraphProperty = "dataPath"
)

// UpdateGraphProperty sets the chart type or data path of a graph block.
type UpdateGraphProperty struct {
	ID       string
	Property GraphProperty
	Value    string
}

// UpdateGraphHint sets one chart hint of a graph block.
type UpdateGraphHint struct {
	ID    string
	Hint  string
	Value string
}

// UpdateGraphLabel sets the "x" or "y" axis label of a graph block.
type UpdateGraphLabel struct {
	ID    string
	Label string
	Value string
}

// ClearGraphData turns a graph block into a plain code block. It is not
// undoable.
type ClearGraphData struct {
	ID string
}

// UnknownAction carries an envelope whose type this package does not handle.
type UnknownAction struct {
	Type    string
	Payload json.RawMessage
}

func (LoadDocument) ActionType() string          { return "load_document" }
func (DocumentSaved) ActionType() string         { return "document_saved" }
func (UpdateBlockContent) ActionType() string    { return "update_block" }
func (UpdateMetadataField) ActionType() string   { return "update_meta" }
func (ToggleMetadataField) ActionType() string   { return "toggle_meta" }
func (AddBlock) ActionType() string              { return "add_block" }
func (DeleteBlock) ActionType() string           { return "delete_block" }
func (MoveBlock) ActionType() string             { return "move_block" }
func (DeleteDatasource) ActionType() string      { return "delete_datasource" }
func (UpdateDatasource) ActionType() string      { return "update_datasource" }
func (GistCreated) ActionType() string           { return "gist_created" }
func (Undo) ActionType() string                  { return "undo" }
func (ChangeCodeBlockOption) ActionType() string { return "change_code_block_option" }
func (UpdateGraphProperty) ActionType() string   { return "update_graph_property" }
func (UpdateGraphHint) ActionType() string       { return "update_graph_hint" }
func (UpdateGraphLabel) ActionType() string      { return "update_graph_label" }
func (ClearGraphData) ActionType() string        { return "clear_graph_data" }
func (a UnknownAction) ActionType() string       { return a.Type }

// envelope is the JSON form of every action.
type envelope struct {
	Type      string     `json:"type"`
	ID        string     `json:"id,omitempty"`
	Text      string     `json:"text,omitempty"`
	Field     string     `json:"field,omitempty"`
	AfterID   string     `json:"afterId,omitempty"`
	BlockType BlockType  `json:"blockType,omitempty"`
	NextIndex *int       `json:"nextIndex,omitempty"`
	Option    CodeOption `json:"option,omitempty"`
	Property  string     `json:"property,omitempty"`
	Hint      string     `json:"hint,omitempty"`
	Label     string     `json:"label,omitempty"`
	Value     string     `json:"value,omitempty"`
	Source    string     `json:"source,omitempty"`
	Filename  string     `json:"filename,omitempty"`
}

var (
	// ErrMissingActionType is returned for envelopes without a "type".
	ErrMissingActionType = errors.New("action type is required")
	// ErrInvalidOption is returned for a code block option outside
	// runnable, auto and hidden.
	ErrInvalidOption = errors.New("invalid code block option")
	// ErrReservedField is returned when a metadata edit names a key that
	// holds typed metadata.
	ErrReservedField = errors.New("reserved metadata field")
)

// DecodeAction decodes a JSON action envelope such as
//
//	{"type": "move_block", "id": "3", "nextIndex": 0}
//
// Envelopes with an unrecognised type decode to UnknownAction.
func DecodeAction(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode action: %w", err)
	}

	switch env.Type {
	case "":
		return nil, ErrMissingActionType
	case "load_document":
		return LoadDocument{Source: []byte(env.Source), Filename: env.Filename}, nil
	case "document_saved":
		return DocumentSaved{Filename: env.Filename}, nil
	case "update_block":
		return UpdateBlockContent{ID: env.ID, Text: env.Text}, nil
	case "update_meta", "toggle_meta":
		if IsReservedField(env.Field) {
			return nil, fmt.Errorf("%w: %q", ErrReservedField, env.Field)
		}
		if env.Type == "toggle_meta" {
			return ToggleMetadataField{Field: env.Field}, nil
		}
		return UpdateMetadataField{Field: env.Field, Text: env.Text}, nil
	case "add_block":
		return AddBlock{AfterID: env.AfterID, BlockType: env.BlockType}, nil
	case "delete_block":
		return DeleteBlock{ID: env.ID}, nil
	case "move_block":
		return MoveBlock{ID: env.ID, NextIndex: env.NextIndex}, nil
	case "delete_datasource":
		return DeleteDatasource{ID: env.ID}, nil
	case "update_datasource":
		return UpdateDatasource{ID: env.ID, Text: env.Text}, nil
	case "gist_created":
		return GistCreated{ID: env.ID}, nil
	case "undo":
		return Undo{}, nil
	case "change_code_block_option":
		if _, ok := ParseCodeOption(string(env.Option)); env.Option != "" && !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOption, env.Option)
		}
		return ChangeCodeBlockOption{ID: env.ID, Option: env.Option}, nil
	case "update_graph_property":
		return UpdateGraphProperty{ID: env.ID, Property: GraphProperty(env.Property), Value: env.Value}, nil
	case "update_graph_hint":
		return UpdateGraphHint{ID: env.ID, Hint: env.Hint, Value: env.Value}, nil
	case "update_graph_label":
		return UpdateGraphLabel{ID: env.ID, Label: env.Label, Value: env.Value}, nil
	case "clear_graph_data":
		return ClearGraphData{ID: env.ID}, nil
	default:
		return UnknownAction{Type: env.Type, Payload: json.RawMessage(slices.Clone(data))}, nil
	}
}
