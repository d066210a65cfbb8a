package kayero

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Action
	}{
		{"load", `{"type":"load_document","source":"# Hi","filename":"a.md"}`, LoadDocument{Source: []byte("# Hi"), Filename: "a.md"}},
		{"saved", `{"type":"document_saved","filename":"a.md"}`, DocumentSaved{Filename: "a.md"}},
		{"update block", `{"type":"update_block","id":"2","text":"hello"}`, UpdateBlockContent{ID: "2", Text: "hello"}},
		{"update meta", `{"type":"update_meta","field":"title","text":"T"}`, UpdateMetadataField{Field: "title", Text: "T"}},
		{"toggle meta", `{"type":"toggle_meta","field":"show_footer"}`, ToggleMetadataField{Field: "show_footer"}},
		{"add block", `{"type":"add_block","afterId":"1","blockType":"graph"}`, AddBlock{AfterID: "1", BlockType: TypeGraph}},
		{"delete block", `{"type":"delete_block","id":"1"}`, DeleteBlock{ID: "1"}},
		{"move block", `{"type":"move_block","id":"3","nextIndex":0}`, MoveBlock{ID: "3", NextIndex: intPtr(0)}},
		{"move without index", `{"type":"move_block","id":"3"}`, MoveBlock{ID: "3"}},
		{"delete datasource", `{"type":"delete_datasource","id":"people"}`, DeleteDatasource{ID: "people"}},
		{"update datasource", `{"type":"update_datasource","id":"people","text":"http://x"}`, UpdateDatasource{ID: "people", Text: "http://x"}},
		{"gist", `{"type":"gist_created","id":"abc"}`, GistCreated{ID: "abc"}},
		{"undo", `{"type":"undo"}`, Undo{}},
		{"option cycle", `{"type":"change_code_block_option","id":"1"}`, ChangeCodeBlockOption{ID: "1"}},
		{"option explicit", `{"type":"change_code_block_option","id":"1","option":"auto"}`, ChangeCodeBlockOption{ID: "1", Option: OptionAuto}},
		{"graph property", `{"type":"update_graph_property","id":"2","property":"graphType","value":"lineChart"}`, UpdateGraphProperty{ID: "2", Property: PropertyGraphType, Value: "lineChart"}},
		{"graph hint", `{"type":"update_graph_hint","id":"2","hint":"color","value":"red"}`, UpdateGraphHint{ID: "2", Hint: "color", Value: "red"}},
		{"graph label", `{"type":"update_graph_label","id":"2","label":"x","value":"Year"}`, UpdateGraphLabel{ID: "2", Label: "x", Value: "Year"}},
		{"clear graph", `{"type":"clear_graph_data","id":"2"}`, ClearGraphData{ID: "2"}},
		{"unknown", `{"type":"run_block","id":"2"}`, UnknownAction{Type: "run_block", Payload: json.RawMessage(`{"type":"run_block","id":"2"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAction([]byte(tt.json))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if _, unknown := got.(UnknownAction); !unknown {
				assert.Equal(t, tt.want.ActionType(), got.ActionType())
			}
		})
	}
}

func TestDecodeActionErrors(t *testing.T) {
	_, err := DecodeAction([]byte(`{"id":"1"}`))
	assert.ErrorIs(t, err, ErrMissingActionType)

	_, err = DecodeAction([]byte(`not json`))
	assert.ErrorContains(t, err, "failed to decode action")
}

func TestDecodeActionRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"unknown option", `{"type":"change_code_block_option","id":"1","option":"bogus"}`, ErrInvalidOption},
		{"option wrong case", `{"type":"change_code_block_option","id":"1","option":"Auto"}`, ErrInvalidOption},
		{"update datasources field", `{"type":"update_meta","field":"datasources","text":"oops"}`, ErrReservedField},
		{"update original field", `{"type":"update_meta","field":"original","text":"x"}`, ErrReservedField},
		{"toggle path field", `{"type":"toggle_meta","field":"path"}`, ErrReservedField},
		{"toggle gist field", `{"type":"toggle_meta","field":"gistUrl"}`, ErrReservedField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAction([]byte(tt.json))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, got)
		})
	}
}

func TestDecodedActionsReduce(t *testing.T) {
	r := newTestReducer()
	doc := fixture(t)

	envelopes := []string{
		`{"type":"update_meta","field":"title","text":"Renamed"}`,
		`{"type":"move_block","id":"3","nextIndex":0}`,
		`{"type":"update_graph_hint","id":"2","hint":"color","value":"red"}`,
		`{"type":"run_block","id":"2"}`,
	}
	for _, env := range envelopes {
		a, err := DecodeAction([]byte(env))
		require.NoError(t, err)
		doc = r.Reduce(doc, a)
	}

	assert.Equal(t, "Renamed", doc.Metadata.Title())
	assert.Equal(t, []string{"3", "0", "1", "2"}, doc.Content)
	assert.Equal(t, 3, doc.History.Len())
}

func TestCodeOptionNext(t *testing.T) {
	assert.Equal(t, OptionAuto, OptionRunnable.Next())
	assert.Equal(t, OptionHidden, OptionAuto.Next())
	assert.Equal(t, OptionRunnable, OptionHidden.Next())
	assert.Equal(t, OptionRunnable, CodeOption("bogus").Next())
}
