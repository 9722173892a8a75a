package mapping

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactAppendIsIdempotent(t *testing.T) {
	pairs := []Pair{
		{Original: Identifier{Name: "foo", ScopeID: 0, ID: 0, Kind: KindFunction}, Modified: Identifier{Name: "unwrap", ScopeID: 0, ID: 0}},
		{Original: Identifier{Name: "bar", ScopeID: 1, ID: 1, Kind: KindFunctionParameter}, Modified: Identifier{Name: "value", ScopeID: 1, ID: 1}},
	}

	a := &Artifact{Path: "app.map"}
	added := a.Append(pairs)
	require.Len(t, added, 2)
	assert.Equal(t, KindFunction, added[0].DeclarationKind)
	assert.Equal(t, KindFunctionParameter, added[1].DeclarationKind)

	again := a.Append(pairs)
	assert.Empty(t, again)
	assert.Len(t, a.Mappings, 2)
}

func TestArtifactAppendKeepsExistingEntries(t *testing.T) {
	a := &Artifact{Mappings: []Mapping{
		{Original: Identifier{Name: "a", ScopeID: 3}, Modified: Identifier{Name: "first", ScopeID: 3}},
	}}

	added := a.Append([]Pair{
		{Original: Identifier{Name: "a", ScopeID: 3}, Modified: Identifier{Name: "second", ScopeID: 3}},
		{Original: Identifier{Name: "b", ScopeID: 3}, Modified: Identifier{Name: "other", ScopeID: 3}},
	})

	require.Len(t, added, 1)
	assert.Equal(t, "other", added[0].Modified.Name)
	assert.Equal(t, "first", a.Mappings[0].Modified.Name, "existing mapping must not be rewritten")
	assert.Equal(t, "b", a.Mappings[1].Original.Name)
}

func TestMappingJSONSchema(t *testing.T) {
	m := Mapping{
		Original:        Identifier{Name: "foo", ScopeID: 0, ID: 0, Kind: KindFunction},
		Modified:        Identifier{Name: "unwrap", ScopeID: 0, ID: 0},
		DeclarationKind: KindFunction,
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"original": {"name": "foo", "scope_id": 0, "id": 0},
		"modified": {"name": "unwrap", "scope_id": 0, "id": 0},
		"declaration_kind": "function"
	}`, string(data))
}

func TestMappingWithoutDeclarationKind(t *testing.T) {
	var ms []Mapping
	err := json.Unmarshal([]byte(`[{"original":{"name":"a","scope_id":3,"id":7},"modified":{"name":"x","scope_id":3,"id":7}}]`), &ms)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, KindUnknown, ms[0].DeclarationKind)
	assert.Equal(t, Key{Name: "a", ScopeID: 3}, ms[0].Key())
	assert.Equal(t, 7, ms[0].Original.ID)
}

func TestIsLexical(t *testing.T) {
	assert.True(t, KindVariable.IsLexical())
	assert.True(t, KindClass.IsLexical())
	assert.False(t, KindProperty.IsLexical())
	assert.False(t, KindMethod.IsLexical())
	assert.False(t, KindUnknown.IsLexical())
}

func TestMappingValidate(t *testing.T) {
	mk := func(from, to string, kind DeclarationKind) Mapping {
		return Mapping{
			Original:        Identifier{Name: from},
			Modified:        Identifier{Name: to},
			DeclarationKind: kind,
		}
	}
	tests := []struct {
		name    string
		mapping Mapping
		wantErr bool
	}{
		{"plain rename", mk("a", "count", KindVariable), false},
		{"dollar and underscore", mk("$a", "_count$2", KindVariable), false},
		{"unicode letters", mk("a", "größe", KindVariable), false},
		{"reserved variable", mk("a", "class", KindVariable), true},
		{"strict mode binding", mk("a", "arguments", KindFunctionParameter), true},
		{"reserved property is fine", mk("a", "default", KindProperty), false},
		{"reserved method is fine", mk("a", "delete", KindMethod), false},
		{"unknown kind is not checked", mk("a", "let", KindUnknown), false},
		{"leading digit", mk("a", "1x", KindVariable), true},
		{"punctuation", mk("a", "a-b", KindProperty), true},
		{"empty", mk("a", "", KindVariable), true},
		{"bad original", mk("", "a", KindVariable), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mapping.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
