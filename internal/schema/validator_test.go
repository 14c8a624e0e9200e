package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errordefs "github.com/RegistryAccord/discovery-go/internal/errors"
)

func TestValidate(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		key       string
		doc       string
		wantErr   bool
		wantParam string
	}{
		{"environment body", Key("createEnvironment", "body"), `{"name":"e","size":0}`, false, ""},
		{"environment without name", Key("createEnvironment", "body"), `{"size":1}`, true, "name"},
		{"negative size", Key("createEnvironment", "body"), `{"name":"e","size":-1}`, true, "size"},
		{"collection", Key("createCollection", ""), `{"name":"c","configuration_id":"config-guid"}`, false, ""},
		{"collection without name", Key("createCollection", ""), `{"description":"d"}`, true, "name"},
		{"collection update without name", Key("updateCollection", ""), `{}`, false, ""},
		{"unknown collection field", Key("updateCollection", ""), `{"nme":"typo"}`, true, ""},
		{"metadata object", Key("addDocument", "metadata"), `{"action":"testing"}`, false, ""},
		{"metadata array", Key("addDocument", "metadata"), `[1]`, true, "metadata"},
		{"no schema", Key("query", ""), `not json at all`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.key, []byte(tt.doc))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errordefs.ErrInvalidParameter)
			var e *errordefs.Error
			require.ErrorAs(t, err, &e)
			if tt.wantParam != "" {
				assert.Equal(t, tt.wantParam, e.Parameter)
			}
			assert.NotEmpty(t, e.Details)
		})
	}
}

func TestValidateMalformed(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)
	assert.ErrorIs(t, v.Validate(Key("createCollection", ""), []byte(`{`)), errordefs.ErrInvalidParameter)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "createEnvironment.body", Key("createEnvironment", "body"))
	assert.Equal(t, "createCollection", Key("createCollection", ""))

	v, err := NewValidator()
	require.NoError(t, err)
	assert.True(t, v.Has("updateDocument.metadata"))
	assert.False(t, v.Has("deleteDocument"))
}
