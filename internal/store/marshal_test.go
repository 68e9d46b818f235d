package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalMetadata_SortedNoHTMLEscape(t *testing.T) {
	out, err := marshalMetadata(map[string]any{
		"zeta":  1,
		"alpha": "a<b>&c",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a<b>&c","zeta":1}`, out)
}

func TestMarshalMetadata_Empty(t *testing.T) {
	out, err := marshalMetadata(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}

func TestMarshalMetadata_NormalizesStrings(t *testing.T) {
	out, err := marshalMetadata(map[string]any{"name": "cafe\u0301"})
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"caf\u00e9\"}", out)
}

func TestUnmarshalMetadata_KeepsIntegersExact(t *testing.T) {
	m, err := unmarshalMetadata(`{"id":9007199254740993}`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), m["id"])
}

func TestUnmarshalMetadata_Invalid(t *testing.T) {
	_, err := unmarshalMetadata(`{not json`)
	assert.Error(t, err)
}
