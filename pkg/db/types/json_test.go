package dbtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name string `json:"name"`
}

func TestJSONRoundTripThroughDriverValues(t *testing.T) {
	v, err := JSONValue([]doc{{Name: "report.pdf"}})
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"report.pdf"}]`, v)

	var fromString []doc
	require.NoError(t, ScanJSON(v, &fromString))
	assert.Equal(t, []doc{{Name: "report.pdf"}}, fromString)

	var fromBytes []doc
	require.NoError(t, ScanJSON([]byte(`[{"name":"a"}]`), &fromBytes))
	assert.Len(t, fromBytes, 1)
}

func TestScanJSONNilAndUnsupported(t *testing.T) {
	var out []doc
	require.NoError(t, ScanJSON(nil, &out))
	assert.Nil(t, out)
	assert.Error(t, ScanJSON(42, &out))
}
