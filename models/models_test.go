package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "span_cache", SpanCache{}.TableName())
	assert.Equal(t, "check_runs", CheckRun{}.TableName())
	assert.Equal(t, "diagnostics", Diagnostic{}.TableName())
}

func TestJSONFields(t *testing.T) {
	langs, err := json.Marshal([]string{"go", "javascript"})
	require.NoError(t, err)

	run := CheckRun{ID: "run_1", Languages: datatypes.JSON(langs)}

	var decoded []string
	require.NoError(t, json.Unmarshal(run.Languages, &decoded))
	assert.Equal(t, []string{"go", "javascript"}, decoded)

	// datatypes.JSON marshals as raw JSON, not as a base64 byte slice
	out, err := json.Marshal(run.Languages)
	require.NoError(t, err)
	assert.JSONEq(t, `["go","javascript"]`, string(out))
}
