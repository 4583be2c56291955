package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	// Given: a config error with a suggestion
	err := New(ErrCodeChunkPolicy, "overlap (40) must be smaller than chunk_size (40)", nil).
		WithSuggestion("lower chunking.overlap")

	// When: formatting for the terminal
	out := FormatForCLI(err)

	// Then: message, hint and code are present
	assert.Contains(t, out, "Error: overlap (40) must be smaller than chunk_size (40)")
	assert.Contains(t, out, "Hint: lower chunking.overlap")
	assert.Contains(t, out, "Code: ERR_103_CHUNK_POLICY")
}

func TestFormatForCLI_PlainError(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))

	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, ErrCodeInternal)
	assert.Equal(t, "", FormatForCLI(nil))
}

func TestFormatJSON(t *testing.T) {
	err := New(ErrCodePersistFailed, "rename failed", errors.New("disk full")).WithDetail("path", "x.index")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodePersistFailed, decoded["code"])
	assert.Equal(t, "PERSIST", decoded["category"])
	assert.Equal(t, "disk full", decoded["cause"])
}

func TestFormatForLog(t *testing.T) {
	attrs := FormatForLog(New(ErrCodeFileRead, "a.cpp", errors.New("EACCES")))

	assert.Contains(t, attrs, "error_code")
	assert.Contains(t, attrs, ErrCodeFileRead)
	assert.Contains(t, attrs, "EACCES")
	assert.Nil(t, FormatForLog(nil))
	assert.Equal(t, []any{"error", "plain"}, FormatForLog(errors.New("plain")))
}
