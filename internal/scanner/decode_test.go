package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

func TestDecode_ReplacesInvalidBytes(t *testing.T) {
	// Given: latin-1 bytes that are not valid UTF-8
	raw := []byte("int caf\xe9 = 1;\n")

	// When: decoding
	text, err := Decode(raw)

	// Then: the bad byte becomes one replacement rune
	require.NoError(t, err)
	assert.Equal(t, "int caf\uFFFD = 1;\n", text)
}

func TestDecode_StripsBOM(t *testing.T) {
	text, err := Decode([]byte("\xef\xbb\xbfint x;"))

	require.NoError(t, err)
	assert.Equal(t, "int x;", text)
}

func TestDecode_ValidUTF8Unchanged(t *testing.T) {
	text, err := Decode([]byte("// é ü\n"))

	require.NoError(t, err)
	assert.Equal(t, "// é ü\n", text)
}

func TestReadSource_MissingFile(t *testing.T) {
	_, err := ReadSource(filepath.Join(t.TempDir(), "gone.cpp"))

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeFileRead, cerrors.GetCode(err))
	assert.False(t, cerrors.IsFatal(err))
}

func TestReadSource_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.cpp")
	require.NoError(t, os.WriteFile(path, []byte("int a;\n"), 0o644))

	text, err := ReadSource(path)

	require.NoError(t, err)
	assert.Equal(t, "int a;\n", text)
}
