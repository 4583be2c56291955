package chunk

import (
	"fmt"
	"strings"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// Unit is the measure chunk sizes and offsets are expressed in.
type Unit string

const (
	// UnitChars counts unicode code points of the decoded text.
	UnitChars Unit = "chars"
	// UnitLines counts lines. A line keeps its terminator.
	UnitLines Unit = "lines"
)

// ParseUnit parses a unit name. "characters" and "line" are accepted aliases.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chars", "char", "characters":
		return UnitChars, nil
	case "lines", "line":
		return UnitLines, nil
	default:
		return "", cerrors.New(cerrors.ErrCodeChunkPolicy, fmt.Sprintf("unknown chunk unit %q", s), nil).
			WithSuggestion("use 'chars' or 'lines'")
	}
}

// ErrInvalidPolicy matches every chunk policy error via errors.Is.
var ErrInvalidPolicy = cerrors.New(cerrors.ErrCodeChunkPolicy, "invalid chunk policy", nil)

// Policy controls how content is cut into windows.
type Policy struct {
	Unit    Unit
	Size    int
	Overlap int
}

// Step is how far the window advances between chunks.
func (p Policy) Step() int {
	return p.Size - p.Overlap
}

// Validate rejects policies whose window would not advance.
func (p Policy) Validate() error {
	if _, err := ParseUnit(string(p.Unit)); err != nil {
		return err
	}
	if p.Size <= 0 {
		return cerrors.New(cerrors.ErrCodeChunkPolicy,
			fmt.Sprintf("chunk_size must be positive, got %d", p.Size), nil).
			WithSuggestion("set chunking.chunk_size to at least 1")
	}
	if p.Overlap < 0 {
		return cerrors.New(cerrors.ErrCodeChunkPolicy,
			fmt.Sprintf("overlap must not be negative, got %d", p.Overlap), nil)
	}
	if p.Overlap >= p.Size {
		return cerrors.New(cerrors.ErrCodeChunkPolicy,
			fmt.Sprintf("overlap (%d) must be smaller than chunk_size (%d)", p.Overlap, p.Size), nil).
			WithSuggestion("lower chunking.overlap or raise chunking.chunk_size")
	}
	return nil
}

func (p Policy) String() string {
	return fmt.Sprintf("%s size=%d overlap=%d", p.Unit, p.Size, p.Overlap)
}

// Chunk is a retrievable window of one source file.
type Chunk struct {
	// Position is the 0-based emission order across the whole run.
	// It is the row of the chunk's vector in the index.
	Position int

	ID       string // SHA256(path:start:text)[:16]
	FilePath string // Relative to the root dir, slash separated
	Unit     Unit

	StartOffset int // 1-indexed
	EndOffset   int // Inclusive

	Text      string
	Symbols   []string
	Embedding []float32
}

// SymbolType is the kind of a C++ declaration.
type SymbolType string

const (
	SymbolTypeFunction  SymbolType = "function"
	SymbolTypeMethod    SymbolType = "method"
	SymbolTypeClass     SymbolType = "class"
	SymbolTypeStruct    SymbolType = "struct"
	SymbolTypeUnion     SymbolType = "union"
	SymbolTypeEnum      SymbolType = "enum"
	SymbolTypeNamespace SymbolType = "namespace"
)

// Symbol is a declaration found by the C++ parser.
type Symbol struct {
	Name      string
	Type      SymbolType
	StartLine int // 1-indexed
	EndLine   int
	StartChar int // 1-indexed code point offset
}
