package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const positionSource = `#include <cstdio>

namespace Stockfish {

enum Color { WHITE, BLACK };

struct Move {
  int from;
};

class Position {
 public:
  void do_move(Move m);
  int side() const { return 0; }
};

void Position::do_move(Move m) {
  (void)m;
}

int eval() {
  return 1;
}

}  // namespace Stockfish
`

func TestExtractSymbols_CppDeclarations(t *testing.T) {
	// Given: a small C++ translation unit

	// When: extracting symbols
	symbols, err := ExtractSymbols(context.Background(), []byte(positionSource))
	require.NoError(t, err)

	// Then: definitions come back in document order
	byName := make(map[string]Symbol)
	var names []string
	for _, s := range symbols {
		byName[s.Name] = s
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Stockfish", "Color", "Move", "Position", "side", "Position::do_move", "eval"}, names)

	assert.Equal(t, SymbolTypeNamespace, byName["Stockfish"].Type)
	assert.Equal(t, SymbolTypeEnum, byName["Color"].Type)
	assert.Equal(t, SymbolTypeStruct, byName["Move"].Type)
	assert.Equal(t, SymbolTypeClass, byName["Position"].Type)
	assert.Equal(t, SymbolTypeMethod, byName["side"].Type)
	assert.Equal(t, SymbolTypeMethod, byName["Position::do_move"].Type)
	assert.Equal(t, SymbolTypeFunction, byName["eval"].Type)

	assert.Equal(t, 17, byName["Position::do_move"].StartLine)
	assert.Equal(t, 19, byName["Position::do_move"].EndLine)
	assert.Equal(t, 3, byName["Stockfish"].StartLine)
}

func TestExtractSymbols_CharOffsets(t *testing.T) {
	source := "// é\nint f() { return 0; }\n"

	symbols, err := ExtractSymbols(context.Background(), []byte(source))
	require.NoError(t, err)

	require.Len(t, symbols, 1)
	assert.Equal(t, "f", symbols[0].Name)
	assert.Equal(t, 2, symbols[0].StartLine)
	// "// é\n" is five code points
	assert.Equal(t, 6, symbols[0].StartChar)
}

func TestAnnotate_LinesAndChars(t *testing.T) {
	symbols, err := ExtractSymbols(context.Background(), []byte(positionSource))
	require.NoError(t, err)

	// Given: line chunks of 10 with no overlap
	lines := mustChunker(t, UnitLines, 10, 0).Chunk("position.cpp", positionSource)
	Annotate(lines, symbols)

	require.Len(t, lines, 3)
	assert.Equal(t, []string{"Stockfish", "Color", "Move"}, lines[0].Symbols)
	assert.Equal(t, []string{"Position", "side", "Position::do_move"}, lines[1].Symbols)
	assert.Equal(t, []string{"eval"}, lines[2].Symbols)

	// Given: one char chunk covering everything
	chars := mustChunker(t, UnitChars, 10000, 0).Chunk("position.cpp", positionSource)
	Annotate(chars, symbols)

	require.Len(t, chars, 1)
	assert.Len(t, chars[0].Symbols, 7)
}

func TestExtractSymbols_BrokenSourceDoesNotFail(t *testing.T) {
	symbols, err := ExtractSymbols(context.Background(), []byte("class { int ;; }}} void ("))

	require.NoError(t, err)
	for _, s := range symbols {
		assert.NotEmpty(t, s.Name)
	}
}
