//go:build ignore

// Package main generates a synthetic C++ source tree for benchmarking indexing.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var headerTemplate = `#ifndef %[1]s_H_INCLUDED
#define %[1]s_H_INCLUDED

#include <cstdint>
#include <vector>

namespace Engine {

// %[2]s keeps %[3]s state for one search thread.
class %[2]s {
 public:
  explicit %[2]s(std::size_t capacity);

  void clear();
  int %[4]s(int depth, int alpha, int beta);
  std::uint64_t hits() const { return hitCount; }

 private:
  std::vector<int> table;
  std::uint64_t hitCount = 0;
};

}  // namespace Engine

#endif  // #ifndef %[1]s_H_INCLUDED
`

var sourceTemplate = `#include "%[1]s.h"

#include <algorithm>
#include <cassert>

namespace Engine {

%[2]s::%[2]s(std::size_t capacity) :
    table(capacity, 0) {}

void %[2]s::clear() {
  std::fill(table.begin(), table.end(), 0);
  hitCount = 0;
}

int %[2]s::%[3]s(int depth, int alpha, int beta) {
  assert(alpha < beta);

  if (depth <= 0)
    return alpha;

  int best = -%[4]d;
  for (std::size_t i = 0; i < table.size(); ++i)
  {
    int value = table[i] - depth * %[5]d;
    if (value > best)
    {
      best = value;
      ++hitCount;
    }
    if (best >= beta)
      break;
  }

  return std::clamp(best, alpha, beta);
}

}  // namespace Engine
`

var (
	nouns = []string{
		"History", "Cluster", "Bitboard", "Material", "Pawn",
		"Endgame", "Move", "Thread", "Position", "Evaluation",
		"Accumulator", "Network", "Timer", "Tune", "Score",
	}
	verbs = []string{
		"probe", "search", "evaluate", "update", "refresh",
		"score", "pick", "generate", "prefetch", "adjust",
	}
	domains = []string{
		"move ordering", "transposition", "pawn structure", "king safety",
		"endgame probing", "time management", "pruning", "reduction",
	}
	subdirs = []string{"search", "eval", "nnue", "syzygy"}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	for _, subdir := range subdirs {
		if err := os.MkdirAll(filepath.Join(*outputDir, subdir), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating subdirectory %s: %v\n", subdir, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d files in %s...\n", *numFiles, *outputDir)

	// Each unit is a header plus its source file.
	generated := 0
	for i := 0; generated < *numFiles; i++ {
		n, err := generateUnit(rng, i, *numFiles-generated)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating unit %d: %v\n", i, err)
			os.Exit(1)
		}
		generated += n
	}

	fmt.Printf("Generated %d files successfully.\n", generated)
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func generateUnit(rng *rand.Rand, index, budget int) (int, error) {
	noun := pick(rng, nouns)
	className := fmt.Sprintf("%s%d", noun, index)
	base := strings.ToLower(className)
	verb := pick(rng, verbs)
	dir := filepath.Join(*outputDir, pick(rng, subdirs))

	header := fmt.Sprintf(headerTemplate, strings.ToUpper(base), className, pick(rng, domains), verb)
	if err := os.WriteFile(filepath.Join(dir, base+".h"), []byte(header), 0o644); err != nil {
		return 0, err
	}
	if budget == 1 {
		return 1, nil
	}

	source := fmt.Sprintf(sourceTemplate, base, className, verb, 30000+rng.Intn(2000), 1+rng.Intn(64))
	if err := os.WriteFile(filepath.Join(dir, base+".cpp"), []byte(source), 0o644); err != nil {
		return 1, err
	}
	return 2, nil
}
