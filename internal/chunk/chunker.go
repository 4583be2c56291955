package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chunker cuts file content into overlapping fixed-size windows.
// It is safe for concurrent use.
type Chunker struct {
	policy Policy
}

// NewChunker validates the policy once so Chunk never fails.
func NewChunker(policy Policy) (*Chunker, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{policy: policy}, nil
}

// Policy returns the chunking policy.
func (c *Chunker) Policy() Policy {
	return c.policy
}

// Chunk splits content into windows of Size units advancing by Step.
// Offsets are 1-based and inclusive. The last window may be short and is
// still emitted. Empty content yields no chunks. Position is left at zero;
// the caller assigns it once the run order is known.
func (c *Chunker) Chunk(path string, content string) []*Chunk {
	if content == "" {
		return nil
	}

	size, step := c.policy.Size, c.policy.Step()
	var chunks []*Chunk

	emit := func(offset, n int, text string) {
		chunks = append(chunks, &Chunk{
			ID:          generateChunkID(path, offset+1, text),
			FilePath:    path,
			Unit:        c.policy.Unit,
			StartOffset: offset + 1,
			EndOffset:   offset + n,
			Text:        text,
		})
	}

	switch c.policy.Unit {
	case UnitLines:
		lines := SplitLines(content)
		for offset := 0; offset < len(lines); offset += step {
			end := min(offset+size, len(lines))
			emit(offset, end-offset, strings.Join(lines[offset:end], ""))
		}
	default:
		runes := []rune(content)
		for offset := 0; offset < len(runes); offset += step {
			end := min(offset+size, len(runes))
			emit(offset, end-offset, string(runes[offset:end]))
		}
	}

	return chunks
}

// SplitLines splits content after every "\n". A trailing fragment without
// a terminator is its own line; a trailing terminator does not start one.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// UnitCount returns the length of content in unit.
func UnitCount(content string, unit Unit) int {
	if unit == UnitLines {
		return len(SplitLines(content))
	}
	return utf8.RuneCountInString(content)
}

// Count is the number of chunks Chunk emits for content of length units.
func Count(length int, policy Policy) int {
	if length <= 0 {
		return 0
	}
	step := policy.Step()
	return (length + step - 1) / step
}

// Reconstruct rebuilds one file's content from its chunks by dropping the
// first overlap units of every chunk after the first.
func Reconstruct(chunks []*Chunk, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c.Text)
			continue
		}
		sb.WriteString(dropUnits(c.Text, c.Unit, overlap))
	}
	return sb.String()
}

func dropUnits(text string, unit Unit, n int) string {
	if unit == UnitLines {
		lines := SplitLines(text)
		if n >= len(lines) {
			return ""
		}
		return strings.Join(lines[n:], "")
	}
	for i := 0; i < n && text != ""; i++ {
		_, size := utf8.DecodeRuneInString(text)
		text = text[size:]
	}
	return text
}

// generateChunkID creates a stable ID from the path, start offset and text.
func generateChunkID(path string, start int, text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", path, start, text)))
	return hex.EncodeToString(h[:])[:16]
}
