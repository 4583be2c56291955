package config

import (
	"fmt"
	"sort"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// DefaultPreset is the 40/10 line policy used for the Stockfish tree.
const DefaultPreset = "stockfish-lines"

// Preset is a named chunking policy.
type Preset struct {
	Name        string
	Description string
	Unit        string
	ChunkSize   int
	Overlap     int
}

var presets = map[string]Preset{
	"stockfish-lines": {
		Description: "40-line windows with 10 lines of overlap",
		Unit:        "lines",
		ChunkSize:   40,
		Overlap:     10,
	},
	"lines-small": {
		Description: "20-line windows with 5 lines of overlap",
		Unit:        "lines",
		ChunkSize:   20,
		Overlap:     5,
	},
	"chars-1000": {
		Description: "1000-character windows with 200 characters of overlap",
		Unit:        "chars",
		ChunkSize:   1000,
		Overlap:     200,
	},
	"chars-small": {
		Description: "512-character windows with 64 characters of overlap",
		Unit:        "chars",
		ChunkSize:   512,
		Overlap:     64,
	},
}

// Presets returns all presets sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for name, p := range presets {
		p.Name = name
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ApplyPreset overwrites the chunking policy with the named preset.
func (c *Config) ApplyPreset(name string) error {
	p, ok := presets[name]
	if !ok {
		return cerrors.New(cerrors.ErrCodeUnknownPreset, fmt.Sprintf("unknown preset %q", name), nil).
			WithSuggestion("run 'codecorpus config presets' to list presets")
	}
	c.Preset = name
	c.Chunking.Unit = p.Unit
	c.Chunking.ChunkSize = p.ChunkSize
	c.Chunking.Overlap = p.Overlap
	return nil
}
