// Package validation measures retrieval quality of a built corpus.
//
// Queries are data-driven, loaded from a YAML file:
//
//	queries:
//	  - id: Q1
//	    query: "transposition table resize"
//	    expected: ["src/tt.cpp"]
//	negative:
//	  - id: N1
//	    query: ""
//
// A query passes when any of its expected paths (or path prefixes) appears
// in the top K results. Negative queries only need to complete without
// error.
package validation

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
	"github.com/Aman-CERP/codecorpus/pkg/searcher"
)

// DefaultK is the result depth checked when neither the file nor the query
// sets one.
const DefaultK = 5

// QuerySpec defines a query with expected results.
type QuerySpec struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name,omitempty" json:"name,omitempty"`
	Query    string   `yaml:"query" json:"query"`
	Expected []string `yaml:"expected,omitempty" json:"expected,omitempty"`
	K        int      `yaml:"k,omitempty" json:"k,omitempty"`
	Notes    string   `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// QueryConfig holds all queries loaded from YAML.
type QueryConfig struct {
	K        int         `yaml:"k"`
	Queries  []QuerySpec `yaml:"queries"`
	Negative []QuerySpec `yaml:"negative"`
}

// LoadQueries reads and checks a query file.
func LoadQueries(path string) (*QueryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeFileNotFound,
			fmt.Sprintf("failed to read queries file %s", path), err)
	}
	return ParseQueries(data)
}

// ParseQueries decodes a query file. Positive queries need an id, a query
// and at least one expected path.
func ParseQueries(data []byte) (*QueryConfig, error) {
	var cfg QueryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeConfigInvalid, "failed to parse queries YAML", err)
	}
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}

	seen := make(map[string]bool)
	for _, q := range append(append([]QuerySpec(nil), cfg.Queries...), cfg.Negative...) {
		if q.ID == "" {
			return nil, cerrors.New(cerrors.ErrCodeConfigInvalid, "query without id", nil).
				WithDetail("query", q.Query)
		}
		if seen[q.ID] {
			return nil, cerrors.New(cerrors.ErrCodeConfigInvalid, "duplicate query id "+q.ID, nil)
		}
		seen[q.ID] = true
	}
	for _, q := range cfg.Queries {
		if strings.TrimSpace(q.Query) == "" || len(q.Expected) == 0 {
			return nil, cerrors.New(cerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("query %s needs a query and expected paths", q.ID), nil)
		}
	}
	return &cfg, nil
}

// TestResult captures the outcome of a single query.
type TestResult struct {
	Spec       QuerySpec     `json:"spec"`
	Negative   bool          `json:"negative,omitempty"`
	Passed     bool          `json:"passed"`
	Duration   time.Duration `json:"duration_ns"`
	TopResults []string      `json:"top_results"`
	MatchedAt  int           `json:"matched_at"` // 0-based rank of the first match, -1 if none
	Error      string        `json:"error,omitempty"`
}

// Report captures a full evaluation run.
type Report struct {
	Timestamp time.Time     `json:"timestamp"`
	K         int           `json:"k"`
	Results   []TestResult  `json:"results"`
	Passed    int           `json:"passed"`
	Total     int           `json:"total"`
	NegPassed int           `json:"negative_passed"`
	NegTotal  int           `json:"negative_total"`
	MRR       float64       `json:"mrr"` // mean reciprocal rank over positive queries
	Duration  time.Duration `json:"duration_ns"`
}

// HitRate is the share of positive queries that passed.
func (r *Report) HitRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Passed) / float64(r.Total)
}

// AllPassed reports whether every query, positive and negative, passed.
func (r *Report) AllPassed() bool {
	return r.Passed == r.Total && r.NegPassed == r.NegTotal
}

// Validator runs queries against a searcher.
type Validator struct {
	searcher searcher.Searcher
}

// NewValidator creates a validator over s.
func NewValidator(s searcher.Searcher) *Validator {
	return &Validator{searcher: s}
}

// RunQuery executes a single positive query with depth k.
func (v *Validator) RunQuery(ctx context.Context, spec QuerySpec, k int) TestResult {
	if spec.K > 0 {
		k = spec.K
	}
	result := TestResult{Spec: spec, MatchedAt: -1}

	start := time.Now()
	hits, err := v.searcher.Search(ctx, spec.Query, k)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.TopResults = make([]string, len(hits))
	for i, h := range hits {
		result.TopResults[i] = fmt.Sprintf("%s:%d-%d", h.Record.Path, h.Record.StartOffset, h.Record.EndOffset)
	}
	result.Passed, result.MatchedAt = checkExpected(hits, spec.Expected)
	return result
}

// runNegative passes unless the searcher panics or the context ends. An
// error from the searcher counts as handled input.
func (v *Validator) runNegative(ctx context.Context, spec QuerySpec, k int) (result TestResult) {
	result = TestResult{Spec: spec, Negative: true, MatchedAt: -1}
	defer func() {
		if r := recover(); r != nil {
			result.Passed = false
			result.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	start := time.Now()
	hits, err := v.searcher.Search(ctx, spec.Query, k)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
	}
	for _, h := range hits {
		result.TopResults = append(result.TopResults, h.Record.Path)
	}
	result.Passed = ctx.Err() == nil
	return result
}

// Run executes every query in cfg.
func (v *Validator) Run(ctx context.Context, cfg *QueryConfig) (*Report, error) {
	report := &Report{Timestamp: time.Now(), K: cfg.K}
	var reciprocal float64

	for _, spec := range cfg.Queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr := v.RunQuery(ctx, spec, cfg.K)
		report.Results = append(report.Results, tr)
		report.Total++
		if tr.Passed {
			report.Passed++
			reciprocal += 1 / float64(tr.MatchedAt+1)
		}
	}

	for _, spec := range cfg.Negative {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr := v.runNegative(ctx, spec, cfg.K)
		report.Results = append(report.Results, tr)
		report.NegTotal++
		if tr.Passed {
			report.NegPassed++
		}
	}

	if report.Total > 0 {
		report.MRR = reciprocal / float64(report.Total)
	}
	report.Duration = time.Since(report.Timestamp)
	return report, nil
}

// checkExpected returns the rank of the first hit whose path equals or
// starts with an expected entry.
func checkExpected(hits []searcher.Result, expected []string) (bool, int) {
	for i, h := range hits {
		for _, exp := range expected {
			if strings.HasPrefix(h.Record.Path, exp) {
				return true, i
			}
		}
	}
	return false, -1
}
