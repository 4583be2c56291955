package preflight

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/codecorpus/internal/config"
	"github.com/Aman-CERP/codecorpus/internal/scanner"
)

// CheckSourceRoot checks that the root exists and holds at least one file
// with an accepted extension.
func (c *Checker) CheckSourceRoot(ctx context.Context, cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "source_root",
		Required: true,
	}

	if err := cfg.ValidateRoot(); err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	s, err := scanner.New()
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to create scanner: %v", err)
		return result
	}
	files, skipped, err := s.Collect(ctx, &scanner.ScanOptions{
		RootDir:          cfg.Paths.RootDir,
		Extensions:       cfg.Paths.Extensions,
		ExcludePatterns:  cfg.Paths.Exclude,
		RespectGitignore: cfg.Paths.RespectGitignore,
		MaxFileSize:      cfg.Paths.MaxFileSize,
	})
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to scan %s: %v", cfg.Paths.RootDir, err)
		return result
	}

	result.Details = fmt.Sprintf("root: %s, extensions: %v", cfg.Paths.RootDir, cfg.Paths.Extensions)
	switch {
	case len(files) == 0:
		result.Status = StatusWarn
		result.Message = "no matching source files (the corpus will be empty)"
	case len(skipped) > 0:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d files, %d skipped", len(files), len(skipped))
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%d files", len(files))
	}
	return result
}
