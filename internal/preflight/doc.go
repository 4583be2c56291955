// Package preflight checks that a corpus build can succeed before it starts.
//
// The checks cover:
//   - The source root exists and contains indexable files
//   - Both artifact directories are writable
//   - Free disk space next to the artifacts
//   - The open file limit
//   - The configured embedder answers a probe
//
// Use the Checker type to run them all:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
