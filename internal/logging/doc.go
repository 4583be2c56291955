// Package logging sets up structured slog logging for codecorpus runs.
// Logs are JSON lines written to ~/.codecorpus/logs/codecorpus.log with
// size-based rotation, optionally mirrored to stderr.
package logging
