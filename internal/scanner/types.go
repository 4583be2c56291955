// Package scanner collects the source files of a tree in a stable order.
// It filters by extension, exclusion patterns and .gitignore rules and
// decodes file content leniently.
package scanner

import (
	"time"
)

// FileInfo contains metadata about a collected file.
type FileInfo struct {
	Path      string // Relative to the root, slash separated
	AbsPath   string
	Size      int64
	ModTime   time.Time
	Extension string // Lower case, with the dot
}

// SkipReason explains why a candidate file was not collected.
type SkipReason string

const (
	SkipUnreadable SkipReason = "unreadable"
	SkipTooLarge   SkipReason = "too_large"
	SkipBinary     SkipReason = "binary"
	SkipSymlink    SkipReason = "symlink"
)

// SkippedFile is a file with an accepted extension that was left out.
type SkippedFile struct {
	Path   string
	Reason SkipReason
	Err    error
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	// RootDir is the directory to walk.
	RootDir string

	// Extensions lists accepted extensions with the dot. Matching ignores case.
	// Empty means DefaultExtensions.
	Extensions []string

	// ExcludePatterns are gitignore-style patterns relative to RootDir.
	ExcludePatterns []string

	// RespectGitignore applies .gitignore files found in the tree.
	RespectGitignore bool

	// MaxFileSize in bytes, 0 means unlimited.
	MaxFileSize int64

	// FollowSymlinks collects symlinked files (default: false).
	FollowSymlinks bool

	// IncludeBinary disables the NUL byte sniff.
	IncludeBinary bool
}

// ScanResult is sent on the scanner channel. Exactly one field is set.
type ScanResult struct {
	File    *FileInfo
	Skipped *SkippedFile
	Error   error
}

// DefaultExtensions are the C++ source extensions.
var DefaultExtensions = []string{".cpp", ".h", ".hpp", ".cc"}
