// Package errors provides structured errors for codecorpus.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors (fatal, raised before any I/O)
//   - 2XX: IO errors (per-file read errors are skipped, root errors are fatal)
//   - 3XX: Embedding errors
//   - 4XX: Index build errors
//   - 5XX: Persistence errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig    Category = "CONFIG"
	CategoryIO        Category = "IO"
	CategoryEmbedding Category = "EMBEDDING"
	CategoryIndex     Category = "INDEX"
	CategoryPersist   Category = "PERSIST"
	CategoryInternal  Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the run and discards artifacts.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the current operation.
	SeverityError Severity = "ERROR"
	// SeverityWarning means the item was skipped and the run continues.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound    = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_102_CONFIG_INVALID"
	ErrCodeChunkPolicy       = "ERR_103_CHUNK_POLICY"
	ErrCodeRootDir           = "ERR_104_ROOT_DIR"
	ErrCodeUnknownPreset     = "ERR_105_UNKNOWN_PRESET"
	ErrCodeUnknownProvider   = "ERR_106_UNKNOWN_PROVIDER"
	ErrCodeUnknownIndexKind  = "ERR_107_UNKNOWN_INDEX_KIND"
	ErrCodeOutputPathInvalid = "ERR_108_OUTPUT_PATH"
	ErrCodePreflightFailed   = "ERR_109_PREFLIGHT_FAILED"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeFileRead       = "ERR_203_FILE_READ"
	ErrCodeFileTooLarge   = "ERR_204_FILE_TOO_LARGE"

	// Embedding errors (300-399)
	ErrCodeEmbeddingFailed      = "ERR_301_EMBEDDING_FAILED"
	ErrCodeEmbeddingUnavailable = "ERR_302_EMBEDDING_UNAVAILABLE"
	ErrCodeEmbeddingMismatch    = "ERR_303_EMBEDDING_MISMATCH"

	// Index errors (400-499)
	ErrCodeIndexFailed       = "ERR_401_INDEX_FAILED"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeCorruptIndex      = "ERR_403_CORRUPT_INDEX"

	// Persistence errors (500-599)
	ErrCodePersistFailed    = "ERR_501_PERSIST_FAILED"
	ErrCodeArtifactMismatch = "ERR_502_ARTIFACT_MISMATCH"
	ErrCodeOutputLocked     = "ERR_503_OUTPUT_LOCKED"
	ErrCodeCorruptMetadata  = "ERR_504_CORRUPT_METADATA"

	ErrCodeInternal = "ERR_901_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryEmbedding
	case '4':
		return CategoryIndex
	case '5':
		return CategoryPersist
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// A single unreadable file is the only recoverable failure of a run.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeFileRead, ErrCodeFilePermission, ErrCodeFileTooLarge:
		return SeverityWarning
	}

	switch categoryFromCode(code) {
	case CategoryConfig, CategoryEmbedding, CategoryIndex, CategoryPersist:
		return SeverityFatal
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingUnavailable:
		return true
	default:
		return false
	}
}
