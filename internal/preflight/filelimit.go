package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the open file limit below which chunk workers may
// run out of descriptors on large trees.
const MinFileDescriptors = 256

// CheckFileDescriptors warns when the open file limit is low.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: false,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusWarn
		result.Details = "Run 'ulimit -n 4096' or lower performance.chunk_workers"
		return result
	}

	result.Status = StatusPass
	return result
}
