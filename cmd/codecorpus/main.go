// Package main provides the entry point for the codecorpus CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/codecorpus/cmd/codecorpus/cmd"
	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprint(os.Stderr, cerrors.FormatForCLI(err))
		os.Exit(1)
	}
}
