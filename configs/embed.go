// Package configs holds configuration templates compiled into the binary.
//
// The project template is printed by 'codecorpus config example' and documents
// every key of .codecorpus.yaml with its default value.
package configs

import _ "embed"

// ProjectConfigTemplate is an annotated .codecorpus.yaml with the defaults.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
