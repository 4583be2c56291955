package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCmd runs the root command with args and returns combined output.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	// Given: the root command
	root := NewRootCmd()

	// Then: every subcommand is reachable
	for _, name := range []string{"index", "search", "verify", "doctor", "eval", "config", "version"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCmd_HelpMentionsArtifacts(t *testing.T) {
	out, err := executeCmd(t, "--help")

	require.NoError(t, err)
	assert.Contains(t, out, "codecorpus")
	assert.Contains(t, out, "index")
	assert.Contains(t, out, "metadata")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	_, err := executeCmd(t, "serve")
	assert.Error(t, err)
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := executeCmd(t, "--version")

	require.NoError(t, err)
	assert.Contains(t, out, "codecorpus version")
}
