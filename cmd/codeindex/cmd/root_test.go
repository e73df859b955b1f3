package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing with --help
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()

	// Then: it should show usage information
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "codeindex", "Help should mention program name")
	assert.Contains(t, output, "Usage:", "Help should show usage")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	// Given: a root command

	// When: executing with --version
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	err := cmd.Execute()

	// Then: it should show the version string
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "codeindex version", "Version output should mention program name")
	assert.Contains(t, output, Version, "Version output should contain the version")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// When: checking available commands
	var commandNames []string
	for _, subcmd := range cmd.Commands() {
		commandNames = append(commandNames, subcmd.Name())
	}

	// Then: the core subcommands should exist
	assert.Contains(t, commandNames, "index", "Should have index subcommand")
	assert.Contains(t, commandNames, "search", "Should have search subcommand")
	assert.Contains(t, commandNames, "lookup", "Should have lookup subcommand")
	assert.Contains(t, commandNames, "stats", "Should have stats subcommand")
	assert.Contains(t, commandNames, "rebuild", "Should have rebuild subcommand")
	assert.Contains(t, commandNames, "config", "Should have config subcommand")
	assert.Contains(t, commandNames, "version", "Should have version subcommand")
}

func TestRootCmd_HasDirFlag(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// Then: it should have the --dir persistent flag defaulting to "."
	flag := cmd.PersistentFlags().Lookup("dir")
	require.NotNil(t, flag, "Should have --dir flag")
	assert.Equal(t, ".", flag.DefValue)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	// Given: a root command

	// When: executing search with no arguments
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search"})

	err := cmd.Execute()

	// Then: it should fail with a usage error
	assert.Error(t, err, "Search without a query should fail")
}

func TestSearchCmd_FailsWithoutIndex(t *testing.T) {
	// Given: an empty project directory with no index
	tmpDir := t.TempDir()

	// When: searching before ever indexing
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search", "anything", "--dir", tmpDir})

	err := cmd.Execute()

	// Then: it should report that no index exists
	assert.Error(t, err, "Search with no index should fail")
}

func TestIndexThenSearch_EndToEnd(t *testing.T) {
	// Given: a project directory with one Go file
	tmpDir := t.TempDir()
	src := `package server

// NewHandler builds the request handler.
func NewHandler() *Handler {
	return &Handler{}
}

type Handler struct{}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "handler.go"), []byte(src), 0o644))

	// When: indexing the directory
	indexCmd := NewRootCmd()
	indexBuf := new(bytes.Buffer)
	indexCmd.SetOut(indexBuf)
	indexCmd.SetErr(indexBuf)
	indexCmd.SetArgs([]string{"index", "--dir", tmpDir, "--quiet"})
	require.NoError(t, indexCmd.Execute())
	assert.Contains(t, indexBuf.String(), "Indexed 1 files", "Index summary should count the file")

	// Then: searching finds the document
	searchCmd := NewRootCmd()
	searchBuf := new(bytes.Buffer)
	searchCmd.SetOut(searchBuf)
	searchCmd.SetErr(searchBuf)
	searchCmd.SetArgs([]string{"search", "request handler", "--dir", tmpDir, "--mode", "bm25"})
	require.NoError(t, searchCmd.Execute())
	assert.Contains(t, searchBuf.String(), "handler.go", "Search output should list the matching file")

	// And: symbol lookup resolves the exact identifier
	lookupCmd := NewRootCmd()
	lookupBuf := new(bytes.Buffer)
	lookupCmd.SetOut(lookupBuf)
	lookupCmd.SetErr(lookupBuf)
	lookupCmd.SetArgs([]string{"search", "NewHandler", "--dir", tmpDir})
	require.NoError(t, lookupCmd.Execute())
	assert.Contains(t, lookupBuf.String(), "NewHandler", "Auto mode should resolve a known symbol")
}
