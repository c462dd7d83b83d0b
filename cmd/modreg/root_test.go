package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/chenyanchen/modreg"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd := NewRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestListCmd(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "service")
	assert.Contains(t, out, "*demo.Service")
	assert.Contains(t, out, "memory-store")
}

func TestCheckCmd(t *testing.T) {
	out, err := execute(t, "check", "-m", "testdata/demo.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "*demo.MemoryStore as demo.Store")
	assert.Contains(t, out, "*demo.SystemClock as demo.Clock")
	assert.Contains(t, out, "*demo.Ping")
	assert.Contains(t, out, "*demo.Pong")
	assert.Contains(t, out, "8 modules registered")
}

func TestCheckCmdErrors(t *testing.T) {
	_, err := execute(t, "check")
	assert.ErrorContains(t, err, "no manifest")

	_, err = execute(t, "check", "-m", "testdata/failfast.toml")
	var unsatisfied modreg.UnsatisfiedDependencyError
	assert.ErrorAs(t, err, &unsatisfied)

	_, err = execute(t, "check", "-m", "testdata/missing.yaml")
	assert.Error(t, err)
}

func TestGraphCmd(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"dot", "digraph modreg"},
		{"mermaid", "graph TD"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := execute(t, "graph", "-m", "testdata/demo.yaml", "--format", tt.format)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "*demo.Service")
		})
	}
}

func TestGraphCmdStructured(t *testing.T) {
	out, err := execute(t, "graph", "-m", "testdata/demo.yaml", "--format", "json")
	require.NoError(t, err)
	var fromJSON modreg.Graph
	require.NoError(t, json.Unmarshal([]byte(out), &fromJSON))
	assert.Len(t, fromJSON.Nodes, 8)
	assert.Contains(t, fromJSON.Order, "*demo.Service")

	out, err = execute(t, "graph", "-m", "testdata/demo.yaml", "-f", "yaml")
	require.NoError(t, err)
	var fromYAML modreg.Graph
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, fromJSON, fromYAML)
}

func TestGraphCmdUnknownFormat(t *testing.T) {
	_, err := execute(t, "graph", "-m", "testdata/demo.yaml", "--format", "svg")
	assert.ErrorContains(t, err, "unsupported graph format")
}
