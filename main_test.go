package main

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func TestGenerateWritesSuccessfulCodes(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.zip")
	tooLong := strings.Repeat("a", 3000)

	out, err := runCLI(t, "from stdin\n\n",
		"generate", "-c", filepath.Join(dir, "missing.yaml"),
		"--level", "high", "--format", "png", "-o", output, "-f", "-",
		"first", tooLong,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "#0 ok")
	assert.Contains(t, out, "#1 failed capacity_exceeded")
	assert.Contains(t, out, "#2 ok")
	assert.Contains(t, out, "#3 failed invalid_payload")
	assert.Contains(t, out, "wrote 2 of 4 codes")

	zr, err := zip.OpenReader(output)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"qrcode-0.png", "qrcode-2.png"}, names)
}

func TestGenerateFailsWhenNothingEncodes(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.zip")

	_, err := runCLI(t, "",
		"generate", "-c", filepath.Join(dir, "missing.yaml"),
		"--level", "high", "-o", output, strings.Repeat("9", 8000),
	)
	require.Error(t, err)
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateRejectsBadFlags(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "missing.yaml")

	for _, args := range [][]string{
		{"generate", "-c", cfg, "--mask", "8", "a"},
		{"generate", "-c", cfg, "--level", "x", "a"},
		{"generate", "-c", cfg, "--margin", "-2", "a"},
		{"generate", "-c", cfg, "--dark", "black", "a"},
		{"generate", "-c", cfg},
	} {
		_, err := runCLI(t, "", args...)
		assert.Error(t, err, "%v", args)
	}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "qrbatch "+version+"\n", out)
}
