package tui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	require.NoError(t, p.Answer("# Title\n\nBody\n\n"))
	p.Status("Task t1 ended")
	p.Error("the task timed out")

	assert.Equal(t, "# Title\n\nBody\n>>> Task t1 ended\n>>> the task timed out\n", buf.String())
}

func TestRenderer(t *testing.T) {
	out, err := NewRenderer(40)("# Heading\n\nSome **bold** text.")
	require.NoError(t, err)
	assert.Contains(t, out, "Heading")
	assert.Contains(t, out, "bold")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
	assert.GreaterOrEqual(t, strings.Count(buf.String(), "\n"), 6)
}

func TestWidthFallback(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
	assert.Equal(t, 80, Width(f, 80))
}
