package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "ohm", "v1.2.0", ColorBlue)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Greater(t, len(lines), 1)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, string(ColorBlue)))
		assert.True(t, strings.HasSuffix(line, string(ColorReset)))
	}
	assert.Contains(t, lines[len(lines)-1], "v1.2.0")
}
