package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrintTerminals(t *testing.T) {
	var buf bytes.Buffer
	printTerminals(&buf, "abcd", nil)
	require.Equal(t, "No terminals registered for abcd\n", buf.String())

	buf.Reset()
	printTerminals(&buf, "abcd", []string{"1461173", "1461174"})
	require.Contains(t, buf.String(), "abcd         0          1461173\n")
	require.Contains(t, buf.String(), "abcd         1          1461174\n")
}
