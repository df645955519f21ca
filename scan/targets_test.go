package scan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargets(t *testing.T) {
	input := `
# office
10.0.0.1
  192.168.0.0/30

2001:db8::1
`
	targets, err := ParseTargets(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, Targets{"10.0.0.1", "192.168.0.0/30", "2001:db8::1"}, targets)
	assert.Equal(t, uint64(6), targets.Addresses())
	assert.Equal(t, "10.0.0.1\n192.168.0.0/30\n2001:db8::1\n", string(targets.Bytes()))
}

func TestParseTargetsAcceptsRanges(t *testing.T) {
	targets, err := ParseTargets(strings.NewReader("10.0.0.1-10.0.0.10\n192.168.0.0/31\n"))
	require.NoError(t, err)

	assert.Equal(t, Targets{"10.0.0.1-10.0.0.10", "192.168.0.0/31"}, targets)
	assert.Equal(t, uint64(12), targets.Addresses())
	assert.Equal(t, "10.0.0.1-10.0.0.10\n192.168.0.0/31\n", string(targets.Bytes()))
}

func TestParseTargetsRejectsGarbage(t *testing.T) {
	_, err := ParseTargets(strings.NewReader("10.0.0.1\nnot-an-ip\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseTargetsEmpty(t *testing.T) {
	targets, err := ParseTargets(strings.NewReader("\n# nothing\n"))
	require.NoError(t, err)
	assert.Empty(t, targets)
	assert.Empty(t, targets.Bytes())
}
