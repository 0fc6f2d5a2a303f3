package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramerSplitsLines(t *testing.T) {
	f := NewFramer()

	lines := f.Feed([]byte("t1\r\nss10ABC123000101PP00\r\n"))
	require.Len(t, lines, 2)
	assert.Equal(t, "t1", lines[0])
	assert.Equal(t, "ss10ABC123000101PP00", lines[1])
}

func TestFramerCarriesPartialLines(t *testing.T) {
	f := NewFramer()

	assert.Nil(t, f.Feed([]byte("RFTU_V20 F:2018")))
	assert.Positive(t, f.Pending())

	lines := f.Feed([]byte("0510_DFBD B:1\r\nt"))
	require.Len(t, lines, 1)
	assert.Equal(t, "RFTU_V20 F:20180510_DFBD B:1", lines[0])

	lines = f.Feed([]byte("E\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, "tE", lines[0])
	assert.Zero(t, f.Pending())
}

func TestFramerDropsEmptyLines(t *testing.T) {
	f := NewFramer()

	lines := f.Feed([]byte("\r\n\r\nt0\r\n\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, "t0", lines[0])
}

func TestFramerByteAtATime(t *testing.T) {
	f := NewFramer()

	var lines []string
	for _, b := range []byte("sr5D3E7C\r\n") {
		lines = append(lines, f.Feed([]byte{b})...)
	}
	require.Len(t, lines, 1)
	assert.Equal(t, "sr5D3E7C", lines[0])
}
