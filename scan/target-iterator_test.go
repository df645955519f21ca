package scan

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestIteration(t *testing.T) {
	ti := NewTargetIterator("192.168.1.1/24")

	ip, err := ti.Peek()
	require.Nil(t, err)

	assert.Equal(t, ip.String(), "192.168.1.0")

	for i := 0; i < 256; i++ {

		ip, err := ti.Peek()
		require.Nil(t, err)
		assert.Equal(t, ip.String(), fmt.Sprintf("192.168.1.%d", i))

		ip, err = ti.next()
		require.Nil(t, err)
		assert.Equal(t, ip.String(), fmt.Sprintf("192.168.1.%d", i))
	}

	_, err = ti.next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, uint64(256), ti.Size())
}

func TestSingleAddressIteration(t *testing.T) {
	ti := NewTargetIterator(" 10.0.0.7 ")

	ip, err := ti.next()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", ip.String())

	_, err = ti.next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, uint64(1), ti.Size())
}

func TestLastAddressDoesNotWrap(t *testing.T) {
	ti := NewTargetIterator("255.255.255.254/31")

	for _, want := range []string{"255.255.255.254", "255.255.255.255"} {
		ip, err := ti.next()
		require.NoError(t, err)
		assert.Equal(t, want, ip.String())
	}

	_, err := ti.next()
	assert.Equal(t, io.EOF, err)
}

func TestHostnameTargetRejected(t *testing.T) {
	ti := NewTargetIterator("example.com")

	_, err := ti.Peek()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "example.com")
	assert.Equal(t, uint64(0), ti.Size())
}

func TestRangeIteration(t *testing.T) {
	ti := NewTargetIterator("10.0.0.254-10.0.1.1")
	assert.Equal(t, uint64(4), ti.Size())

	for _, want := range []string{"10.0.0.254", "10.0.0.255", "10.0.1.0", "10.0.1.1"} {
		ip, err := ti.next()
		require.NoError(t, err)
		assert.Equal(t, want, ip.String())
	}

	_, err := ti.next()
	assert.Equal(t, io.EOF, err)
}

func TestRangeEndingAtLastAddress(t *testing.T) {
	ti := NewTargetIterator("255.255.255.255-255.255.255.255")
	assert.Equal(t, uint64(1), ti.Size())

	ip, err := ti.next()
	require.NoError(t, err)
	assert.Equal(t, "255.255.255.255", ip.String())

	_, err = ti.next()
	assert.Equal(t, io.EOF, err)
}

func TestFullRangeSize(t *testing.T) {
	assert.Equal(t, uint64(1)<<32, NewTargetIterator("0.0.0.0-255.255.255.255").Size())
}

func TestInvalidRangesRejected(t *testing.T) {
	for _, target := range []string{
		"10.0.0.9-10.0.0.1",
		"10.0.0.1-",
		"10.0.0.1-example.com",
		"2001:db8::1-2001:db8::9",
	} {
		ti := NewTargetIterator(target)
		_, err := ti.Peek()
		assert.Error(t, err, target)
		assert.Equal(t, uint64(0), ti.Size(), target)
	}
}
