package vkcompute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeString(t *testing.T) {
	assert.Equal(t, "\x00", safeString(""))
	assert.Equal(t, "main\x00", safeString("main"))
	assert.Equal(t, "main\x00", safeString("main\x00"), "already terminated strings pass through")
}

func TestSliceUint32(t *testing.T) {
	data := []byte{
		0x03, 0x02, 0x23, 0x07, // SPIR-V magic, little endian
		0x78, 0x56, 0x34, 0x12,
	}
	words := sliceUint32(data)
	require.Len(t, words, 2)
	assert.Equal(t, uint32(0x07230203), words[0])
	assert.Equal(t, uint32(0x12345678), words[1])
}
