package binread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGUID(t *testing.T) {
	// On-disk bytes of the BAT region GUID 2DC27766-F623-4200-9D64-115E9BFD4A08.
	raw := []byte{
		0x66, 0x77, 0xC2, 0x2D, 0x23, 0xF6, 0x00, 0x42,
		0x9D, 0x64, 0x11, 0x5E, 0x9B, 0xFD, 0x4A, 0x08,
	}
	assert.Equal(t, "2dc27766-f623-4200-9d64-115e9bfd4a08", GUID(raw, 0).String())
}

func TestGUIDAtOffset(t *testing.T) {
	raw := make([]byte, 24)
	copy(raw[8:], []byte{
		0x06, 0xA2, 0x7C, 0x8B, 0x90, 0x47, 0x9A, 0x4B,
		0xB8, 0xFE, 0x57, 0x5F, 0x05, 0x0F, 0x88, 0x6E,
	})
	assert.Equal(t, "8b7ca206-4790-4b9a-b8fe-575f050f886e", GUID(raw, 8).String())
}

func TestUTF16String(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{
			name: "padded creator",
			data: []byte{'g', 0, 'o', 0, '-', 0, 'v', 0, 'h', 0, 'd', 0, 'x', 0, 0, 0, 0, 0},
			want: "go-vhdx",
		},
		{
			name: "empty field",
			data: make([]byte, 8),
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UTF16String(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntegers(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}
	assert.Equal(t, uint16(0x0302), U16(data, 1))
	assert.Equal(t, uint32(0x04030201), U32(data, 0))
	assert.Equal(t, uint64(0x0908070605040302), U64(data, 1))
}
