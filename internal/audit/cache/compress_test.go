package cache

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"id":"http","status":"pass"},`, 100))

	for _, algorithm := range []string{CompressionNone, CompressionSnappy, CompressionLZ4} {
		t.Run(algorithm, func(t *testing.T) {
			compressed, err := Compress(payload, algorithm)
			require.NoError(t, err)

			decompressed, err := Decompress(compressed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(payload, decompressed))
		})
	}
}

func TestCompressSkipsSmallPayloads(t *testing.T) {
	payload := []byte("tiny")

	compressed, err := Compress(payload, CompressionSnappy)
	require.NoError(t, err)
	assert.Equal(t, markerNone, compressed[0])

	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, decompressed)
}

func TestCompressActuallyShrinks(t *testing.T) {
	payload := []byte(strings.Repeat("abcdefgh", 1000))

	compressed, err := Compress(payload, CompressionSnappy)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(payload))
}

func TestCompressUnknownAlgorithmStoresRaw(t *testing.T) {
	payload := []byte(strings.Repeat("x", 2048))

	compressed, err := Compress(payload, "zstd")
	require.NoError(t, err)
	assert.Equal(t, markerNone, compressed[0])
}

func TestDecompressRejectsGarbage(t *testing.T) {
	_, err := Decompress(nil)
	assert.True(t, errors.Is(err, ErrDecompression))

	_, err = Decompress([]byte{0x7f, 1, 2, 3})
	assert.True(t, errors.Is(err, ErrDecompression))

	_, err = Decompress([]byte{markerSnappy, 0xff, 0xff})
	assert.True(t, errors.Is(err, ErrDecompression))
}
