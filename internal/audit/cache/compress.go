package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"
)

// Compression algorithms for externally stored cache payloads.
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionLZ4    = "lz4"
)

// compressionMinSize skips compression for payloads too small to benefit.
const compressionMinSize = 512

// ErrDecompression is returned when cache decompression fails.
// Use errors.Is(err, ErrDecompression) to check for decompression errors.
var ErrDecompression = errors.New("decompression failed")

// Stored payloads carry a one-byte algorithm marker so readers need no
// out-of-band metadata.
const (
	markerNone   byte = 0x00
	markerSnappy byte = 0x01
	markerLZ4    byte = 0x02
)

// Compress encodes content with the given algorithm and prefixes the marker
// byte. Small payloads and unknown algorithms are stored uncompressed.
func Compress(content []byte, algorithm string) ([]byte, error) {
	if len(content) < compressionMinSize || algorithm == CompressionNone || algorithm == "" {
		return append([]byte{markerNone}, content...), nil
	}

	switch algorithm {
	case CompressionSnappy:
		compressed := snappy.Encode(nil, content)
		return append([]byte{markerSnappy}, compressed...), nil

	case CompressionLZ4:
		// Use the LZ4 stream format which embeds size information.
		var buf bytes.Buffer
		buf.WriteByte(markerLZ4)
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			w.Close()
			return nil, fmt.Errorf("lz4 compression failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compression close failed: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return append([]byte{markerNone}, content...), nil
	}
}

// Decompress decodes a marker-prefixed payload produced by Compress.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecompression)
	}

	marker, content := data[0], data[1:]
	switch marker {
	case markerNone:
		return content, nil

	case markerSnappy:
		decompressed, err := snappy.Decode(nil, content)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrDecompression, err)
		}
		return decompressed, nil

	case markerLZ4:
		r := lz4.NewReader(bytes.NewReader(content))
		decompressed, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrDecompression, err)
		}
		return decompressed, nil

	default:
		return nil, fmt.Errorf("%w: unknown marker 0x%02x", ErrDecompression, marker)
	}
}
