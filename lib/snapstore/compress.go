// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package snapstore

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the algorithm a stored blob was
// compressed with. The value is stored in the blobs table, so the
// numeric assignments are database format constants.
type CompressionTag uint8

const (
	// CompressionNone stores the state bytes as-is. Chosen when the
	// probe finds nothing worth compressing, which for YAML state
	// documents only happens when they are tiny.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is LZ4 block compression. Chosen when the data
	// compresses, but not well enough to spend zstd cycles on.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at the default level. The common case
	// for snapshot state, which is repetitive YAML.
	CompressionZstd CompressionTag = 2
)

// String returns the name of the tag as stored in listings.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a tag name.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// zstdEncoder and zstdDecoder are shared across all stores in the
// process. Both are safe for concurrent use.
var (
	zstdEncoder = mustZstdWriter()
	zstdDecoder = mustZstdReader()
)

func mustZstdWriter() *zstd.Encoder {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapstore: zstd writer: " + err.Error())
	}
	return encoder
}

func mustZstdReader() *zstd.Decoder {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		panic("snapstore: zstd reader: " + err.Error())
	}
	return decoder
}

// compressBlob picks an algorithm by probing the data and compresses
// with it. If nothing beats the raw size the data comes back
// unchanged under CompressionNone.
func compressBlob(data []byte) ([]byte, CompressionTag) {
	if len(data) == 0 {
		return data, CompressionNone
	}

	// Probe with zstd and let the ratio decide. A strong ratio keeps
	// the zstd output; a marginal one redoes the work with LZ4 for
	// cheaper decompression on every later read.
	probed := zstdEncoder.EncodeAll(data, nil)
	ratio := float64(len(data)) / float64(len(probed))

	switch {
	case ratio >= 1.5:
		return probed, CompressionZstd

	case ratio >= 1.1:
		bound := lz4.CompressBlockBound(len(data))
		destination := make([]byte, bound)
		written, err := lz4.CompressBlock(data, destination, nil)
		// CompressBlock returns 0 for incompressible input. The zstd
		// probe said the data compresses, but LZ4 may still fail to
		// beat the raw size.
		if err != nil || written == 0 || written >= len(data) {
			return data, CompressionNone
		}
		return destination[:written], CompressionLZ4

	default:
		return data, CompressionNone
	}
}

// decompressBlob reverses compressBlob. The uncompressed size comes
// from the blobs table and must match the decoded length exactly.
func decompressBlob(data []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(data) != uncompressedSize {
			return nil, fmt.Errorf("raw blob is %d bytes, recorded size %d", len(data), uncompressedSize)
		}
		return data, nil

	case CompressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(data, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, recorded size %d", read, uncompressedSize)
		}
		return destination, nil

	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(data, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, recorded size %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}
