package blockstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects how blocks are encoded at rest by object-backed stores.
type Codec uint8

const (
	// CodecNone stores blocks verbatim behind the header.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression (fast, good for hot data).
	CodecLZ4 Codec = 1
	// CodecZSTD uses ZSTD (better ratio, good for cold data).
	CodecZSTD Codec = 2
)

// ErrCorruptBlock is returned when an encoded block cannot be decoded.
var ErrCorruptBlock = errors.New("corrupt encoded block")

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps "none", "lz4" or "zstd" to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZSTD, nil
	}
	return CodecNone, fmt.Errorf("unknown codec %q", s)
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encoded block format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means Data is stored uncompressed.
const blockHeaderSize = 8

// Encode returns the at-rest form of a block.
func (c Codec) Encode(data []byte) ([]byte, error) {
	var compressed []byte

	switch c {
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case CodecZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	case CodecNone:
	default:
		return nil, fmt.Errorf("unknown codec %d", uint8(c))
	}

	// Incompressible data (n == 0 for LZ4) or poor ratio: keep it raw.
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

// Decode reverses Encode into p, which must be exactly the uncompressed size.
func (c Codec) Decode(encoded, p []byte) error {
	if len(encoded) < blockHeaderSize {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptBlock, len(encoded))
	}
	size := binary.LittleEndian.Uint32(encoded[0:])
	csize := binary.LittleEndian.Uint32(encoded[4:])
	if int(size) != len(p) {
		return fmt.Errorf("%w: holds %d bytes, want %d", ErrCorruptBlock, size, len(p))
	}

	body := encoded[blockHeaderSize:]
	if csize == 0 {
		if len(body) < int(size) {
			return fmt.Errorf("%w: truncated raw block", ErrCorruptBlock)
		}
		copy(p, body[:size])
		return nil
	}
	if len(body) < int(csize) {
		return fmt.Errorf("%w: truncated compressed block", ErrCorruptBlock)
	}
	body = body[:csize]

	switch c {
	case CodecLZ4:
		n, err := lz4.UncompressBlock(body, p)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}
		if n != len(p) {
			return fmt.Errorf("%w: decompressed size mismatch", ErrCorruptBlock)
		}
	case CodecZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, p[:0])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}
		if len(out) != len(p) {
			return fmt.Errorf("%w: decompressed size mismatch", ErrCorruptBlock)
		}
	default:
		return fmt.Errorf("%w: compressed block under codec %s", ErrCorruptBlock, c)
	}
	return nil
}

// ObjectKey is the object name used for a block by object-backed stores.
func ObjectKey(id BlockID) string {
	return fmt.Sprintf("%016x.blk", id)
}
