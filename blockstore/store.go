package blockstore

import (
	"context"
	"errors"
	"fmt"
)

// DefaultBlockSize is the block size used when none is configured.
const DefaultBlockSize = 4096

var (
	// ErrOutOfRange is returned for a block id beyond the end of the store.
	ErrOutOfRange = errors.New("block id out of range")
	// ErrInvalidBlockSize is returned when a buffer is not exactly one block.
	ErrInvalidBlockSize = errors.New("buffer length does not match block size")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// BlockID identifies a block by its position in the store.
type BlockID = uint64

// Store is a block-addressed backing store.
type Store interface {
	// BlockSize returns the fixed size of every block in bytes.
	BlockSize() int
	// ReadBlock fills p (len(p) == BlockSize()) with the contents of block id.
	ReadBlock(ctx context.Context, id BlockID, p []byte) error
	// WriteBlock stores p (len(p) == BlockSize()) as block id.
	WriteBlock(ctx context.Context, id BlockID, p []byte) error
	// Close releases the store.
	Close() error
}

// Bounded is implemented by stores with a fixed number of blocks.
type Bounded interface {
	// NumBlocks returns the number of addressable blocks, or 0 if unbounded.
	NumBlocks() uint64
}

// NumBlocks returns the number of addressable blocks of s, or 0 when s is
// unbounded or does not implement Bounded.
func NumBlocks(s Store) uint64 {
	if b, ok := s.(Bounded); ok {
		return b.NumBlocks()
	}
	return 0
}

// Syncer is implemented by stores that buffer writes and can force them to
// stable storage.
type Syncer interface {
	Sync() error
}

func checkBlock(p []byte, blockSize int) error {
	if len(p) != blockSize {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidBlockSize, len(p), blockSize)
	}
	return nil
}

func checkRange(id BlockID, numBlocks uint64) error {
	if numBlocks > 0 && id >= numBlocks {
		return fmt.Errorf("%w: block %d, store has %d blocks", ErrOutOfRange, id, numBlocks)
	}
	return nil
}
