package blockstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store implementation for testing.
// Blocks that were never written read as zeros.
// Thread-safe for concurrent reads and writes.
type MemoryStore struct {
	mu        sync.RWMutex
	blockSize int
	numBlocks uint64
	blocks    map[BlockID][]byte
	closed    bool
}

// NewMemoryStore creates an in-memory store. numBlocks bounds the
// addressable range; 0 means unbounded.
func NewMemoryStore(blockSize int, numBlocks uint64) *MemoryStore {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &MemoryStore{
		blockSize: blockSize,
		numBlocks: numBlocks,
		blocks:    make(map[BlockID][]byte),
	}
}

// BlockSize implements Store.
func (m *MemoryStore) BlockSize() int { return m.blockSize }

// NumBlocks implements Bounded. Zero means unbounded.
func (m *MemoryStore) NumBlocks() uint64 { return m.numBlocks }

// ReadBlock implements Store.
func (m *MemoryStore) ReadBlock(ctx context.Context, id BlockID, p []byte) error {
	if err := m.check(ctx, id, p); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	if data, ok := m.blocks[id]; ok {
		copy(p, data)
	} else {
		clear(p)
	}
	return nil
}

// WriteBlock implements Store.
func (m *MemoryStore) WriteBlock(ctx context.Context, id BlockID, p []byte) error {
	if err := m.check(ctx, id, p); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	// Copy to prevent external mutation
	data, ok := m.blocks[id]
	if !ok {
		data = make([]byte, m.blockSize)
		m.blocks[id] = data
	}
	copy(data, p)
	return nil
}

// Block returns a copy of the stored contents of id, or nil if it was never
// written.
func (m *MemoryStore) Block(id BlockID) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blocks[id]
	if !ok {
		return nil
	}
	return append([]byte(nil), data...)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryStore) check(ctx context.Context, id BlockID, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkBlock(p, m.blockSize); err != nil {
		return err
	}
	return checkRange(id, m.numBlocks)
}
