package blockstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInjected is the error returned by FaultyStore for failing blocks.
var ErrInjected = errors.New("injected store fault")

// FaultyStore wraps a Store and fails or delays selected operations.
type FaultyStore struct {
	Store

	mu         sync.Mutex
	failReads  map[BlockID]bool
	failWrites map[BlockID]bool
	failAll    bool
	delay      time.Duration
}

// NewFaultyStore wraps inner with no faults configured.
func NewFaultyStore(inner Store) *FaultyStore {
	return &FaultyStore{
		Store:      inner,
		failReads:  make(map[BlockID]bool),
		failWrites: make(map[BlockID]bool),
	}
}

// FailReads makes ReadBlock fail for the given ids.
func (f *FaultyStore) FailReads(ids ...BlockID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.failReads[id] = true
	}
}

// FailWrites makes WriteBlock fail for the given ids.
func (f *FaultyStore) FailWrites(ids ...BlockID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.failWrites[id] = true
	}
}

// FailAll makes every operation fail until Heal is called.
func (f *FaultyStore) FailAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = true
}

// Heal removes all configured faults.
func (f *FaultyStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.failReads)
	clear(f.failWrites)
	f.failAll = false
}

// NumBlocks implements Bounded by delegating to the wrapped store.
func (f *FaultyStore) NumBlocks() uint64 { return NumBlocks(f.Store) }

// SetDelay adds a fixed latency to every operation.
func (f *FaultyStore) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// ReadBlock implements Store.
func (f *FaultyStore) ReadBlock(ctx context.Context, id BlockID, p []byte) error {
	fail, delay := f.fault(f.failReads, id)
	if err := sleep(ctx, delay); err != nil {
		return err
	}
	if fail {
		return ErrInjected
	}
	return f.Store.ReadBlock(ctx, id, p)
}

// WriteBlock implements Store.
func (f *FaultyStore) WriteBlock(ctx context.Context, id BlockID, p []byte) error {
	fail, delay := f.fault(f.failWrites, id)
	if err := sleep(ctx, delay); err != nil {
		return err
	}
	if fail {
		return ErrInjected
	}
	return f.Store.WriteBlock(ctx, id, p)
}

func (f *FaultyStore) fault(set map[BlockID]bool, id BlockID) (bool, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failAll || set[id], f.delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
