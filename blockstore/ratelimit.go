package blockstore

import (
	"context"

	"github.com/hupe1980/blockcache/resource"
)

// RateLimitedStore charges every block transfer against the IO budget of a
// resource.Controller before delegating.
type RateLimitedStore struct {
	Store
	rc *resource.Controller
}

// NewRateLimitedStore wraps inner. A nil controller imposes no limit.
func NewRateLimitedStore(inner Store, rc *resource.Controller) *RateLimitedStore {
	return &RateLimitedStore{Store: inner, rc: rc}
}

// NumBlocks implements Bounded by delegating to the wrapped store.
func (s *RateLimitedStore) NumBlocks() uint64 { return NumBlocks(s.Store) }

// ReadBlock implements Store.
func (s *RateLimitedStore) ReadBlock(ctx context.Context, id BlockID, p []byte) error {
	if err := s.rc.AcquireIO(ctx, len(p)); err != nil {
		return err
	}
	return s.Store.ReadBlock(ctx, id, p)
}

// WriteBlock implements Store.
func (s *RateLimitedStore) WriteBlock(ctx context.Context, id BlockID, p []byte) error {
	if err := s.rc.AcquireIO(ctx, len(p)); err != nil {
		return err
	}
	return s.Store.WriteBlock(ctx, id, p)
}
