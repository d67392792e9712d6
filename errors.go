package blockcache

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/blockcache/blockstore"
	"github.com/hupe1980/blockcache/internal/table"
)

var (
	// ErrStoreReadFailed wraps backing-store failures on the read path.
	ErrStoreReadFailed = errors.New("store read failed")
	// ErrStoreWriteFailed wraps backing-store failures while writing back.
	ErrStoreWriteFailed = errors.New("store write failed")
	// ErrFlushFailed is returned when a dirty entry could not be written back
	// during eviction or flush. The entry stays resident and dirty.
	ErrFlushFailed = errors.New("flush failed")
	// ErrInvalidBlockSize is returned when a payload is not exactly one block.
	ErrInvalidBlockSize = errors.New("payload length does not match block size")
	// ErrNilStore is returned by New without a backing store.
	ErrNilStore = errors.New("backing store is nil")
	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("cache closed")
	// ErrOutOfRange is returned for block ids beyond a bounded store.
	ErrOutOfRange = blockstore.ErrOutOfRange

	// ErrInvalidCapacity is returned by New when capacity < 1.
	ErrInvalidCapacity = table.ErrInvalidCapacity
	// ErrCapacityExceeded signals an insert into a full table. The cache
	// always evicts first, so seeing it indicates a bug.
	ErrCapacityExceeded = table.ErrCapacityExceeded
	// ErrAlreadyPresent signals a duplicate insert. Seeing it indicates a bug.
	ErrAlreadyPresent = table.ErrAlreadyPresent
	// ErrNotFound is returned when a block assumed resident is not.
	ErrNotFound = table.ErrNotFound
	// ErrEmptyTable is returned when eviction is attempted with no entries.
	ErrEmptyTable = table.ErrEmptyTable
)

// PartialFlushError reports the blocks FlushAll could not persist.
// Every other dirty block was written and is now clean; the failed ones
// remain resident and dirty so the caller can retry.
//
// It matches ErrFlushFailed and ErrStoreWriteFailed with errors.Is, and the
// per-block causes can be reached via errors.Unwrap.
type PartialFlushError struct {
	// Failed lists the block ids in ascending order.
	Failed []BlockID
	// Errs maps each failed block to its store error.
	Errs map[BlockID]error
}

func newPartialFlushError(errs map[BlockID]error) *PartialFlushError {
	ids := make([]BlockID, 0, len(errs))
	for id := range errs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return &PartialFlushError{Failed: ids, Errs: errs}
}

func (e *PartialFlushError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d block(s) not persisted: ", ErrFlushFailed, len(e.Failed))
	for i, id := range e.Failed {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d (%v)", id, e.Errs[id])
	}
	return b.String()
}

// Is reports whether target is ErrFlushFailed or ErrStoreWriteFailed.
func (e *PartialFlushError) Is(target error) bool {
	return target == ErrFlushFailed || target == ErrStoreWriteFailed
}

func (e *PartialFlushError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, id := range e.Failed {
		errs = append(errs, e.Errs[id])
	}
	return errs
}

func readError(id BlockID, err error) error {
	return fmt.Errorf("%w: block %d: %w", ErrStoreReadFailed, id, err)
}

func writeBackError(id BlockID, err error) error {
	return fmt.Errorf("%w: %w: block %d: %w", ErrFlushFailed, ErrStoreWriteFailed, id, err)
}
