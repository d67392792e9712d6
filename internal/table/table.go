package table

import (
	"container/list"
	"errors"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

var (
	// ErrInvalidCapacity is returned when a table is created with capacity < 1.
	ErrInvalidCapacity = errors.New("capacity must be at least 1")
	// ErrCapacityExceeded is returned by Insert when the table is full.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrAlreadyPresent is returned by Insert when the block is already resident.
	ErrAlreadyPresent = errors.New("block already present")
	// ErrNotFound is returned when a block that was assumed resident is missing.
	ErrNotFound = errors.New("block not found")
	// ErrEmptyTable is returned by SelectVictim on a table with no entries.
	ErrEmptyTable = errors.New("table is empty")
	// ErrNoVictim is returned by SelectVictim when every entry has a store
	// write in flight.
	ErrNoVictim = errors.New("no evictable entry")
)

// BlockID identifies a block by its position in the backing store.
type BlockID = uint64

// Entry is one resident block.
type Entry struct {
	ID   BlockID
	Data []byte

	// LastAccess is the logical time of the most recent insert, hit or write.
	LastAccess uint64

	// Version is bumped on every mutation of Data. Store writes performed
	// outside the cache lock compare it on completion.
	Version uint64

	// Busy is set while a store write of this entry is in flight.
	Busy bool

	dirty bool
	elem  *list.Element
}

// Dirty reports whether Data has unpersisted modifications.
func (e *Entry) Dirty() bool { return e.dirty }

// Table is a bounded set of resident blocks ordered by recency.
//
// Table is not safe for concurrent use; the owner serializes access.
type Table struct {
	capacity int
	clock    uint64

	items map[BlockID]*Entry
	// order holds entries from most (front) to least (back) recently used.
	// Because the clock is strictly increasing, the back always carries the
	// minimum LastAccess.
	order *list.List
	dirty *roaring64.Bitmap
}

// New creates a table that holds at most capacity entries.
func New(capacity int) (*Table, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &Table{
		capacity: capacity,
		items:    make(map[BlockID]*Entry, capacity),
		order:    list.New(),
		dirty:    roaring64.New(),
	}, nil
}

// Capacity returns the maximum number of entries.
func (t *Table) Capacity() int { return t.capacity }

// Len returns the number of resident entries.
func (t *Table) Len() int { return len(t.items) }

// Full reports whether Len() == Capacity().
func (t *Table) Full() bool { return len(t.items) >= t.capacity }

// Lookup returns the entry for id, if resident. It does not update recency.
func (t *Table) Lookup(id BlockID) (*Entry, bool) {
	e, ok := t.items[id]
	return e, ok
}

// Insert adds a new entry and takes ownership of data.
func (t *Table) Insert(id BlockID, data []byte, dirty bool) (*Entry, error) {
	if _, ok := t.items[id]; ok {
		return nil, ErrAlreadyPresent
	}
	if t.Full() {
		return nil, ErrCapacityExceeded
	}

	t.clock++
	e := &Entry{
		ID:         id,
		Data:       data,
		LastAccess: t.clock,
	}
	e.elem = t.order.PushFront(e)
	t.items[id] = e
	if dirty {
		t.MarkDirty(e)
	}
	return e, nil
}

// Remove deletes the entry for id and returns it.
func (t *Table) Remove(id BlockID) (*Entry, error) {
	e, ok := t.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	t.order.Remove(e.elem)
	e.elem = nil
	delete(t.items, id)
	t.dirty.Remove(id)
	return e, nil
}

// Touch records an access to id at the current logical time.
func (t *Table) Touch(id BlockID) error {
	e, ok := t.items[id]
	if !ok {
		return ErrNotFound
	}
	t.clock++
	e.LastAccess = t.clock
	t.order.MoveToFront(e.elem)
	return nil
}

// MarkDirty flags e as holding unpersisted data.
func (t *Table) MarkDirty(e *Entry) {
	e.dirty = true
	t.dirty.Add(e.ID)
}

// MarkClean flags e as matching the backing store.
func (t *Table) MarkClean(e *Entry) {
	e.dirty = false
	t.dirty.Remove(e.ID)
}

// DirtyLen returns the number of dirty entries.
func (t *Table) DirtyLen() int {
	return int(t.dirty.GetCardinality())
}

// DirtyIDs returns the ids of all dirty entries in ascending order.
func (t *Table) DirtyIDs() []BlockID {
	return t.dirty.ToArray()
}

// Each calls fn for every entry from most to least recently used until fn
// returns false.
func (t *Table) Each(fn func(e *Entry) bool) {
	for el := t.order.Front(); el != nil; el = el.Next() {
		if !fn(el.Value.(*Entry)) {
			return
		}
	}
}
