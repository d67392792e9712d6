package table

// SelectVictim returns the least recently used entry that has no store write
// in flight.
//
// Every insert and touch takes a fresh tick of the logical clock, so no two
// entries share a LastAccess and the back of the recency list is the unique
// minimum. Ties, were the clock ever coarsened, resolve to the earlier insert
// because PushFront places later inserts ahead of it.
func (t *Table) SelectVictim() (*Entry, error) {
	if len(t.items) == 0 {
		return nil, ErrEmptyTable
	}

	for el := t.order.Back(); el != nil; el = el.Prev() {
		if e := el.Value.(*Entry); !e.Busy {
			return e, nil
		}
	}
	return nil, ErrNoVictim
}
