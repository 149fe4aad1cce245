package memstore

import (
	"sort"
)

type row[T any] struct {
	value   T
	version uint64
	seq     uint64
}

// table holds committed rows. Access is guarded by Store.mu.
type table[T any] struct {
	rows    map[string]row[T]
	inserts uint64
	clone   func(T) T
}

func newTable[T any](clone func(T) T) *table[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &table[T]{rows: make(map[string]row[T]), clone: clone}
}

type observed[T any] struct {
	value   T
	version uint64
	seq     uint64
	exists  bool
}

// txTable is the per-transaction view of one table: a read set of observed
// versions plus buffered writes.
type txTable[T any] struct {
	tx          *txn
	table       *table[T]
	seen        map[string]observed[T]
	writes      map[string]T
	inserted    []string
	scanned     bool
	scanInserts uint64
}

func newTxTable[T any](tx *txn, t *table[T]) *txTable[T] {
	return &txTable[T]{
		tx:     tx,
		table:  t,
		seen:   make(map[string]observed[T]),
		writes: make(map[string]T),
	}
}

func (tt *txTable[T]) get(id string) (T, bool) {
	if v, ok := tt.writes[id]; ok {
		return tt.table.clone(v), true
	}
	if o, ok := tt.seen[id]; ok {
		return tt.table.clone(o.value), o.exists
	}

	tt.tx.store.mu.Lock()
	r, ok := tt.table.rows[id]
	tt.tx.store.mu.Unlock()

	tt.seen[id] = observed[T]{value: r.value, version: r.version, seq: r.seq, exists: ok}
	return tt.table.clone(r.value), ok
}

func (tt *txTable[T]) insert(id string, v T) error {
	if tt.tx.readOnly {
		return errReadOnly
	}
	if _, exists := tt.get(id); exists {
		return errDuplicate(id)
	}
	tt.writes[id] = tt.table.clone(v)
	tt.inserted = append(tt.inserted, id)
	return nil
}

func (tt *txTable[T]) update(id string, v T) error {
	if tt.tx.readOnly {
		return errReadOnly
	}
	if _, exists := tt.get(id); !exists {
		return errNotFound
	}
	tt.writes[id] = tt.table.clone(v)
	return nil
}

// scan returns every visible row accepted by match, in insertion order.
func (tt *txTable[T]) scan(match func(*T) bool) []T {
	tt.tx.store.mu.Lock()
	if !tt.scanned {
		tt.scanned = true
		tt.scanInserts = tt.table.inserts
	}
	for id, r := range tt.table.rows {
		if _, ok := tt.seen[id]; !ok {
			tt.seen[id] = observed[T]{value: r.value, version: r.version, seq: r.seq, exists: true}
		}
	}
	tt.tx.store.mu.Unlock()

	type candidate struct {
		seq   uint64
		value T
	}
	var candidates []candidate
	for id, o := range tt.seen {
		if !o.exists {
			continue
		}
		value := o.value
		if w, ok := tt.writes[id]; ok {
			value = w
		}
		candidates = append(candidates, candidate{seq: o.seq, value: value})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].seq < candidates[j].seq })

	result := make([]T, 0, len(candidates)+len(tt.inserted))
	for _, c := range candidates {
		v := tt.table.clone(c.value)
		if match == nil || match(&v) {
			result = append(result, v)
		}
	}
	for _, id := range tt.inserted {
		v := tt.table.clone(tt.writes[id])
		if match == nil || match(&v) {
			result = append(result, v)
		}
	}
	return result
}

// validate reports whether everything read is still current. Caller holds Store.mu.
func (tt *txTable[T]) validate() bool {
	for id, o := range tt.seen {
		cur, ok := tt.table.rows[id]
		if ok != o.exists {
			return false
		}
		if ok && cur.version != o.version {
			return false
		}
	}
	return !tt.scanned || tt.table.inserts == tt.scanInserts
}

// apply publishes buffered writes. Caller holds Store.mu.
func (tt *txTable[T]) apply(next func() uint64) {
	inserted := make(map[string]bool, len(tt.inserted))
	for _, id := range tt.inserted {
		inserted[id] = true
		version := next()
		tt.table.rows[id] = row[T]{value: tt.writes[id], version: version, seq: version}
		tt.table.inserts++
	}
	for id, v := range tt.writes {
		if inserted[id] {
			continue
		}
		r := tt.table.rows[id]
		r.value = v
		r.version = next()
		tt.table.rows[id] = r
	}
}

func (tt *txTable[T]) dirty() bool {
	return len(tt.writes) > 0
}
