package table

import (
	"fmt"

	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
)

// GroupIndex is a non-unique secondary index over one plain column of a
// table, mapping each key value to the row ids carrying it.
//
// The index is lazy: it rebuilds on the first Lookup after construction,
// after Invalidate, or after any table mutation. Buckets preserve insertion
// order, so Lookup returns row ids exactly as a linear scan would.
type GroupIndex struct {
	table        *Table
	keyColumn    string
	buckets      map[Value][]uint64
	dirty        bool
	builtVersion uint64
}

// BuildIndex creates a group index over the given key column.
//
// The column must exist and be plain; the actual bucket scan is deferred to
// the first Lookup. Building is O(n) in the table row count.
func BuildIndex(t *Table, keyColumn string) (*GroupIndex, error) {
	slot, ok := t.cols[keyColumn]
	if !ok {
		return nil, fmt.Errorf("key column %q: %w", keyColumn, errs.ErrUnknownColumn)
	}
	if slot.kind != format.KindPlain {
		return nil, fmt.Errorf("key column %q is %s, group keys must be plain: %w",
			keyColumn, slot.kind, errs.ErrTypeMismatch)
	}

	return &GroupIndex{
		table:     t,
		keyColumn: keyColumn,
		dirty:     true,
	}, nil
}

// KeyColumn returns the indexed column name.
func (g *GroupIndex) KeyColumn() string { return g.keyColumn }

// Lookup returns the row ids whose key column equals key, in insertion
// order. An absent key yields an empty slice, never an error.
//
// A stale index (explicit Invalidate or any table mutation since the last
// build) triggers a full rebuild before the lookup.
func (g *GroupIndex) Lookup(key Value) []uint64 {
	if g.dirty || g.builtVersion != g.table.version {
		g.rebuild()
	}

	col := g.table.cols[g.keyColumn].plain
	nk, _, err := col.normalize(key)
	if err != nil {
		// A key that cannot exist in the column matches no rows.
		return []uint64{}
	}

	ids, ok := g.buckets[nk]
	if !ok {
		return []uint64{}
	}

	return append([]uint64(nil), ids...)
}

// Invalidate marks the index stale; the next Lookup triggers a full rebuild.
func (g *GroupIndex) Invalidate() {
	g.dirty = true
}

// rebuild scans the table once and repopulates the buckets.
func (g *GroupIndex) rebuild() {
	col := g.table.cols[g.keyColumn].plain
	g.buckets = make(map[Value][]uint64, len(g.table.rowIDs))
	for pos, id := range g.table.rowIDs {
		v, err := col.Get(pos)
		if err != nil {
			continue
		}
		g.buckets[v] = append(g.buckets[v], id)
	}
	g.dirty = false
	g.builtVersion = g.table.version
}
