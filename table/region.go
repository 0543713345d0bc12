package table

import (
	"fmt"

	"github.com/arloliu/tabula/errs"
)

// SelectorKind identifies how a region reference selects target rows.
type SelectorKind uint8

const (
	// SelRange selects a contiguous [start, end) range of row positions.
	SelRange SelectorKind = 0x1
	// SelRowList selects an explicit ordered list of row ids.
	SelRowList SelectorKind = 0x2
)

// RegionRef is an immutable selector into another table's rows, by
// contiguous range or explicit row-id list. It points without copying data;
// resolution happens lazily against the target table.
type RegionRef struct {
	targetName string
	kind       SelectorKind
	start, end int
	rowIDs     []uint64
	// targetRows is the target row count at creation time; resolution fails
	// with ErrStaleReference if the target shrank below it.
	targetRows int
}

// MakeRange creates a region reference selecting rows [start, end) of the
// target table.
//
// Requires 0 <= start <= end <= target.RowCount(), else errs.ErrInvalidRange.
// An empty range (start == end) is legal and resolves to no rows.
func MakeRange(target *Table, start, end int) (RegionRef, error) {
	if start < 0 || start > end || end > target.RowCount() {
		return RegionRef{}, fmt.Errorf("range [%d, %d) over %d rows of table %q: %w",
			start, end, target.RowCount(), target.name, errs.ErrInvalidRange)
	}

	return RegionRef{
		targetName: target.name,
		kind:       SelRange,
		start:      start,
		end:        end,
		targetRows: target.RowCount(),
	}, nil
}

// MakeRowList creates a region reference selecting an explicit ordered list
// of row ids in the target table.
//
// Every id must exist in the target at creation time, else errs.ErrUnknownRow.
func MakeRowList(target *Table, rowIDs []uint64) (RegionRef, error) {
	for _, id := range rowIDs {
		if _, ok := target.rowPos(id); !ok {
			return RegionRef{}, fmt.Errorf("row id %d not in table %q: %w", id, target.name, errs.ErrUnknownRow)
		}
	}

	return RegionRef{
		targetName: target.name,
		kind:       SelRowList,
		rowIDs:     append([]uint64(nil), rowIDs...),
		targetRows: target.RowCount(),
	}, nil
}

// RestoreRef reconstructs a region reference from persisted form. It is
// intended for the serialization engine; validation happens at resolution.
func RestoreRef(targetName string, kind SelectorKind, start, end int, rowIDs []uint64, targetRows int) RegionRef {
	return RegionRef{
		targetName: targetName,
		kind:       kind,
		start:      start,
		end:        end,
		rowIDs:     append([]uint64(nil), rowIDs...),
		targetRows: targetRows,
	}
}

// TargetName returns the name of the referenced table.
func (r RegionRef) TargetName() string { return r.targetName }

// Kind returns the selector kind.
func (r RegionRef) Kind() SelectorKind { return r.kind }

// Range returns the [start, end) row positions for SelRange selectors.
func (r RegionRef) Range() (start, end int) { return r.start, r.end }

// RowIDs returns a copy of the explicit row-id list for SelRowList selectors.
func (r RegionRef) RowIDs() []uint64 {
	return append([]uint64(nil), r.rowIDs...)
}

// TargetRows returns the target row count observed at creation time.
func (r RegionRef) TargetRows() int { return r.targetRows }

// Resolve returns the referenced rows of the target table in selector order.
//
// Fails with errs.ErrTableNotFound if target is not the referenced table,
// and errs.ErrStaleReference if the target shrank since the reference was
// created (a row count below the creation-time count, or a listed row id
// that no longer exists).
func (r RegionRef) Resolve(target *Table) ([]Row, error) {
	if target == nil || target.name != r.targetName {
		return nil, fmt.Errorf("region reference targets table %q: %w", r.targetName, errs.ErrTableNotFound)
	}
	if target.RowCount() < r.targetRows {
		return nil, fmt.Errorf("table %q shrank from %d to %d rows: %w",
			target.name, r.targetRows, target.RowCount(), errs.ErrStaleReference)
	}

	switch r.kind {
	case SelRange:
		if r.start < 0 || r.start > r.end || r.end > target.RowCount() {
			return nil, fmt.Errorf("range [%d, %d) over %d rows of table %q: %w",
				r.start, r.end, target.RowCount(), target.name, errs.ErrStaleReference)
		}
		rows := make([]Row, 0, r.end-r.start)
		for pos := r.start; pos < r.end; pos++ {
			rows = append(rows, Row{table: target, id: target.rowIDs[pos], pos: pos})
		}

		return rows, nil
	case SelRowList:
		rows := make([]Row, 0, len(r.rowIDs))
		for _, id := range r.rowIDs {
			pos, ok := target.rowPos(id)
			if !ok {
				return nil, fmt.Errorf("row id %d vanished from table %q: %w", id, target.name, errs.ErrStaleReference)
			}
			rows = append(rows, Row{table: target, id: id, pos: pos})
		}

		return rows, nil
	default:
		return nil, fmt.Errorf("selector kind %d: %w", r.kind, errs.ErrIncompatibleSelector)
	}
}

// Row is a handle to one row of a table, produced by region resolution.
type Row struct {
	table *Table
	id    uint64
	pos   int
}

// ID returns the stable row id.
func (r Row) ID() uint64 { return r.id }

// Table returns the owning table.
func (r Row) Table() *Table { return r.table }

// Cells returns the row's column values.
func (r Row) Cells() (RowCells, error) {
	return r.table.GetRow(r.id)
}
