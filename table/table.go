package table

import (
	"fmt"
	"iter"
	"sort"

	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
	"github.com/arloliu/tabula/internal/options"
)

// Cell is one row's entry for one column: a single value for plain columns,
// a value sequence for ragged columns, or a reference list for region columns.
type Cell struct {
	kind format.ColumnKind
	val  Value
	seq  []Value
	refs []RegionRef
}

// V creates a plain cell holding a single value.
func V(v Value) Cell {
	return Cell{kind: format.KindPlain, val: v}
}

// Seq creates a ragged cell holding a value sequence. An empty sequence is legal.
func Seq(vs ...Value) Cell {
	return Cell{kind: format.KindRagged, seq: append([]Value(nil), vs...)}
}

// Region creates a region cell holding a single reference.
func Region(r RegionRef) Cell {
	return Cell{kind: format.KindRegion, refs: []RegionRef{r}}
}

// Regions creates a region cell holding multiple references.
func Regions(rs ...RegionRef) Cell {
	return Cell{kind: format.KindRegion, refs: append([]RegionRef(nil), rs...)}
}

// Kind returns the cell's column kind.
func (c Cell) Kind() format.ColumnKind { return c.kind }

// Value returns the plain cell value; false for non-plain cells.
func (c Cell) Value() (Value, bool) {
	if c.kind != format.KindPlain {
		return Value{}, false
	}

	return c.val, true
}

// Values returns the ragged cell sequence; false for non-ragged cells.
func (c Cell) Values() ([]Value, bool) {
	if c.kind != format.KindRagged {
		return nil, false
	}

	return append([]Value(nil), c.seq...), true
}

// Refs returns the region cell references; false for non-region cells.
func (c Cell) Refs() ([]RegionRef, bool) {
	if c.kind != format.KindRegion {
		return nil, false
	}

	return append([]RegionRef(nil), c.refs...), true
}

// RowCells maps column names to the cells of one row.
type RowCells map[string]Cell

// regionColumn stores a variable-length reference list per row, mirroring the
// ragged layout: flat reference slice plus row bound offsets.
type regionColumn struct {
	name   string
	flat   []RegionRef
	bounds []int
}

func (rc *regionColumn) rowCount() int { return len(rc.bounds) - 1 }

func (rc *regionColumn) appendRow(refs []RegionRef) {
	rc.flat = append(rc.flat, refs...)
	rc.bounds = append(rc.bounds, len(rc.flat))
}

func (rc *regionColumn) getRow(i int) []RegionRef {
	return append([]RegionRef(nil), rc.flat[rc.bounds[i]:rc.bounds[i+1]]...)
}

// tableColumn is one column slot of a table: the storage plus the table-level
// settings (default, optional) that don't belong to the column itself.
type tableColumn struct {
	kind   format.ColumnKind
	plain  *Column
	ragged *RaggedColumn
	region *regionColumn

	hasDefault bool
	defVal     Value
	defSeq     []Value
	optional   bool
}

func (tc *tableColumn) name() string {
	switch tc.kind {
	case format.KindPlain:
		return tc.plain.name
	case format.KindRagged:
		return tc.ragged.flat.name
	default:
		return tc.region.name
	}
}

func (tc *tableColumn) dtype() format.DType {
	switch tc.kind {
	case format.KindPlain:
		return tc.plain.dtype
	case format.KindRagged:
		return tc.ragged.flat.dtype
	default:
		// Region columns hold references, not elements.
		return format.DTypeRecord
	}
}

// Table is a dynamic record table: an extensible set of named typed columns
// with stable monotonic row ids.
//
// Columns are stored independently (columnar layout); insertion order is
// captured solely by the row ids. Row count never shrinks.
type Table struct {
	name      string
	rowIDs    []uint64
	nextRowID uint64
	cols      map[string]*tableColumn
	order     []string

	strict  bool
	colOpts []ColumnOption

	// version counts mutations; group indexes rebuild when it moves.
	version uint64
}

// TableOption is a functional option for table creation.
type TableOption = options.Option[*Table]

// WithStrictColumns controls strict mode: when strict (the default), adding
// a column without a default to a table that already has rows fails with
// errs.ErrMissingDefault. Non-strict tables backfill the dtype zero value.
func WithStrictColumns(strict bool) TableOption {
	return options.NoError(func(t *Table) {
		t.strict = strict
	})
}

// WithColumnDefaults sets column options applied to every column the table
// creates, before per-column options.
func WithColumnDefaults(opts ...ColumnOption) TableOption {
	return options.NoError(func(t *Table) {
		t.colOpts = append(t.colOpts, opts...)
	})
}

// NewTable creates an empty dynamic record table.
func NewTable(name string, opts ...TableOption) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("table name must not be empty")
	}

	t := &Table{
		name:   name,
		cols:   make(map[string]*tableColumn),
		strict: true,
	}
	if err := options.Apply(t, opts...); err != nil {
		return nil, err
	}

	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// RowCount returns the number of rows.
func (t *Table) RowCount() int { return len(t.rowIDs) }

// NextRowID returns the row id the next append will assign.
func (t *Table) NextRowID() uint64 { return t.nextRowID }

// RowIDs returns a copy of the row ids in insertion order.
func (t *Table) RowIDs() []uint64 {
	return append([]uint64(nil), t.rowIDs...)
}

// ColumnNames returns the column names in creation order.
func (t *Table) ColumnNames() []string {
	return append([]string(nil), t.order...)
}

// rowPos returns the position of a row id, using binary search over the
// strictly increasing row-id slice.
func (t *Table) rowPos(id uint64) (int, bool) {
	pos := sort.Search(len(t.rowIDs), func(i int) bool { return t.rowIDs[i] >= id })
	if pos < len(t.rowIDs) && t.rowIDs[pos] == id {
		return pos, true
	}

	return 0, false
}

// addSlot registers a column slot, handling duplicate detection and backfill.
func (t *Table) addSlot(name string, slot *tableColumn) error {
	if _, exists := t.cols[name]; exists {
		return fmt.Errorf("column %q: %w", name, errs.ErrDuplicateColumn)
	}

	if t.RowCount() > 0 {
		if err := t.backfill(slot); err != nil {
			return err
		}
	}

	t.cols[name] = slot
	t.order = append(t.order, name)
	t.version++

	return nil
}

// backfill fills a freshly added column for all existing rows.
func (t *Table) backfill(slot *tableColumn) error {
	switch slot.kind {
	case format.KindPlain:
		if !slot.hasDefault {
			if t.strict {
				return fmt.Errorf("column %q: %w", slot.name(), errs.ErrMissingDefault)
			}
			slot.defVal = zeroValue(slot.plain.dtype)
		}
		for range t.rowIDs {
			if err := slot.plain.Append(slot.defVal); err != nil {
				return err
			}
		}
	case format.KindRagged:
		if !slot.hasDefault && t.strict {
			return fmt.Errorf("column %q: %w", slot.name(), errs.ErrMissingDefault)
		}
		for range t.rowIDs {
			if err := slot.ragged.AppendRow(slot.defSeq); err != nil {
				return err
			}
		}
	case format.KindRegion:
		// Region columns backfill empty reference lists.
		for range t.rowIDs {
			slot.region.appendRow(nil)
		}
	}

	return nil
}

// AddColumn adds a plain typed column.
//
// Fails with errs.ErrDuplicateColumn if the name exists. If the table already
// has rows, prior rows are backfilled with the WithDefault value; without a
// default, strict tables fail with errs.ErrMissingDefault.
func (t *Table) AddColumn(name string, dtype format.DType, opts ...ColumnOption) error {
	cfg, err := newColConfig(append(append([]ColumnOption(nil), t.colOpts...), opts...)...)
	if err != nil {
		return err
	}

	col, err := newColumnFromConfig(name, dtype, cfg)
	if err != nil {
		return err
	}

	slot := &tableColumn{kind: format.KindPlain, plain: col}
	if cfg.def != nil {
		// Normalize the default once so backfill and append agree on dtype.
		nv, _, err := col.normalize(*cfg.def)
		if err != nil {
			return err
		}
		slot.hasDefault = true
		slot.defVal = nv
	}

	return t.addSlot(name, slot)
}

// AddRaggedColumn adds a ragged typed column whose rows hold variable-length
// sequences.
func (t *Table) AddRaggedColumn(name string, dtype format.DType, opts ...ColumnOption) error {
	cfg, err := newColConfig(append(append([]ColumnOption(nil), t.colOpts...), opts...)...)
	if err != nil {
		return err
	}

	flat, err := newColumnFromConfig(name, dtype, cfg)
	if err != nil {
		return err
	}

	slot := &tableColumn{
		kind:   format.KindRagged,
		ragged: &RaggedColumn{flat: flat, bounds: []int{0}},
	}
	if cfg.hasDefSeq {
		normalized := make([]Value, len(cfg.defSeq))
		for i, v := range cfg.defSeq {
			nv, _, err := flat.normalize(v)
			if err != nil {
				return err
			}
			normalized[i] = nv
		}
		slot.hasDefault = true
		slot.defSeq = normalized
	}

	return t.addSlot(name, slot)
}

// AddRegionColumn adds a region-reference column whose rows hold lists of
// references into other tables. WithOptional marks it optional in AppendRow.
//
// Region columns have no default machinery: when the table already has rows,
// prior rows are backfilled with empty reference lists, in strict and
// non-strict mode alike. An empty list is a valid region cell, so this never
// fails with errs.ErrMissingDefault.
func (t *Table) AddRegionColumn(name string, opts ...ColumnOption) error {
	if name == "" {
		return fmt.Errorf("column name must not be empty")
	}

	cfg, err := newColConfig(append(append([]ColumnOption(nil), t.colOpts...), opts...)...)
	if err != nil {
		return err
	}

	slot := &tableColumn{
		kind:     format.KindRegion,
		region:   &regionColumn{name: name, bounds: []int{0}},
		optional: cfg.optional,
	}

	return t.addSlot(name, slot)
}

// newColumnFromConfig builds a Column from an already-applied config.
func newColumnFromConfig(name string, dtype format.DType, cfg *colConfig) (*Column, error) {
	if name == "" {
		return nil, fmt.Errorf("column name must not be empty")
	}
	if !format.IsValidDType(dtype) {
		return nil, fmt.Errorf("invalid dtype %d for column %q", dtype, name)
	}

	return &Column{
		name:     name,
		dtype:    dtype,
		unit:     cfg.unit,
		scale:    cfg.scale,
		hasScale: cfg.hasScale,
		policy:   cfg.policy,
		warnFn:   cfg.warnFn,
	}, nil
}

// AppendRow appends one row.
//
// Every required column must be present in cells: required means no default
// and, for region columns, not optional. Missing required columns fail with
// errs.ErrMissingColumn; unknown names fail with errs.ErrUnknownColumn; cell
// shapes must match the column kinds. All cells are validated before any
// mutation, so a failed append leaves the table unchanged.
//
// Returns the assigned row id: the next monotonic id, never reused.
func (t *Table) AppendRow(cells RowCells) (uint64, error) {
	for name := range cells {
		if _, ok := t.cols[name]; !ok {
			return 0, fmt.Errorf("column %q: %w", name, errs.ErrUnknownColumn)
		}
	}

	type pendingPlain struct {
		col  *Column
		val  Value
		orig Value
		warn bool
	}
	type pendingRagged struct {
		col    *RaggedColumn
		vals   []Value
		origs  []Value
		warns  []bool
	}
	type pendingRegion struct {
		col  *regionColumn
		refs []RegionRef
	}

	var plains []pendingPlain
	var raggeds []pendingRagged
	var regions []pendingRegion

	for _, name := range t.order {
		slot := t.cols[name]
		cell, present := cells[name]

		switch slot.kind {
		case format.KindPlain:
			var val Value
			if present {
				v, ok := cell.Value()
				if !ok {
					return 0, fmt.Errorf("column %q expects a plain value: %w", name, errs.ErrTypeMismatch)
				}
				val = v
			} else {
				if !slot.hasDefault {
					return 0, fmt.Errorf("column %q: %w", name, errs.ErrMissingColumn)
				}
				val = slot.defVal
			}
			nv, warn, err := slot.plain.normalize(val)
			if err != nil {
				return 0, err
			}
			plains = append(plains, pendingPlain{col: slot.plain, val: nv, orig: val, warn: warn})
		case format.KindRagged:
			var vals []Value
			if present {
				vs, ok := cell.Values()
				if !ok {
					return 0, fmt.Errorf("column %q expects a value sequence: %w", name, errs.ErrTypeMismatch)
				}
				vals = vs
			} else {
				if !slot.hasDefault {
					return 0, fmt.Errorf("column %q: %w", name, errs.ErrMissingColumn)
				}
				vals = slot.defSeq
			}
			normalized := make([]Value, len(vals))
			warns := make([]bool, len(vals))
			for i, v := range vals {
				nv, warn, err := slot.ragged.flat.normalize(v)
				if err != nil {
					return 0, err
				}
				normalized[i] = nv
				warns[i] = warn
			}
			raggeds = append(raggeds, pendingRagged{col: slot.ragged, vals: normalized, origs: vals, warns: warns})
		case format.KindRegion:
			var refs []RegionRef
			if present {
				rs, ok := cell.Refs()
				if !ok {
					return 0, fmt.Errorf("column %q expects region references: %w", name, errs.ErrTypeMismatch)
				}
				refs = rs
			} else if !slot.optional {
				return 0, fmt.Errorf("column %q: %w", name, errs.ErrMissingColumn)
			}
			regions = append(regions, pendingRegion{col: slot.region, refs: refs})
		}
	}

	// All cells validated; mutate.
	for _, p := range plains {
		if p.warn {
			p.col.warnWidened(p.orig)
		}
		p.col.push(p.val)
	}
	for _, p := range raggeds {
		for i, nv := range p.vals {
			if p.warns[i] {
				p.col.flat.warnWidened(p.origs[i])
			}
			p.col.flat.push(nv)
		}
		p.col.bounds = append(p.col.bounds, p.col.flat.Len())
	}
	for _, p := range regions {
		p.col.appendRow(p.refs)
	}

	id := t.nextRowID
	t.nextRowID++
	t.rowIDs = append(t.rowIDs, id)
	t.version++

	return id, nil
}

// GetRow returns the cells of the row with the given id.
//
// Fails with errs.ErrRowNotFound if the id is absent.
func (t *Table) GetRow(rowID uint64) (RowCells, error) {
	pos, ok := t.rowPos(rowID)
	if !ok {
		return nil, fmt.Errorf("table %q: row id %d: %w", t.name, rowID, errs.ErrRowNotFound)
	}

	return t.rowAt(pos)
}

// rowAt assembles the cells at a row position.
func (t *Table) rowAt(pos int) (RowCells, error) {
	cells := make(RowCells, len(t.order))
	for _, name := range t.order {
		slot := t.cols[name]
		switch slot.kind {
		case format.KindPlain:
			v, err := slot.plain.Get(pos)
			if err != nil {
				return nil, err
			}
			cells[name] = V(v)
		case format.KindRagged:
			vs, err := slot.ragged.GetRow(pos)
			if err != nil {
				return nil, err
			}
			cells[name] = Cell{kind: format.KindRagged, seq: vs}
		case format.KindRegion:
			cells[name] = Cell{kind: format.KindRegion, refs: slot.region.getRow(pos)}
		}
	}

	return cells, nil
}

// Rows returns a restartable iterator over (row id, cells) in insertion
// order. Re-iterating re-reads from the stored columns.
func (t *Table) Rows() iter.Seq2[uint64, RowCells] {
	return func(yield func(uint64, RowCells) bool) {
		for pos, id := range t.rowIDs {
			cells, err := t.rowAt(pos)
			if err != nil {
				return
			}
			if !yield(id, cells) {
				return
			}
		}
	}
}

// RestoreRowIDs replaces the row ids with persisted identifiers.
//
// Intended for the serialization engine after rebuilding the columns.
// Fails with errs.ErrCorrupted unless ids are strictly increasing, match the
// current row count, and next exceeds the last id.
func (t *Table) RestoreRowIDs(ids []uint64, next uint64) error {
	if len(ids) != t.RowCount() {
		return fmt.Errorf("table %q: %d row ids for %d rows: %w", t.name, len(ids), t.RowCount(), errs.ErrCorrupted)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			return fmt.Errorf("table %q: row ids not strictly increasing at %d: %w", t.name, i, errs.ErrCorrupted)
		}
	}
	if len(ids) > 0 && next <= ids[len(ids)-1] {
		return fmt.Errorf("table %q: next row id %d not beyond last id %d: %w",
			t.name, next, ids[len(ids)-1], errs.ErrCorrupted)
	}

	t.rowIDs = append(t.rowIDs[:0], ids...)
	t.nextRowID = next
	t.version++

	return nil
}

// ColumnSchema describes one column of a table for serialization and
// introspection.
type ColumnSchema struct {
	Name          string
	DType         format.DType
	Kind          format.ColumnKind
	Unit          string
	Scale         float64
	HasScale      bool
	Optional      bool
	HasDefault    bool
	Default       Value
	DefaultSeq    []Value
	HasDefaultSeq bool
}

// Schema returns the column schemas in creation order.
func (t *Table) Schema() []ColumnSchema {
	out := make([]ColumnSchema, 0, len(t.order))
	for _, name := range t.order {
		slot := t.cols[name]
		cs := ColumnSchema{
			Name:     name,
			DType:    slot.dtype(),
			Kind:     slot.kind,
			Optional: slot.optional,
		}
		switch slot.kind {
		case format.KindPlain:
			cs.Unit = slot.plain.unit
			cs.Scale, cs.HasScale = slot.plain.Scale()
			cs.HasDefault = slot.hasDefault
			cs.Default = slot.defVal
		case format.KindRagged:
			cs.Unit = slot.ragged.flat.unit
			cs.Scale, cs.HasScale = slot.ragged.flat.Scale()
			cs.HasDefaultSeq = slot.hasDefault
			cs.DefaultSeq = append([]Value(nil), slot.defSeq...)
		}
		out = append(out, cs)
	}

	return out
}

// PlainColumn returns the backing column of a plain column.
func (t *Table) PlainColumn(name string) (*Column, error) {
	slot, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("column %q: %w", name, errs.ErrUnknownColumn)
	}
	if slot.kind != format.KindPlain {
		return nil, fmt.Errorf("column %q is %s, not plain: %w", name, slot.kind, errs.ErrTypeMismatch)
	}

	return slot.plain, nil
}

// RaggedColumn returns the backing column of a ragged column.
func (t *Table) RaggedColumn(name string) (*RaggedColumn, error) {
	slot, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("column %q: %w", name, errs.ErrUnknownColumn)
	}
	if slot.kind != format.KindRagged {
		return nil, fmt.Errorf("column %q is %s, not ragged: %w", name, slot.kind, errs.ErrTypeMismatch)
	}

	return slot.ragged, nil
}

// RegionColumn returns the flat reference list and row bounds of a region
// column. The returned slices must not be modified.
func (t *Table) RegionColumn(name string) (refs []RegionRef, bounds []int, err error) {
	slot, ok := t.cols[name]
	if !ok {
		return nil, nil, fmt.Errorf("column %q: %w", name, errs.ErrUnknownColumn)
	}
	if slot.kind != format.KindRegion {
		return nil, nil, fmt.Errorf("column %q is %s, not region: %w", name, slot.kind, errs.ErrTypeMismatch)
	}

	return slot.region.flat, slot.region.bounds, nil
}

// Validate checks the structural invariants of every column against the
// table row count. The reader calls this after materialization.
func (t *Table) Validate() error {
	for _, name := range t.order {
		slot := t.cols[name]
		switch slot.kind {
		case format.KindPlain:
			if slot.plain.Len() != t.RowCount() {
				return fmt.Errorf("column %q has %d values for %d rows: %w",
					name, slot.plain.Len(), t.RowCount(), errs.ErrCorrupted)
			}
		case format.KindRagged:
			if slot.ragged.RowCount() != t.RowCount() {
				return fmt.Errorf("column %q has %d rows for %d table rows: %w",
					name, slot.ragged.RowCount(), t.RowCount(), errs.ErrCorrupted)
			}
			if err := slot.ragged.validate(); err != nil {
				return err
			}
		case format.KindRegion:
			if slot.region.rowCount() != t.RowCount() {
				return fmt.Errorf("column %q has %d rows for %d table rows: %w",
					name, slot.region.rowCount(), t.RowCount(), errs.ErrCorrupted)
			}
		}
	}

	return nil
}
