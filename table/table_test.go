package table

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
)

func TestTable_AppendRowAssignsMonotonicIDs(t *testing.T) {
	tbl, err := NewTable("sweeps")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("n", format.DTypeInt))

	id0, err := tbl.AppendRow(RowCells{"n": V(Int(10))})
	require.NoError(t, err)
	id1, err := tbl.AppendRow(RowCells{"n": V(Int(20))})
	require.NoError(t, err)

	require.Equal(t, uint64(0), id0)
	require.Equal(t, uint64(1), id1)
	require.Equal(t, 2, tbl.RowCount())
	require.Equal(t, uint64(2), tbl.NextRowID())
	require.Equal(t, []uint64{0, 1}, tbl.RowIDs())
}

func TestTable_DuplicateColumn(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))

	err = tbl.AddColumn("x", format.DTypeFloat)
	require.ErrorIs(t, err, errs.ErrDuplicateColumn)

	err = tbl.AddRaggedColumn("x", format.DTypeFloat)
	require.ErrorIs(t, err, errs.ErrDuplicateColumn)
}

func TestTable_AddColumnBackfill(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))
	_, err = tbl.AppendRow(RowCells{"x": V(Int(1))})
	require.NoError(t, err)
	_, err = tbl.AppendRow(RowCells{"x": V(Int(2))})
	require.NoError(t, err)

	// Strict table without a default refuses the new column.
	err = tbl.AddColumn("y", format.DTypeFloat)
	require.ErrorIs(t, err, errs.ErrMissingDefault)

	// With a default, prior rows are backfilled.
	require.NoError(t, tbl.AddColumn("y", format.DTypeFloat, WithDefault(Float(0.5))))

	cells, err := tbl.GetRow(0)
	require.NoError(t, err)
	v, ok := cells["y"].Value()
	require.True(t, ok)
	f, _ := v.Float()
	require.Equal(t, 0.5, f)
}

func TestTable_NonStrictBackfillsZero(t *testing.T) {
	tbl, err := NewTable("t", WithStrictColumns(false))
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))
	_, err = tbl.AppendRow(RowCells{"x": V(Int(1))})
	require.NoError(t, err)

	require.NoError(t, tbl.AddColumn("y", format.DTypeFloat))

	cells, err := tbl.GetRow(0)
	require.NoError(t, err)
	v, _ := cells["y"].Value()
	f, _ := v.Float()
	require.Equal(t, 0.0, f)
}

func TestTable_RaggedBackfillDefaultSeq(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))
	_, err = tbl.AppendRow(RowCells{"x": V(Int(1))})
	require.NoError(t, err)

	err = tbl.AddRaggedColumn("seq", format.DTypeInt)
	require.ErrorIs(t, err, errs.ErrMissingDefault)

	require.NoError(t, tbl.AddRaggedColumn("seq", format.DTypeInt, WithDefaultSeq()))

	cells, err := tbl.GetRow(0)
	require.NoError(t, err)
	vs, ok := cells["seq"].Values()
	require.True(t, ok)
	require.Empty(t, vs)
}

func TestTable_AppendRowMissingColumn(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))
	require.NoError(t, tbl.AddColumn("y", format.DTypeFloat))

	_, err = tbl.AppendRow(RowCells{"x": V(Int(1))})
	require.ErrorIs(t, err, errs.ErrMissingColumn)
	require.Equal(t, 0, tbl.RowCount())
}

func TestTable_AppendRowDefaultFillsAbsent(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))
	require.NoError(t, tbl.AddColumn("y", format.DTypeFloat, WithDefault(Float(9.0))))

	_, err = tbl.AppendRow(RowCells{"x": V(Int(1))})
	require.NoError(t, err)

	cells, err := tbl.GetRow(0)
	require.NoError(t, err)
	v, _ := cells["y"].Value()
	f, _ := v.Float()
	require.Equal(t, 9.0, f)
}

func TestTable_AppendRowUnknownColumn(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))

	_, err = tbl.AppendRow(RowCells{"x": V(Int(1)), "ghost": V(Int(2))})
	require.ErrorIs(t, err, errs.ErrUnknownColumn)
	require.Equal(t, 0, tbl.RowCount())
}

func TestTable_AppendRowAtomicity(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))
	require.NoError(t, tbl.AddRaggedColumn("seq", format.DTypeFloat, WithDefaultSeq()))

	// The ragged cell fails validation after the plain cell passed; no column
	// may be mutated and no row id consumed.
	_, err = tbl.AppendRow(RowCells{
		"x":   V(Int(1)),
		"seq": Seq(Float(0.1), Str("bad")),
	})
	require.ErrorIs(t, err, errs.ErrTypeMismatch)
	require.Equal(t, 0, tbl.RowCount())
	require.Equal(t, uint64(0), tbl.NextRowID())

	col, err := tbl.RaggedColumn("seq")
	require.NoError(t, err)
	require.Equal(t, 0, col.FlatLen())
}

func TestTable_CellShapeMismatch(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))

	_, err = tbl.AppendRow(RowCells{"x": Seq(Int(1))})
	require.ErrorIs(t, err, errs.ErrTypeMismatch)
}

func TestTable_GetRowNotFound(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))
	_, err = tbl.AppendRow(RowCells{"x": V(Int(1))})
	require.NoError(t, err)

	_, err = tbl.GetRow(99)
	require.ErrorIs(t, err, errs.ErrRowNotFound)
}

func TestTable_RowsIteratorRestartable(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))
	for i := 0; i < 3; i++ {
		_, err := tbl.AppendRow(RowCells{"x": V(Int(int64(i)))})
		require.NoError(t, err)
	}

	seq := tbl.Rows()

	var first []uint64
	for id := range seq {
		first = append(first, id)
	}
	var second []uint64
	for id := range seq {
		second = append(second, id)
		if len(second) == 2 {
			break
		}
	}

	require.Equal(t, []uint64{0, 1, 2}, first)
	require.Equal(t, []uint64{0, 1}, second)
}

func TestTable_RegionColumn(t *testing.T) {
	target := newTargetTable(t, 4)

	tbl, err := NewTable("epochs")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("label", format.DTypeString))
	require.NoError(t, tbl.AddRegionColumn("span"))

	ref, err := MakeRange(target, 0, 2)
	require.NoError(t, err)

	_, err = tbl.AppendRow(RowCells{
		"label": V(Str("baseline")),
		"span":  Region(ref),
	})
	require.NoError(t, err)

	// Region columns are required unless optional.
	_, err = tbl.AppendRow(RowCells{"label": V(Str("gap"))})
	require.ErrorIs(t, err, errs.ErrMissingColumn)

	cells, err := tbl.GetRow(0)
	require.NoError(t, err)
	refs, ok := cells["span"].Refs()
	require.True(t, ok)
	require.Len(t, refs, 1)
	require.Equal(t, "target", refs[0].TargetName())
}

func TestTable_OptionalRegionColumn(t *testing.T) {
	tbl, err := NewTable("epochs")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("label", format.DTypeString))
	require.NoError(t, tbl.AddRegionColumn("span", WithOptional()))

	_, err = tbl.AppendRow(RowCells{"label": V(Str("gap"))})
	require.NoError(t, err)

	cells, err := tbl.GetRow(0)
	require.NoError(t, err)
	refs, ok := cells["span"].Refs()
	require.True(t, ok)
	require.Empty(t, refs)
}

func TestTable_AddRegionColumnBackfillsEmpty(t *testing.T) {
	tbl, err := NewTable("epochs")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("label", format.DTypeString))
	_, err = tbl.AppendRow(RowCells{"label": V(Str("baseline"))})
	require.NoError(t, err)

	// Prior rows get empty reference lists even on a strict table; region
	// columns never require a default.
	require.NoError(t, tbl.AddRegionColumn("span"))

	cells, err := tbl.GetRow(0)
	require.NoError(t, err)
	refs, ok := cells["span"].Refs()
	require.True(t, ok)
	require.Empty(t, refs)
}

func TestTable_RestoreRowIDs(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))
	for i := 0; i < 3; i++ {
		_, err := tbl.AppendRow(RowCells{"x": V(Int(int64(i)))})
		require.NoError(t, err)
	}

	// Persisted ids with gaps from deleted history.
	require.NoError(t, tbl.RestoreRowIDs([]uint64{2, 5, 9}, 10))
	require.Equal(t, []uint64{2, 5, 9}, tbl.RowIDs())
	require.Equal(t, uint64(10), tbl.NextRowID())

	id, err := tbl.AppendRow(RowCells{"x": V(Int(99))})
	require.NoError(t, err)
	require.Equal(t, uint64(10), id)
}

func TestTable_RestoreRowIDs_Invalid(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt))
	for i := 0; i < 2; i++ {
		_, err := tbl.AppendRow(RowCells{"x": V(Int(int64(i)))})
		require.NoError(t, err)
	}

	require.ErrorIs(t, tbl.RestoreRowIDs([]uint64{0}, 1), errs.ErrCorrupted)
	require.ErrorIs(t, tbl.RestoreRowIDs([]uint64{3, 3}, 4), errs.ErrCorrupted)
	require.ErrorIs(t, tbl.RestoreRowIDs([]uint64{0, 5}, 5), errs.ErrCorrupted)
}

func TestTable_Schema(t *testing.T) {
	tbl, err := NewTable("t")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("x", format.DTypeInt, WithUnit("ms"), WithScale(2.0)))
	require.NoError(t, tbl.AddRaggedColumn("seq", format.DTypeFloat))
	require.NoError(t, tbl.AddRegionColumn("span", WithOptional()))

	schema := tbl.Schema()
	require.Len(t, schema, 3)

	require.Equal(t, "x", schema[0].Name)
	require.Equal(t, format.DTypeInt, schema[0].DType)
	require.Equal(t, format.KindPlain, schema[0].Kind)
	require.Equal(t, "ms", schema[0].Unit)
	require.True(t, schema[0].HasScale)

	require.Equal(t, format.KindRagged, schema[1].Kind)
	require.Equal(t, format.KindRegion, schema[2].Kind)
	require.True(t, schema[2].Optional)
}

func TestTable_ColumnDefaults(t *testing.T) {
	var warned int
	tbl, err := NewTable("t", WithColumnDefaults(WithWarnFunc(func(msg string, args ...any) {
		warned++
	})))
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("id", format.DTypeUint))

	_, err = tbl.AppendRow(RowCells{"id": V(Int(3))})
	require.NoError(t, err)
	require.Equal(t, 1, warned)
}
