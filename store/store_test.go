package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
	"github.com/arloliu/tabula/table"
)

func TestStore_AddGetTable(t *testing.T) {
	st := New()

	tbl, err := table.NewTable("sweeps")
	require.NoError(t, err)
	require.NoError(t, st.AddTable(tbl))

	got, err := st.GetTable("sweeps")
	require.NoError(t, err)
	require.Same(t, tbl, got)

	require.Equal(t, []string{"sweeps"}, st.Tables())
}

func TestStore_DuplicateTable(t *testing.T) {
	st := New()
	tbl, err := table.NewTable("sweeps")
	require.NoError(t, err)
	require.NoError(t, st.AddTable(tbl))

	other, err := table.NewTable("sweeps")
	require.NoError(t, err)
	require.ErrorIs(t, st.AddTable(other), errs.ErrDuplicateTable)
}

func TestStore_TableNotFound(t *testing.T) {
	st := New()
	_, err := st.GetTable("ghost")
	require.ErrorIs(t, err, errs.ErrTableNotFound)
}

func TestStore_AddGetRecord(t *testing.T) {
	st := New()
	rec := NewRecord("amplifier-1")
	rec.Set("gain", table.Float(20.0))

	require.NoError(t, st.AddRecord("devices", rec))

	got, err := st.GetRecord("devices", "amplifier-1")
	require.NoError(t, err)
	require.Same(t, rec, got)

	v, ok := got.Get("gain")
	require.True(t, ok)
	f, _ := v.Float()
	require.Equal(t, 20.0, f)

	require.Equal(t, []string{"devices"}, st.Collections())
	require.Equal(t, []string{"amplifier-1"}, st.Records("devices"))
}

func TestStore_DuplicateRecord(t *testing.T) {
	st := New()
	rec := NewRecord("amp")
	require.NoError(t, st.AddRecord("devices", rec))

	// Same name in the same collection.
	require.ErrorIs(t, st.AddRecord("devices", NewRecord("amp")), errs.ErrDuplicateRecord)

	// Same pointer anywhere; sharing goes through links, not registration.
	require.ErrorIs(t, st.AddRecord("other", rec), errs.ErrDuplicateRecord)
}

func TestStore_RecordNotFound(t *testing.T) {
	st := New()
	_, err := st.GetRecord("devices", "ghost")
	require.ErrorIs(t, err, errs.ErrRecordNotFound)

	require.NoError(t, st.AddRecord("devices", NewRecord("amp")))
	_, err = st.GetRecord("devices", "ghost")
	require.ErrorIs(t, err, errs.ErrRecordNotFound)
}

func TestStore_FindRecord(t *testing.T) {
	st := New()
	rec := NewRecord("amp")
	require.NoError(t, st.AddRecord("devices", rec))

	got, err := st.FindRecord("devices/amp")
	require.NoError(t, err)
	require.Same(t, rec, got)

	_, err = st.FindRecord("no-slash")
	require.ErrorIs(t, err, errs.ErrRecordNotFound)
}

func TestStore_ResolveRegion(t *testing.T) {
	st := New()
	tbl, err := table.NewTable("acquisitions")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("v", format.DTypeInt))
	for i := 0; i < 4; i++ {
		_, err := tbl.AppendRow(table.RowCells{"v": table.V(table.Int(int64(i)))})
		require.NoError(t, err)
	}
	require.NoError(t, st.AddTable(tbl))

	ref, err := table.MakeRange(tbl, 1, 3)
	require.NoError(t, err)

	rows, err := st.ResolveRegion(ref)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, uint64(1), rows[0].ID())

	missing := table.RestoreRef("ghost", table.SelRange, 0, 1, nil, 1)
	_, err = st.ResolveRegion(missing)
	require.ErrorIs(t, err, errs.ErrTableNotFound)
}

func TestRecord_FieldsChildrenLinks(t *testing.T) {
	rec := NewRecord("subject")
	rec.Set("species", table.Str("mouse"))
	rec.Set("age_days", table.Int(90))
	rec.Set("species", table.Str("rat")) // replace keeps insertion order

	require.Equal(t, []string{"species", "age_days"}, rec.Fields())
	v, _ := rec.Get("species")
	s, _ := v.Str()
	require.Equal(t, "rat", s)

	child := NewRecord("headstage")
	require.NoError(t, rec.SetChild("headstage", child))
	require.ErrorIs(t, rec.SetChild("headstage", NewRecord("dup")), errs.ErrDuplicateRecord)

	got, ok := rec.Child("headstage")
	require.True(t, ok)
	require.Same(t, child, got)

	other := NewRecord("rig")
	require.NoError(t, rec.SetLink("rig", other))
	require.ErrorIs(t, rec.SetLink("rig", other), errs.ErrDuplicateRecord)

	link, ok := rec.Link("rig")
	require.True(t, ok)
	require.Same(t, other, link)
	require.Equal(t, []string{"rig"}, rec.Links())
}
