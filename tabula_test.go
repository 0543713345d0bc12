package tabula

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSweepSession exercises the documented end-to-end flow: ragged sweep
// series with a grouping key, written and read through the top-level API.
func TestSweepSession(t *testing.T) {
	sweeps, err := NewTable("sweeps")
	require.NoError(t, err)
	require.NoError(t, sweeps.AddRaggedColumn("series", DTypeFloat, WithUnit("volts")))
	require.NoError(t, sweeps.AddColumn("sweep_number", DTypeInt))

	_, err = sweeps.AppendRow(RowCells{
		"series":       Seq(Float(0.1), Float(0.2), Float(0.3)),
		"sweep_number": V(Int(0)),
	})
	require.NoError(t, err)
	_, err = sweeps.AppendRow(RowCells{
		"series":       Seq(Float(1.5)),
		"sweep_number": V(Int(1)),
	})
	require.NoError(t, err)

	st := New()
	require.NoError(t, st.AddTable(sweeps))

	path := filepath.Join(t.TempDir(), "session.tbl")
	require.NoError(t, Write(st, path))

	decoded, err := Read(path)
	require.NoError(t, err)

	got, err := decoded.GetTable("sweeps")
	require.NoError(t, err)
	require.Equal(t, 2, got.RowCount())

	idx, err := BuildIndex(got, "sweep_number")
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, idx.Lookup(Int(0)))
	require.Equal(t, []uint64{1}, idx.Lookup(Int(1)))
	require.Empty(t, idx.Lookup(Int(2)))

	cells, err := got.GetRow(0)
	require.NoError(t, err)
	series, ok := cells["series"].Values()
	require.True(t, ok)
	require.Len(t, series, 3)
	f, _ := series[1].Float()
	require.Equal(t, 0.2, f)
}

// TestRegionReferences verifies region selection through the wrappers.
func TestRegionReferences(t *testing.T) {
	acq, err := NewTable("acquisitions")
	require.NoError(t, err)
	require.NoError(t, acq.AddColumn("v", DTypeFloat))
	for i := 0; i < 10; i++ {
		_, err := acq.AppendRow(RowCells{"v": V(Float(float64(i)))})
		require.NoError(t, err)
	}

	epochs, err := NewTable("epochs")
	require.NoError(t, err)
	require.NoError(t, epochs.AddColumn("label", DTypeString))
	require.NoError(t, epochs.AddRegionColumn("span"))

	ref, err := MakeRange(acq, 2, 5)
	require.NoError(t, err)
	_, err = epochs.AppendRow(RowCells{
		"label": V(Str("baseline")),
		"span":  Region(ref),
	})
	require.NoError(t, err)

	st := New()
	require.NoError(t, st.AddTable(acq))
	require.NoError(t, st.AddTable(epochs))

	data, err := Encode(st)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	got, err := decoded.GetTable("epochs")
	require.NoError(t, err)
	cells, err := got.GetRow(0)
	require.NoError(t, err)
	refs, ok := cells["span"].Refs()
	require.True(t, ok)
	require.Len(t, refs, 1)

	rows, err := decoded.ResolveRegion(refs[0])
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, uint64(2), rows[0].ID())
}

// TestRecordsAndInspect verifies record wrappers and container inspection.
func TestRecordsAndInspect(t *testing.T) {
	st := New()

	tbl, err := NewTable("sweeps")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("n", DTypeInt))
	_, err = tbl.AppendRow(RowCells{"n": V(Int(1))})
	require.NoError(t, err)
	require.NoError(t, st.AddTable(tbl))

	amp := NewRecord("amplifier-1")
	amp.Set("gain", Float(20.0))
	require.NoError(t, st.AddRecord("devices", amp))

	path := filepath.Join(t.TempDir(), "session.tbl")
	require.NoError(t, Write(st, path))

	partial, err := ReadTable(path, "sweeps")
	require.NoError(t, err)
	require.Equal(t, 1, partial.RowCount())

	info, err := Inspect(path)
	require.NoError(t, err)
	require.Equal(t, uint32(1), info.TableCount)
	require.Equal(t, uint32(1), info.RecordCount)
	require.Len(t, info.Sections, 2)
	require.Equal(t, PathID("/tables/sweeps"), PathID(info.Sections[0].Path))
}

func TestPathID_Deterministic(t *testing.T) {
	require.Equal(t, PathID("/tables/sweeps"), PathID("/tables/sweeps"))
	require.NotEqual(t, PathID("/tables/sweeps"), PathID("/tables/epochs"))
}
