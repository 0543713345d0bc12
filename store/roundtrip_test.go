package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
	"github.com/arloliu/tabula/section"
	"github.com/arloliu/tabula/table"
)

// buildSessionStore assembles a store exercising every column kind, record
// nesting and cross-references.
func buildSessionStore(t *testing.T) *Store {
	t.Helper()

	st := New()

	acq, err := table.NewTable("acquisitions")
	require.NoError(t, err)
	require.NoError(t, acq.AddColumn("timestamp", format.DTypeFloat, table.WithUnit("seconds")))
	require.NoError(t, acq.AddColumn("channel", format.DTypeUint))
	require.NoError(t, acq.AddColumn("valid", format.DTypeBool))
	require.NoError(t, acq.AddColumn("note", format.DTypeString))
	for i := 0; i < 6; i++ {
		_, err := acq.AppendRow(table.RowCells{
			"timestamp": table.V(table.Float(float64(i) * 0.1)),
			"channel":   table.V(table.Uint(uint64(i % 2))),
			"valid":     table.V(table.Bool(i != 3)),
			"note":      table.V(table.Str("")),
		})
		require.NoError(t, err)
	}
	require.NoError(t, st.AddTable(acq))

	sweeps, err := table.NewTable("sweeps")
	require.NoError(t, err)
	require.NoError(t, sweeps.AddRaggedColumn("series", format.DTypeFloat,
		table.WithUnit("volts"), table.WithScale(0.001)))
	require.NoError(t, sweeps.AddColumn("sweep_number", format.DTypeInt))
	require.NoError(t, sweeps.AddRegionColumn("source", table.WithOptional()))

	refA, err := table.MakeRange(acq, 0, 3)
	require.NoError(t, err)
	refB, err := table.MakeRowList(acq, []uint64{5, 1})
	require.NoError(t, err)

	_, err = sweeps.AppendRow(table.RowCells{
		"series":       table.Seq(table.Float(0.1), table.Float(0.2), table.Float(0.3)),
		"sweep_number": table.V(table.Int(0)),
		"source":       table.Region(refA),
	})
	require.NoError(t, err)
	_, err = sweeps.AppendRow(table.RowCells{
		"series":       table.Seq(table.Float(1.5)),
		"sweep_number": table.V(table.Int(1)),
		"source":       table.Regions(refA, refB),
	})
	require.NoError(t, err)
	_, err = sweeps.AppendRow(table.RowCells{
		"series":       table.Seq(),
		"sweep_number": table.V(table.Int(0)),
	})
	require.NoError(t, err)
	require.NoError(t, st.AddTable(sweeps))

	amp := NewRecord("amplifier-1")
	amp.Set("gain", table.Float(20.0))
	amp.Set("model", table.Str("axopatch-200b"))

	headstage := NewRecord("headstage")
	headstage.Set("slot", table.Int(2))
	require.NoError(t, amp.SetChild("headstage", headstage))

	subject := NewRecord("mouse-07")
	subject.Set("species", table.Str("Mus musculus"))
	subject.Set("age_days", table.Int(90))
	require.NoError(t, subject.SetLink("recorded_with", amp))

	require.NoError(t, st.AddRecord("devices", amp))
	require.NoError(t, st.AddRecord("subjects", subject))

	return st
}

func requireTableEqual(t *testing.T, want, got *table.Table) {
	t.Helper()

	require.Equal(t, want.Name(), got.Name())
	require.Equal(t, want.RowCount(), got.RowCount())
	require.Equal(t, want.RowIDs(), got.RowIDs())
	require.Equal(t, want.NextRowID(), got.NextRowID())
	require.Equal(t, want.Schema(), got.Schema())

	for id, wantCells := range want.Rows() {
		gotCells, err := got.GetRow(id)
		require.NoError(t, err)
		require.Equal(t, wantCells, gotCells, "row %d", id)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	st := buildSessionStore(t)

	data, err := Encode(st)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	require.Equal(t, st.Tables(), decoded.Tables())
	for _, name := range st.Tables() {
		want, err := st.GetTable(name)
		require.NoError(t, err)
		got, err := decoded.GetTable(name)
		require.NoError(t, err)
		requireTableEqual(t, want, got)
	}

	require.Equal(t, st.Collections(), decoded.Collections())
	require.Equal(t, st.Records("devices"), decoded.Records("devices"))

	amp, err := decoded.GetRecord("devices", "amplifier-1")
	require.NoError(t, err)
	v, ok := amp.Get("gain")
	require.True(t, ok)
	f, _ := v.Float()
	require.Equal(t, 20.0, f)

	headstage, ok := amp.Child("headstage")
	require.True(t, ok)
	slot, _ := headstage.Get("slot")
	iv, _ := slot.Int()
	require.Equal(t, int64(2), iv)

	// The link resolves to the same decoded record, not a copy.
	subject, err := decoded.GetRecord("subjects", "mouse-07")
	require.NoError(t, err)
	linked, ok := subject.Link("recorded_with")
	require.True(t, ok)
	require.Same(t, amp, linked)
}

func TestEncodeDecode_RegionRefsResolve(t *testing.T) {
	st := buildSessionStore(t)

	data, err := Encode(st)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	sweeps, err := decoded.GetTable("sweeps")
	require.NoError(t, err)
	cells, err := sweeps.GetRow(1)
	require.NoError(t, err)
	refs, ok := cells["source"].Refs()
	require.True(t, ok)
	require.Len(t, refs, 2)

	rows, err := decoded.ResolveRegion(refs[0])
	require.NoError(t, err)
	require.Len(t, rows, 3)

	rows, err = decoded.ResolveRegion(refs[1])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, uint64(5), rows[0].ID())
	require.Equal(t, uint64(1), rows[1].ID())
}

func TestEncodeDecode_GroupIndexAfterDecode(t *testing.T) {
	st := buildSessionStore(t)

	data, err := Encode(st)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	// Indexes are never persisted; a fresh build over the decoded table
	// matches a linear scan.
	sweeps, err := decoded.GetTable("sweeps")
	require.NoError(t, err)
	idx, err := table.BuildIndex(sweeps, "sweep_number")
	require.NoError(t, err)

	require.Equal(t, []uint64{0, 2}, idx.Lookup(table.Int(0)))
	require.Equal(t, []uint64{1}, idx.Lookup(table.Int(1)))
	require.Empty(t, idx.Lookup(table.Int(2)))
}

func TestEncodeDecode_ReencodeStable(t *testing.T) {
	st := buildSessionStore(t)

	createdAt := time.UnixMicro(1_700_000_000_000_000)
	first, err := Encode(st, WithCreatedAt(createdAt))
	require.NoError(t, err)
	decoded, err := Decode(first)
	require.NoError(t, err)
	second, err := Encode(decoded, WithCreatedAt(createdAt))
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestEncode_EmptyStore(t *testing.T) {
	_, err := Encode(New())
	require.ErrorIs(t, err, errs.ErrEmptyStore)
}

func TestEncode_CyclicGraph(t *testing.T) {
	st := New()
	a := NewRecord("a")
	b := NewRecord("b")
	c := NewRecord("c")
	require.NoError(t, a.SetChild("b", b))
	require.NoError(t, b.SetChild("c", c))
	require.NoError(t, c.SetChild("a", a))
	require.NoError(t, st.AddRecord("stuff", a))

	_, err := Encode(st)
	require.ErrorIs(t, err, errs.ErrCyclicGraph)
}

func TestEncode_SharedChildWrittenOnce(t *testing.T) {
	st := New()

	shared := NewRecord("electrode")
	shared.Set("impedance", table.Float(1.2))

	p1 := NewRecord("probe-1")
	p2 := NewRecord("probe-2")
	require.NoError(t, p1.SetChild("electrode", shared))
	require.NoError(t, p2.SetChild("electrode", shared))
	require.NoError(t, st.AddRecord("devices", p1))
	require.NoError(t, st.AddRecord("devices", p2))

	data, err := Encode(st)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	d1, err := decoded.GetRecord("devices", "probe-1")
	require.NoError(t, err)
	d2, err := decoded.GetRecord("devices", "probe-2")
	require.NoError(t, err)

	e1, ok := d1.Child("electrode")
	require.True(t, ok)
	e2, ok := d2.Child("electrode")
	require.True(t, ok)
	require.Same(t, e1, e2, "shared child must decode to one record")

	v, _ := e1.Get("impedance")
	f, _ := v.Float()
	require.Equal(t, 1.2, f)
}

func TestEncodeDecode_Compressions(t *testing.T) {
	st := buildSessionStore(t)

	for _, comp := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		t.Run(comp.String(), func(t *testing.T) {
			data, err := Encode(st, WithCompression(comp))
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)

			want, err := st.GetTable("sweeps")
			require.NoError(t, err)
			got, err := decoded.GetTable("sweeps")
			require.NoError(t, err)
			requireTableEqual(t, want, got)
		})
	}
}

func TestEncodeDecode_BigEndian(t *testing.T) {
	st := buildSessionStore(t)

	data, err := Encode(st, WithBigEndian())
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	want, err := st.GetTable("acquisitions")
	require.NoError(t, err)
	got, err := decoded.GetTable("acquisitions")
	require.NoError(t, err)
	requireTableEqual(t, want, got)
}

func TestDecode_ChecksumMismatch(t *testing.T) {
	st := buildSessionStore(t)
	data, err := Encode(st)
	require.NoError(t, err)

	data[len(data)-1] ^= 0xFF
	_, err = Decode(data)
	require.ErrorIs(t, err, errs.ErrChecksumMismatch)
}

func TestDecode_BadMagic(t *testing.T) {
	st := buildSessionStore(t)
	data, err := Encode(st)
	require.NoError(t, err)

	data[1] ^= 0xF0 // clobber magic bits
	_, err = Decode(data)
	require.ErrorIs(t, err, errs.ErrInvalidMagicNumber)
}

func TestDecode_BadVersion(t *testing.T) {
	st := buildSessionStore(t)
	data, err := Encode(st)
	require.NoError(t, err)

	data[2] = section.SchemaVersion + 1
	_, err = Decode(data)
	require.ErrorIs(t, err, errs.ErrSchemaVersion)
}

func TestDecode_Truncated(t *testing.T) {
	st := buildSessionStore(t)
	data, err := Encode(st)
	require.NoError(t, err)

	_, err = Decode(data[:16])
	require.ErrorIs(t, err, errs.ErrInvalidHeaderSize)
}

func TestWriteRead_File(t *testing.T) {
	st := buildSessionStore(t)
	path := filepath.Join(t.TempDir(), "session.tbl")

	require.NoError(t, Write(st, path))

	// No temp file left behind.
	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	decoded, err := Read(path)
	require.NoError(t, err)

	want, err := st.GetTable("sweeps")
	require.NoError(t, err)
	got, err := decoded.GetTable("sweeps")
	require.NoError(t, err)
	requireTableEqual(t, want, got)
}

func TestWrite_EncodeFailureWritesNothing(t *testing.T) {
	st := New()
	path := filepath.Join(t.TempDir(), "empty.tbl")

	err := Write(st, path)
	require.ErrorIs(t, err, errs.ErrEmptyStore)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestReadTable_Partial(t *testing.T) {
	st := buildSessionStore(t)
	path := filepath.Join(t.TempDir(), "session.tbl")
	require.NoError(t, Write(st, path))

	got, err := ReadTable(path, "sweeps")
	require.NoError(t, err)

	want, err := st.GetTable("sweeps")
	require.NoError(t, err)
	requireTableEqual(t, want, got)

	_, err = ReadTable(path, "ghost")
	require.ErrorIs(t, err, errs.ErrTableNotFound)
}

func TestInspect(t *testing.T) {
	st := buildSessionStore(t)
	path := filepath.Join(t.TempDir(), "session.tbl")
	createdAt := time.UnixMicro(1_700_000_000_000_000)
	require.NoError(t, Write(st, path, WithCreatedAt(createdAt), WithCompression(format.CompressionLZ4)))

	info, err := Inspect(path)
	require.NoError(t, err)

	require.Equal(t, uint8(section.SchemaVersion), info.SchemaVersion)
	require.True(t, info.LittleEndian)
	require.Equal(t, createdAt.UnixMicro(), info.CreatedAt.UnixMicro())
	require.Equal(t, uint32(2), info.TableCount)
	require.Equal(t, uint32(2), info.RecordCount)
	require.Len(t, info.Sections, 4)

	require.Equal(t, "/tables/acquisitions", info.Sections[0].Path)
	require.Equal(t, "table", info.Sections[0].Kind)
	require.Equal(t, uint32(6), info.Sections[0].RowCount)
	require.Equal(t, format.CompressionLZ4, info.Sections[0].Compression)

	require.Equal(t, "/records/devices/amplifier-1", info.Sections[2].Path)
	require.Equal(t, "record", info.Sections[2].Kind)
}

func TestEncodeDecode_ColumnDefaultsSurvive(t *testing.T) {
	st := New()

	tbl, err := table.NewTable("epochs")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("label", format.DTypeString, table.WithDefault(table.Str("n/a"))))
	require.NoError(t, tbl.AddRaggedColumn("tags", format.DTypeString, table.WithDefaultSeq(table.Str("raw"))))
	_, err = tbl.AppendRow(table.RowCells{})
	require.NoError(t, err)
	require.NoError(t, st.AddTable(tbl))

	data, err := Encode(st)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	got, err := decoded.GetTable("epochs")
	require.NoError(t, err)
	require.Equal(t, tbl.Schema(), got.Schema())

	// Defaults stay live: appending a row without cells uses them.
	_, err = got.AppendRow(table.RowCells{})
	require.NoError(t, err)
	cells, err := got.GetRow(1)
	require.NoError(t, err)
	v, _ := cells["label"].Value()
	s, _ := v.Str()
	require.Equal(t, "n/a", s)
}

func TestEncodeDecode_RecordRefColumn(t *testing.T) {
	st := New()

	amp := NewRecord("amplifier-1")
	amp.Set("gain", table.Float(20.0))
	require.NoError(t, st.AddRecord("devices", amp))

	tbl, err := table.NewTable("channels")
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn("device", format.DTypeRecord))
	_, err = tbl.AppendRow(table.RowCells{
		"device": table.V(table.RecordRef("devices/amplifier-1")),
	})
	require.NoError(t, err)
	require.NoError(t, st.AddTable(tbl))

	data, err := Encode(st)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	got, err := decoded.GetTable("channels")
	require.NoError(t, err)
	cells, err := got.GetRow(0)
	require.NoError(t, err)
	v, _ := cells["device"].Value()
	name, ok := v.RecordName()
	require.True(t, ok)

	rec, err := decoded.FindRecord(name)
	require.NoError(t, err)
	gain, _ := rec.Get("gain")
	f, _ := gain.Float()
	require.Equal(t, 20.0, f)
}

func TestEncode_UnregisteredLinkTarget(t *testing.T) {
	st := New()
	rec := NewRecord("subject")
	require.NoError(t, rec.SetLink("rig", NewRecord("floating")))
	require.NoError(t, st.AddRecord("subjects", rec))

	_, err := Encode(st)
	require.ErrorIs(t, err, errs.ErrUnresolvedReference)
}

func TestEncode_UnregisteredRegionTarget(t *testing.T) {
	target, err := table.NewTable("acquisitions")
	require.NoError(t, err)
	require.NoError(t, target.AddColumn("v", format.DTypeFloat))
	_, err = target.AppendRow(table.RowCells{"v": table.V(table.Float(1.0))})
	require.NoError(t, err)

	epochs, err := table.NewTable("epochs")
	require.NoError(t, err)
	require.NoError(t, epochs.AddRegionColumn("span"))
	ref, err := table.MakeRange(target, 0, 1)
	require.NoError(t, err)
	_, err = epochs.AppendRow(table.RowCells{"span": table.Region(ref)})
	require.NoError(t, err)

	// Only the referring table is registered; the target table is not.
	st := New()
	require.NoError(t, st.AddTable(epochs))

	_, err = Encode(st)
	require.ErrorIs(t, err, errs.ErrUnresolvedReference)

	// Registering the target makes the same store encodable.
	require.NoError(t, st.AddTable(target))
	_, err = Encode(st)
	require.NoError(t, err)
}
