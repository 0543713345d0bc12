// Package tabula provides a self-describing binary container format for
// linked, ragged and indexed tabular records.
//
// Tabula stores typed columnar tables with stable row identities, records
// (opaque attribute bags organized in collections), and references between
// them: region references select row subsets of other tables, record
// references attach metadata to rows, and record links share one record
// across many owners. The whole graph serializes into a single container
// with per-section compression and hash-based partial reads.
//
// # Core Features
//
//   - Typed append-only columns (int, uint, float, bool, string) with unit
//     and scale metadata
//   - Ragged columns holding a variable-length value sequence per row
//   - Region-reference columns selecting row ranges or row lists of other
//     tables, with staleness detection on resolve
//   - Dynamic record tables with monotonic, never-reused row ids
//   - Group indexes with lazy rebuild for O(1) key lookups
//   - Hash-based section directory (64-bit xxHash64) for partial reads
//   - Optional compression (None, Zstd, S2, LZ4) per container
//   - Built-in CRC32-C checksum for data integrity
//
// # Basic Usage
//
// Building and writing a store:
//
//	import "github.com/arloliu/tabula"
//
//	sweeps, _ := tabula.NewTable("sweeps")
//	_ = sweeps.AddRaggedColumn("series", tabula.DTypeFloat, tabula.WithUnit("volts"))
//	_ = sweeps.AddColumn("sweep_number", tabula.DTypeInt)
//
//	id, _ := sweeps.AppendRow(tabula.RowCells{
//	    "series":       tabula.Seq(tabula.Float(0.1), tabula.Float(0.2)),
//	    "sweep_number": tabula.V(tabula.Int(0)),
//	})
//	_ = id
//
//	st := tabula.New()
//	_ = st.AddTable(sweeps)
//	_ = tabula.Write(st, "session.tbl")
//
// Reading it back:
//
//	st, _ := tabula.Read("session.tbl")
//	sweeps, _ := st.GetTable("sweeps")
//	for id, cells := range sweeps.Rows() {
//	    // ...
//	}
//
// Looking rows up by key:
//
//	idx, _ := tabula.BuildIndex(sweeps, "sweep_number")
//	rows := idx.Lookup(tabula.Int(0))
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the table and
// store packages, simplifying the most common use cases. For fine-grained
// control (custom widening policies, partial reads, container inspection),
// use the table and store packages directly.
package tabula

import (
	"github.com/arloliu/tabula/format"
	"github.com/arloliu/tabula/internal/hash"
	"github.com/arloliu/tabula/store"
	"github.com/arloliu/tabula/table"
)

// Column element dtypes.
const (
	DTypeInt    = format.DTypeInt
	DTypeUint   = format.DTypeUint
	DTypeFloat  = format.DTypeFloat
	DTypeBool   = format.DTypeBool
	DTypeString = format.DTypeString
	DTypeRecord = format.DTypeRecord
)

// Container compression codecs.
const (
	CompressionNone = format.CompressionNone
	CompressionZstd = format.CompressionZstd
	CompressionS2   = format.CompressionS2
	CompressionLZ4  = format.CompressionLZ4
)

// Value is a typed cell value. See the table package for the full API.
type Value = table.Value

// RowCells maps column names to the cells of one row.
type RowCells = table.RowCells

// RegionRef selects a row subset of a target table.
type RegionRef = table.RegionRef

// Table is a dynamic record table with typed columns and stable row ids.
type Table = table.Table

// Record is an opaque attribute bag stored in a collection.
type Record = store.Record

// Store is the session container holding tables and record collections.
type Store = store.Store

// Value constructors, re-exported for call-site brevity.
var (
	Int   = table.Int
	Uint  = table.Uint
	Float = table.Float
	Bool  = table.Bool
	Str   = table.Str
)

// Cell constructors, re-exported for call-site brevity.
var (
	V       = table.V
	Seq     = table.Seq
	Region  = table.Region
	Regions = table.Regions
)

// Common column options.
var (
	WithUnit  = table.WithUnit
	WithScale = table.WithScale
)

// New creates an empty store.
func New() *store.Store {
	return store.New()
}

// NewTable creates an empty dynamic record table.
//
// Tables are strict by default: adding a column without a default to a table
// that already has rows fails. Use table.WithStrictColumns(false) to backfill
// zero values instead.
func NewTable(name string, opts ...table.TableOption) (*table.Table, error) {
	return table.NewTable(name, opts...)
}

// NewRecord creates an empty record with the given name.
func NewRecord(name string) *store.Record {
	return store.NewRecord(name)
}

// BuildIndex creates a group index over a plain column of a table.
//
// The index maps each key value to the row ids carrying it, in insertion
// order, and rebuilds itself lazily after table mutations.
func BuildIndex(t *table.Table, keyColumn string) (*table.GroupIndex, error) {
	return table.BuildIndex(t, keyColumn)
}

// MakeRange creates a region reference selecting the contiguous row position
// range [start, end) of the target table. An empty range is legal.
func MakeRange(target *table.Table, start, end int) (table.RegionRef, error) {
	return table.MakeRange(target, start, end)
}

// MakeRowList creates a region reference selecting explicit row ids of the
// target table.
func MakeRowList(target *table.Table, rowIDs []uint64) (table.RegionRef, error) {
	return table.MakeRowList(target, rowIDs)
}

// Encode flattens the store into container bytes.
//
// Defaults: little-endian byte order, Zstd compression. See store.WriteOption
// for overrides.
func Encode(st *store.Store, opts ...store.WriteOption) ([]byte, error) {
	return store.Encode(st, opts...)
}

// Write encodes the store and writes the container to path atomically.
func Write(st *store.Store, path string, opts ...store.WriteOption) error {
	return store.Write(st, path, opts...)
}

// Decode materializes a store from container bytes, verifying the header and
// checksum first.
func Decode(data []byte) (*store.Store, error) {
	return store.Decode(data)
}

// Read reads and fully decodes a container file.
func Read(path string) (*store.Store, error) {
	return store.Read(path)
}

// ReadTable decodes a single table from a container file without
// materializing the rest of the store.
func ReadTable(path string, name string) (*table.Table, error) {
	return store.ReadTable(path, name)
}

// Inspect returns a structural summary of a container file without decoding
// any section payload.
func Inspect(path string) (*store.ContainerInfo, error) {
	return store.Inspect(path)
}

// PathID converts a container path (e.g. "/tables/sweeps") to its 64-bit
// directory hash.
//
// Tabula uses xxHash64 to address sections: directory entries carry the path
// hash, and the names payload carries the full paths so readers can verify
// them. Use this function when correlating Inspect output with directory
// hashes.
func PathID(path string) uint64 {
	return hash.ID(path)
}
