package section

import (
	"github.com/arloliu/tabula/endian"
	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
)

// Column entry flag bits.
const (
	ColFlagHasUnit    = 0x01 // column declares a unit string
	ColFlagHasScale   = 0x02 // column declares a scale factor
	ColFlagHasDefault = 0x04 // column declares a backfill default
	ColFlagOptional   = 0x08 // column may be absent from appended rows
)

// ColumnEntry is a fixed-size per-column index entry inside a table section.
//
// Offset/Size locate the main column payload; AuxOffset/AuxSize locate the
// auxiliary payload (ragged row bounds) and are zero for plain columns.
// All offsets are relative to the start of the decompressed table section.
type ColumnEntry struct {
	// NameHash is the xxHash64 of the column name.
	NameHash uint64 // byte offset 0-7
	// Offset is the byte offset of the main column payload.
	Offset uint32 // byte offset 8-11
	// Size is the byte length of the main column payload.
	Size uint32 // byte offset 12-15
	// AuxOffset is the byte offset of the auxiliary payload, 0 if none.
	AuxOffset uint32 // byte offset 16-19
	// AuxSize is the byte length of the auxiliary payload, 0 if none.
	AuxSize uint32 // byte offset 20-23
	// DType is the column element dtype.
	DType uint8 // byte offset 24
	// Kind is the column kind (plain, ragged, region).
	Kind uint8 // byte offset 25
	// Flags is a packed field of ColFlag bits.
	Flags uint8 // byte offset 26
	// Reserved must be zero.
	Reserved uint8 // byte offset 27
	// Reserved2 must be zero.
	Reserved2 uint32 // byte offset 28-31
}

// Parse parses a column entry from a byte slice using the given engine.
func (e *ColumnEntry) Parse(data []byte, engine endian.EndianEngine) error {
	if len(data) < ColumnEntrySize {
		return errs.ErrInvalidIndexEntry
	}

	e.NameHash = engine.Uint64(data[0:8])
	e.Offset = engine.Uint32(data[8:12])
	e.Size = engine.Uint32(data[12:16])
	e.AuxOffset = engine.Uint32(data[16:20])
	e.AuxSize = engine.Uint32(data[20:24])
	e.DType = data[24]
	e.Kind = data[25]
	e.Flags = data[26]
	e.Reserved = data[27]
	e.Reserved2 = engine.Uint32(data[28:32])

	if !format.IsValidDType(format.DType(e.DType)) {
		return errs.ErrInvalidIndexEntry
	}
	if !format.IsValidColumnKind(format.ColumnKind(e.Kind)) {
		return errs.ErrInvalidIndexEntry
	}
	if e.Reserved != 0 || e.Reserved2 != 0 {
		return errs.ErrInvalidIndexEntry
	}

	return nil
}

// AppendTo appends the serialized entry to buf and returns the extended slice.
func (e *ColumnEntry) AppendTo(buf []byte, engine endian.EndianEngine) []byte {
	buf = engine.AppendUint64(buf, e.NameHash)
	buf = engine.AppendUint32(buf, e.Offset)
	buf = engine.AppendUint32(buf, e.Size)
	buf = engine.AppendUint32(buf, e.AuxOffset)
	buf = engine.AppendUint32(buf, e.AuxSize)
	buf = append(buf, e.DType, e.Kind, e.Flags, e.Reserved)
	buf = engine.AppendUint32(buf, e.Reserved2)

	return buf
}

// HasUnit reports whether the column declares a unit string.
func (e ColumnEntry) HasUnit() bool { return e.Flags&ColFlagHasUnit != 0 }

// HasScale reports whether the column declares a scale factor.
func (e ColumnEntry) HasScale() bool { return e.Flags&ColFlagHasScale != 0 }

// HasDefault reports whether the column declares a backfill default.
func (e ColumnEntry) HasDefault() bool { return e.Flags&ColFlagHasDefault != 0 }

// Optional reports whether the column may be absent from appended rows.
func (e ColumnEntry) Optional() bool { return e.Flags&ColFlagOptional != 0 }
