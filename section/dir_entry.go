package section

import (
	"github.com/arloliu/tabula/endian"
	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
)

// DirEntry is a fixed-size directory entry locating one container section.
//
// The directory is the lookup structure for partial reads: a reader resolves
// a name hash against the directory and materializes only that section.
type DirEntry struct {
	// NameHash is the xxHash64 of the container path (e.g. "/tables/sweeps").
	NameHash uint64 // byte offset 0-7
	// Offset is the byte offset of the section payload from the container start.
	Offset uint32 // byte offset 8-11
	// Size is the byte length of the (possibly compressed) section payload.
	Size uint32 // byte offset 12-15
	// RowCount is the table row count, or the field count for record sections.
	RowCount uint32 // byte offset 16-19
	// Kind is the section kind (DirKindTable or DirKindRecord).
	Kind uint8 // byte offset 20
	// Compression is the compression applied to the section payload.
	Compression uint8 // byte offset 21
	// Reserved must be zero.
	Reserved uint16 // byte offset 22-23
}

// Parse parses a directory entry from a byte slice using the given engine.
func (e *DirEntry) Parse(data []byte, engine endian.EndianEngine) error {
	if len(data) < DirEntrySize {
		return errs.ErrInvalidIndexEntry
	}

	e.NameHash = engine.Uint64(data[0:8])
	e.Offset = engine.Uint32(data[8:12])
	e.Size = engine.Uint32(data[12:16])
	e.RowCount = engine.Uint32(data[16:20])
	e.Kind = data[20]
	e.Compression = data[21]
	e.Reserved = engine.Uint16(data[22:24])

	if e.Kind != DirKindTable && e.Kind != DirKindRecord {
		return errs.ErrInvalidIndexEntry
	}
	if !format.IsValidCompression(format.CompressionType(e.Compression)) {
		return errs.ErrInvalidIndexEntry
	}

	return nil
}

// AppendTo appends the serialized entry to buf and returns the extended slice.
func (e *DirEntry) AppendTo(buf []byte, engine endian.EndianEngine) []byte {
	buf = engine.AppendUint64(buf, e.NameHash)
	buf = engine.AppendUint32(buf, e.Offset)
	buf = engine.AppendUint32(buf, e.Size)
	buf = engine.AppendUint32(buf, e.RowCount)
	buf = append(buf, e.Kind, e.Compression)
	buf = engine.AppendUint16(buf, e.Reserved)

	return buf
}
