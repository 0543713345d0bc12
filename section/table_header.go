package section

import (
	"github.com/arloliu/tabula/endian"
	"github.com/arloliu/tabula/errs"
)

// TableHeader is the fixed-size header at the start of a table section,
// after decompression of the section payload.
type TableHeader struct {
	// ColumnCount is the number of columns in the table.
	ColumnCount uint16 // byte offset 0-1
	// Reserved must be zero.
	Reserved uint16 // byte offset 2-3
	// RowCount is the number of rows in the table.
	RowCount uint32 // byte offset 4-7
	// NextRowID is the next row id the table would assign; row ids are
	// monotonic and never reused, so this survives round-trips.
	NextRowID uint64 // byte offset 8-15
}

// Parse parses a table header from a byte slice using the given engine.
func (h *TableHeader) Parse(data []byte, engine endian.EndianEngine) error {
	if len(data) < TableHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	h.ColumnCount = engine.Uint16(data[0:2])
	h.Reserved = engine.Uint16(data[2:4])
	h.RowCount = engine.Uint32(data[4:8])
	h.NextRowID = engine.Uint64(data[8:16])

	if h.Reserved != 0 {
		return errs.ErrInvalidHeaderFlags
	}

	return nil
}

// AppendTo appends the serialized header to buf and returns the extended slice.
func (h *TableHeader) AppendTo(buf []byte, engine endian.EndianEngine) []byte {
	buf = engine.AppendUint16(buf, h.ColumnCount)
	buf = engine.AppendUint16(buf, h.Reserved)
	buf = engine.AppendUint32(buf, h.RowCount)
	buf = engine.AppendUint64(buf, h.NextRowID)

	return buf
}
