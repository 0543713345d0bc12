package section

import (
	"time"
	"unsafe"

	"github.com/arloliu/tabula/errs"
)

// StoreHeader represents the fixed-size header section at the start of the container.
type StoreHeader struct {
	// CreatedAt is the container creation time, unix timestamp in microseconds.
	CreatedAt int64 // byte offset 4-11
	// TableCount is the number of tables stored in the container.
	TableCount uint32 // byte offset 12-15
	// RecordCount is the number of top-level records stored in the container.
	RecordCount uint32 // byte offset 16-19
	// DirOffset is the byte offset to the start of the directory section.
	DirOffset uint32 // byte offset 20-23
	// NamesOffset is the byte offset to the start of the names payload.
	NamesOffset uint32 // byte offset 24-27
	// Checksum is the CRC32-C of every byte following the header.
	Checksum uint32 // byte offset 28-31

	// Flag is the packed field for options, magic number and schema version.
	Flag StoreFlag // byte offset 0-3
}

// NewStoreHeader creates a new StoreHeader with the given creation time.
// Counts and offsets are set when the writer finishes.
func NewStoreHeader(createdAt time.Time) *StoreHeader {
	return &StoreHeader{
		CreatedAt: createdAt.UnixMicro(),
		Flag:      NewStoreFlag(),
		DirOffset: DirOffsetDefault,
	}
}

// Parse parses the header from a byte slice.
//
// The Flag field itself is always little-endian so the endianness bit can be
// read before the engine is known; the remaining fields use the declared engine.
func (h *StoreHeader) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	h.Flag.Options = uint16(data[0]) | (uint16(data[1]) << 8)
	h.Flag.Version = data[2]
	h.Flag.Reserved = data[3]

	if err := h.Flag.Validate(); err != nil {
		return err
	}

	engine := h.Flag.GetEndianEngine()

	createdAtUint := engine.Uint64(data[4:12])
	h.CreatedAt = *(*int64)(unsafe.Pointer(&createdAtUint))

	h.TableCount = engine.Uint32(data[12:16])
	h.RecordCount = engine.Uint32(data[16:20])
	h.DirOffset = engine.Uint32(data[20:24])
	h.NamesOffset = engine.Uint32(data[24:28])
	h.Checksum = engine.Uint32(data[28:32])

	return nil
}

// Bytes serializes the StoreHeader into a byte slice.
func (h *StoreHeader) Bytes() []byte {
	b := make([]byte, HeaderSize)

	engine := h.Flag.GetEndianEngine()

	b[0] = byte(h.Flag.Options)
	b[1] = byte(h.Flag.Options >> 8)
	b[2] = h.Flag.Version
	b[3] = h.Flag.Reserved
	// Timestamps are stored as-is in binary
	engine.PutUint64(b[4:12], *(*uint64)(unsafe.Pointer(&h.CreatedAt)))
	engine.PutUint32(b[12:16], h.TableCount)
	engine.PutUint32(b[16:20], h.RecordCount)
	engine.PutUint32(b[20:24], h.DirOffset)
	engine.PutUint32(b[24:28], h.NamesOffset)
	engine.PutUint32(b[28:32], h.Checksum)

	return b
}

// CreatedAtTime returns the creation time as a time.Time object.
func (h *StoreHeader) CreatedAtTime() time.Time {
	return time.UnixMicro(h.CreatedAt)
}

// ParseStoreHeader parses a StoreHeader from a byte slice.
func ParseStoreHeader(data []byte) (StoreHeader, error) {
	if len(data) < HeaderSize {
		return StoreHeader{}, errs.ErrInvalidHeaderSize
	}

	h := StoreHeader{}
	if err := h.Parse(data[:HeaderSize]); err != nil {
		return StoreHeader{}, err
	}

	return h, nil
}
