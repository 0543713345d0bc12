package section

const (
	// Flag option bit masks (bits 0-3)
	EndiannessMask   = 0x0001 // Mask for endianness bit (0=little, 1=big)
	NamesPayloadMask = 0x0002 // Mask for names payload bit
	ReservedBitsMask = 0x000C // Mask for reserved bits (2-3), must be 0
	MagicNumberMask  = 0xFFF0 // Mask for magic number (bits 4-15)

	// MagicContainerV1Opt is the version 1 magic number for the container format.
	MagicContainerV1Opt = 0x7AB0

	// SchemaVersion is the container schema version written by this package.
	SchemaVersion = 1
)

// Fixed section sizes and offsets in the container.
const (
	HeaderSize      = 32 // fixed store header size in bytes
	DirEntrySize    = 24 // fixed directory entry size in bytes
	TableHeaderSize = 16 // fixed per-table header size in bytes
	ColumnEntrySize = 32 // fixed per-column index entry size in bytes

	DirOffsetDefault = HeaderSize // byte offset where the directory starts
)

// Directory entry kinds.
const (
	DirKindTable  = 0x1 // a dynamic record table section
	DirKindRecord = 0x2 // a top-level record section
)
