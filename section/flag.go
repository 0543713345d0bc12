package section

import (
	"github.com/arloliu/tabula/endian"
	"github.com/arloliu/tabula/errs"
)

// StoreFlag represents the packed flag field at the start of the store header.
type StoreFlag struct {
	// Options is a packed field for various options.
	// Bit 0 is the endianness flag, 0 means little-endian, 1 means big-endian.
	// Bit 1 is the names payload flag, 1 means the container carries full
	// container paths for hash verification.
	// Bits 2-3 are reserved for future use, must be set to 0.
	// Bits 4-15 are the magic number identifying the container format:
	//   - 0x7AB0: tabula container format v1
	Options uint16

	// Version is the container schema version.
	Version uint8

	// Reserved must be zero.
	Reserved uint8
}

// NewStoreFlag creates a StoreFlag with default settings: little-endian,
// names payload enabled, current schema version.
func NewStoreFlag() StoreFlag {
	flag := StoreFlag{
		Options: MagicContainerV1Opt,
		Version: SchemaVersion,
	}
	flag.WithLittleEndian()
	flag.SetHasNamesPayload(true)

	return flag
}

// IsLittleEndian returns whether the container data is little-endian.
func (f StoreFlag) IsLittleEndian() bool {
	return (f.Options & EndiannessMask) == 0
}

// WithLittleEndian sets little-endian byte order.
func (f *StoreFlag) WithLittleEndian() {
	f.Options &= ^uint16(EndiannessMask)
}

// WithBigEndian sets big-endian byte order.
func (f *StoreFlag) WithBigEndian() {
	f.Options |= EndiannessMask
}

// HasNamesPayload returns whether the container carries a names payload.
func (f StoreFlag) HasNamesPayload() bool {
	return (f.Options & NamesPayloadMask) != 0
}

// SetHasNamesPayload enables or disables the names payload flag.
func (f *StoreFlag) SetHasNamesPayload(enabled bool) {
	if enabled {
		f.Options |= NamesPayloadMask
	} else {
		f.Options &^= NamesPayloadMask
	}
}

// GetMagicNumber returns the magic number from the Options field.
func (f StoreFlag) GetMagicNumber() uint16 {
	return f.Options & MagicNumberMask
}

// Validate checks the magic number, reserved bits and schema version.
func (f StoreFlag) Validate() error {
	if f.GetMagicNumber() != MagicContainerV1Opt {
		return errs.ErrInvalidMagicNumber
	}

	if f.Options&ReservedBitsMask != 0 || f.Reserved != 0 {
		return errs.ErrInvalidHeaderFlags
	}

	if f.Version != SchemaVersion {
		return errs.ErrSchemaVersion
	}

	return nil
}

// GetEndianEngine returns the endian engine declared by the flag.
func (f StoreFlag) GetEndianEngine() endian.EndianEngine {
	if f.IsLittleEndian() {
		return endian.GetLittleEndianEngine()
	}

	return endian.GetBigEndianEngine()
}
