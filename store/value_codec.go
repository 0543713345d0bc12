package store

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/tabula/encoding"
	"github.com/arloliu/tabula/endian"
	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
	"github.com/arloliu/tabula/table"
)

// appendString appends a uvarint length-prefixed string to buf.
func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// appendValue appends a tagged value: one dtype tag byte followed by the
// payload (8 raw bytes for numerics, 1 byte for bools, a length-prefixed
// string for string-backed values).
func appendValue(buf []byte, v table.Value, engine endian.EndianEngine) []byte {
	buf = append(buf, uint8(v.Kind()))
	switch v.Kind() {
	case format.DTypeInt, format.DTypeUint, format.DTypeFloat:
		buf = engine.AppendUint64(buf, v.Bits())
	case format.DTypeBool:
		buf = append(buf, byte(v.Bits()))
	case format.DTypeString, format.DTypeRecord:
		buf = appendString(buf, v.Text())
	}

	return buf
}

// decodeValue decodes a tagged value, returning the value and the number of
// bytes consumed.
func decodeValue(data []byte, engine endian.EndianEngine) (table.Value, int, error) {
	if len(data) < 1 {
		return table.Value{}, 0, fmt.Errorf("truncated value tag: %w", errs.ErrCorrupted)
	}

	dtype := format.DType(data[0])
	if !format.IsValidDType(dtype) {
		return table.Value{}, 0, fmt.Errorf("unknown value dtype %d: %w", data[0], errs.ErrCorrupted)
	}

	switch dtype {
	case format.DTypeInt, format.DTypeUint, format.DTypeFloat:
		if len(data) < 9 {
			return table.Value{}, 0, fmt.Errorf("truncated %s value: %w", dtype, errs.ErrCorrupted)
		}

		return table.FromBits(dtype, engine.Uint64(data[1:9])), 9, nil
	case format.DTypeBool:
		if len(data) < 2 {
			return table.Value{}, 0, fmt.Errorf("truncated bool value: %w", errs.ErrCorrupted)
		}
		if data[1] > 1 {
			return table.Value{}, 0, fmt.Errorf("bool value byte %d: %w", data[1], errs.ErrCorrupted)
		}

		return table.FromBits(dtype, uint64(data[1])), 2, nil
	default: // DTypeString, DTypeRecord
		s, n, err := encoding.DecodeString(data[1:])
		if err != nil {
			return table.Value{}, 0, err
		}

		return table.FromText(dtype, s), 1 + n, nil
	}
}

// decodeUvarint decodes a uvarint, returning the value and bytes consumed.
func decodeUvarint(data []byte) (uint64, int, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, 0, fmt.Errorf("malformed uvarint: %w", errs.ErrCorrupted)
	}

	return v, n, nil
}
