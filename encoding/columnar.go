// Package encoding implements the columnar codecs used by tabula's
// serialization engine.
//
// Three codec families cover every column payload:
//
//   - WordRawEncoder/WordRawDecoder: fixed 8-byte words for int64, uint64 and
//     float64 column values in their native binary representation
//   - VarStringEncoder/VarStringDecoder: uvarint length-prefixed UTF-8 strings
//     for string columns, column metadata and record fields
//   - OffsetEncoder/OffsetDecoder: delta-varint sequences for ragged row
//     bounds and table row ids
//
// Encoders append into pooled buffers; call Finish to return buffer resources
// to the pool once the encoded bytes have been consumed.
package encoding

import "iter"

// ColumnarEncoder is the common contract of fixed-stride column encoders.
type ColumnarEncoder[T comparable] interface {
	// Bytes returns the encoded byte slice.
	// The returned slice is valid until the next call to Write or WriteSlice.
	// The caller should not modify the returned slice.
	Bytes() []byte

	// Len returns the number of encoded values.
	Len() int

	// Size returns the size in bytes of the encoded values.
	Size() int

	// Finish finalizes the encoding process and returns buffer resources to
	// the pool.
	//
	// After calling Finish, the encoder is no longer usable. Use defer to
	// ensure it's called even on error paths:
	//
	//	encoder := NewWordRawEncoder[float64](engine)
	//	defer encoder.Finish()
	Finish()

	// Write encodes a single value.
	Write(data T)

	// WriteSlice encodes a slice of values.
	// Optimized for bulk writes; prefer it over repeated Write calls.
	WriteSlice(values []T)
}

// ColumnarDecoder is the common contract of fixed-stride column decoders.
type ColumnarDecoder[T comparable] interface {
	// All returns an iterator that yields all decoded values from data.
	//
	// The count parameter specifies the expected number of values. If the
	// data is truncated the iterator yields fewer values; callers validate
	// the yielded count.
	All(data []byte, count int) iter.Seq[T]

	// At retrieves the value at the given index from the encoded data.
	// Returns false if the index is out of bounds or the data is truncated.
	At(data []byte, index int, count int) (T, bool)
}
