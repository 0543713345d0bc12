package encoding

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/internal/pool"
)

// OffsetEncoder encodes a non-decreasing sequence of uint64 values as
// uvarint deltas: the first value raw, each subsequent value as the
// difference from its predecessor.
//
// Two payloads use this codec: ragged row bounds (non-decreasing by
// invariant) and table row ids (strictly increasing by construction).
// Deltas of such sequences are small, so most entries fit in one byte.
type OffsetEncoder struct {
	buf   *pool.ByteBuffer
	prev  uint64
	count int
}

// NewOffsetEncoder creates a new delta-varint offset encoder.
func NewOffsetEncoder() *OffsetEncoder {
	return &OffsetEncoder{
		buf: pool.GetPayloadBuffer(),
	}
}

// Write encodes a single offset.
//
// Returns errs.ErrCorrupted if val is smaller than the previously written
// offset; the caller guarantees a non-decreasing sequence.
func (e *OffsetEncoder) Write(val uint64) error {
	if e.count > 0 && val < e.prev {
		return fmt.Errorf("offset sequence decreased from %d to %d: %w", e.prev, val, errs.ErrCorrupted)
	}

	e.buf.Grow(binary.MaxVarintLen64)
	if e.count == 0 {
		e.buf.B = binary.AppendUvarint(e.buf.B, val)
	} else {
		e.buf.B = binary.AppendUvarint(e.buf.B, val-e.prev)
	}
	e.prev = val
	e.count++

	return nil
}

// WriteSlice encodes a slice of offsets.
func (e *OffsetEncoder) WriteSlice(values []uint64) error {
	for _, v := range values {
		if err := e.Write(v); err != nil {
			return err
		}
	}

	return nil
}

// Bytes returns the encoded data as a byte slice.
// The returned slice shares the underlying buffer; do not modify it.
func (e *OffsetEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len returns the number of offsets encoded.
func (e *OffsetEncoder) Len() int {
	return e.count
}

// Size returns the total size of encoded data in bytes.
func (e *OffsetEncoder) Size() int {
	return e.buf.Len()
}

// Finish returns the buffer to the pool. The encoder must not be used afterwards.
func (e *OffsetEncoder) Finish() {
	if e.buf != nil {
		pool.PutPayloadBuffer(e.buf)
		e.buf = nil
	}
	e.count = 0
	e.prev = 0
}

// DecodeOffsets decodes count delta-varint offsets from data, returning the
// reconstructed absolute values and the number of bytes consumed.
//
// Returns errs.ErrCorrupted if the data is truncated or a varint is malformed.
// The returned sequence is non-decreasing by construction of the codec.
func DecodeOffsets(data []byte, count int) ([]uint64, int, error) {
	out := make([]uint64, 0, count)
	offset := 0
	var prev uint64
	for i := 0; i < count; i++ {
		delta, n := binary.Uvarint(data[offset:])
		if n <= 0 {
			return nil, 0, fmt.Errorf("malformed offset varint at entry %d: %w", i, errs.ErrCorrupted)
		}
		offset += n
		if i == 0 {
			prev = delta
		} else {
			prev += delta
		}
		out = append(out, prev)
	}

	return out, offset, nil
}
