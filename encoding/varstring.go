package encoding

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/internal/pool"
)

// MaxStringLength is the maximum byte length of a single encoded string.
// The limit guards the decoder against allocating unbounded buffers when
// reading corrupted length prefixes.
const MaxStringLength = 1 << 24 // 16MiB

// VarStringEncoder encodes variable-length strings with a uvarint length prefix.
//
// Each string is encoded as:
//   - 1-5 bytes: length as uvarint
//   - N bytes: string data (UTF-8)
//
// Used for string column payloads, column metadata (names, units), record
// field keys and the container names payload.
//
// Note: the VarStringEncoder is NOT a ColumnarEncoder; strings have no fixed
// stride, so random access goes through the owning column's bounds.
type VarStringEncoder struct {
	buf   *pool.ByteBuffer
	count int
}

// NewVarStringEncoder creates a new variable-length string encoder.
//
// The encoder uses a pooled byte buffer with amortized growth strategy.
func NewVarStringEncoder() *VarStringEncoder {
	return &VarStringEncoder{
		buf: pool.GetPayloadBuffer(),
	}
}

// Write encodes a single string with a uvarint length prefix.
//
// Returns errs.ErrValueTooLarge if the string exceeds MaxStringLength.
func (e *VarStringEncoder) Write(text string) error {
	if len(text) > MaxStringLength {
		return fmt.Errorf("string length %d exceeds maximum %d: %w", len(text), MaxStringLength, errs.ErrValueTooLarge)
	}

	e.count++

	e.buf.Grow(binary.MaxVarintLen32 + len(text))
	e.buf.B = binary.AppendUvarint(e.buf.B, uint64(len(text)))
	e.buf.MustWrite([]byte(text))

	return nil
}

// WriteSlice encodes a slice of strings with a single buffer pre-allocation.
//
// All strings are validated before any byte is written.
func (e *VarStringEncoder) WriteSlice(texts []string) error {
	totalSize := 0
	for _, text := range texts {
		if len(text) > MaxStringLength {
			return fmt.Errorf("string length %d exceeds maximum %d: %w", len(text), MaxStringLength, errs.ErrValueTooLarge)
		}
		totalSize += binary.MaxVarintLen32 + len(text)
	}

	e.buf.Grow(totalSize)

	for _, text := range texts {
		e.buf.B = binary.AppendUvarint(e.buf.B, uint64(len(text)))
		e.buf.MustWrite([]byte(text))
		e.count++
	}

	return nil
}

// Bytes returns the encoded data as a byte slice.
// The returned slice shares the underlying buffer; do not modify it.
func (e *VarStringEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len returns the number of strings encoded.
func (e *VarStringEncoder) Len() int {
	return e.count
}

// Size returns the total size of encoded data in bytes.
func (e *VarStringEncoder) Size() int {
	return e.buf.Len()
}

// Finish returns the buffer to the pool. The encoder must not be used afterwards.
func (e *VarStringEncoder) Finish() {
	if e.buf != nil {
		pool.PutPayloadBuffer(e.buf)
		e.buf = nil
	}
	e.count = 0
}

// DecodeString decodes a single uvarint length-prefixed string from data,
// returning the string and the number of bytes consumed.
//
// Returns errs.ErrCorrupted if the length prefix is malformed, exceeds
// MaxStringLength, or the data is truncated.
func DecodeString(data []byte) (string, int, error) {
	length, n := binary.Uvarint(data)
	if n <= 0 {
		return "", 0, fmt.Errorf("malformed string length prefix: %w", errs.ErrCorrupted)
	}
	if length > MaxStringLength {
		return "", 0, fmt.Errorf("string length %d exceeds maximum %d: %w", length, MaxStringLength, errs.ErrCorrupted)
	}
	end := n + int(length)
	if end > len(data) {
		return "", 0, fmt.Errorf("truncated string payload: %w", errs.ErrCorrupted)
	}

	return string(data[n:end]), end, nil
}

// DecodeStrings decodes count length-prefixed strings from data, returning the
// strings and the number of bytes consumed.
func DecodeStrings(data []byte, count int) ([]string, int, error) {
	out := make([]string, 0, count)
	offset := 0
	for i := 0; i < count; i++ {
		s, n, err := DecodeString(data[offset:])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
		offset += n
	}

	return out, offset, nil
}
