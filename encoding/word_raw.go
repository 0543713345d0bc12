package encoding

import (
	"iter"
	"unsafe"

	"github.com/arloliu/tabula/endian"
	"github.com/arloliu/tabula/internal/pool"
)

// Word constrains the fixed 8-byte column value types.
type Word interface {
	~int64 | ~uint64 | ~float64
}

// wordBits reinterprets an 8-byte value as its raw bit pattern.
// All Word types share size and alignment, so the cast is exact.
func wordBits[T Word](v T) uint64 {
	return *(*uint64)(unsafe.Pointer(&v))
}

// wordFromBits is the inverse of wordBits.
func wordFromBits[T Word](bits uint64) T {
	return *(*T)(unsafe.Pointer(&bits))
}

// WordRawEncoder encodes 8-byte column values in their native binary
// representation using the configured byte order.
//
// Raw word encoding is the storage format for int, uint and float columns:
// fixed stride keeps At() O(1) and lets the compression stage do the space
// reduction.
type WordRawEncoder[T Word] struct {
	buf    *pool.ByteBuffer
	engine endian.EndianEngine
	count  int
}

var _ ColumnarEncoder[int64] = (*WordRawEncoder[int64])(nil)

// NewWordRawEncoder creates a new raw word encoder using the specified endian engine.
func NewWordRawEncoder[T Word](engine endian.EndianEngine) *WordRawEncoder[T] {
	return &WordRawEncoder[T]{
		engine: engine,
		buf:    pool.GetPayloadBuffer(),
	}
}

// Write encodes a single value with amortized buffer growth.
//
// Panics if Finish has been called (nil buffer).
func (e *WordRawEncoder[T]) Write(val T) {
	if e.buf == nil {
		panic("encoder already finished - cannot write after Finish()")
	}

	e.count++
	e.buf.Grow(8)
	e.buf.B = e.engine.AppendUint64(e.buf.B, wordBits(val))
}

// WriteSlice encodes a slice of values with a single buffer pre-allocation.
func (e *WordRawEncoder[T]) WriteSlice(values []T) {
	if e.buf == nil {
		panic("encoder already finished - cannot write after Finish()")
	}

	if len(values) == 0 {
		return
	}

	e.count += len(values)
	e.buf.Grow(len(values) * 8)
	for _, v := range values {
		e.buf.B = e.engine.AppendUint64(e.buf.B, wordBits(v))
	}
}

// Bytes returns the encoded byte slice.
// The returned slice shares the underlying buffer; do not modify it.
func (e *WordRawEncoder[T]) Bytes() []byte {
	return e.buf.Bytes()
}

// Len returns the number of encoded values.
func (e *WordRawEncoder[T]) Len() int {
	return e.count
}

// Size returns the size in bytes of the encoded values.
func (e *WordRawEncoder[T]) Size() int {
	return e.buf.Len()
}

// Finish returns the buffer to the pool. The encoder must not be used afterwards.
func (e *WordRawEncoder[T]) Finish() {
	if e.buf != nil {
		pool.PutPayloadBuffer(e.buf)
		e.buf = nil
	}
	e.count = 0
}

// WordRawDecoder decodes fixed 8-byte column values produced by WordRawEncoder.
//
// The decoder is stateless and returned by value; it is safe for concurrent use.
type WordRawDecoder[T Word] struct {
	engine endian.EndianEngine
}

var _ ColumnarDecoder[int64] = WordRawDecoder[int64]{}

// NewWordRawDecoder creates a new raw word decoder using the specified endian engine.
func NewWordRawDecoder[T Word](engine endian.EndianEngine) WordRawDecoder[T] {
	return WordRawDecoder[T]{engine: engine}
}

// All returns an iterator yielding all values in data, up to count.
func (d WordRawDecoder[T]) All(data []byte, count int) iter.Seq[T] {
	return func(yield func(T) bool) {
		n := min(count, len(data)/8)
		for i := 0; i < n; i++ {
			v := wordFromBits[T](d.engine.Uint64(data[i*8 : i*8+8]))
			if !yield(v) {
				return
			}
		}
	}
}

// At retrieves the value at the given index from the encoded data.
func (d WordRawDecoder[T]) At(data []byte, index int, count int) (T, bool) {
	var zero T
	if index < 0 || index >= count || (index+1)*8 > len(data) {
		return zero, false
	}

	return wordFromBits[T](d.engine.Uint64(data[index*8 : index*8+8])), true
}
