package compress

// ZstdCompressor provides Zstandard compression for tabula section payloads.
//
// Zstd favors compression ratio over speed, which fits cold storage of large
// acquisition tables where decompression happens once per read session.
//
// Two implementations are selected at build time:
//   - cgo builds use valyala/gozstd (libzstd bindings)
//   - pure-Go builds use klauspost/compress/zstd with pooled encoders/decoders
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
