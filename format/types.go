package format

type (
	DType           uint8
	ColumnKind      uint8
	CompressionType uint8
	WideningPolicy  uint8
)

const (
	DTypeInt    DType = 0x1 // DTypeInt represents signed 64-bit integers.
	DTypeUint   DType = 0x2 // DTypeUint represents unsigned 64-bit integers.
	DTypeFloat  DType = 0x3 // DTypeFloat represents 64-bit floats.
	DTypeBool   DType = 0x4 // DTypeBool represents booleans.
	DTypeString DType = 0x5 // DTypeString represents UTF-8 strings.
	DTypeRecord DType = 0x6 // DTypeRecord represents a reference to a named record bag.

	KindPlain  ColumnKind = 0x1 // KindPlain represents one value per row.
	KindRagged ColumnKind = 0x2 // KindRagged represents a variable-length sequence per row.
	KindRegion ColumnKind = 0x3 // KindRegion represents a region reference per row.

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.

	// WidenWarn widens int values into uint columns with a warning event.
	// Negative values are rejected: sign loss is never silent.
	WidenWarn WideningPolicy = 0x1
	// WidenReject rejects every int-to-uint widening outright.
	WidenReject WideningPolicy = 0x2
)

func (d DType) String() string {
	switch d {
	case DTypeInt:
		return "Int"
	case DTypeUint:
		return "Uint"
	case DTypeFloat:
		return "Float"
	case DTypeBool:
		return "Bool"
	case DTypeString:
		return "String"
	case DTypeRecord:
		return "Record"
	default:
		return "Unknown"
	}
}

func (k ColumnKind) String() string {
	switch k {
	case KindPlain:
		return "Plain"
	case KindRagged:
		return "Ragged"
	case KindRegion:
		return "Region"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

func (p WideningPolicy) String() string {
	switch p {
	case WidenWarn:
		return "WidenWarn"
	case WidenReject:
		return "WidenReject"
	default:
		return "Unknown"
	}
}

// IsValidDType reports whether d is a known dtype.
func IsValidDType(d DType) bool {
	return d >= DTypeInt && d <= DTypeRecord
}

// IsValidColumnKind reports whether k is a known column kind.
func IsValidColumnKind(k ColumnKind) bool {
	return k >= KindPlain && k <= KindRegion
}

// IsValidCompression reports whether c is a known compression type.
func IsValidCompression(c CompressionType) bool {
	return c >= CompressionNone && c <= CompressionLZ4
}
