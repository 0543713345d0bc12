// Package errs defines the sentinel errors shared across tabula packages.
//
// Callers should match errors with errors.Is; tabula wraps these sentinels
// with contextual detail using fmt.Errorf("...: %w", err).
package errs

import "errors"

// Column and value errors.
var (
	// ErrTypeMismatch indicates a value's type disagrees with the column dtype
	// and no documented widening applies.
	ErrTypeMismatch = errors.New("value type does not match column dtype")

	// ErrIndexOutOfRange indicates an element index outside [0, len).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrValueTooLarge indicates a string value exceeds the encodable length.
	ErrValueTooLarge = errors.New("value exceeds maximum encodable length")
)

// Table errors.
var (
	ErrDuplicateColumn = errors.New("column already exists")
	ErrMissingDefault  = errors.New("column has no default and table already has rows")
	ErrMissingColumn   = errors.New("required column missing from row values")
	ErrRowNotFound     = errors.New("row id not found")
	ErrUnknownColumn   = errors.New("unknown column")
)

// Region reference errors.
var (
	ErrInvalidRange   = errors.New("invalid row range")
	ErrUnknownRow     = errors.New("referenced row id does not exist")
	ErrStaleReference = errors.New("region reference is stale: target table shrank")
)

// Store and graph errors.
var (
	ErrCyclicGraph     = errors.New("ownership edges form a cycle")
	ErrDuplicateTable  = errors.New("table already registered")
	ErrTableNotFound   = errors.New("table not found")
	ErrDuplicateRecord = errors.New("record already registered in collection")
	ErrRecordNotFound  = errors.New("record not found")
	ErrEmptyStore      = errors.New("store contains no tables or records")
)

// Serialization errors.
var (
	ErrSchemaVersion        = errors.New("incompatible container schema version")
	ErrCorrupted            = errors.New("container data is corrupted")
	ErrInvalidHeaderSize    = errors.New("invalid header size")
	ErrInvalidHeaderFlags   = errors.New("invalid header flags")
	ErrInvalidIndexEntry    = errors.New("invalid directory or column index entry")
	ErrInvalidMagicNumber   = errors.New("invalid magic number")
	ErrChecksumMismatch     = errors.New("container checksum mismatch")
	ErrHashCollision        = errors.New("name hash collision between distinct names")
	ErrUnresolvedReference  = errors.New("reference target missing from container")
	ErrIncompatibleSelector = errors.New("unknown region selector kind")
)
