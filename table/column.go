package table

import (
	"fmt"
	"log/slog"

	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
	"github.com/arloliu/tabula/internal/options"
)

// WarnFunc receives non-fatal warning events, such as numeric widening.
// The signature matches slog's logging functions.
type WarnFunc func(msg string, args ...any)

// colConfig collects the per-column settings applied by ColumnOption values.
// Default and optional settings only take effect for columns owned by a Table.
type colConfig struct {
	unit     string
	scale    float64
	hasScale bool
	policy   format.WideningPolicy
	warnFn   WarnFunc

	def       *Value
	defSeq    []Value
	hasDefSeq bool
	optional  bool
}

// ColumnOption is a functional option for column creation.
type ColumnOption = options.Option[*colConfig]

// WithUnit declares the measurement unit of the column values.
func WithUnit(unit string) ColumnOption {
	return options.NoError(func(c *colConfig) {
		c.unit = unit
	})
}

// WithScale declares a scale factor applied to the column values on read
// by the application (e.g. gain conversion).
func WithScale(scale float64) ColumnOption {
	return options.NoError(func(c *colConfig) {
		c.scale = scale
		c.hasScale = true
	})
}

// WithWideningPolicy sets the numeric widening policy for the column.
func WithWideningPolicy(policy format.WideningPolicy) ColumnOption {
	return options.New(func(c *colConfig) error {
		if policy != format.WidenWarn && policy != format.WidenReject {
			return fmt.Errorf("unknown widening policy %d", policy)
		}
		c.policy = policy

		return nil
	})
}

// WithWarnFunc sets the sink for non-fatal warning events.
// The default sink is slog.Warn.
func WithWarnFunc(fn WarnFunc) ColumnOption {
	return options.NoError(func(c *colConfig) {
		c.warnFn = fn
	})
}

// WithDefault declares the backfill default for a plain column added to a
// table that already has rows, and makes the column optional in AppendRow.
func WithDefault(v Value) ColumnOption {
	return options.NoError(func(c *colConfig) {
		def := v
		c.def = &def
	})
}

// WithDefaultSeq declares the backfill default for a ragged column.
func WithDefaultSeq(vs ...Value) ColumnOption {
	return options.NoError(func(c *colConfig) {
		c.defSeq = append([]Value(nil), vs...)
		c.hasDefSeq = true
	})
}

// WithOptional marks a region-reference column as optional in AppendRow;
// absent rows get an empty reference list.
func WithOptional() ColumnOption {
	return options.NoError(func(c *colConfig) {
		c.optional = true
	})
}

func newColConfig(opts ...ColumnOption) (*colConfig, error) {
	cfg := &colConfig{
		policy: format.WidenWarn,
		warnFn: slog.Warn,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Column is a fixed-dtype append-only sequence of values with optional
// unit and scale metadata.
//
// Storage is split by payload type: numeric dtypes (Int, Uint, Float, Bool)
// share a packed uint64 backing slice, string-backed dtypes (String, Record)
// use a string slice. Appends are amortized O(1).
type Column struct {
	name     string
	dtype    format.DType
	unit     string
	scale    float64
	hasScale bool
	policy   format.WideningPolicy
	warnFn   WarnFunc

	nums []uint64
	strs []string
}

// NewColumn creates a typed column.
func NewColumn(name string, dtype format.DType, opts ...ColumnOption) (*Column, error) {
	if name == "" {
		return nil, fmt.Errorf("column name must not be empty")
	}
	if !format.IsValidDType(dtype) {
		return nil, fmt.Errorf("invalid dtype %d for column %q", dtype, name)
	}

	cfg, err := newColConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Column{
		name:     name,
		dtype:    dtype,
		unit:     cfg.unit,
		scale:    cfg.scale,
		hasScale: cfg.hasScale,
		policy:   cfg.policy,
		warnFn:   cfg.warnFn,
	}, nil
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// DType returns the column element dtype.
func (c *Column) DType() format.DType { return c.dtype }

// Unit returns the declared measurement unit, empty if none.
func (c *Column) Unit() string { return c.unit }

// Scale returns the declared scale factor; the second return value is false
// if no scale was declared.
func (c *Column) Scale() (float64, bool) { return c.scale, c.hasScale }

// Len returns the number of values in the column.
func (c *Column) Len() int {
	if stringBacked(c.dtype) {
		return len(c.strs)
	}

	return len(c.nums)
}

// normalize validates v against the column dtype and returns the storable
// value plus whether a widening warning applies.
//
// The only permitted coercion is the documented Int-to-Uint widening: under
// WidenWarn a non-negative Int value widens into a Uint column with a warning
// event; negative values and the WidenReject policy fail with ErrTypeMismatch.
func (c *Column) normalize(v Value) (Value, bool, error) {
	if v.IsZero() {
		return Value{}, false, fmt.Errorf("column %q: zero value: %w", c.name, errs.ErrTypeMismatch)
	}
	if v.kind == c.dtype {
		return v, false, nil
	}

	if c.dtype == format.DTypeUint && v.kind == format.DTypeInt {
		if c.policy == format.WidenReject {
			return Value{}, false, fmt.Errorf("column %q: int widening rejected by policy: %w", c.name, errs.ErrTypeMismatch)
		}
		iv, _ := v.Int()
		if iv < 0 {
			return Value{}, false, fmt.Errorf("column %q: widening %d to uint loses sign: %w", c.name, iv, errs.ErrTypeMismatch)
		}

		return Uint(uint64(iv)), true, nil
	}

	return Value{}, false, fmt.Errorf("column %q: cannot store %s value in %s column: %w",
		c.name, v.kind, c.dtype, errs.ErrTypeMismatch)
}

// warn emits a widening warning event through the configured sink.
func (c *Column) warnWidened(v Value) {
	if c.warnFn == nil {
		return
	}
	c.warnFn("value widened to unsigned column dtype",
		"column", c.name, "value", v.String(), "dtype", c.dtype.String())
}

// push stores a normalized value without further checks.
func (c *Column) push(v Value) {
	if stringBacked(c.dtype) {
		c.strs = append(c.strs, v.str)
		return
	}
	c.nums = append(c.nums, v.num)
}

// Append appends a value to the column.
//
// Fails with errs.ErrTypeMismatch if the value's type disagrees with the
// column dtype and no documented widening applies. A failed append leaves
// the column unchanged.
func (c *Column) Append(v Value) error {
	nv, widened, err := c.normalize(v)
	if err != nil {
		return err
	}
	if widened {
		c.warnWidened(v)
	}
	c.push(nv)

	return nil
}

// Get returns the value at index i.
//
// Fails with errs.ErrIndexOutOfRange if i is out of bounds.
func (c *Column) Get(i int) (Value, error) {
	if i < 0 || i >= c.Len() {
		return Value{}, fmt.Errorf("column %q: index %d with length %d: %w", c.name, i, c.Len(), errs.ErrIndexOutOfRange)
	}

	if stringBacked(c.dtype) {
		return FromText(c.dtype, c.strs[i]), nil
	}

	return FromBits(c.dtype, c.nums[i]), nil
}

// Bits returns the packed numeric backing slice for serialization.
// The returned slice must not be modified. Nil for string-backed columns.
func (c *Column) Bits() []uint64 { return c.nums }

// Texts returns the string backing slice for serialization.
// The returned slice must not be modified. Nil for numeric columns.
func (c *Column) Texts() []string { return c.strs }
