package candidate

import (
	"fmt"
	"strconv"

	"github.com/antoniogi/dabmpi/internal/schema"
)

// Value is the tagged union spec.md §9's design note asks for in place of
// the original source's dynamic typing: conversions happen once, at
// schema-load or decode time, never on every read.
type Value struct {
	kind schema.Kind
	f    float64
	b    bool
	s    string
}

func RealValue(f float64) Value    { return Value{kind: schema.Real, f: f} }
func IntValue(i float64) Value     { return Value{kind: schema.Integer, f: i} }
func BoolValue(b bool) Value       { return Value{kind: schema.Boolean, b: b} }
func StringValue(s string) Value   { return Value{kind: schema.String, s: s} }

func (v Value) Kind() schema.Kind { return v.kind }

// Float returns the numeric value for Real/Integer kinds.
func (v Value) Float() float64 { return v.f }

// Bool returns the value for Boolean kind.
func (v Value) Bool() bool { return v.b }

// Str returns the value for String kind.
func (v Value) Str() string { return v.s }

// Equal reports exact equality for Integer/Boolean/String and
// within-tolerance equality for Real, matching spec.md §8's round-trip
// property (exact for int/bool, within step/2 for reals).
func (v Value) Equal(other Value, tolerance float64) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case schema.Real:
		d := v.f - other.f
		if d < 0 {
			d = -d
		}
		return d <= tolerance
	case schema.Integer:
		return v.f == other.f
	case schema.Boolean:
		return v.b == other.b
	case schema.String:
		return v.s == other.s
	}
	return false
}

// encode renders a Value as the textual body used inside a QueueEntry's
// "idx:val" pair (spec.md §4.1). Real values use Go's shortest
// round-tripping decimal form, comfortably exceeding the spec's 6
// significant digit floor.
func (v Value) encode() string {
	switch v.kind {
	case schema.Real:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case schema.Integer:
		return strconv.FormatFloat(v.f, 'f', 0, 64)
	case schema.Boolean:
		if v.b {
			return "1"
		}
		return "0"
	case schema.String:
		return v.s
	default:
		return ""
	}
}

func decodeValue(kind schema.Kind, raw string) (Value, error) {
	switch kind {
	case schema.Real:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("real value %q: %w", raw, err)
		}
		return RealValue(f), nil
	case schema.Integer:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("integer value %q: %w", raw, err)
		}
		return IntValue(f), nil
	case schema.Boolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("boolean value %q: %w", raw, err)
		}
		return BoolValue(b), nil
	case schema.String:
		return StringValue(raw), nil
	default:
		return Value{}, fmt.Errorf("unknown kind %v", kind)
	}
}
