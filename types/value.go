// The closed scalar type used for every cell in the engine.
//
// A Value is one of Integer, Double, Boolean, String, Date, Empty or
// Invalid. Empty marks explicit absence (a blank cell), Invalid marks
// an error value which propagates through arithmetic and comparisons
// instead of raising. The variant set is closed on purpose - every
// operation in the engine can enumerate it exhaustively.

package types

import (
	"fmt"
	"math"
	"strconv"
)

type Kind int

const (
	EMPTY Kind = iota
	INVALID
	INTEGER
	DOUBLE
	BOOLEAN
	STRING
	DATE
)

func (self Kind) String() string {
	switch self {
	case EMPTY:
		return "Empty"
	case INVALID:
		return "Invalid"
	case INTEGER:
		return "Integer"
	case DOUBLE:
		return "Double"
	case BOOLEAN:
		return "Boolean"
	case STRING:
		return "String"
	case DATE:
		return "Date"
	}
	return "Unknown"
}

type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
}

func Empty() Value {
	return Value{kind: EMPTY}
}

func Invalid() Value {
	return Value{kind: INVALID}
}

func Int(i int64) Value {
	return Value{kind: INTEGER, i: i}
}

func Double(f float64) Value {
	return Value{kind: DOUBLE, f: f}
}

func Bool(b bool) Value {
	return Value{kind: BOOLEAN, b: b}
}

func String(s string) Value {
	return Value{kind: STRING, s: s}
}

// Date is seconds since the epoch, double precision.
func Date(epoch float64) Value {
	return Value{kind: DATE, f: epoch}
}

func (self Value) Kind() Kind      { return self.kind }
func (self Value) IsEmpty() bool   { return self.kind == EMPTY }
func (self Value) IsInvalid() bool { return self.kind == INVALID }

func (self Value) IsNumeric() bool {
	return self.kind == INTEGER || self.kind == DOUBLE
}

func (self Value) AsInt() (int64, bool) {
	switch self.kind {
	case INTEGER:
		return self.i, true
	case DOUBLE:
		return int64(self.f), true
	}
	return 0, false
}

func (self Value) AsFloat() (float64, bool) {
	switch self.kind {
	case INTEGER:
		return float64(self.i), true
	case DOUBLE, DATE:
		return self.f, true
	}
	return 0, false
}

func (self Value) AsBool() (bool, bool) {
	if self.kind == BOOLEAN {
		return self.b, true
	}
	return false, false
}

func (self Value) AsString() (string, bool) {
	if self.kind == STRING {
		return self.s, true
	}
	return "", false
}

// IsTrue reports the truthiness used by filter predicates: TRUE
// booleans and non zero numerics match, everything else (including
// Empty and Invalid) does not.
func (self Value) IsTrue() bool {
	switch self.kind {
	case BOOLEAN:
		return self.b
	case INTEGER:
		return self.i != 0
	case DOUBLE:
		return self.f != 0
	}
	return false
}

// Display renders the value the way a cell shows it. Invalid has no
// display form - callers concatenating values must check for it
// first.
func (self Value) Display() string {
	switch self.kind {
	case EMPTY:
		return ""
	case INVALID:
		return "#INVALID"
	case INTEGER:
		return strconv.FormatInt(self.i, 10)
	case DOUBLE:
		return strconv.FormatFloat(self.f, 'g', -1, 64)
	case BOOLEAN:
		if self.b {
			return "TRUE"
		}
		return "FALSE"
	case STRING:
		return self.s
	case DATE:
		return "@" + strconv.FormatFloat(self.f, 'g', -1, 64)
	}
	return ""
}

func (self Value) String() string {
	return fmt.Sprintf("%s(%s)", self.kind, self.Display())
}

// Equal implements the engine's cell equality. Numeric values compare
// numerically across Integer and Double. A comparison involving
// Invalid never indicates a match - not even Invalid = Invalid.
func (self Value) Equal(other Value) bool {
	if self.kind == INVALID || other.kind == INVALID {
		return false
	}

	if self.IsNumeric() && other.IsNumeric() {
		a, _ := self.AsFloat()
		b, _ := other.AsFloat()
		return a == b
	}

	if self.kind != other.kind {
		return false
	}

	switch self.kind {
	case EMPTY:
		return true
	case BOOLEAN:
		return self.b == other.b
	case STRING:
		return self.s == other.s
	case DATE:
		return self.f == other.f
	}
	return false
}

// Same is structural identity: same variant, same payload. Unlike
// Equal it holds for two Invalid cells, so table comparison can see
// identical tables as identical.
func (self Value) Same(other Value) bool {
	if self.kind != other.kind {
		return false
	}
	if self.kind == INVALID || self.kind == EMPTY {
		return true
	}
	return self.Equal(other)
}

// sortRank orders the variants themselves: Invalid below Empty below
// everything with a defined value order.
func (self Value) sortRank() int {
	switch self.kind {
	case INVALID:
		return 0
	case EMPTY:
		return 1
	case BOOLEAN:
		return 2
	case INTEGER, DOUBLE:
		return 3
	case DATE:
		return 4
	case STRING:
		return 5
	}
	return 6
}

// Less is the total preorder used by sort. Unlike the comparison
// operators, Less must place every value somewhere, so Invalid and
// Empty sort below all other variants.
func (self Value) Less(other Value) bool {
	ra, rb := self.sortRank(), other.sortRank()
	if ra != rb {
		return ra < rb
	}

	switch self.kind {
	case BOOLEAN:
		return !self.b && other.b
	case INTEGER, DOUBLE:
		a, _ := self.AsFloat()
		b, _ := other.AsFloat()
		return a < b
	case DATE:
		return self.f < other.f
	case STRING:
		return CompareStrings(self.s, other.s) < 0
	}
	return false
}

// Compare implements the comparison operators (<, <=, >, >=). The
// result is Invalid when either side is Invalid or when the variants
// are not comparable; otherwise a Boolean.
func Compare(op string, a, b Value) Value {
	if a.kind == INVALID || b.kind == INVALID {
		return Invalid()
	}

	var less, eq bool
	switch {
	case a.IsNumeric() && b.IsNumeric():
		x, _ := a.AsFloat()
		y, _ := b.AsFloat()
		less, eq = x < y, x == y

	case a.kind == STRING && b.kind == STRING:
		c := CompareStrings(a.s, b.s)
		less, eq = c < 0, c == 0

	case a.kind == DATE && b.kind == DATE:
		less, eq = a.f < b.f, a.f == b.f

	case a.kind == BOOLEAN && b.kind == BOOLEAN:
		less, eq = !a.b && b.b, a.b == b.b

	default:
		return Invalid()
	}

	switch op {
	case "<":
		return Bool(less)
	case "<=":
		return Bool(less || eq)
	case ">":
		return Bool(!less && !eq)
	case ">=":
		return Bool(!less)
	}
	return Invalid()
}

// Key is a comparable representation consistent with Equal, suitable
// as a map key for join and group tables. Integer and Double collapse
// onto one numeric key so Int(2) and Double(2.0) land in the same
// bucket.
type Key struct {
	kind Kind
	num  float64
	b    bool
	s    string
}

func (self Value) Key() Key {
	switch self.kind {
	case INTEGER, DOUBLE:
		f, _ := self.AsFloat()
		return Key{kind: DOUBLE, num: f}
	case DATE:
		return Key{kind: DATE, num: self.f}
	case BOOLEAN:
		return Key{kind: BOOLEAN, b: self.b}
	case STRING:
		return Key{kind: STRING, s: self.s}
	}
	// Empty and Invalid each key on their kind alone. Invalid never
	// equals anything but a map still needs somewhere to put it.
	return Key{kind: self.kind}
}

// Arithmetic. The widening table follows the usual rule:
//
//	int    int    -> int
//	int    float  -> float
//	float  int    -> float
//	float  float  -> float
//
// Anything else is Invalid, and Invalid propagates.

func numericOp(a, b Value, intOp func(int64, int64) Value,
	floatOp func(float64, float64) Value) Value {
	if !a.IsNumeric() || !b.IsNumeric() {
		return Invalid()
	}
	if a.kind == INTEGER && b.kind == INTEGER {
		return intOp(a.i, b.i)
	}
	x, _ := a.AsFloat()
	y, _ := b.AsFloat()
	return floatOp(x, y)
}

func Add(a, b Value) Value {
	return numericOp(a, b,
		func(x, y int64) Value { return Int(x + y) },
		func(x, y float64) Value { return Double(x + y) })
}

func Sub(a, b Value) Value {
	return numericOp(a, b,
		func(x, y int64) Value { return Int(x - y) },
		func(x, y float64) Value { return Double(x - y) })
}

func Mul(a, b Value) Value {
	return numericOp(a, b,
		func(x, y int64) Value { return Int(x * y) },
		func(x, y float64) Value { return Double(x * y) })
}

func Div(a, b Value) Value {
	return numericOp(a, b,
		func(x, y int64) Value {
			if y == 0 {
				return Invalid()
			}
			if x%y == 0 {
				return Int(x / y)
			}
			return Double(float64(x) / float64(y))
		},
		func(x, y float64) Value {
			if y == 0 {
				return Invalid()
			}
			return Double(x / y)
		})
}

func Pow(a, b Value) Value {
	return numericOp(a, b,
		func(x, y int64) Value { return Double(math.Pow(float64(x), float64(y))) },
		func(x, y float64) Value { return Double(math.Pow(x, y)) })
}

func Neg(a Value) Value {
	switch a.kind {
	case INTEGER:
		return Int(-a.i)
	case DOUBLE:
		return Double(-a.f)
	}
	return Invalid()
}

// Concat coerces both operands to their display form. Invalid
// propagates rather than rendering.
func Concat(a, b Value) Value {
	if a.kind == INVALID || b.kind == INVALID {
		return Invalid()
	}
	return String(a.Display() + b.Display())
}
