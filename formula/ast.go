// The expression tree a parsed formula evaluates against rows.

package formula

import (
	"regexp"
	"sort"
	"strings"

	"www.velocidex.com/golang/tabular/types"
)

// Binding supplies the row context an expression evaluates in:
// sibling column references ([@name]), foreign column references
// ([#name]) and the current value identity token (@).
type Binding interface {
	Sibling(name string) types.Value
	Foreign(name string) types.Value
	Current() types.Value
}

// EmptyBinding evaluates expressions with no row context; every
// reference reads as Empty.
type EmptyBinding struct{}

func (EmptyBinding) Sibling(name string) types.Value { return types.Empty() }
func (EmptyBinding) Foreign(name string) types.Value { return types.Empty() }
func (EmptyBinding) Current() types.Value            { return types.Empty() }

// Span is the half open range of source text an expression node was
// parsed from. It is carried for editor feedback (highlighting) and
// not otherwise consulted by the engine.
type Span struct {
	Start, End int
}

func (self Span) cover(other Span) Span {
	result := self
	if other.Start < result.Start {
		result.Start = other.Start
	}
	if other.End > result.End {
		result.End = other.End
	}
	return result
}

type exprKind int

const (
	exprLiteral exprKind = iota
	exprSibling
	exprForeign
	exprIdentity
	exprBinary
	exprUnary
	exprUnit
	exprCall
)

type Expression struct {
	kind exprKind
	span Span

	value types.Value // exprLiteral
	name  string      // refs and calls
	op    string      // exprBinary, exprUnary

	scale float64 // exprUnit

	first  *Expression
	second *Expression

	fn   *Function
	args []*Expression
}

func (self *Expression) Span() Span {
	return self.span
}

// Eval walks the tree against the binding. Invalid propagates -
// evaluation never fails, it yields Invalid instead.
func (self *Expression) Eval(binding Binding) types.Value {
	switch self.kind {
	case exprLiteral:
		return self.value

	case exprSibling:
		return binding.Sibling(self.name)

	case exprForeign:
		return binding.Foreign(self.name)

	case exprIdentity:
		return binding.Current()

	case exprUnary:
		return types.Neg(self.first.Eval(binding))

	case exprUnit:
		return types.Mul(self.first.Eval(binding), types.Double(self.scale))

	case exprBinary:
		// Operands evaluate left to right; the left operand fills the
		// first slot, which is what makes subtraction and division
		// come out the expected way.
		a := self.first.Eval(binding)
		b := self.second.Eval(binding)
		return evalBinary(self.op, a, b)

	case exprCall:
		args := make([]types.Value, 0, len(self.args))
		for _, arg := range self.args {
			args = append(args, arg.Eval(binding))
		}
		return self.fn.Call(args)
	}
	return types.Invalid()
}

func evalBinary(op string, a, b types.Value) types.Value {
	switch op {
	case "&":
		return types.Concat(a, b)

	case "+":
		return types.Add(a, b)

	case "-":
		return types.Sub(a, b)

	case "*":
		return types.Mul(a, b)

	case "/":
		return types.Div(a, b)

	case "^":
		return types.Pow(a, b)

	case "=":
		if a.IsInvalid() || b.IsInvalid() {
			return types.Invalid()
		}
		return types.Bool(a.Equal(b))

	case "<>":
		if a.IsInvalid() || b.IsInvalid() {
			return types.Invalid()
		}
		return types.Bool(!a.Equal(b))

	case "<", "<=", ">", ">=":
		return types.Compare(op, a, b)

	case "~":
		// String containment over display forms.
		if a.IsInvalid() || b.IsInvalid() {
			return types.Invalid()
		}
		return types.Bool(strings.Contains(a.Display(), b.Display()))

	case "=~":
		if a.IsInvalid() || b.IsInvalid() {
			return types.Invalid()
		}
		pattern, err := regexp.Compile(b.Display())
		if err != nil {
			return types.Invalid()
		}
		return types.Bool(pattern.MatchString(a.Display()))
	}
	return types.Invalid()
}

// refs reports which row sides the subtree touches. The identity
// token counts as a sibling reference since it reads the local row.
func (self *Expression) refs() (sibling, foreign bool) {
	switch self.kind {
	case exprSibling, exprIdentity:
		return true, false

	case exprForeign:
		return false, true
	}

	for _, child := range self.children() {
		s, f := child.refs()
		sibling = sibling || s
		foreign = foreign || f
	}
	return sibling, foreign
}

func (self *Expression) children() []*Expression {
	result := []*Expression{}
	if self.first != nil {
		result = append(result, self.first)
	}
	if self.second != nil {
		result = append(result, self.second)
	}
	return append(result, self.args...)
}

// EquiJoinSides decomposes an equality predicate whose two operands
// each touch only one table. Returns the local (sibling referencing)
// side first and reports false for any other shape - the caller then
// falls back to a nested loop join.
func (self *Expression) EquiJoinSides() (local, foreign *Expression, ok bool) {
	if self.kind != exprBinary || self.op != "=" {
		return nil, nil, false
	}

	firstSib, firstFor := self.first.refs()
	secondSib, secondFor := self.second.refs()

	if !firstFor && !secondSib {
		return self.first, self.second, true
	}
	if !firstSib && !secondFor {
		return self.second, self.first, true
	}
	return nil, nil, false
}

// String renders the canonical form of the expression, fully
// parenthesized. Useful for pipeline descriptions and debugging; the
// original source text is recoverable via Span instead.
func (self *Expression) String() string {
	switch self.kind {
	case exprLiteral:
		if s, ok := self.value.AsString(); ok {
			return `"` + strings.Replace(s, `"`, `""`, -1) + `"`
		}
		return self.value.Display()

	case exprSibling:
		return "[@" + self.name + "]"

	case exprForeign:
		return "[#" + self.name + "]"

	case exprIdentity:
		return "@"

	case exprUnary:
		return "-" + self.first.String()

	case exprUnit:
		return self.first.String() + self.name

	case exprBinary:
		return "(" + self.first.String() + " " + self.op + " " +
			self.second.String() + ")"

	case exprCall:
		parts := make([]string, 0, len(self.args))
		for _, arg := range self.args {
			parts = append(parts, arg.String())
		}
		return strings.ToUpper(self.name) + "(" + strings.Join(parts, "; ") + ")"
	}
	return "?"
}

// ColumnRefs lists the sibling column names the expression reads.
func (self *Expression) ColumnRefs() []string {
	seen := make(map[string]bool)
	var walk func(e *Expression)
	walk = func(e *Expression) {
		if e.kind == exprSibling && !seen[e.name] {
			seen[e.name] = true
		}
		for _, child := range e.children() {
			walk(child)
		}
	}
	walk(self)

	result := make([]string, 0, len(seen))
	for name := range seen {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
