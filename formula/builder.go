// Conversion from the grammar structs to the expression tree.
//
// Construction runs a small stack machine: literals and leaf
// references push a node, a binary operator pops the two most
// recently pushed operands (the earlier push fills the first slot)
// and pushes the combined node, and a call pops its collected
// arguments back off the stack.

package formula

import (
	"math"
	"strings"

	"github.com/alecthomas/participle/lexer"
	errors "github.com/pkg/errors"
	"www.velocidex.com/golang/tabular/types"
)

type builder struct {
	locale Locale
	stack  []*Expression
	err    error
}

func (self *builder) fail(err error) {
	if self.err == nil {
		self.err = err
	}
}

func (self *builder) push(e *Expression) {
	self.stack = append(self.stack, e)
}

func (self *builder) pop() *Expression {
	if len(self.stack) == 0 {
		self.fail(errors.New("formula: operand stack underflow"))
		return &Expression{kind: exprLiteral, value: types.Invalid()}
	}
	e := self.stack[len(self.stack)-1]
	self.stack = self.stack[:len(self.stack)-1]
	return e
}

func (self *builder) combine(op string) {
	second := self.pop()
	first := self.pop()
	self.push(&Expression{
		kind:   exprBinary,
		op:     op,
		first:  first,
		second: second,
		span:   first.span.cover(second.span),
	})
}

func (self *builder) expression(node *astExpression) *Expression {
	self.pushExpression(node)
	if self.err != nil {
		return nil
	}
	return self.pop()
}

func (self *builder) pushExpression(node *astExpression) {
	self.pushAdd(node.Left)
	for _, term := range node.Terms {
		self.pushAdd(term.Term)
		self.combine(term.Op)
	}
}

func (self *builder) pushAdd(node *astAddExpression) {
	self.pushMul(node.Left)
	for _, term := range node.Terms {
		self.pushMul(term.Term)
		self.combine(term.Op)
	}
}

func (self *builder) pushMul(node *astMulExpression) {
	self.pushPow(node.Left)
	for _, term := range node.Terms {
		self.pushPow(term.Term)
		self.combine(term.Op)
	}
}

func (self *builder) pushPow(node *astPowExpression) {
	self.pushUnary(node.Base)
	if node.Exponent != nil {
		self.pushPow(node.Exponent)
		self.combine("^")
	}
}

func (self *builder) pushUnary(node *astUnary) {
	self.pushPrimary(node.Value)
	if node.Negated {
		operand := self.pop()
		span := leafSpan(node.Pos, 1).cover(operand.span)
		self.push(&Expression{
			kind:  exprUnary,
			op:    "-",
			first: operand,
			span:  span,
		})
	}
}

func leafSpan(pos lexer.Position, length int) Span {
	return Span{Start: pos.Offset, End: pos.Offset + length}
}

func (self *builder) pushPrimary(node *astPrimary) {
	span := leafSpan(node.Pos, 0)

	switch {
	case node.Call != nil:
		self.pushCall(node.Call)

	case node.Number != nil:
		value, err := self.locale.ParseNumber(*node.Number)
		if err != nil {
			// A bad numeric literal fails the whole parse.
			self.fail(err)
		}
		self.push(&Expression{
			kind:  exprLiteral,
			value: value,
			span:  leafSpan(node.Pos, len(*node.Number)),
		})

	case node.Str != nil:
		text := *node.Str
		unquoted := strings.Replace(
			text[1:len(text)-1], `""`, `"`, -1)
		self.push(&Expression{
			kind:  exprLiteral,
			value: types.String(unquoted),
			span:  leafSpan(node.Pos, len(text)),
		})

	case node.Timestamp != nil:
		text := *node.Timestamp
		value, err := self.locale.ParseNumber(text[1:])
		if err != nil {
			self.fail(err)
		}
		epoch, _ := value.AsFloat()
		self.push(&Expression{
			kind:  exprLiteral,
			value: types.Date(epoch),
			span:  leafSpan(node.Pos, len(text)),
		})

	case node.Sibling != nil:
		text := *node.Sibling
		self.push(&Expression{
			kind: exprSibling,
			name: text[2 : len(text)-1],
			span: leafSpan(node.Pos, len(text)),
		})

	case node.Foreign != nil:
		text := *node.Foreign
		self.push(&Expression{
			kind: exprForeign,
			name: text[2 : len(text)-1],
			span: leafSpan(node.Pos, len(text)),
		})

	case node.Identity != nil:
		self.push(&Expression{
			kind: exprIdentity,
			span: leafSpan(node.Pos, 1),
		})

	case node.Constant != nil:
		value, pres := lookupConstant(*node.Constant)
		if !pres {
			self.fail(errors.Errorf(
				"formula: unknown constant %q", *node.Constant))
		}
		self.push(&Expression{
			kind:  exprLiteral,
			value: value,
			span:  leafSpan(node.Pos, len(*node.Constant)),
		})

	case node.Subexpression != nil:
		self.pushExpression(node.Subexpression)

	default:
		self.fail(errors.New("formula: empty primary"))
		self.push(&Expression{kind: exprLiteral, value: types.Invalid(), span: span})
	}

	if node.Unit != nil {
		operand := self.pop()
		scale, pres := self.locale.Units[*node.Unit]
		if !pres {
			self.fail(errors.Errorf("formula: unknown unit %q", *node.Unit))
			scale = 1
		}
		self.push(&Expression{
			kind:  exprUnit,
			name:  *node.Unit,
			scale: scale,
			first: operand,
			span:  Span{operand.span.Start, operand.span.End + len(*node.Unit)},
		})
	}
}

func (self *builder) pushCall(node *astCall) {
	fn := Lookup(node.Name)
	if fn == nil {
		self.fail(errors.Errorf("formula: unknown function %q", node.Name))
		fn = &Function{
			Name: node.Name,
			Call: func([]types.Value) types.Value { return types.Invalid() },
		}
	}

	if len(node.Args) < fn.MinArgs ||
		(fn.MaxArgs >= 0 && len(node.Args) > fn.MaxArgs) {
		self.fail(errors.Errorf(
			"formula: wrong argument count for %s()", fn.Name))
	}

	// Push a frame worth of argument nodes, then pop them back into
	// the call.
	for _, arg := range node.Args {
		self.pushExpression(arg)
	}
	args := make([]*Expression, len(node.Args))
	for i := len(node.Args) - 1; i >= 0; i-- {
		args[i] = self.pop()
	}

	span := leafSpan(node.Pos, len(node.Name)+2)
	for _, arg := range args {
		span = span.cover(Span{arg.span.Start, arg.span.End + 1})
	}

	self.push(&Expression{
		kind: exprCall,
		name: node.Name,
		fn:   fn,
		args: args,
		span: span,
	})
}

func lookupConstant(name string) (types.Value, bool) {
	switch strings.ToUpper(name) {
	case "TRUE":
		return types.Bool(true), true
	case "FALSE":
		return types.Bool(false), true
	case "PI":
		return types.Double(math.Pi), true
	case "EMPTY":
		return types.Empty(), true
	}
	return types.Invalid(), false
}
