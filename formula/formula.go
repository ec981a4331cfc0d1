// The formula grammar. Formulas are short cell expressions:
//
//	=1+2*3
//	=[@price] * (1 - [@discount]) & " total"
//	=IF([@qty] > 10; "bulk"; "retail")
//
// Precedence, loosest binding first: concatenation and comparisons,
// then addition and subtraction, then multiplication and division,
// then exponentiation, then unary minus and primaries.
//
// Because the decimal, grouping and argument separators (and the unit
// suffixes) are locale parameters, the lexer is assembled per locale
// at runtime and the resulting parser cached.

package formula

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
	errors "github.com/pkg/errors"
)

var (
	parsersMu sync.Mutex
	parsers   = make(map[string]*participle.Parser)
)

func buildLexer(locale Locale) (lexer.Definition, error) {
	dec := regexp.QuoteMeta(string(locale.DecimalSeparator))
	group := regexp.QuoteMeta(string(locale.GroupSeparator))
	argSep := regexp.QuoteMeta(string(locale.ArgumentSeparator))

	units := ""
	for i, name := range locale.unitNames() {
		if i > 0 {
			units += "|"
		}
		units += regexp.QuoteMeta(name)
	}
	if units == "" {
		// A group that can never match keeps the token defined.
		units = `\x00`
	}

	return lexer.Regexp(
		`(\s+)` +
			`|(?P<String>"(?:[^"]|"")*")` +
			fmt.Sprintf(`|(?P<Timestamp>@\d+(?:%s\d+)?)`, dec) +
			fmt.Sprintf(`|(?P<Number>\d+(?:%s\d{3})*(?:%s\d+)?(?:[eE][-+]?\d+)?)`,
				group, dec) +
			`|(?P<Sibling>\[@[^\[\]]+\])` +
			`|(?P<Foreign>\[#[^\[\]]+\])` +
			`|(?P<Ident>[a-zA-Z_][a-zA-Z0-9_]*)` +
			fmt.Sprintf(`|(?P<ArgSep>%s)`, argSep) +
			`|(?P<Identity>@)` +
			fmt.Sprintf(`|(?P<Unit>%s)`, units) +
			`|(?P<Operators><>|>=|<=|=~|[-+*/^&=<>~()])`)
}

func parserForLocale(locale Locale) (*participle.Parser, error) {
	key := locale.cacheKey()

	parsersMu.Lock()
	defer parsersMu.Unlock()

	parser, pres := parsers[key]
	if pres {
		return parser, nil
	}

	def, err := buildLexer(locale)
	if err != nil {
		return nil, err
	}

	parser, err = participle.Build(
		&astFormula{},
		participle.Lexer(def))
	if err != nil {
		return nil, err
	}

	parsers[key] = parser
	return parser, nil
}

// Grammar. The leading "=" marking a cell as a formula is optional
// here; the editor strips or keeps it as it pleases.

type astFormula struct {
	Root *astExpression `[ "=" ] @@`
}

// Lowest binding level: concatenation and the comparison operators
// share it.
type astExpression struct {
	Pos   lexer.Position
	Left  *astAddExpression `@@`
	Terms []*astCompareTerm `{ @@ }`
}

type astCompareTerm struct {
	Op   string            `@("&" | "=~" | "=" | "<>" | ">=" | "<=" | ">" | "<" | "~")`
	Term *astAddExpression `@@`
}

type astAddExpression struct {
	Pos   lexer.Position
	Left  *astMulExpression `@@`
	Terms []*astAddTerm     `{ @@ }`
}

type astAddTerm struct {
	Op   string            `@("+" | "-")`
	Term *astMulExpression `@@`
}

type astMulExpression struct {
	Pos   lexer.Position
	Left  *astPowExpression `@@`
	Terms []*astMulTerm     `{ @@ }`
}

type astMulTerm struct {
	Op   string            `@("*" | "/")`
	Term *astPowExpression `@@`
}

// Exponentiation binds tighter than multiplication and associates to
// the right.
type astPowExpression struct {
	Pos      lexer.Position
	Base     *astUnary         `@@`
	Exponent *astPowExpression `[ "^" @@ ]`
}

type astUnary struct {
	Pos     lexer.Position
	Negated bool        `[ @"-" ]`
	Value   *astPrimary `@@`
}

type astPrimary struct {
	Pos lexer.Position

	Call *astCall `( @@`

	Number    *string `| @Number`
	Str       *string `| @String`
	Timestamp *string `| @Timestamp`
	Sibling   *string `| @Sibling`
	Foreign   *string `| @Foreign`
	Identity  *string `| @Identity`
	Constant  *string `| @Ident`

	Subexpression *astExpression `| "(" @@ ")" )`

	Unit *string `[ @Unit ]`
}

type astCall struct {
	Pos  lexer.Position
	Name string           `@Ident "("`
	Args []*astExpression `[ @@ { ArgSep @@ } ] ")"`
}

// Parse turns formula text into an expression tree. Parse failure is
// recoverable and reported as a nil result - including any numeric
// literal that fails locale aware conversion.
func Parse(text string, locale Locale) *Expression {
	expr, err := ParseWithError(text, locale)
	if err != nil {
		return nil
	}
	return expr
}

// ParseWithError is Parse with the underlying diagnostic, for callers
// that surface messages to users.
func ParseWithError(text string, locale Locale) (*Expression, error) {
	parser, err := parserForLocale(locale)
	if err != nil {
		return nil, err
	}

	ast := &astFormula{}
	err = parser.ParseString(text, ast)
	if err != nil {
		return nil, errors.Wrap(err, "formula parse")
	}

	b := &builder{locale: locale}
	root := b.expression(ast.Root)
	if b.err != nil {
		return nil, b.err
	}
	return root, nil
}
