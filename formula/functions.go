package formula

import (
	"math"
	"strings"
	"sync"

	"www.velocidex.com/golang/tabular/types"
)

// Function is a callable formula primary. MaxArgs of -1 means
// variadic.
type Function struct {
	Name    string
	MinArgs int
	MaxArgs int
	Call    func(args []types.Value) types.Value
}

var (
	functionsMu sync.Mutex
	functions   = make(map[string]*Function)
)

// RegisterFunction adds or replaces a function. Names are case
// insensitive.
func RegisterFunction(fn *Function) {
	functionsMu.Lock()
	defer functionsMu.Unlock()

	functions[strings.ToUpper(fn.Name)] = fn
}

// Lookup resolves a function by name. Identifiers lex as whole
// tokens, so a short function name can never shadow the prefix of a
// longer one.
func Lookup(name string) *Function {
	functionsMu.Lock()
	defer functionsMu.Unlock()

	return functions[strings.ToUpper(name)]
}

func numeric1(name string, f func(float64) float64) *Function {
	return &Function{
		Name:    name,
		MinArgs: 1,
		MaxArgs: 1,
		Call: func(args []types.Value) types.Value {
			x, ok := args[0].AsFloat()
			if !ok {
				return types.Invalid()
			}
			return types.Double(f(x))
		},
	}
}

func init() {
	RegisterFunction(numeric1("ABS", math.Abs))
	RegisterFunction(numeric1("SQRT", math.Sqrt))

	RegisterFunction(&Function{
		Name:    "ROUND",
		MinArgs: 1,
		MaxArgs: 2,
		Call: func(args []types.Value) types.Value {
			x, ok := args[0].AsFloat()
			if !ok {
				return types.Invalid()
			}
			digits := int64(0)
			if len(args) == 2 {
				d, ok := args[1].AsInt()
				if !ok {
					return types.Invalid()
				}
				digits = d
			}
			scale := math.Pow(10, float64(digits))
			rounded := math.Floor(x*scale+0.5) / scale
			if digits <= 0 && rounded == math.Trunc(rounded) {
				return types.Int(int64(rounded))
			}
			return types.Double(rounded)
		},
	})

	RegisterFunction(&Function{
		Name:    "MIN",
		MinArgs: 1,
		MaxArgs: -1,
		Call:    func(args []types.Value) types.Value { return pick(args, true) },
	})

	RegisterFunction(&Function{
		Name:    "MAX",
		MinArgs: 1,
		MaxArgs: -1,
		Call:    func(args []types.Value) types.Value { return pick(args, false) },
	})

	RegisterFunction(&Function{
		Name:    "SUM",
		MinArgs: 1,
		MaxArgs: -1,
		Call: func(args []types.Value) types.Value {
			total := types.Int(0)
			for _, arg := range args {
				if arg.IsEmpty() {
					continue
				}
				total = types.Add(total, arg)
			}
			return total
		},
	})

	RegisterFunction(&Function{
		Name:    "IF",
		MinArgs: 2,
		MaxArgs: 3,
		Call: func(args []types.Value) types.Value {
			if args[0].IsInvalid() {
				return types.Invalid()
			}
			if args[0].IsTrue() {
				return args[1]
			}
			if len(args) == 3 {
				return args[2]
			}
			return types.Empty()
		},
	})

	RegisterFunction(&Function{
		Name:    "LEN",
		MinArgs: 1,
		MaxArgs: 1,
		Call: func(args []types.Value) types.Value {
			if args[0].IsInvalid() {
				return types.Invalid()
			}
			return types.Int(int64(len(args[0].Display())))
		},
	})

	RegisterFunction(&Function{
		Name:    "UPPER",
		MinArgs: 1,
		MaxArgs: 1,
		Call:    stringFn(strings.ToUpper),
	})

	RegisterFunction(&Function{
		Name:    "LOWER",
		MinArgs: 1,
		MaxArgs: 1,
		Call:    stringFn(strings.ToLower),
	})

	RegisterFunction(&Function{
		Name:    "TRIM",
		MinArgs: 1,
		MaxArgs: 1,
		Call:    stringFn(strings.TrimSpace),
	})

	RegisterFunction(&Function{
		Name:    "CONCAT",
		MinArgs: 0,
		MaxArgs: -1,
		Call: func(args []types.Value) types.Value {
			result := types.String("")
			for _, arg := range args {
				result = types.Concat(result, arg)
			}
			return result
		},
	})

	RegisterFunction(&Function{
		Name:    "NOT",
		MinArgs: 1,
		MaxArgs: 1,
		Call: func(args []types.Value) types.Value {
			if args[0].IsInvalid() {
				return types.Invalid()
			}
			return types.Bool(!args[0].IsTrue())
		},
	})

	RegisterFunction(&Function{
		Name:    "ISEMPTY",
		MinArgs: 1,
		MaxArgs: 1,
		Call: func(args []types.Value) types.Value {
			return types.Bool(args[0].IsEmpty())
		},
	})
}

func stringFn(f func(string) string) func([]types.Value) types.Value {
	return func(args []types.Value) types.Value {
		if args[0].IsInvalid() {
			return types.Invalid()
		}
		return types.String(f(args[0].Display()))
	}
}

func pick(args []types.Value, wantLess bool) types.Value {
	var best types.Value
	found := false
	for _, arg := range args {
		if arg.IsInvalid() {
			return types.Invalid()
		}
		if arg.IsEmpty() {
			continue
		}
		if !found || (wantLess && arg.Less(best)) ||
			(!wantLess && best.Less(arg)) {
			best = arg
			found = true
		}
	}
	if !found {
		return types.Empty()
	}
	return best
}
