package query

import (
	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
	"github.com/RayforceDB/rayforce/pkg/vm"
)

// evalCtx carries the executor state an expression evaluation needs.
type evalCtx struct {
	VM *vm.Context
}

// evalScope is the column-resolution scope for one Select() call (spec
// §4.5's "column-resolution scope"): the current working table, plus a
// cache of discovered groupings shared across every projection in the
// same select so "x: (sum price)" and "y: (max price)" reuse one
// group-discovery pass (spec §4.5.1).
type evalScope struct {
	table      *value.Value
	groupCache map[*value.Value]*groupIndex
	aggCache   map[aggCacheKey]*cachedAgg
}

func newEvalScope(table *value.Value) *evalScope {
	return &evalScope{
		table:      table,
		groupCache: make(map[*value.Value]*groupIndex),
		aggCache:   make(map[aggCacheKey]*cachedAgg),
	}
}

func resolveColumn(scope *evalScope, name string) (*value.Value, error) {
	col := scope.table.ColumnByName(name)
	if col == nil {
		return nil, rferr.NewValue(name)
	}
	return col, nil
}

// evalFunc is one registry entry: a host implementation of a Rayfall
// built-in, operating against the current evaluation scope.
type evalFunc func(ctx *evalCtx, scope *evalScope, args []*value.Value) (*value.Value, error)

var registry map[string]evalFunc

func init() {
	registry = map[string]evalFunc{
		"+":     fnPlus,
		"-":     fnMinus,
		">":     fnGT,
		"<":     fnLT,
		">=":    fnGE,
		"<=":    fnLE,
		"=":     fnEQ,
		"!=":    fnNE,
		"sum":   aggFunc(aggSum),
		"count": aggFunc(aggCount),
		"avg":   aggFunc(aggAvg),
		"min":   aggFunc(aggMin),
		"max":   aggFunc(aggMax),
		"first": aggFunc(aggFirst),
		"last":  aggFunc(aggLast),
	}
}

// Eval evaluates expr against scope. Expressions are represented as
// S-expression-shaped value trees (spec's Rayfall surface syntax, minus
// the tokenizer/parser which is out of scope per spec §1): a bare SYMBOL
// atom is a column reference, a LIST whose first element is a SYMBOL atom
// is a function call, anything else is a literal.
func Eval(ctx *evalCtx, scope *evalScope, expr *value.Value) (*value.Value, error) {
	switch {
	case expr.Tag == -value.TSymbol:
		return resolveColumn(scope, expr.Symbol())
	case expr.Tag == value.TList && len(expr.Elems()) > 0 && expr.Elems()[0].Tag == -value.TSymbol:
		elems := expr.Elems()
		name := elems[0].Symbol()
		fn, ok := registry[name]
		if !ok {
			return nil, rferr.NewNYI(name)
		}
		args := make([]*value.Value, len(elems)-1)
		for i, a := range elems[1:] {
			v, err := Eval(ctx, scope, a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return fn(ctx, scope, args)
	default:
		return expr, nil
	}
}

func numericArgs2(args []*value.Value) (*value.Value, *value.Value, error) {
	if len(args) != 2 {
		return nil, nil, rferr.NewArity(2, len(args))
	}
	return args[0], args[1], nil
}

func scalarF64(v *value.Value) (float64, bool) {
	switch v.Tag {
	case -value.TF64:
		return v.F64(), true
	case -value.TI64, -value.TI32, -value.TI16, -value.TU8, -value.TTimestamp, -value.TDate, -value.TTime:
		return float64(v.I64()), true
	default:
		return 0, false
	}
}

func fnPlus(ctx *evalCtx, scope *evalScope, args []*value.Value) (*value.Value, error) {
	a, b, err := numericArgs2(args)
	if err != nil {
		return nil, err
	}
	af, aok := scalarF64(a)
	bf, bok := scalarF64(b)
	if !aok || !bok {
		return nil, rferr.NewType("numeric", "non-numeric", "+", "")
	}
	return value.NewF64(af + bf), nil
}

func fnMinus(ctx *evalCtx, scope *evalScope, args []*value.Value) (*value.Value, error) {
	a, b, err := numericArgs2(args)
	if err != nil {
		return nil, err
	}
	af, _ := scalarF64(a)
	bf, _ := scalarF64(b)
	return value.NewF64(af - bf), nil
}

func cmpBuiltin(ctx *evalCtx, args []*value.Value, pred func(float64, float64) bool) (*value.Value, error) {
	col, lit, err := numericArgs2(args)
	if err != nil {
		return nil, err
	}
	threshold, ok := scalarF64(lit)
	if !ok {
		return nil, rferr.NewType("numeric", lit.Tag.String(), "compare", "")
	}
	if col.Tag.IsVector() {
		n := int(col.Len())
		out, verr := value.VectorFromBool(ctx.VM.Heap, make([]bool, n))
		if verr != nil {
			return nil, verr
		}
		dst := out.U8s()
		for i := 0; i < n; i++ {
			x := elemAsF64(col, i)
			if pred(x, threshold) {
				dst[i] = 1
			}
		}
		return out, nil
	}
	x, _ := scalarF64(col)
	return value.NewB8(pred(x, threshold)), nil
}

func fnGT(ctx *evalCtx, scope *evalScope, args []*value.Value) (*value.Value, error) {
	return cmpBuiltin(ctx, args, func(a, b float64) bool { return a > b })
}
func fnLT(ctx *evalCtx, scope *evalScope, args []*value.Value) (*value.Value, error) {
	return cmpBuiltin(ctx, args, func(a, b float64) bool { return a < b })
}
func fnGE(ctx *evalCtx, scope *evalScope, args []*value.Value) (*value.Value, error) {
	return cmpBuiltin(ctx, args, func(a, b float64) bool { return a >= b })
}
func fnLE(ctx *evalCtx, scope *evalScope, args []*value.Value) (*value.Value, error) {
	return cmpBuiltin(ctx, args, func(a, b float64) bool { return a <= b })
}
func fnEQ(ctx *evalCtx, scope *evalScope, args []*value.Value) (*value.Value, error) {
	return cmpBuiltin(ctx, args, func(a, b float64) bool { return a == b })
}
func fnNE(ctx *evalCtx, scope *evalScope, args []*value.Value) (*value.Value, error) {
	return cmpBuiltin(ctx, args, func(a, b float64) bool { return a != b })
}

func elemAsF64(col *value.Value, i int) float64 {
	switch col.Tag {
	case value.TF64:
		return col.F64s()[i]
	case value.TI64, value.TTimestamp:
		return float64(col.I64s()[i])
	case value.TI32, value.TDate, value.TTime:
		return float64(col.I32s()[i])
	case value.TI16:
		return float64(col.I16s()[i])
	case value.TU8, value.TB8, value.TC8:
		return float64(col.U8s()[i])
	default:
		return 0
	}
}
