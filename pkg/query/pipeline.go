package query

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
	"github.com/RayforceDB/rayforce/pkg/vm"
)

// ProjectField is one non-reserved key of a query DICT: a projected
// column name and the expression that computes it (spec §4.5).
type ProjectField struct {
	Name string
	Expr *value.Value
}

// Query is the in-process stand-in for a parsed query DICT (spec §4.5):
// `from`/`where`/`by` are the three reserved keys, Project holds every
// other key in declaration order.
type Query struct {
	From    *value.Value
	Where   *value.Value // nil: no filter
	By      *value.Value // nil: no grouping
	Project []ProjectField
}

// QueryFromDict builds a Query from the DICT shape the reactor receives
// over the wire (spec §4.5): `from`/`where`/`by` are reserved keys,
// every other key is a projected output column named by the key with
// its value as the column expression.
func QueryFromDict(d *value.Value) (*Query, error) {
	if d.Tag != value.TDict {
		return nil, rferr.NewType("dict", d.Tag.String(), "query", "query.dict")
	}
	keys := d.Keys().Strs()
	vals := d.Values().Elems()

	q := &Query{}
	for i, k := range keys {
		switch k {
		case "from":
			q.From = vals[i]
		case "where":
			q.Where = vals[i]
		case "by":
			q.By = vals[i]
		default:
			q.Project = append(q.Project, ProjectField{Name: k, Expr: vals[i]})
		}
	}
	if q.From == nil {
		return nil, rferr.NewValue("from")
	}
	return q, nil
}

// EvalTopLevel is the reactor's SYNC/ASYNC dispatch rule (spec §4.9:
// "evaluate payload... else eval as value tree"): a DICT payload is a
// query (from/where/by/project), anything else is evaluated directly
// as a bare expression against an empty scope.
func EvalTopLevel(vmctx *vm.Context, expr *value.Value) (*value.Value, error) {
	if expr.Tag == value.TDict {
		q, err := QueryFromDict(expr)
		if err != nil {
			return nil, err
		}
		return Select(vmctx, q)
	}
	ctx := &evalCtx{VM: vmctx}
	return Eval(ctx, newEvalScope(nil), expr)
}

// Select runs the four-step pipeline from spec §4.5: fetch, filter,
// group, project.
func Select(vmctx *vm.Context, q *Query) (*value.Value, error) {
	ctx := &evalCtx{VM: vmctx}

	// 1. Fetch.
	fromScope := newEvalScope(nil)
	fetched, err := Eval(ctx, fromScope, q.From)
	if err != nil {
		return nil, err
	}
	if fetched.Tag != value.TTable {
		return nil, rferr.NewType("table", fetched.Tag.String(), "from", "query.from")
	}
	vmctx.PushQuery(fetched)
	defer vmctx.PopQuery()

	working := fetched

	// 2. Filter: MAPFILTER every column over the predicate's true
	// positions (spec §4.5 step 2).
	if q.Where != nil {
		filterScope := newEvalScope(working)
		pred, err := Eval(ctx, filterScope, q.Where)
		if err != nil {
			return nil, err
		}
		if pred.Tag != value.TB8 {
			return nil, rferr.NewType("b8 vector", pred.Tag.String(), "where", "query.where")
		}
		prev := working
		working, err = mapFilterTable(ctx, working, boolVectorToIndex(pred))
		if err != nil {
			return nil, err
		}
		// mapFilterTable transfers prev's columns into the new MAPFILTER
		// wrappers without bumping their rc (spec §3: callers transfer
		// ownership); only prev's own freshly-copied Names() vector is
		// orphaned by the replacement, so only that is reclaimed here.
		if prev != fetched {
			value.Drop(prev.Names(), ctx.VM.Heap, ctx.VM.RCSync)
		}
	}

	// 3. Group: MAPGROUP every column (including the key columns
	// themselves) over the discovered group descriptor (spec §4.5 step
	// 3). A bare reference to a key column in the project step still
	// needs to come back as one value per group rather than the raw
	// per-row column, so it goes through the same deferred wrapping as
	// any aggregated column; see the project step's
	// materializeMapGroupFirst call, which reduces a wrapped key column
	// to its group-representative row (every row of a group shares the
	// same key value by definition).
	if q.By != nil {
		groupScope := newEvalScope(working)
		groupKeyList, _, err := buildGroupKeyList(ctx, groupScope, q.By)
		if err != nil {
			return nil, err
		}
		prev := working
		working, err = mapGroupTable(working, groupKeyList)
		if err != nil {
			return nil, err
		}
		if prev != fetched {
			value.Drop(prev.Names(), ctx.VM.Heap, ctx.VM.RCSync)
		}
		vmctx.TopQuery().GroupBy = groupKeyList
	}

	// 4. Project: evaluate every output expression, materialising any
	// leftover deferred MAPFILTER/MAPGROUP view (spec §4.5 step 4).
	scope := newEvalScope(working)
	outNames := make([]string, len(q.Project))
	outCols := make([]*value.Value, len(q.Project))
	for i, f := range q.Project {
		v, err := Eval(ctx, scope, f.Expr)
		if err != nil {
			return nil, err
		}
		switch v.Tag {
		case value.TMapFilter:
			v, err = materializeMapFilter(ctx, v)
		case value.TMapGroup:
			v, err = materializeMapGroupFirst(ctx, scope, v)
		}
		if err != nil {
			return nil, err
		}
		outNames[i] = f.Name
		outCols[i] = v
	}
	return value.NewTable(value.NewSymbolVector(outNames), value.NewList(outCols))
}

// boolVectorToIndex converts a B8 predicate vector to the index vector of
// positions where it's true (spec §4.5 step 2: "one pass, writing
// positions where the predicate is true"). The true positions are
// accumulated into a roaring.Bitmap rather than appended to a plain
// slice: predicates over wide tables are frequently sparse or run-heavy,
// and the compressed container avoids a worst-case reallocation-heavy
// append loop for both cases.
func boolVectorToIndex(pred *value.Value) []int64 {
	bits := pred.U8s()
	bm := roaring.New()
	for i, b := range bits {
		if b != 0 {
			bm.Add(uint32(i))
		}
	}
	positions := bm.ToArray()
	idx := make([]int64, len(positions))
	for i, p := range positions {
		idx[i] = int64(p)
	}
	return idx
}

// mapFilterTable replaces every column of t with a MAPFILTER(column, idx)
// deferred view (spec §4.5 step 2).
func mapFilterTable(ctx *evalCtx, t *value.Value, idx []int64) (*value.Value, error) {
	idxValue, err := value.VectorFromI64(ctx.VM.Heap, idx)
	if err != nil {
		return nil, err
	}
	names := t.Names().Strs()
	cols := t.Columns().Elems()
	newCols := make([]*value.Value, len(cols))
	for i, c := range cols {
		newCols[i] = value.NewMapFilter(c, idxValue)
	}
	return value.NewTable(value.NewSymbolVector(append([]string(nil), names...)), value.NewList(newCols))
}

// materializeMapFilter performs the deferred gather: builds a concrete
// vector by reading base[indices[i]] for each i (spec §4.5 step 4: "If the
// result is a MAPFILTER it is materialised by gather").
func materializeMapFilter(ctx *evalCtx, v *value.Value) (*value.Value, error) {
	base := v.MapFilterBase()
	idx := v.MapFilterIndices().I64s()
	h := ctx.VM.Heap
	switch base.Tag {
	case value.TI64, value.TTimestamp:
		src := base.I64s()
		out := make([]int64, len(idx))
		for i, p := range idx {
			out[i] = src[p]
		}
		return value.VectorFromI64(h, out)
	case value.TI32, value.TDate, value.TTime:
		src := base.I32s()
		out := make([]int32, len(idx))
		for i, p := range idx {
			out[i] = src[p]
		}
		return value.VectorFromI32(h, out)
	case value.TF64:
		src := base.F64s()
		out := make([]float64, len(idx))
		for i, p := range idx {
			out[i] = src[p]
		}
		return value.VectorFromF64(h, out)
	case value.TU8, value.TB8, value.TC8:
		src := base.U8s()
		out, verr := value.NewVector(h, base.Tag, len(idx))
		if verr != nil {
			return nil, verr
		}
		dst := out.U8s()
		for i, p := range idx {
			dst[i] = src[p]
		}
		return out, nil
	case value.TSymbol:
		src := base.Strs()
		out := make([]string, len(idx))
		for i, p := range idx {
			out[i] = src[p]
		}
		return value.NewSymbolVector(out), nil
	default:
		return nil, rferr.NewNYI("materialize MAPFILTER for " + base.Tag.String())
	}
}

// mapGroupTable wraps every column of t, key columns included, in a
// MAPGROUP deferred view over groupKeyList (spec §4.5 step 3).
func mapGroupTable(t *value.Value, groupKeyList *value.Value) (*value.Value, error) {
	names := t.Names().Strs()
	cols := t.Columns().Elems()
	newCols := make([]*value.Value, len(cols))
	for i, c := range cols {
		newCols[i] = value.NewMapGroup(c, groupKeyList)
	}
	return value.NewTable(value.NewSymbolVector(append([]string(nil), names...)), value.NewList(newCols))
}

// materializeMapGroupFirst reduces a MAPGROUP column to one value per
// group by gathering its base column at each group's representative row
// (the first row that inserted the group, per spec §4.3) — the correct
// reduction for a bare key-column reference, since every row of a group
// shares the same key value by construction, and also usable for any
// column whose per-group value is wanted without a declared aggregate op.
func materializeMapGroupFirst(ctx *evalCtx, scope *evalScope, v *value.Value) (*value.Value, error) {
	base := v.MapGroupBase()
	keyList := v.MapGroupDesc()
	gi, err := groupIndexFor(scope, keyList, base)
	if err != nil {
		return nil, err
	}
	return gatherIndices(ctx.VM.Heap, base, gi.repRow)
}
