// Package query implements RayforceDB's select pipeline (spec §4.5):
// fetch, filter, group, project. The fused hash-aggregate (§4.5.1, see
// aggregate.go) discovers groups and reduces the first column that needs
// them in one pass; sibling projections over the same grouping reuse the
// cached groupIndex (and, for the same value column, the cached stats
// outright) instead of re-discovering or re-reducing, so only the first
// aggregate op against a given (by-list, column) pair actually pays for a
// fused scan — everything after it is cache reuse. The parser/evaluator
// proper is out of scope (spec §1); this package's eval.go is the minimal
// in-process driver SPEC_FULL.md's "Supplemented Features" describes,
// sufficient to exercise the pipeline end-to-end.
package query

import (
	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
)

// buildGroupKeyList resolves the `by` expression into the LIST of key
// columns the fused aggregate groups on (spec §4.5 step 3: "single symbol
// -> single column; dict -> named keys with evaluated values").
func buildGroupKeyList(ctx *evalCtx, scope *evalScope, by *value.Value) (*value.Value, []string, error) {
	if by.Tag == -value.TSymbol {
		col, err := resolveColumn(scope, by.Symbol())
		if err != nil {
			return nil, nil, err
		}
		return value.NewList([]*value.Value{col}), []string{by.Symbol()}, nil
	}
	if by.Tag == value.TDict {
		names := by.Keys().Strs()
		valExprs := by.Values().Elems()
		cols := make([]*value.Value, len(valExprs))
		for i, expr := range valExprs {
			v, err := Eval(ctx, scope, expr)
			if err != nil {
				return nil, nil, err
			}
			cols[i] = v
		}
		return value.NewList(cols), append([]string(nil), names...), nil
	}
	return nil, nil, rferr.NewType("symbol or dict", by.Tag.String(), "by", "query.by")
}
