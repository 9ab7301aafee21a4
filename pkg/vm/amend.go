package vm

import (
	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
)

// Amend implements spec §5's "ray_amend" resolution: rather than exposing
// an in-place mutating primitive, the core provides a pure function that
// takes a copy-on-write'd v, writes newValues at indices, and returns the
// (possibly new) value. Callers that held the old v keep seeing the old
// contents, since Cow only returns v itself when v is uniquely referenced.
func Amend(ctx *Context, v, indices, newValues *value.Value) (*value.Value, error) {
	if indices.Tag != value.TI64 {
		return nil, rferr.NewType("i64 vector", indices.Tag.String(), "indices", "amend")
	}
	idx := indices.I64s()
	if int64(len(idx)) != newValues.Len() && newValues.Len() != 1 {
		return nil, rferr.NewLength(len(idx), int(newValues.Len()), nil)
	}

	out := value.Cow(v, ctx.Heap)

	scalar := newValues.Len() == 1
	switch out.Tag {
	case value.TI64, value.TTimestamp:
		dst := out.I64s()
		src := newValues.I64s()
		for i, p := range idx {
			if p < 0 || p >= int64(len(dst)) {
				return nil, rferr.NewIndex(int(p), len(dst))
			}
			if scalar {
				dst[p] = src[0]
			} else {
				dst[p] = src[i]
			}
		}
	case value.TI32, value.TDate, value.TTime:
		dst := out.I32s()
		src := newValues.I32s()
		for i, p := range idx {
			if p < 0 || p >= int64(len(dst)) {
				return nil, rferr.NewIndex(int(p), len(dst))
			}
			if scalar {
				dst[p] = src[0]
			} else {
				dst[p] = src[i]
			}
		}
	case value.TF64:
		dst := out.F64s()
		src := newValues.F64s()
		for i, p := range idx {
			if p < 0 || p >= int64(len(dst)) {
				return nil, rferr.NewIndex(int(p), len(dst))
			}
			if scalar {
				dst[p] = src[0]
			} else {
				dst[p] = src[i]
			}
		}
	case value.TU8, value.TB8, value.TC8:
		dst := out.U8s()
		src := newValues.U8s()
		for i, p := range idx {
			if p < 0 || p >= int64(len(dst)) {
				return nil, rferr.NewIndex(int(p), len(dst))
			}
			if scalar {
				dst[p] = src[0]
			} else {
				dst[p] = src[i]
			}
		}
	case value.TSymbol:
		dst := out.Strs()
		src := newValues.Strs()
		for i, p := range idx {
			if p < 0 || p >= int64(len(dst)) {
				return nil, rferr.NewIndex(int(p), len(dst))
			}
			if scalar {
				dst[p] = src[0]
			} else {
				dst[p] = src[i]
			}
		}
	default:
		return nil, rferr.NewNYI("amend " + out.Tag.String())
	}
	return out, nil
}
