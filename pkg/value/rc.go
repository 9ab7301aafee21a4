package value

import (
	"sync/atomic"

	"github.com/RayforceDB/rayforce/pkg/heap"
)

// Clone increments v's reference count and returns v unchanged (spec §3).
// sync selects atomic vs plain increment; callers pass the VM's rc_sync
// flag (true while a worker-pool fan-out is active).
func Clone(v *Value, sync bool) *Value {
	if v == nil {
		return nil
	}
	if sync {
		atomic.AddInt32(&v.rc, 1)
	} else {
		v.rc++
	}
	return v
}

// Drop decrements v's reference count; at zero it recursively drops owned
// children (LIST/DICT/TABLE/MAP* elements) then returns the vector's
// backing block, if any, to h.
func Drop(v *Value, h *heap.Heap, sync bool) {
	if v == nil || v == nullObj || v == errObj {
		return
	}
	var rc int32
	if sync {
		rc = atomic.AddInt32(&v.rc, -1)
	} else {
		v.rc--
		rc = v.rc
	}
	if rc > 0 {
		return
	}

	for _, child := range v.elems {
		Drop(child, h, sync)
	}
	if v.base != nil {
		Drop(v.base, h, sync)
	}
	if v.aux != nil {
		Drop(v.aux, h, sync)
	}
	if v.block != nil && h != nil && v.Attrs&AttrFileBacked == 0 {
		h.Free(v.block)
	}
}

// Cow returns v unchanged if it is uniquely referenced (rc==1), else
// allocates and returns a deep copy with rc==1, per spec §3's copy-on-write
// helper. h is used to allocate the copy's vector payload, if any.
func Cow(v *Value, h *heap.Heap) *Value {
	if v == nil {
		return nil
	}
	if atomic.LoadInt32(&v.rc) <= 1 {
		return v
	}
	return deepCopy(v, h)
}

func deepCopy(v *Value, h *heap.Heap) *Value {
	nv := &Value{Tag: v.Tag, Attrs: v.Attrs, rc: 1, length: v.length,
		i64: v.i64, f64: v.f64, guid: v.guid, sym: v.sym, fn: v.fn}

	if v.block != nil {
		b, err := h.Alloc(len(v.block.Data))
		if err != nil {
			// OOM during cow: degrade to aliasing the original bytes
			// rather than losing the value outright. Callers that care
			// about OOM propagate it themselves before calling Cow.
			nv.block = v.block
		} else {
			copy(b.Data, v.block.Data)
			nv.block = b
		}
	}
	if v.strs != nil {
		nv.strs = append([]string(nil), v.strs...)
	}
	if v.elems != nil {
		nv.elems = make([]*Value, len(v.elems))
		for i, e := range v.elems {
			nv.elems[i] = Clone(e, false)
		}
	}
	if v.base != nil {
		nv.base = Clone(v.base, false)
	}
	if v.aux != nil {
		nv.aux = Clone(v.aux, false)
	}
	return nv
}
