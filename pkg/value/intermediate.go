package value

// The intermediate kinds defer materialisation inside the query engine
// (spec §3, §4.5, §4.6). They are never returned from a query's project
// step (pkg/query always collects/aggregates them first) and never appear
// on the wire (pkg/serialize rejects them).

// NewMapFilter wraps base with a pending index vector indices (I64),
// deferring the gather until filterCollect materialises it.
func NewMapFilter(base, indices *Value) *Value {
	return &Value{Tag: TMapFilter, rc: 1, length: indices.length, base: base, aux: indices}
}

// MapFilterBase returns the wrapped base column.
func (v *Value) MapFilterBase() *Value { return v.base }

// MapFilterIndices returns the pending index vector.
func (v *Value) MapFilterIndices() *Value { return v.aux }

// NewMapGroup wraps base with a group-descriptor value (produced by the
// fused hash-aggregate's group-discovery phase), deferring aggregation.
func NewMapGroup(base, groupDesc *Value) *Value {
	return &Value{Tag: TMapGroup, rc: 1, length: base.length, base: base, aux: groupDesc}
}

// MapGroupBase returns the wrapped value column.
func (v *Value) MapGroupBase() *Value { return v.base }

// MapGroupDesc returns the group descriptor (opaque to callers outside
// pkg/query's aggregate machinery).
func (v *Value) MapGroupDesc() *Value { return v.aux }

// NewMapCommon wraps a single scalar representing a virtual constant
// column repeated across a parted partition (spec §3, §4.6).
func NewMapCommon(scalar *Value, repeatCount int64) *Value {
	return &Value{Tag: TMapCommon, rc: 1, length: repeatCount, base: scalar}
}

// MapCommonScalar returns the repeated scalar.
func (v *Value) MapCommonScalar() *Value { return v.base }

// NewPartedI64 wraps a LIST of per-partition I64 index vectors.
func NewPartedI64(perPartition *Value) *Value {
	return &Value{Tag: TPartedI64, rc: 1, length: perPartition.length, base: perPartition}
}

// PartedIndices returns the per-partition index-vector LIST.
func (v *Value) PartedIndices() *Value { return v.base }
