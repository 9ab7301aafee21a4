// Package vm implements the thread-local VM context from spec §3: the
// current heap, the query-context stack, a reusable per-thread error
// record, and the rc_sync flag. Per spec §9's re-architecture note on
// "global mutable state", this is modeled as an explicit handle passed
// into every public entry rather than a hidden OS thread-local — each
// pkg/scheduler executor owns exactly one *Context for its lifetime.
package vm

import (
	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
)

// QueryCtx is one frame of the query-context stack (spec §9: "Query
// contexts form a stack (parent pointer); expressed as a per-thread stack
// owned by the VM, not as graph edges between values"). It holds a strong
// reference to the table a `from` clause resolved to and, once a `by`
// clause has been seen, the packed list of grouping key columns.
type QueryCtx struct {
	Parent  *QueryCtx
	Table   *value.Value // strong ref so column lookups find it (spec §4.5 step 1)
	GroupBy *value.Value // LIST of key columns, set once `by` is evaluated
}

// TaskFunc is the worker-pool task signature from spec §4.2's add_task:
// a closure run against one executor's own VM context, returning a value
// or an error. Declared here rather than in pkg/scheduler (which already
// imports pkg/vm for this same *Context type) so pkg/query and
// pkg/sortpkg can depend on the pool's task shape without importing
// pkg/scheduler and creating an import cycle.
type TaskFunc func(ctx *Context) (*value.Value, error)

// Pool is the subset of pkg/scheduler.Pool's API that data-parallel
// consumers (the query engine's fused hash-aggregate, the sort
// dispatcher) need in order to fan work out across executors (spec
// §4.2). *pkg/scheduler.Pool satisfies this interface.
type Pool interface {
	Prepare()
	AddTask(fn TaskFunc) int
	Run() (*value.Value, error)
	SplitBy(nRows, nGroups int) int
}

// Context is one executor's VM state: its heap, its query-context stack,
// its reusable error record, and its rc_sync mode.
type Context struct {
	Heap       *heap.Heap
	ExecutorID int

	// RCSync is true while this executor's RC operations must use atomic
	// read-modify-write — set for the duration of a pool fan-out (spec
	// §3, §4.2). Workers set it for their whole lifetime; the main
	// executor's VM toggles it only while a fan-out is in flight.
	RCSync bool

	// Pool is the worker pool this executor's data-parallel operations
	// (the fused hash-aggregate's parallel partial-aggregate path,
	// pkg/sortpkg's parallel dispatch) may fan out through. Nil when no
	// pool is available (e.g. a standalone/test VM), in which case those
	// callers fall back to running serially or on an ad hoc goroutine
	// group of their own.
	Pool Pool

	// Metrics tallies every error this context raises (spec §7's
	// ErrorMetrics counter collector). Shared across all executors sharing
	// one pool so a single collector sees the whole process's error rate;
	// nil is safe (SetErr skips recording) for standalone/test contexts
	// that don't care to track it.
	Metrics *rferr.Metrics

	err   rferr.Error
	hasErr bool

	query *QueryCtx
}

// New creates a VM context bound to h, identified by executorID (0 is
// always the calling/main executor per spec §4.2). It gets its own error
// metrics collector; use WithMetrics to share one across a pool's
// executors instead.
func New(h *heap.Heap, executorID int) *Context {
	return &Context{Heap: h, ExecutorID: executorID, Metrics: rferr.NewMetrics()}
}

// WithMetrics overrides ctx's metrics collector, typically so every
// executor spawned off the same pool records into one shared *Metrics.
func (c *Context) WithMetrics(m *rferr.Metrics) *Context {
	c.Metrics = m
	return c
}

// SetErr records e in the reusable per-thread error slot, tallies it in
// Metrics if one is attached, and returns the shared ERR sentinel value
// for the caller to propagate.
func (c *Context) SetErr(e *rferr.Error) *value.Value {
	c.err = *e
	c.hasErr = true
	if c.Metrics != nil {
		c.Metrics.Record(e)
	}
	return value.ErrSentinel()
}

// ClearErr resets the error slot; called once the caller has consumed it.
func (c *Context) ClearErr() { c.hasErr = false }

// Err returns the current error record and whether one is set.
func (c *Context) Err() (*rferr.Error, bool) {
	if !c.hasErr {
		return nil, false
	}
	return &c.err, true
}

// PushQuery pushes a new query-context frame, parented to the current top.
func (c *Context) PushQuery(table *value.Value) *QueryCtx {
	q := &QueryCtx{Parent: c.query, Table: table}
	c.query = q
	return q
}

// PopQuery pops the current query-context frame back to its parent.
func (c *Context) PopQuery() {
	if c.query != nil {
		c.query = c.query.Parent
	}
}

// TopQuery returns the current query-context frame, or nil if none is
// active.
func (c *Context) TopQuery() *QueryCtx { return c.query }
