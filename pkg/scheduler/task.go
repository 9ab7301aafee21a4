package scheduler

import (
	"github.com/RayforceDB/rayforce/pkg/vm"
)

// TaskFunc is a unit of pool work (spec §4.2's add_task): it runs against
// the executor's own VM context and returns a value or an error. The
// spec's C-level "argc, argv..." (at most 8 opaque pointer arguments) is
// expressed here as an ordinary Go closure capturing its arguments —
// idiomatic Go has no need for the C calling-convention workaround the
// original arity cap existed for.
//
// This is a type alias (not a new named type) for vm.TaskFunc so that
// *Pool satisfies vm.Pool structurally: pkg/query and pkg/sortpkg depend
// on that interface instead of importing pkg/scheduler directly.
type TaskFunc = vm.TaskFunc

// task pairs a TaskFunc with its submission index, so results can be
// gathered back into a LIST "indexed by submission order" (spec §4.2)
// even though tasks complete out of order.
type task struct {
	idx int
	fn  TaskFunc
}
