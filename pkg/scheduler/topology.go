package scheduler

import "runtime"

// Topology is a CPU placement plan for a pool's workers: one logical CPU
// id per non-main executor, ordered so consecutive assignments spread
// across physical cores first, then fill in SMT siblings (spec §4.2:
// "a topology builder that interleaves physical cores then SMT
// siblings"). Go has no portable way to read /sys/devices/system/cpu
// topology without a cgo dependency or a Linux-only syscall path the rest
// of this otherwise-portable package avoids, so BuildTopology derives an
// interleaved assignment from GOMAXPROCS assuming two SMT threads per
// core when the CPU count is even and greater than the physical core
// hint — the same approximation the teacher's pool sizing
// (`runtime.NumCPU() * 2`) makes implicitly.
type Topology struct {
	cpus []int
}

// BuildTopology returns a topology with n CPU assignments.
func BuildTopology(n int) *Topology {
	logical := runtime.NumCPU()
	if logical < 1 {
		logical = 1
	}
	physical := logical
	smtPerCore := 1
	if logical%2 == 0 && logical >= 4 {
		physical = logical / 2
		smtPerCore = 2
	}

	cpus := make([]int, 0, n)
	// Interleave: first one pass over physical cores (thread 0 of each),
	// then a second pass over SMT siblings (thread 1 of each), repeating
	// if n exceeds logical.
	for len(cpus) < n {
		for sibling := 0; sibling < smtPerCore && len(cpus) < n; sibling++ {
			for core := 0; core < physical && len(cpus) < n; core++ {
				cpus = append(cpus, sibling*physical+core)
			}
		}
	}
	return &Topology{cpus: cpus}
}

// CPUFor returns the logical CPU id assigned to worker index i (0-based
// among workers, not counting the main executor).
func (t *Topology) CPUFor(i int) int { return t.cpus[i%len(t.cpus)] }
