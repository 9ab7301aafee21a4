//go:build linux

package scheduler

import "golang.org/x/sys/unix"

// pinCurrentThread pins the calling OS thread to cpu. Workers call
// runtime.LockOSThread before this so the affinity sticks to the same OS
// thread the goroutine keeps running on (spec §4.2: "worker threads
// pinned to CPUs").
func pinCurrentThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
