//go:build !linux

package scheduler

// pinCurrentThread is a no-op on platforms without a portable CPU-affinity
// syscall exposed by golang.org/x/sys/unix (spec §4.2's pinning is a
// scheduling hint, not a correctness requirement).
func pinCurrentThread(cpu int) error { return nil }
