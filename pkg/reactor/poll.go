// Package reactor implements spec §4.9's single event loop: a uniform
// poll_t interface over the OS-selected readiness primitive (epoll on
// Linux, kqueue on Darwin/BSD, a portable unix.Poll fallback elsewhere),
// a per-connection selector state machine, and a deadline-ordered timer
// heap. The teacher corpus has no raw-socket event loop to generalize
// from directly (its network code is an HTTP client over Tor circuits,
// see pkg/network/tor), so this package's shape is grounded on the
// teacher's CircuitPool registry instead: a mutex-guarded map from
// connection id to per-connection state plus background maintenance
// loops (pkg/network/tor/circuit_pool.go), adapted from HTTP circuits to
// raw fd-backed selectors.
package reactor

import "time"

// EventMask is the set of readiness conditions a registration cares
// about.
type EventMask uint32

const (
	EventRead EventMask = 1 << iota
	EventWrite
)

// ReadyEvent reports that id's registration is ready for the given
// events.
type ReadyEvent struct {
	ID     int
	Events EventMask
}

// Poller is the uniform poll_t interface spec §4.9 asks for: "the
// implementation selects the OS primitive (epoll / kqueue / iocp) behind
// a uniform poll_t interface".
type Poller interface {
	Add(fd, id int, events EventMask) error
	Modify(fd, id int, events EventMask) error
	Remove(fd int) error
	Wait(timeout time.Duration) ([]ReadyEvent, error)
	Close() error
}

// NewPoller returns the platform's Poller implementation.
func NewPoller() (Poller, error) {
	return newPlatformPoller()
}
