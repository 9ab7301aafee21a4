//go:build !linux && !darwin

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollFallback implements Poller over poll(2) for unix platforms with
// neither epoll nor kqueue. It is O(registered fds) per Wait, same as
// any poll(2)-based implementation; fine for the handful of connections
// a single RayforceDB instance serves.
type pollFallback struct {
	fds []unix.PollFd
	ids map[int32]int // fd -> id
}

func newPlatformPoller() (Poller, error) {
	return &pollFallback{ids: make(map[int32]int)}, nil
}

func (p *pollFallback) indexOf(fd int32) int {
	for i, pfd := range p.fds {
		if pfd.Fd == fd {
			return i
		}
	}
	return -1
}

func (p *pollFallback) Add(fd, id int, events EventMask) error {
	var e int16
	if events&EventRead != 0 {
		e |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.POLLOUT
	}
	p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: e})
	p.ids[int32(fd)] = id
	return nil
}

func (p *pollFallback) Modify(fd, id int, events EventMask) error {
	i := p.indexOf(int32(fd))
	if i < 0 {
		return p.Add(fd, id, events)
	}
	var e int16
	if events&EventRead != 0 {
		e |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.POLLOUT
	}
	p.fds[i].Events = e
	return nil
}

func (p *pollFallback) Remove(fd int) error {
	i := p.indexOf(int32(fd))
	if i < 0 {
		return nil
	}
	p.fds = append(p.fds[:i], p.fds[i+1:]...)
	delete(p.ids, int32(fd))
	return nil
}

func (p *pollFallback) Wait(timeout time.Duration) ([]ReadyEvent, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.Poll(p.fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]ReadyEvent, 0, n)
	for _, pfd := range p.fds {
		if pfd.Revents == 0 {
			continue
		}
		var m EventMask
		if pfd.Revents&unix.POLLIN != 0 {
			m |= EventRead
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			m |= EventWrite
		}
		if pfd.Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			m |= EventRead | EventWrite
		}
		out = append(out, ReadyEvent{ID: p.ids[pfd.Fd], Events: m})
	}
	return out, nil
}

func (p *pollFallback) Close() error { return nil }
