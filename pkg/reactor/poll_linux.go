//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	fd     int
	events []unix.EpollEvent
}

func newPlatformPoller() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{fd: fd, events: make([]unix.EpollEvent, 256)}, nil
}

func epollEventsOf(m EventMask) uint32 {
	var e uint32
	if m&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if m&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func (p *epollPoller) Add(fd, id int, events EventMask) error {
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: epollEventsOf(events), Fd: int32(id)})
}

func (p *epollPoller) Modify(fd, id int, events EventMask) error {
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: epollEventsOf(events), Fd: int32(id)})
}

func (p *epollPoller) Remove(fd int) error {
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for at most timeout (negative means block indefinitely,
// matching spec §4.9's "next-poll timeout is min(deadline-now, INFINITE)").
func (p *epollPoller) Wait(timeout time.Duration) ([]ReadyEvent, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(p.fd, p.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]ReadyEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		var m EventMask
		if ev.Events&unix.EPOLLIN != 0 {
			m |= EventRead
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			m |= EventWrite
		}
		if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			m |= EventRead | EventWrite
		}
		out = append(out, ReadyEvent{ID: int(ev.Fd), Events: m})
	}
	return out, nil
}

func (p *epollPoller) Close() error { return unix.Close(p.fd) }
