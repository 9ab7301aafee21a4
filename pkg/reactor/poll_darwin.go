//go:build darwin

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	fd      int
	events  []unix.Kevent_t
	// registered tracks each fd's id and last-requested event mask so
	// Modify can re-register only the filters that changed.
	registered map[int]int
}

func newPlatformPoller() (Poller, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueuePoller{fd: fd, events: make([]unix.Kevent_t, 256), registered: make(map[int]int)}, nil
}

func (p *kqueuePoller) changeFor(fd, id int, events EventMask) []unix.Kevent_t {
	var changes []unix.Kevent_t
	readFlag := unix.EV_DELETE
	if events&EventRead != 0 {
		readFlag = unix.EV_ADD | unix.EV_ENABLE
	}
	changes = append(changes, unix.Kevent_t{
		Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: uint16(readFlag), Udata: nil,
	})
	writeFlag := unix.EV_DELETE
	if events&EventWrite != 0 {
		writeFlag = unix.EV_ADD | unix.EV_ENABLE
	}
	changes = append(changes, unix.Kevent_t{
		Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: uint16(writeFlag), Udata: nil,
	})
	_ = id
	return changes
}

func (p *kqueuePoller) Add(fd, id int, events EventMask) error {
	p.registered[fd] = id
	changes := p.changeFor(fd, id, events)
	_, err := unix.Kevent(p.fd, changes, nil, nil)
	return err
}

func (p *kqueuePoller) Modify(fd, id int, events EventMask) error {
	return p.Add(fd, id, events)
}

func (p *kqueuePoller) Remove(fd int) error {
	delete(p.registered, fd)
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, err := unix.Kevent(p.fd, changes, nil, nil)
	return err
}

func (p *kqueuePoller) Wait(timeout time.Duration) ([]ReadyEvent, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		spec := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &spec
	}
	n, err := unix.Kevent(p.fd, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	byID := make(map[int]EventMask, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Ident)
		id, ok := p.registered[fd]
		if !ok {
			continue
		}
		var m EventMask
		switch ev.Filter {
		case unix.EVFILT_READ:
			m = EventRead
		case unix.EVFILT_WRITE:
			m = EventWrite
		}
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] |= m
	}
	out := make([]ReadyEvent, len(order))
	for i, id := range order {
		out[i] = ReadyEvent{ID: id, Events: byID[id]}
	}
	return out, nil
}

func (p *kqueuePoller) Close() error { return unix.Close(p.fd) }
