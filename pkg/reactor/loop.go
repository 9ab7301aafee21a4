package reactor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/RayforceDB/rayforce/pkg/serialize"
)

// stdinFd, stdoutFd, stderrFd are reserved; registration ids are handed
// out starting above them (spec §4.9: "ids... never collide with
// 0/1/2").
const (
	stdinFd  = 0
	stdoutFd = 1
	stderrFd = 2
)

// Handler receives fully-assembled frames and user lifecycle hooks. Eval
// runs a SYNC or ASYNC frame's payload and returns the result (or error)
// value already encoded for RESP; for ASYNC the return value is ignored.
type Handler interface {
	Eval(id int, payload []byte) ([]byte, error)
	OnOpen(id int)
	OnClose(id int)
}

// Loop is spec §4.9's single event loop: one Poller multiplexing stdin,
// a listening socket, accepted connections, and an eventfd wake,
// cooperating with a TimerQueue and a freelist-backed Selector registry.
type Loop struct {
	poller  Poller
	timers  *TimerQueue
	handler Handler

	listenFd int // -1 if no listen socket
	wakeFd   int // eventfd used for SIGINT cancellation

	mu        sync.Mutex
	selectors map[int]*Selector // id -> selector
	fdOf      map[int]int       // id -> fd, for Poller.Remove
	freeIDs   []int
	nextID    int

	sigCh   chan os.Signal
	exit    bool
	ExitCode int
}

// New returns a Loop. listenFd is the already-bound, already-listening
// socket fd to accept connections on, or -1 to run without one (spec §6:
// "a single optional port flag enables the listening socket").
func New(listenFd int) (*Loop, error) {
	p, err := newPlatformPoller()
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		p.Close()
		return nil, err
	}
	l := &Loop{
		poller:    p,
		timers:    NewTimerQueue(),
		listenFd:  listenFd,
		wakeFd:    wakeFd,
		selectors: make(map[int]*Selector),
		fdOf:      make(map[int]int),
		nextID:    3, // ids 0/1/2 are reserved (spec §4.9)
		sigCh:     make(chan os.Signal, 1),
	}
	return l, nil
}

// allocID pops a freed id or mints a new one (spec §4.9: "registration
// hands out ids from a freelist so that ids are stable... and never
// collide with 0/1/2").
func (l *Loop) allocID() int {
	if n := len(l.freeIDs); n > 0 {
		id := l.freeIDs[n-1]
		l.freeIDs = l.freeIDs[:n-1]
		return id
	}
	id := l.nextID
	l.nextID++
	return id
}

// Register adds fd (a freshly accepted or connected socket) to the loop
// in AWAIT_HANDSHAKE state.
func (l *Loop) Register(fd int) (*Selector, error) {
	l.mu.Lock()
	id := l.allocID()
	sel := NewSelector(id, fd)
	sel.State = StateAwaitHandshake
	l.selectors[id] = sel
	l.fdOf[id] = fd
	l.mu.Unlock()

	if err := l.poller.Add(fd, id, EventRead); err != nil {
		l.unregister(id)
		return nil, err
	}
	return sel, nil
}

// unregister removes id's selector, returns its fd to the poller and the
// id to the freelist, and fires the user close-hook (.z.pc).
func (l *Loop) unregister(id int) {
	l.mu.Lock()
	_, ok := l.selectors[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	fd := l.fdOf[id]
	delete(l.selectors, id)
	delete(l.fdOf, id)
	l.freeIDs = append(l.freeIDs, id)
	l.mu.Unlock()

	l.poller.Remove(fd)
	unix.Close(fd)
	if l.handler != nil {
		l.handler.OnClose(id)
	}
}

// SetHandler wires the frame/lifecycle callback the loop dispatches
// into.
func (l *Loop) SetHandler(h Handler) { l.handler = h }

// Cancel arms SIGINT -> eventfd cancellation (spec §4.9: "a SIGINT
// handler writes one byte to the eventfd").
func (l *Loop) Cancel() {
	signal.Notify(l.sigCh, syscall.SIGINT)
	go func() {
		<-l.sigCh
		var buf [8]byte
		buf[0] = 1
		unix.Write(l.wakeFd, buf[:])
	}()
}

// Run executes the reactor loop until Stop is called or SIGINT fires.
// Handlers never block indefinitely (spec §5): each Wait iteration
// processes exactly the events and due timers it observed, then loops.
func (l *Loop) Run() error {
	if err := l.poller.Add(l.wakeFd, -1, EventRead); err != nil {
		return err
	}
	if l.listenFd >= 0 {
		if err := l.poller.Add(l.listenFd, -2, EventRead); err != nil {
			return err
		}
	}
	for !l.exit {
		timeout := l.timers.NextTimeout()
		events, err := l.poller.Wait(timeout)
		if err != nil {
			return err
		}
		l.timers.FireDue()
		for _, ev := range events {
			switch ev.ID {
			case -1: // eventfd wake (cancellation)
				var buf [8]byte
				unix.Read(l.wakeFd, buf[:])
				l.exit = true
			case -2: // listening socket readiness
				l.acceptLoop()
			default:
				l.handleConn(ev)
			}
		}
	}
	return nil
}

// Stop requests the loop exit on its next iteration.
func (l *Loop) Stop(code int) {
	l.exit = true
	l.ExitCode = code
}

func (l *Loop) acceptLoop() {
	for {
		fd, _, err := unix.Accept(l.listenFd)
		if err != nil {
			return
		}
		unix.SetNonblock(fd, true)
		l.Register(fd)
	}
}

// handleConn drives one connection's handshake/READY state machine for
// a single readiness event (spec §4.9's connection state machine).
func (l *Loop) handleConn(ev ReadyEvent) {
	l.mu.Lock()
	sel, ok := l.selectors[ev.ID]
	l.mu.Unlock()
	if !ok {
		return
	}

	if ev.Events&EventRead != 0 {
		buf := make([]byte, 65536)
		n, err := unix.Read(sel.Fd, buf)
		if err != nil || n == 0 {
			l.unregister(ev.ID)
			return
		}
		switch sel.State {
		case StateAwaitHandshake:
			l.advanceHandshake(sel, buf[:n])
		case StateReady:
			frames, ferr := sel.FeedRx(buf[:n])
			if ferr != nil {
				l.unregister(ev.ID)
				return
			}
			for _, f := range frames {
				l.dispatch(sel, f)
			}
		}
	}
	if ev.Events&EventWrite != 0 && sel.State == StateReady {
		l.drainTx(sel)
	}
}

// advanceHandshake implements spec §4.9/§6: "read until NUL byte; peer
// byte before NUL is peer version. write local version + NUL." Actual
// username:password/version parsing lives in pkg/ipc; the loop only
// knows it must see a NUL before promoting the connection to READY.
func (l *Loop) advanceHandshake(sel *Selector, data []byte) {
	sel.rxBuf = append(sel.rxBuf, data...)
	for i, b := range sel.rxBuf {
		if b == 0 {
			sel.HandshakeCompleted = true
			sel.State = StateReady
			rest := append([]byte(nil), sel.rxBuf[i+1:]...)
			sel.rxBuf = nil
			if l.handler != nil {
				l.handler.OnOpen(sel.ID)
			}
			if len(rest) > 0 {
				frames, _ := sel.FeedRx(rest)
				for _, f := range frames {
					l.dispatch(sel, f)
				}
			}
			return
		}
	}
}

func (l *Loop) dispatch(sel *Selector, f CompleteFrame) {
	switch f.MsgType {
	case serialize.MsgSync:
		if l.handler == nil {
			return
		}
		result, err := l.handler.Eval(sel.ID, f.Payload)
		if err != nil {
			return
		}
		sel.Enqueue(serialize.MsgResp, result)
		l.poller.Modify(sel.Fd, sel.ID, EventRead|EventWrite)
	case serialize.MsgAsync:
		if l.handler != nil {
			l.handler.Eval(sel.ID, f.Payload)
		}
	case serialize.MsgResp:
		// Delivery to a pending synchronous caller is pkg/ipc's
		// responsibility; the loop only assembles frames. pkg/ipc's
		// client registers itself as the Handler when it owns the fd.
		if l.handler != nil {
			l.handler.Eval(sel.ID, f.Payload)
		}
	}
}

func (l *Loop) drainTx(sel *Selector) {
	more, err := sel.DrainStep(func(b []byte) (int, error) {
		return unix.Write(sel.Fd, b)
	})
	if err != nil {
		l.unregister(sel.ID)
		return
	}
	if !more {
		l.poller.Modify(sel.Fd, sel.ID, EventRead)
	}
}
