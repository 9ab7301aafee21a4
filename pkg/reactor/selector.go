package reactor

import (
	"github.com/RayforceDB/rayforce/pkg/serialize"
)

// ConnState is a connection's position in spec §4.9's state machine:
// CLOSED -> AWAIT_HANDSHAKE -> READY.
type ConnState int

const (
	StateClosed ConnState = iota
	StateAwaitHandshake
	StateReady
)

// pendingMsg is one bounded-FIFO entry in a selector's tx queue: a fully
// framed message plus its logical type, queued until the socket is
// writable.
type pendingMsg struct {
	msgtype serialize.MsgType
	frame   []byte
}

// Selector is the per-connection state spec §4.9 describes: socket
// handle, registration id, handshake flag, an assembling rx frame, and a
// tx frame plus a bounded pending FIFO. Grounded on the teacher's
// pkg/network/tor/circuit_pool.go Circuit struct (per-connection health
// and use-count bookkeeping under a dedicated mutex-free registry slot),
// adapted from an HTTP circuit's liveness fields to a raw frame
// assembler's fields.
type Selector struct {
	ID                 int
	Fd                 int
	HandshakeCompleted bool
	State              ConnState

	// rx: the frame currently being assembled.
	rxBuf      []byte
	rxWant     int // total bytes wanted (header+payload), 0 until header is read
	rxMsgType  serialize.MsgType
	rxGotHeader bool

	// tx: the frame currently being drained plus anything queued behind it.
	txBuf     []byte // remaining bytes of the frame at the front of the queue
	txPending []pendingMsg

	// MaxPending bounds the tx FIFO (spec: "a bounded FIFO of pending
	// messages"); 0 means unbounded.
	MaxPending int
}

// NewSelector returns a fresh CLOSED selector for a not-yet-registered
// connection.
func NewSelector(id, fd int) *Selector {
	return &Selector{ID: id, Fd: fd, State: StateClosed}
}

// FeedRx appends freshly read bytes to the rx assembler and returns every
// complete frame extracted so far (spec §4.9 READY loop: "read header (16
// bytes), read body (header.size bytes), handle frame").
func (s *Selector) FeedRx(data []byte) ([]CompleteFrame, error) {
	s.rxBuf = append(s.rxBuf, data...)
	var frames []CompleteFrame
	for {
		if !s.rxGotHeader {
			if len(s.rxBuf) < serialize.HeaderSize {
				return frames, nil
			}
			hdr, err := serialize.DecodeHeader(s.rxBuf[:serialize.HeaderSize])
			if err != nil {
				return frames, err
			}
			s.rxMsgType = hdr.MsgType
			s.rxWant = serialize.HeaderSize + int(hdr.PayloadSize)
			s.rxGotHeader = true
		}
		if len(s.rxBuf) < s.rxWant {
			return frames, nil
		}
		payload := append([]byte(nil), s.rxBuf[serialize.HeaderSize:s.rxWant]...)
		frames = append(frames, CompleteFrame{MsgType: s.rxMsgType, Payload: payload})
		s.rxBuf = append([]byte(nil), s.rxBuf[s.rxWant:]...)
		s.rxGotHeader = false
		s.rxWant = 0
	}
}

// CompleteFrame is one fully-assembled frame handed to the loop's
// dispatcher.
type CompleteFrame struct {
	MsgType serialize.MsgType
	Payload []byte
}

// Enqueue frames a payload and appends it to the tx queue, framing it
// immediately at the front if tx is otherwise idle.
func (s *Selector) Enqueue(msgtype serialize.MsgType, payload []byte) error {
	var hdr [serialize.HeaderSize]byte
	serialize.Header{Version: serialize.FormatVersion, MsgType: msgtype, PayloadSize: uint64(len(payload))}.Encode(hdr[:])
	frame := append(hdr[:], payload...)
	if s.txBuf == nil && len(s.txPending) == 0 {
		s.txBuf = frame
		return nil
	}
	if s.MaxPending > 0 && len(s.txPending) >= s.MaxPending {
		return errTxFull
	}
	s.txPending = append(s.txPending, pendingMsg{msgtype: msgtype, frame: frame})
	return nil
}

// DrainStep writes as much of the front-of-queue frame as write can
// accept, advancing to the next pending frame when the current one is
// fully sent. Returns whether there is more tx work (so the caller knows
// whether to keep OUT interest armed).
func (s *Selector) DrainStep(write func([]byte) (int, error)) (more bool, err error) {
	for {
		if len(s.txBuf) == 0 {
			if len(s.txPending) == 0 {
				return false, nil
			}
			s.txBuf = s.txPending[0].frame
			s.txPending = s.txPending[1:]
		}
		n, werr := write(s.txBuf)
		if n > 0 {
			s.txBuf = s.txBuf[n:]
		}
		if werr != nil {
			return len(s.txBuf) > 0 || len(s.txPending) > 0, werr
		}
		if len(s.txBuf) > 0 {
			// Socket would block partway through the frame.
			return true, nil
		}
	}
}

var errTxFull = txFullError{}

type txFullError struct{}

func (txFullError) Error() string { return "reactor: tx pending queue full" }
