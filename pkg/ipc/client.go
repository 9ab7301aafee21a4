package ipc

import (
	"net"
	"sync"
	"time"

	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/serialize"
)

// syncTimeout is spec §5's "synchronous IPC has a 30-second inactivity
// timeout per wait".
const syncTimeout = 30 * time.Second

// NestedHandler processes a non-RESP frame observed while a synchronous
// call is waiting for its reply (spec §4.9: "the server can reenter").
// Implementations typically evaluate the payload and, for SYNC frames,
// send back a RESP on the same connection.
type NestedHandler func(hdr serialize.Header, payload []byte) error

// Client is a single connection's synchronous RPC driver (spec §4.9's
// send_sync): one frame in flight at a time, busy-send/receive with a
// 30-second timeout, nested-request reentrancy while waiting.
type Client struct {
	conn net.Conn

	mu      sync.Mutex // serializes concurrent SendSync callers on one conn
	Nested  NestedHandler
}

// NewClient wraps an already-handshaken connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// SendSync enqueues a SYNC frame carrying payload, then busy-receives
// frames until the matching RESP arrives (spec §4.9/§5). Any non-RESP
// frame observed in the meantime is handed to Nested before the wait
// continues; each wait has a 30-second inactivity timeout, on expiry of
// which the connection is closed and an OS error returned.
func (c *Client) SendSync(payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := serialize.WriteFrame(c.conn, serialize.MsgSync, payload); err != nil {
		return nil, err
	}

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(syncTimeout)); err != nil {
			return nil, err
		}
		hdr, body, err := serialize.ReadFrame(c.conn)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.conn.Close()
				return nil, rferr.NewOS(0, "ipc: sync wait timed out")
			}
			return nil, err
		}
		if hdr.MsgType == serialize.MsgResp {
			return body, nil
		}
		if c.Nested != nil {
			if nerr := c.Nested(hdr, body); nerr != nil {
				return nil, nerr
			}
		}
	}
}

// SendAsync enqueues an ASYNC frame and returns without waiting for any
// reply (spec §4.8: "ASYNC -> evaluate, discard result").
func (c *Client) SendAsync(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return serialize.WriteFrame(c.conn, serialize.MsgAsync, payload)
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
