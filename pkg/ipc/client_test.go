package ipc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RayforceDB/rayforce/pkg/serialize"
)

func TestClientSendSyncReturnsRespPayload(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		hdr, payload, err := serialize.ReadFrame(serverConn)
		if err != nil {
			return
		}
		if hdr.MsgType != serialize.MsgSync {
			return
		}
		reply := append([]byte("echo:"), payload...)
		serialize.WriteFrame(serverConn, serialize.MsgResp, reply)
	}()

	c := NewClient(clientConn)
	out, err := c.SendSync([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, []byte("echo:ping"), out)
	<-serverDone
}

func TestClientSendSyncProcessesNestedFrameBeforeResp(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		serialize.ReadFrame(serverConn) // consume the SYNC request
		serialize.WriteFrame(serverConn, serialize.MsgAsync, []byte("nested"))
		serialize.WriteFrame(serverConn, serialize.MsgResp, []byte("final"))
	}()

	var nestedSeen []byte
	c := NewClient(clientConn)
	c.Nested = func(hdr serialize.Header, payload []byte) error {
		nestedSeen = payload
		return nil
	}

	out, err := c.SendSync([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, []byte("final"), out)
	require.Equal(t, []byte("nested"), nestedSeen)
}
