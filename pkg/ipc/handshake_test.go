package ipc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProtocolVersionPackUnpack(t *testing.T) {
	v := ProtocolVersion{Major: 3, Minor: 5}
	b := v.Pack()
	got := UnpackVersion(b)
	require.Equal(t, v, got)
}

func TestProtocolVersionPackClampsMajor(t *testing.T) {
	v := ProtocolVersion{Major: 200, Minor: 2}
	b := v.Pack()
	got := UnpackVersion(b)
	require.Equal(t, byte(31), got.Major)
	require.Equal(t, byte(2), got.Minor)
}

func TestClientServerHandshakeRoundTrip(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	local := ProtocolVersion{Major: 1, Minor: 0}
	serverDone := make(chan struct{})
	var serverCreds string
	var serverPeer ProtocolVersion
	go func() {
		defer close(serverDone)
		serverCreds, serverPeer, _ = ServerHandshake(serverSide, ProtocolVersion{Major: 1, Minor: 2})
	}()

	peer, err := ClientHandshake(clientSide, "alice:secret", local)
	require.NoError(t, err)
	require.Equal(t, ProtocolVersion{Major: 1, Minor: 2}, peer)

	<-serverDone
	require.Equal(t, "alice:secret", serverCreds)
	require.Equal(t, local, serverPeer)
}
