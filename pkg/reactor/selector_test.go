package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RayforceDB/rayforce/pkg/serialize"
)

func TestSelectorFeedRxAssemblesCompleteFrames(t *testing.T) {
	sel := NewSelector(3, -1)
	payload := []byte("hello")
	var hdr [serialize.HeaderSize]byte
	serialize.Header{Version: serialize.FormatVersion, MsgType: serialize.MsgSync, PayloadSize: uint64(len(payload))}.Encode(hdr[:])
	frame := append(append([]byte(nil), hdr[:]...), payload...)

	frames, err := sel.FeedRx(frame[:10])
	require.NoError(t, err)
	require.Empty(t, frames)

	frames, err = sel.FeedRx(frame[10:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, serialize.MsgSync, frames[0].MsgType)
	require.Equal(t, payload, frames[0].Payload)
}

func TestSelectorFeedRxHandlesTwoFramesInOneRead(t *testing.T) {
	sel := NewSelector(3, -1)
	frameOf := func(msgtype serialize.MsgType, payload []byte) []byte {
		var hdr [serialize.HeaderSize]byte
		serialize.Header{Version: serialize.FormatVersion, MsgType: msgtype, PayloadSize: uint64(len(payload))}.Encode(hdr[:])
		return append(append([]byte(nil), hdr[:]...), payload...)
	}
	combined := append(frameOf(serialize.MsgSync, []byte("a")), frameOf(serialize.MsgAsync, []byte("bb"))...)

	frames, err := sel.FeedRx(combined)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, []byte("a"), frames[0].Payload)
	require.Equal(t, []byte("bb"), frames[1].Payload)
}

func TestSelectorEnqueueAndDrainStep(t *testing.T) {
	sel := NewSelector(3, -1)
	require.NoError(t, sel.Enqueue(serialize.MsgResp, []byte("result")))

	var written []byte
	more, err := sel.DrainStep(func(b []byte) (int, error) {
		written = append(written, b...)
		return len(b), nil
	})
	require.NoError(t, err)
	require.False(t, more)
	require.Equal(t, serialize.HeaderSize+len("result"), len(written))
}

func TestSelectorDrainStepPartialWriteKeepsMoreTrue(t *testing.T) {
	sel := NewSelector(3, -1)
	require.NoError(t, sel.Enqueue(serialize.MsgResp, []byte("0123456789")))

	more, err := sel.DrainStep(func(b []byte) (int, error) {
		return 1, nil // accept one byte at a time
	})
	require.NoError(t, err)
	require.True(t, more)
}
