// Package ipc implements spec §6's wire-level client: the connection
// handshake and a synchronous request/response RPC built on
// pkg/serialize's framing over a net.Conn.
// Grounded on the teacher's pkg/ipfs/client.go request/response shape
// (a single client type wrapping a transport, exposing blocking
// call-and-wait methods), adapted from HTTP request/response to raw
// framed socket I/O.
package ipc

import (
	"bufio"
	"io"

	"github.com/RayforceDB/rayforce/pkg/rferr"
)

// ProtocolVersion is this build's (MAJOR, MINOR) pair, packed into the
// handshake byte as (MAJOR<<3)|MINOR per spec §6.
type ProtocolVersion struct {
	Major byte
	Minor byte
}

// maxMajor is the handshake byte's 5-bit MAJOR field ceiling (Open
// Question Resolution #3: "MAJOR byte clamped to [0,31] at encode time,
// not enforced at decode").
const maxMajor = 31

// Pack encodes v as the single handshake byte (MAJOR<<3)|MINOR, clamping
// MAJOR to [0,31] so MINOR's low 3 bits are never clobbered.
func (v ProtocolVersion) Pack() byte {
	major := v.Major
	if major > maxMajor {
		major = maxMajor
	}
	return (major << 3) | (v.Minor & 0x07)
}

// UnpackVersion decodes a peer's handshake byte. MAJOR is read as-is
// (decode does not re-clamp per Open Question Resolution #3).
func UnpackVersion(b byte) ProtocolVersion {
	return ProtocolVersion{Major: b >> 3, Minor: b & 0x07}
}

// ClientHandshake writes this build's handshake line to w (optional
// "username:password" then the version byte then NUL, spec §6) and
// reads the peer's version byte terminated by NUL from r.
func ClientHandshake(rw io.ReadWriter, creds string, local ProtocolVersion) (ProtocolVersion, error) {
	var out []byte
	if creds != "" {
		out = append(out, []byte(creds)...)
	}
	out = append(out, local.Pack(), 0)
	if _, err := rw.Write(out); err != nil {
		return ProtocolVersion{}, err
	}
	return readHandshakeReply(rw)
}

// ServerHandshake reads a client's handshake line (optional
// "username:password" then version byte then NUL) off r, returning the
// credentials (if any) and the client's version, then writes the
// server's own version byte + NUL to w.
func ServerHandshake(rw io.ReadWriter, local ProtocolVersion) (creds string, peer ProtocolVersion, err error) {
	br := bufio.NewReader(rw)
	line, rerr := br.ReadBytes(0)
	if rerr != nil {
		return "", ProtocolVersion{}, rerr
	}
	line = line[:len(line)-1] // drop the NUL
	if len(line) == 0 {
		return "", ProtocolVersion{}, rferr.NewParse("handshake: empty")
	}
	versionByte := line[len(line)-1]
	creds = string(line[:len(line)-1])
	peer = UnpackVersion(versionByte)
	if _, werr := rw.Write([]byte{local.Pack(), 0}); werr != nil {
		return "", ProtocolVersion{}, werr
	}
	return creds, peer, nil
}

func readHandshakeReply(r io.Reader) (ProtocolVersion, error) {
	var b [1]byte
	var nul [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return ProtocolVersion{}, err
	}
	if _, err := io.ReadFull(r, nul[:]); err != nil {
		return ProtocolVersion{}, err
	}
	if nul[0] != 0 {
		return ProtocolVersion{}, rferr.NewParse("handshake: missing terminator")
	}
	return UnpackVersion(b[0]), nil
}
