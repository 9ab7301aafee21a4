package serialize

import (
	"encoding/binary"
	"math"

	"github.com/RayforceDB/rayforce/pkg/heap"
	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
)

// DecodeValue parses one typed value from the front of buf and returns it
// along with the number of bytes consumed. h backs any vector allocation;
// pass nil only when decoding atom-only payloads. A truncated or
// otherwise malformed buf yields a LENGTH error rather than a panic,
// since a peer's frame is a system boundary (spec §4.8's payload-size
// field lets a caller size buf correctly before calling DecodeValue, but
// this still validates rather than trusting it).
func DecodeValue(h *heap.Heap, buf []byte) (*value.Value, int, error) {
	if err := need(buf, 1); err != nil {
		return nil, 0, err
	}
	tag := value.Type(int8(buf[0]))
	rest := buf[1:]

	if tag.IsAtom() {
		v, n, err := decodeAtom(tag, rest)
		return v, n + 1, err
	}
	if tag.IsVector() {
		v, n, err := decodeVector(h, tag, rest)
		return v, n + 1, err
	}
	switch tag {
	case value.TList:
		v, n, err := decodeList(h, rest)
		return v, n + 1, err
	case value.TDict:
		keys, n1, err := DecodeValue(h, rest)
		if err != nil {
			return nil, 0, err
		}
		values, n2, err := DecodeValue(h, rest[n1:])
		if err != nil {
			return nil, 0, err
		}
		v, err := value.NewDict(keys, values)
		if err != nil {
			return nil, 0, err
		}
		return v, 1 + n1 + n2, nil
	case value.TTable:
		names, n1, err := DecodeValue(h, rest)
		if err != nil {
			return nil, 0, err
		}
		cols, n2, err := DecodeValue(h, rest[n1:])
		if err != nil {
			return nil, 0, err
		}
		v, err := value.NewTable(names, cols)
		if err != nil {
			return nil, 0, err
		}
		return v, 1 + n1 + n2, nil
	default:
		return nil, 0, rferr.NewNYI("decode " + tag.String())
	}
}

func decodeAtom(tag value.Type, buf []byte) (*value.Value, int, error) {
	switch tag {
	case value.TNull:
		return value.Null(), 0, nil
	case -value.TB8:
		if err := need(buf, 1); err != nil {
			return nil, 0, err
		}
		return value.NewB8(buf[0] != 0), 1, nil
	case -value.TU8:
		if err := need(buf, 1); err != nil {
			return nil, 0, err
		}
		return value.NewU8(buf[0]), 1, nil
	case -value.TC8:
		if err := need(buf, 1); err != nil {
			return nil, 0, err
		}
		return value.NewC8(buf[0]), 1, nil
	case -value.TI16:
		if err := need(buf, 2); err != nil {
			return nil, 0, err
		}
		return value.NewI16(int16(binary.LittleEndian.Uint16(buf))), 2, nil
	case -value.TI32:
		if err := need(buf, 4); err != nil {
			return nil, 0, err
		}
		return value.NewI32(int32(binary.LittleEndian.Uint32(buf))), 4, nil
	case -value.TDate:
		if err := need(buf, 4); err != nil {
			return nil, 0, err
		}
		return value.NewDate(int32(binary.LittleEndian.Uint32(buf))), 4, nil
	case -value.TTime:
		if err := need(buf, 4); err != nil {
			return nil, 0, err
		}
		return value.NewTime(int32(binary.LittleEndian.Uint32(buf))), 4, nil
	case -value.TI64:
		if err := need(buf, 8); err != nil {
			return nil, 0, err
		}
		return value.NewI64(int64(binary.LittleEndian.Uint64(buf))), 8, nil
	case -value.TTimestamp:
		if err := need(buf, 8); err != nil {
			return nil, 0, err
		}
		return value.NewTimestamp(int64(binary.LittleEndian.Uint64(buf))), 8, nil
	case -value.TF64:
		if err := need(buf, 8); err != nil {
			return nil, 0, err
		}
		return value.NewF64(math.Float64frombits(binary.LittleEndian.Uint64(buf))), 8, nil
	case -value.TGuid:
		if err := need(buf, 16); err != nil {
			return nil, 0, err
		}
		var g [16]byte
		copy(g[:], buf[:16])
		return value.NewGuid(g), 16, nil
	case -value.TSymbol:
		i, err := indexNUL(buf)
		if err != nil {
			return nil, 0, err
		}
		return value.NewSymbol(string(buf[:i])), i + 1, nil
	default:
		return nil, 0, rferr.NewNYI("decode atom " + tag.String())
	}
}

func decodeVector(h *heap.Heap, tag value.Type, buf []byte) (*value.Value, int, error) {
	if err := need(buf, 8); err != nil {
		return nil, 0, err
	}
	n := int(binary.LittleEndian.Uint64(buf))
	buf = buf[8:]
	consumed := 8

	switch tag {
	case value.TB8, value.TU8, value.TC8:
		if err := need(buf, n); err != nil {
			return nil, 0, err
		}
		v, err := value.NewVector(h, tag, n)
		if err != nil {
			return nil, 0, err
		}
		copy(v.U8s(), buf[:n])
		return v, consumed + n, nil
	case value.TI16:
		if err := need(buf, n*2); err != nil {
			return nil, 0, err
		}
		v, err := value.NewVector(h, tag, n)
		if err != nil {
			return nil, 0, err
		}
		dst := v.I16s()
		for i := 0; i < n; i++ {
			dst[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
		}
		return v, consumed + n*2, nil
	case value.TI32, value.TDate, value.TTime:
		if err := need(buf, n*4); err != nil {
			return nil, 0, err
		}
		v, err := value.NewVector(h, tag, n)
		if err != nil {
			return nil, 0, err
		}
		dst := v.I32s()
		for i := 0; i < n; i++ {
			dst[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return v, consumed + n*4, nil
	case value.TI64, value.TTimestamp:
		if err := need(buf, n*8); err != nil {
			return nil, 0, err
		}
		v, err := value.NewVector(h, tag, n)
		if err != nil {
			return nil, 0, err
		}
		dst := v.I64s()
		for i := 0; i < n; i++ {
			dst[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return v, consumed + n*8, nil
	case value.TF64:
		if err := need(buf, n*8); err != nil {
			return nil, 0, err
		}
		v, err := value.NewVector(h, tag, n)
		if err != nil {
			return nil, 0, err
		}
		dst := v.F64s()
		for i := 0; i < n; i++ {
			dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return v, consumed + n*8, nil
	case value.TGuid:
		if err := need(buf, n*16); err != nil {
			return nil, 0, err
		}
		v, err := value.NewVector(h, tag, n)
		if err != nil {
			return nil, 0, err
		}
		dst := v.Guids()
		for i := 0; i < n; i++ {
			copy(dst[i][:], buf[i*16:i*16+16])
		}
		return v, consumed + n*16, nil
	case value.TSymbol:
		out := make([]string, n)
		off := 0
		for i := 0; i < n; i++ {
			j, err := indexNUL(buf[off:])
			if err != nil {
				return nil, 0, err
			}
			out[i] = string(buf[off : off+j])
			off += j + 1
		}
		return value.NewSymbolVector(out), consumed + off, nil
	default:
		return nil, 0, rferr.NewNYI("decode vector " + tag.String())
	}
}

func decodeList(h *heap.Heap, buf []byte) (*value.Value, int, error) {
	if err := need(buf, 8); err != nil {
		return nil, 0, err
	}
	n := int(binary.LittleEndian.Uint64(buf))
	buf = buf[8:]
	consumed := 8
	elems := make([]*value.Value, n)
	for i := 0; i < n; i++ {
		v, used, err := DecodeValue(h, buf)
		if err != nil {
			return nil, 0, err
		}
		elems[i] = v
		buf = buf[used:]
		consumed += used
	}
	return value.NewList(elems), consumed, nil
}

// indexNUL returns the offset of the first NUL byte in buf, or a LENGTH
// error if buf has no terminator (a malformed SYMBOL payload).
func indexNUL(buf []byte) (int, error) {
	for i, b := range buf {
		if b == 0 {
			return i, nil
		}
	}
	return 0, rferr.NewLength(len(buf)+1, len(buf), nil)
}

// need reports a LENGTH error if buf is shorter than n bytes.
func need(buf []byte, n int) error {
	if len(buf) < n {
		return rferr.NewLength(n, len(buf), nil)
	}
	return nil
}
