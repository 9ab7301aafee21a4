package serialize

import (
	"encoding/binary"
	"math"

	"github.com/RayforceDB/rayforce/pkg/rferr"
	"github.com/RayforceDB/rayforce/pkg/value"
)

// EncodeValue appends v's wire encoding to buf and returns the extended
// slice (spec §4.8: a 1-byte signed type tag followed by the type's
// payload). PARTED/MAP*/ERR/function kinds have no wire representation
// (Open Question Resolution #4) and yield an NYI error.
func EncodeValue(buf []byte, v *value.Value) ([]byte, error) {
	buf = append(buf, byte(v.Tag))
	if v.Tag.IsAtom() {
		return encodeAtom(buf, v)
	}
	if v.Tag.IsVector() {
		return encodeVector(buf, v)
	}
	switch v.Tag {
	case value.TList:
		return encodeList(buf, v)
	case value.TDict:
		var err error
		buf, err = EncodeValue(buf, v.Keys())
		if err != nil {
			return nil, err
		}
		return EncodeValue(buf, v.Values())
	case value.TTable:
		var err error
		buf, err = EncodeValue(buf, v.Names())
		if err != nil {
			return nil, err
		}
		return EncodeValue(buf, v.Columns())
	default:
		return nil, rferr.NewNYI("encode " + v.Tag.String())
	}
}

func encodeAtom(buf []byte, v *value.Value) ([]byte, error) {
	switch v.Tag {
	case value.TNull:
		return buf, nil
	case -value.TB8, -value.TU8, -value.TC8:
		return append(buf, byte(v.I64())), nil
	case -value.TI16:
		return appendU16(buf, uint16(v.I64())), nil
	case -value.TI32, -value.TDate, -value.TTime:
		return appendU32(buf, uint32(v.I64())), nil
	case -value.TI64, -value.TTimestamp:
		return appendU64(buf, uint64(v.I64())), nil
	case -value.TF64:
		return appendU64(buf, math.Float64bits(v.F64())), nil
	case -value.TSymbol:
		buf = append(buf, []byte(v.Symbol())...)
		return append(buf, 0), nil
	case -value.TGuid:
		g := v.Guid()
		return append(buf, g[:]...), nil
	default:
		return nil, rferr.NewNYI("encode atom " + v.Tag.String())
	}
}

// encodeVector writes a u64 length then the vector's raw element bytes
// (spec §4.8); SYMBOL vectors are a sequence of NUL-terminated strings
// since they have no fixed element size on the wire.
func encodeVector(buf []byte, v *value.Value) ([]byte, error) {
	n := int(v.Len())
	buf = appendU64(buf, uint64(n))
	switch v.Tag {
	case value.TB8, value.TU8, value.TC8:
		return append(buf, v.U8s()...), nil
	case value.TI16:
		for _, x := range v.I16s() {
			buf = appendU16(buf, uint16(x))
		}
		return buf, nil
	case value.TI32, value.TDate, value.TTime:
		for _, x := range v.I32s() {
			buf = appendU32(buf, uint32(x))
		}
		return buf, nil
	case value.TI64, value.TTimestamp:
		for _, x := range v.I64s() {
			buf = appendU64(buf, uint64(x))
		}
		return buf, nil
	case value.TF64:
		for _, x := range v.F64s() {
			buf = appendU64(buf, math.Float64bits(x))
		}
		return buf, nil
	case value.TGuid:
		for _, g := range v.Guids() {
			buf = append(buf, g[:]...)
		}
		return buf, nil
	case value.TSymbol:
		for _, s := range v.Strs() {
			buf = append(buf, []byte(s)...)
			buf = append(buf, 0)
		}
		return buf, nil
	default:
		return nil, rferr.NewNYI("encode vector " + v.Tag.String())
	}
}

func encodeList(buf []byte, v *value.Value) ([]byte, error) {
	elems := v.Elems()
	buf = appendU64(buf, uint64(len(elems)))
	var err error
	for _, e := range elems {
		buf, err = EncodeValue(buf, e)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendU16(buf []byte, x uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], x)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, x uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], x)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, x uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], x)
	return append(buf, b[:]...)
}
