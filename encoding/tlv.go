// Package encoding implements the subset of the NDN TLV packet format that
// the multi-party signing protocol relies on: hierarchical names, data and
// interest packets, and the signed-range extraction used to produce the
// bytes covered by a signature.
//
// The TLV numbers follow the NDN packet specification so that packets are
// wire-compatible with other implementations of the protocol.
package encoding

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// TLV assigned numbers from the NDN packet specification.
const (
	TypeInterest              uint32 = 5
	TypeData                  uint32 = 6
	TypeName                  uint32 = 7
	TypeNonce                 uint32 = 10
	TypeInterestLifetime      uint32 = 12
	TypeMustBeFresh           uint32 = 18
	TypeMetaInfo              uint32 = 20
	TypeContent               uint32 = 21
	TypeSignatureInfo         uint32 = 22
	TypeSignatureValue        uint32 = 23
	TypeSignatureType         uint32 = 27
	TypeKeyLocator            uint32 = 28
	TypeCanBePrefix           uint32 = 33
	TypeFreshnessPeriod       uint32 = 37
	TypeApplicationParameters uint32 = 36
	TypeInterestSignatureInfo uint32 = 44
	TypeInterestSignatureVal  uint32 = 46
)

// RawTLV is a single type-length-value element with an unparsed value.
type RawTLV struct {
	Type  uint32
	Value []byte
}

// AppendVarNum appends the variable-size number encoding of v to buf.
func AppendVarNum(buf []byte, v uint64) []byte {
	switch {
	case v < 253:
		return append(buf, byte(v))
	case v <= 0xffff:
		buf = append(buf, 253)
		return binary.BigEndian.AppendUint16(buf, uint16(v))
	case v <= 0xffffffff:
		buf = append(buf, 254)
		return binary.BigEndian.AppendUint32(buf, uint32(v))
	default:
		buf = append(buf, 255)
		return binary.BigEndian.AppendUint64(buf, v)
	}
}

// ReadVarNum reads a variable-size number from buf. It returns the value and
// the number of bytes consumed.
func ReadVarNum(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, xerrors.New("empty buffer")
	}

	switch b := buf[0]; {
	case b < 253:
		return uint64(b), 1, nil
	case b == 253:
		if len(buf) < 3 {
			return 0, 0, xerrors.New("truncated 2-octet number")
		}
		return uint64(binary.BigEndian.Uint16(buf[1:3])), 3, nil
	case b == 254:
		if len(buf) < 5 {
			return 0, 0, xerrors.New("truncated 4-octet number")
		}
		return uint64(binary.BigEndian.Uint32(buf[1:5])), 5, nil
	default:
		if len(buf) < 9 {
			return 0, 0, xerrors.New("truncated 8-octet number")
		}
		return binary.BigEndian.Uint64(buf[1:9]), 9, nil
	}
}

// AppendTLV appends a full TLV element to buf.
func AppendTLV(buf []byte, t uint32, value []byte) []byte {
	buf = AppendVarNum(buf, uint64(t))
	buf = AppendVarNum(buf, uint64(len(value)))
	return append(buf, value...)
}

// MakeTLV encodes a single TLV element.
func MakeTLV(t uint32, value []byte) []byte {
	return AppendTLV(nil, t, value)
}

// MakeNonNegTLV encodes a TLV element carrying a non-negative integer.
func MakeNonNegTLV(t uint32, v uint64) []byte {
	return MakeTLV(t, EncodeNonNeg(v))
}

// EncodeNonNeg encodes v with the NDN non-negative integer encoding, which
// uses the shortest of 1, 2, 4 or 8 octets.
func EncodeNonNeg(v uint64) []byte {
	switch {
	case v <= 0xff:
		return []byte{byte(v)}
	case v <= 0xffff:
		return binary.BigEndian.AppendUint16(nil, uint16(v))
	case v <= 0xffffffff:
		return binary.BigEndian.AppendUint32(nil, uint32(v))
	default:
		return binary.BigEndian.AppendUint64(nil, v)
	}
}

// DecodeNonNeg decodes an NDN non-negative integer.
func DecodeNonNeg(buf []byte) (uint64, error) {
	switch len(buf) {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(buf)), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(buf)), nil
	case 8:
		return binary.BigEndian.Uint64(buf), nil
	default:
		return 0, xerrors.Errorf("invalid non-negative integer length %d", len(buf))
	}
}

// DecodeTLVs parses buf as a sequence of TLV elements.
func DecodeTLVs(buf []byte) ([]RawTLV, error) {
	var out []RawTLV

	for len(buf) > 0 {
		t, n, err := ReadVarNum(buf)
		if err != nil {
			return nil, xerrors.Errorf("couldn't read type: %v", err)
		}
		buf = buf[n:]

		length, n, err := ReadVarNum(buf)
		if err != nil {
			return nil, xerrors.Errorf("couldn't read length: %v", err)
		}
		buf = buf[n:]

		if uint64(len(buf)) < length {
			return nil, xerrors.Errorf("value truncated: %d < %d", len(buf), length)
		}

		out = append(out, RawTLV{Type: uint32(t), Value: buf[:length]})
		buf = buf[length:]
	}

	return out, nil
}

// FindTLV returns the first element of the given type, or false when the
// sequence does not contain one.
func FindTLV(elems []RawTLV, t uint32) (RawTLV, bool) {
	for _, e := range elems {
		if e.Type == t {
			return e, true
		}
	}

	return RawTLV{}, false
}
