package encoding

import (
	"crypto/sha256"
	"time"
)

// Interest is a request for a named packet. An interest may carry
// application parameters and a signature over its signed ranges.
type Interest struct {
	Name          Name
	CanBePrefix   bool
	MustBeFresh   bool
	Lifetime      time.Duration
	AppParameters []byte
	SigInfo       SignatureInfo
	SigValue      []byte

	hasSigInfo bool
}

// SetSignatureInfo installs the signature info on the interest.
func (i *Interest) SetSignatureInfo(si SignatureInfo) {
	i.SigInfo = si
	i.SigValue = nil
	i.hasSigInfo = true
}

// HasSignature returns true when the interest carries a signature info.
func (i *Interest) HasSignature() bool {
	return i.hasSigInfo
}

// SignedRanges returns the bytes covered by an interest signature: the name
// without its parameters digest component, the application parameters and
// the signature info.
func (i *Interest) SignedRanges() []byte {
	name := i.Name
	if name.Size() > 0 && name.Get(-1).IsParamsDigest() {
		name = name.Prefix(-1)
	}

	var buf []byte
	buf = append(buf, name.WireEncode()...)
	buf = AppendTLV(buf, TypeApplicationParameters, i.AppParameters)
	if i.hasSigInfo {
		buf = append(buf, i.SigInfo.encode(TypeInterestSignatureInfo)...)
	}

	return buf
}

// AppendParamsDigest appends the parameters SHA-256 digest component to the
// interest name, replacing a previous one. The digest covers the application
// parameters, the signature info and the signature value.
func (i *Interest) AppendParamsDigest() {
	if i.Name.Size() > 0 && i.Name.Get(-1).IsParamsDigest() {
		i.Name = i.Name.Prefix(-1)
	}

	var covered []byte
	covered = AppendTLV(covered, TypeApplicationParameters, i.AppParameters)
	if i.hasSigInfo {
		covered = append(covered, i.SigInfo.encode(TypeInterestSignatureInfo)...)
		covered = AppendTLV(covered, TypeInterestSignatureVal, i.SigValue)
	}

	digest := sha256.Sum256(covered)
	i.Name = i.Name.Append(NewParamsDigestComponent(digest[:]))
}

// WireEncode returns the full TLV encoding of the interest.
func (i *Interest) WireEncode() []byte {
	var value []byte
	value = append(value, i.Name.WireEncode()...)
	if i.CanBePrefix {
		value = AppendTLV(value, TypeCanBePrefix, nil)
	}
	if i.MustBeFresh {
		value = AppendTLV(value, TypeMustBeFresh, nil)
	}
	if i.Lifetime > 0 {
		value = append(value, MakeNonNegTLV(TypeInterestLifetime, uint64(i.Lifetime/time.Millisecond))...)
	}
	if i.AppParameters != nil {
		value = AppendTLV(value, TypeApplicationParameters, i.AppParameters)
	}
	if i.hasSigInfo {
		value = append(value, i.SigInfo.encode(TypeInterestSignatureInfo)...)
		value = AppendTLV(value, TypeInterestSignatureVal, i.SigValue)
	}

	return MakeTLV(TypeInterest, value)
}
