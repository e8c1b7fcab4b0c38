package encoding

import (
	"crypto/sha256"
	"time"

	"golang.org/x/xerrors"
)

// SignatureInfo describes how a packet is signed: the signature type value
// and the key locator pointing at the signing key or at a signer list.
type SignatureInfo struct {
	SignatureType uint64
	KeyLocator    Name
	hasLocator    bool
}

// NewSignatureInfo returns a signature info with a key locator name.
func NewSignatureInfo(sigType uint64, locator Name) SignatureInfo {
	return SignatureInfo{
		SignatureType: sigType,
		KeyLocator:    locator,
		hasLocator:    true,
	}
}

// HasKeyLocator returns true when a key locator name is present.
func (si SignatureInfo) HasKeyLocator() bool {
	return si.hasLocator
}

func (si SignatureInfo) encode(infoType uint32) []byte {
	value := MakeNonNegTLV(TypeSignatureType, si.SignatureType)
	if si.hasLocator {
		value = AppendTLV(value, TypeKeyLocator, si.KeyLocator.WireEncode())
	}

	return MakeTLV(infoType, value)
}

func decodeSignatureInfo(value []byte) (SignatureInfo, error) {
	elems, err := DecodeTLVs(value)
	if err != nil {
		return SignatureInfo{}, xerrors.Errorf("couldn't parse info: %v", err)
	}

	si := SignatureInfo{}

	sigType, ok := FindTLV(elems, TypeSignatureType)
	if !ok {
		return SignatureInfo{}, xerrors.New("missing signature type")
	}

	si.SignatureType, err = DecodeNonNeg(sigType.Value)
	if err != nil {
		return SignatureInfo{}, xerrors.Errorf("couldn't parse signature type: %v", err)
	}

	locator, ok := FindTLV(elems, TypeKeyLocator)
	if ok {
		si.KeyLocator, err = DecodeName(locator.Value)
		if err != nil {
			return SignatureInfo{}, xerrors.Errorf("couldn't parse key locator: %v", err)
		}
		si.hasLocator = true
	}

	return si, nil
}

// Data is a named packet carrying a content payload and a signature.
type Data struct {
	Name            Name
	FreshnessPeriod time.Duration
	Content         []byte
	SigInfo         SignatureInfo
	SigValue        []byte
}

// SetSignatureInfo installs the signature info on the packet, invalidating
// any previously attached signature value.
func (d *Data) SetSignatureInfo(si SignatureInfo) {
	d.SigInfo = si
	d.SigValue = nil
}

// SignedRanges returns the canonical bytes covered by the signature: the
// wire encoding from the name through the signature info, with the signature
// value excluded.
func (d *Data) SignedRanges() []byte {
	var buf []byte
	buf = append(buf, d.Name.WireEncode()...)
	buf = append(buf, d.encodeMetaInfo()...)
	buf = AppendTLV(buf, TypeContent, d.Content)
	buf = append(buf, d.SigInfo.encode(TypeSignatureInfo)...)

	return buf
}

func (d *Data) encodeMetaInfo() []byte {
	var value []byte
	if d.FreshnessPeriod > 0 {
		value = MakeNonNegTLV(TypeFreshnessPeriod, uint64(d.FreshnessPeriod/time.Millisecond))
	}

	return MakeTLV(TypeMetaInfo, value)
}

// WireEncode returns the full TLV encoding of the packet.
func (d *Data) WireEncode() []byte {
	value := d.SignedRanges()
	value = AppendTLV(value, TypeSignatureValue, d.SigValue)

	return MakeTLV(TypeData, value)
}

// FullName returns the packet name with the implicit SHA-256 digest of the
// wire encoding appended, which makes the name content-addressed.
func (d *Data) FullName() Name {
	digest := sha256.Sum256(d.WireEncode())

	return d.Name.Append(NewDigestComponent(digest[:]))
}

// DecodeData decodes a data packet from its TLV encoding.
func DecodeData(buf []byte) (*Data, error) {
	elems, err := DecodeTLVs(buf)
	if err != nil {
		return nil, xerrors.Errorf("couldn't parse packet: %v", err)
	}

	if len(elems) != 1 || elems[0].Type != TypeData {
		return nil, xerrors.New("missing data element")
	}

	inner, err := DecodeTLVs(elems[0].Value)
	if err != nil {
		return nil, xerrors.Errorf("couldn't parse fields: %v", err)
	}

	d := &Data{}

	for _, e := range inner {
		switch e.Type {
		case TypeName:
			d.Name, err = decodeNameValue(e.Value)
			if err != nil {
				return nil, xerrors.Errorf("couldn't parse name: %v", err)
			}
		case TypeMetaInfo:
			meta, err := DecodeTLVs(e.Value)
			if err != nil {
				return nil, xerrors.Errorf("couldn't parse meta info: %v", err)
			}

			freshness, ok := FindTLV(meta, TypeFreshnessPeriod)
			if ok {
				ms, err := DecodeNonNeg(freshness.Value)
				if err != nil {
					return nil, xerrors.Errorf("couldn't parse freshness: %v", err)
				}

				d.FreshnessPeriod = time.Duration(ms) * time.Millisecond
			}
		case TypeContent:
			d.Content = e.Value
		case TypeSignatureInfo:
			d.SigInfo, err = decodeSignatureInfo(e.Value)
			if err != nil {
				return nil, xerrors.Errorf("couldn't parse signature info: %v", err)
			}
		case TypeSignatureValue:
			d.SigValue = e.Value
		}
	}

	return d, nil
}
