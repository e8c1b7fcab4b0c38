package mps

import (
	"go.dedis.ch/ndnmps/encoding"
	"golang.org/x/xerrors"
)

// SignerList is the ordered set of signer key names that participated in an
// aggregate signature. The order is the wire order, and it is the order in
// which the aggregate public key is derived. Duplicate entries are not
// permitted.
type SignerList struct {
	names []encoding.Name
}

// NewSignerList returns a signer list over the given key names. It returns
// an error when a name appears twice.
func NewSignerList(names ...encoding.Name) (SignerList, error) {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		key := name.String()
		if _, ok := seen[key]; ok {
			return SignerList{}, xerrors.Errorf("duplicate signer '%s'", name)
		}

		seen[key] = struct{}{}
	}

	return SignerList{names: append([]encoding.Name{}, names...)}, nil
}

// Size returns the number of signers.
func (l SignerList) Size() int {
	return len(l.names)
}

// Names returns the signer key names in wire order.
func (l SignerList) Names() []encoding.Name {
	return append([]encoding.Name{}, l.names...)
}

// Contains returns true when the key name is part of the list.
func (l SignerList) Contains(name encoding.Name) bool {
	for _, n := range l.names {
		if n.Equal(name) {
			return true
		}
	}

	return false
}

// WireEncode returns the TLV encoding of the list.
func (l SignerList) WireEncode() []byte {
	var value []byte
	for _, name := range l.names {
		value = append(value, name.WireEncode()...)
	}

	return encoding.MakeTLV(TypeMpsSignerList, value)
}

// DecodeSignerList decodes a signer list from its TLV encoding.
func DecodeSignerList(buf []byte) (SignerList, error) {
	elems, err := encoding.DecodeTLVs(buf)
	if err != nil {
		return SignerList{}, xerrors.Errorf("couldn't parse block: %v", err)
	}

	list, ok := encoding.FindTLV(elems, TypeMpsSignerList)
	if !ok {
		return SignerList{}, xerrors.New("missing signer list element")
	}

	inner, err := encoding.DecodeTLVs(list.Value)
	if err != nil {
		return SignerList{}, xerrors.Errorf("couldn't parse names: %v", err)
	}

	names := make([]encoding.Name, len(inner))
	for i, e := range inner {
		if e.Type != encoding.TypeName {
			return SignerList{}, xerrors.Errorf("unexpected element type %d", e.Type)
		}

		names[i], err = encoding.DecodeName(encoding.MakeTLV(e.Type, e.Value))
		if err != nil {
			return SignerList{}, xerrors.Errorf("couldn't parse name: %v", err)
		}
	}

	return NewSignerList(names...)
}
