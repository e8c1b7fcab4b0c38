package mps

import (
	"go.dedis.ch/ndnmps/crypto"
	"go.dedis.ch/ndnmps/crypto/bls"
	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/schema"
	"golang.org/x/xerrors"
)

// MpsVerifier verifies multi-party signatures. It maintains a certificate
// cache mapping key names to BLS public keys and a signer-list cache mapping
// list names to signer lists. Both caches are monotone: entries are added,
// never silently replaced.
type MpsVerifier struct {
	certs map[string]crypto.PublicKey
	lists map[string]SignerList
}

// NewMpsVerifier returns a verifier with empty caches.
func NewMpsVerifier() *MpsVerifier {
	return &MpsVerifier{
		certs: make(map[string]crypto.PublicKey),
		lists: make(map[string]SignerList),
	}
}

// AddCert caches the public key of a signer identity.
func (v *MpsVerifier) AddCert(keyName encoding.Name, pk crypto.PublicKey) {
	if _, ok := v.certs[keyName.String()]; ok {
		return
	}

	v.certs[keyName.String()] = pk
}

// HasCert returns true when a certificate is cached for the key name.
func (v *MpsVerifier) HasCert(keyName encoding.Name) bool {
	_, ok := v.certs[keyName.String()]
	return ok
}

// Cert returns the cached public key of a signer identity.
func (v *MpsVerifier) Cert(keyName encoding.Name) (crypto.PublicKey, bool) {
	pk, ok := v.certs[keyName.String()]
	return pk, ok
}

// AddSignerList caches a signer list under its packet name.
func (v *MpsVerifier) AddSignerList(listName encoding.Name, list SignerList) {
	if _, ok := v.lists[listName.String()]; ok {
		return
	}

	v.lists[listName.String()] = list
}

// HasSignerList returns true when a list is cached under the name.
func (v *MpsVerifier) HasSignerList(listName encoding.Name) bool {
	_, ok := v.lists[listName.String()]
	return ok
}

// ReadyToVerify returns true when the key locator of the packet resolves:
// either directly to a cached certificate, or to a cached signer list whose
// every member has a cached certificate.
func (v *MpsVerifier) ReadyToVerify(data *encoding.Data) bool {
	if !data.SigInfo.HasKeyLocator() {
		return false
	}

	locator := data.SigInfo.KeyLocator
	if v.HasCert(locator) {
		return true
	}

	list, ok := v.lists[locator.String()]
	if !ok {
		return false
	}

	for _, signer := range list.Names() {
		if !v.HasCert(signer) {
			return false
		}
	}

	return true
}

// ItemsToFetch returns the names of the missing dependencies: the key
// locator itself when it is not resolvable yet, or the member certificates
// missing from a known signer list.
func (v *MpsVerifier) ItemsToFetch(data *encoding.Data) []encoding.Name {
	if !data.SigInfo.HasKeyLocator() {
		return nil
	}

	locator := data.SigInfo.KeyLocator
	if v.HasCert(locator) {
		return nil
	}

	list, ok := v.lists[locator.String()]
	if !ok {
		return []encoding.Name{locator}
	}

	var out []encoding.Name
	for _, signer := range list.Names() {
		if !v.HasCert(signer) {
			out = append(out, signer)
		}
	}

	return out
}

// VerifySignature verifies the aggregate signature of the packet against
// the schema. The effective signer set is the single key locator name when
// it resolves to a certificate, or the members of the signer list it
// resolves to. The set must pass the schema before the cryptographic check.
func (v *MpsVerifier) VerifySignature(data *encoding.Data, s schema.MultipartySchema) error {
	if !data.SigInfo.HasKeyLocator() {
		return xerrors.New("missing key locator")
	}

	locator := data.SigInfo.KeyLocator

	var signers []encoding.Name
	if list, ok := v.lists[locator.String()]; ok {
		signers = list.Names()
	} else if v.HasCert(locator) {
		signers = []encoding.Name{locator}
	} else {
		return xerrors.Errorf("unresolvable key locator '%s'", locator)
	}

	if !s.PassSchema(signers) {
		return xerrors.New("signer set does not satisfy the schema")
	}

	pubkeys := make([]crypto.PublicKey, len(signers))
	for i, signer := range signers {
		pk, ok := v.certs[signer.String()]
		if !ok {
			return xerrors.Errorf("missing certificate for '%s'", signer)
		}

		pubkeys[i] = pk
	}

	sig, err := bls.SignatureFromBytes(data.SigValue)
	if err != nil {
		return xerrors.Errorf("couldn't parse signature: %v", err)
	}

	err = bls.FastAggregateVerify(pubkeys, data.SignedRanges(), sig)
	if err != nil {
		return xerrors.Errorf("invalid signature: %v", err)
	}

	return nil
}

// VerifySignaturePiece verifies a single signer's share over the packet
// canonicalized with the given signature info.
func (v *MpsVerifier) VerifySignaturePiece(data *encoding.Data, sigInfo encoding.SignatureInfo,
	signedBy encoding.Name, piece []byte) error {

	if sigInfo.SignatureType != SignatureSha256WithBls {
		return xerrors.Errorf("unexpected signature type %d", sigInfo.SignatureType)
	}

	pk, ok := v.certs[signedBy.String()]
	if !ok {
		return xerrors.Errorf("missing certificate for '%s'", signedBy)
	}

	sig, err := bls.SignatureFromBytes(piece)
	if err != nil {
		return xerrors.Errorf("couldn't parse piece: %v", err)
	}

	canonical := *data
	canonical.SetSignatureInfo(sigInfo)

	err = pk.Verify(canonical.SignedRanges(), sig)
	if err != nil {
		return xerrors.Errorf("invalid piece: %v", err)
	}

	return nil
}
