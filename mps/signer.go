package mps

import (
	"go.dedis.ch/ndnmps/crypto"
	"go.dedis.ch/ndnmps/crypto/bls"
	"go.dedis.ch/ndnmps/encoding"
	"golang.org/x/xerrors"
)

// MpsSigner holds one BLS key pair and the key name under which other
// parties know its public key.
type MpsSigner struct {
	keyName encoding.Name
	signer  bls.Signer
}

// NewMpsSigner returns a signer with a freshly generated key pair.
func NewMpsSigner(keyName encoding.Name) *MpsSigner {
	return &MpsSigner{
		keyName: keyName,
		signer:  bls.NewSigner(),
	}
}

// NewMpsSignerFromBytes restores a signer from the binary representation of
// its secret key.
func NewMpsSignerFromBytes(keyName encoding.Name, secret []byte) (*MpsSigner, error) {
	signer, err := bls.NewSignerFromBytes(secret)
	if err != nil {
		return nil, xerrors.Errorf("couldn't restore key: %v", err)
	}

	return &MpsSigner{keyName: keyName, signer: signer}, nil
}

// KeyName returns the signer key name.
func (s *MpsSigner) KeyName() encoding.Name {
	return s.keyName
}

// PublicKey returns the public key of the signer.
func (s *MpsSigner) PublicKey() crypto.PublicKey {
	return s.signer.GetPublicKey()
}

// MarshalBinary returns the binary representation of the secret key.
func (s *MpsSigner) MarshalBinary() ([]byte, error) {
	return s.signer.MarshalBinary()
}

// GetSignature returns the signature value over the packet canonicalized
// with the given signature info. The packet itself is left untouched, which
// allows producing a share against a key locator that points at a signer
// list that does not exist yet.
func (s *MpsSigner) GetSignature(data *encoding.Data, sigInfo encoding.SignatureInfo) ([]byte, error) {
	if sigInfo.SignatureType != SignatureSha256WithBls {
		return nil, xerrors.Errorf("unexpected signature type %d", sigInfo.SignatureType)
	}

	canonical := *data
	canonical.SetSignatureInfo(sigInfo)

	sig, err := s.signer.Sign(canonical.SignedRanges())
	if err != nil {
		return nil, xerrors.Errorf("couldn't sign: %v", err)
	}

	return sig.MarshalBinary()
}

// SignBytes signs raw canonical bytes with the BLS key. It is used to sign
// the packets a party emits with its own key, like interests.
func (s *MpsSigner) SignBytes(msg []byte) ([]byte, error) {
	sig, err := s.signer.Sign(msg)
	if err != nil {
		return nil, xerrors.Errorf("couldn't sign: %v", err)
	}

	return sig.MarshalBinary()
}

// Sign signs the packet with a signature info whose key locator points at
// this signer's own key name, and attaches the signature value.
func (s *MpsSigner) Sign(data *encoding.Data) error {
	sigInfo := encoding.NewSignatureInfo(SignatureSha256WithBls, s.keyName)

	value, err := s.GetSignature(data, sigInfo)
	if err != nil {
		return err
	}

	data.SetSignatureInfo(sigInfo)
	data.SigValue = value

	return nil
}
