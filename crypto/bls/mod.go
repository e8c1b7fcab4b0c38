// Package bls implements the crypto abstractions with the BLS signature
// scheme over the BLS12-381 pairing curve.
//
// Signatures are additively aggregatable: the aggregation of n signatures
// over the same message verifies against the sum of the n public keys,
// which is what FastAggregateVerify computes.
package bls

import (
	"bytes"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bls12381/kilic"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/ndnmps/crypto"
	"golang.org/x/xerrors"
)

const (
	// Algorithm is the name of the curve used for the BLS signature.
	Algorithm = "CURVE-BLS12-381"
)

// The suite is process-wide state. Initializing it at load time keeps the
// library initialization idempotent without a guard.
var suite = kilic.NewBLS12381Suite()

// PublicKey can be provided to verify a BLS signature.
//
// - implements crypto.PublicKey
type PublicKey struct {
	point kyber.Point
}

// PublicKeyFromBytes returns the public key deserialized from its binary
// representation, or an error if the encoding is invalid.
func PublicKeyFromBytes(data []byte) (PublicKey, error) {
	point := suite.G2().Point()

	err := point.UnmarshalBinary(data)
	if err != nil {
		return PublicKey{}, xerrors.Errorf("couldn't unmarshal point: %v", err)
	}

	return PublicKey{point: point}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler. It produces a slice of
// bytes representing the public key.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return pk.point.MarshalBinary()
}

// MarshalText implements encoding.TextMarshaler. It returns a text
// representation of the public key.
func (pk PublicKey) MarshalText() ([]byte, error) {
	buffer, err := pk.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return []byte(fmt.Sprintf("bls:%x", buffer)), nil
}

// Verify implements crypto.PublicKey. It returns nil if the signature
// matches the message with this public key.
func (pk PublicKey) Verify(msg []byte, sig crypto.Signature) error {
	signature, ok := sig.(Signature)
	if !ok {
		return xerrors.Errorf("invalid signature type '%T'", sig)
	}

	err := bls.Verify(suite, pk.point, msg, signature.data)
	if err != nil {
		return xerrors.Errorf("bls verify failed: %v", err)
	}

	return nil
}

// Equal implements crypto.PublicKey. It returns true if the other public
// key is the same.
func (pk PublicKey) Equal(other crypto.PublicKey) bool {
	pubkey, ok := other.(PublicKey)
	if !ok {
		return false
	}

	return pubkey.point.Equal(pk.point)
}

// String implements fmt.Stringer. It returns a string representation of the
// point.
func (pk PublicKey) String() string {
	buffer, err := pk.MarshalText()
	if err != nil {
		return "bls:malformed_point"
	}

	// Output only the prefix and 16 characters of the buffer in hexadecimal.
	return string(buffer)[:4+16]
}

// Signature is a proof of the integrity of a single message associated with
// a unique public key, or with an aggregation of public keys.
//
// - implements crypto.Signature
type Signature struct {
	data []byte
}

// SignatureFromBytes returns the signature deserialized from its binary
// representation, or an error if it does not decode to a curve point.
func SignatureFromBytes(data []byte) (Signature, error) {
	err := suite.G1().Point().UnmarshalBinary(data)
	if err != nil {
		return Signature{}, xerrors.Errorf("couldn't unmarshal point: %v", err)
	}

	return Signature{data: data}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler. It returns a slice of
// bytes representing the signature.
func (sig Signature) MarshalBinary() ([]byte, error) {
	return sig.data, nil
}

// Equal implements crypto.Signature.
func (sig Signature) Equal(other crypto.Signature) bool {
	otherSig, ok := other.(Signature)
	if !ok {
		return false
	}

	return bytes.Equal(sig.data, otherSig.data)
}

// Signer holds a BLS key pair.
//
// - implements crypto.AggregateSigner
type Signer struct {
	secret kyber.Scalar
	public kyber.Point
}

// NewSigner returns a new random BLS signer that supports aggregation.
func NewSigner() Signer {
	secret, public := bls.NewKeyPair(suite, random.New())

	return Signer{
		secret: secret,
		public: public,
	}
}

// NewSignerFromBytes restores a signer from the binary representation of
// its secret key.
func NewSignerFromBytes(data []byte) (Signer, error) {
	secret := suite.G2().Scalar()

	err := secret.UnmarshalBinary(data)
	if err != nil {
		return Signer{}, xerrors.Errorf("couldn't unmarshal scalar: %v", err)
	}

	return Signer{
		secret: secret,
		public: suite.G2().Point().Mul(secret, nil),
	}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler. It returns the binary
// representation of the secret key.
func (s Signer) MarshalBinary() ([]byte, error) {
	data, err := s.secret.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal scalar: %v", err)
	}

	return data, nil
}

// GetPublicKey implements crypto.Signer. It returns the public key of the
// signer that can be used to verify signatures.
func (s Signer) GetPublicKey() crypto.PublicKey {
	return PublicKey{point: s.public}
}

// Sign implements crypto.Signer. It signs the message in parameter and
// returns the signature, or an error if it cannot sign.
func (s Signer) Sign(msg []byte) (crypto.Signature, error) {
	sig, err := bls.Sign(suite, s.secret, msg)
	if err != nil {
		return nil, xerrors.Errorf("couldn't make bls signature: %v", err)
	}

	return Signature{data: sig}, nil
}

// Aggregate implements crypto.AggregateSigner. It aggregates the signatures
// into a single one that can be verified with the aggregated public key.
func (s Signer) Aggregate(signatures ...crypto.Signature) (crypto.Signature, error) {
	return AggregateSignatures(signatures...)
}

// AggregateSignatures combines the signatures into a single one.
func AggregateSignatures(signatures ...crypto.Signature) (crypto.Signature, error) {
	buffers := make([][]byte, len(signatures))
	for i, sig := range signatures {
		blsSig, ok := sig.(Signature)
		if !ok {
			return nil, xerrors.Errorf("invalid signature type '%T'", sig)
		}

		buffers[i] = blsSig.data
	}

	agg, err := bls.AggregateSignatures(suite, buffers...)
	if err != nil {
		return nil, xerrors.Errorf("couldn't aggregate: %v", err)
	}

	return Signature{data: agg}, nil
}

// AggregatePublicKeys sums the public keys in order. The result is a
// deterministic function of the keys.
func AggregatePublicKeys(pubkeys ...crypto.PublicKey) (crypto.PublicKey, error) {
	points := make([]kyber.Point, len(pubkeys))
	for i, pubkey := range pubkeys {
		pk, ok := pubkey.(PublicKey)
		if !ok {
			return nil, xerrors.Errorf("invalid public key type '%T'", pubkey)
		}

		points[i] = pk.point
	}

	return PublicKey{point: bls.AggregatePublicKeys(suite, points...)}, nil
}

// NewVerifier returns a verifier that accepts an aggregate signature made
// over one message by the holders of the given public keys.
func NewVerifier(pubkeys []crypto.PublicKey) (crypto.Verifier, error) {
	aggKey, err := AggregatePublicKeys(pubkeys...)
	if err != nil {
		return nil, xerrors.Errorf("couldn't aggregate keys: %v", err)
	}

	return blsVerifier{aggKey: aggKey}, nil
}

// FastAggregateVerify verifies one aggregate signature against the set of
// public keys as if summed, over a single common message.
func FastAggregateVerify(pubkeys []crypto.PublicKey, msg []byte, sig crypto.Signature) error {
	verifier, err := NewVerifier(pubkeys)
	if err != nil {
		return err
	}

	return verifier.Verify(msg, sig)
}

// blsVerifier provides primitives to verify an aggregate BLS signature of a
// unique message.
//
// - implements crypto.Verifier
type blsVerifier struct {
	aggKey crypto.PublicKey
}

// Verify implements crypto.Verifier. It returns nil if the signature
// matches the message, or an error otherwise.
func (v blsVerifier) Verify(msg []byte, sig crypto.Signature) error {
	return v.aggKey.Verify(msg, sig)
}
