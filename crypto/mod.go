// Package crypto defines the cryptographic abstractions used by the
// multi-party signing packages.
//
// The interfaces are implemented for BLS12-381 in the bls subpackage. A
// signer owns a key pair and produces signatures; an aggregate signer can
// additionally combine signatures into a single one that verifies against
// the aggregation of the participating public keys.
package crypto

import "encoding"

// PublicKey is a public identity that can be used to verify a signature.
type PublicKey interface {
	encoding.BinaryMarshaler
	encoding.TextMarshaler

	// Verify returns nil if the signature matches the message with this
	// public key.
	Verify(msg []byte, sig Signature) error

	// Equal returns true if the other public key is the same.
	Equal(other PublicKey) bool
}

// Signature is a verifiable element for a unique message.
type Signature interface {
	encoding.BinaryMarshaler

	// Equal returns true if the other signature is the same.
	Equal(other Signature) bool
}

// Signer provides the primitives to sign messages.
type Signer interface {
	GetPublicKey() PublicKey

	Sign(msg []byte) (Signature, error)
}

// AggregateSigner offers the same primitives as the Signer interface but
// also includes a primitive to aggregate signatures into one.
type AggregateSigner interface {
	Signer

	Aggregate(signatures ...Signature) (Signature, error)
}

// Verifier provides the primitive to verify a signature w.r.t. a message.
type Verifier interface {
	Verify(msg []byte, sig Signature) error
}
