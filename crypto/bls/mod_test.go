package bls

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/ndnmps/crypto"
)

func TestSigner_SignAndVerify(t *testing.T) {
	signer := NewSigner()
	msg := []byte("deadbeef")

	sig, err := signer.Sign(msg)
	require.NoError(t, err)

	err = signer.GetPublicKey().Verify(msg, sig)
	require.NoError(t, err)

	err = signer.GetPublicKey().Verify([]byte("somethingelse"), sig)
	require.Error(t, err)
}

func TestSigner_Restore(t *testing.T) {
	signer := NewSigner()

	data, err := signer.MarshalBinary()
	require.NoError(t, err)

	restored, err := NewSignerFromBytes(data)
	require.NoError(t, err)
	require.True(t, signer.GetPublicKey().Equal(restored.GetPublicKey()))

	sig, err := restored.Sign([]byte("msg"))
	require.NoError(t, err)
	require.NoError(t, signer.GetPublicKey().Verify([]byte("msg"), sig))

	_, err = NewSignerFromBytes([]byte{0xff})
	require.Error(t, err)
}

func TestPublicKey_Serialization(t *testing.T) {
	signer := NewSigner()

	data, err := signer.GetPublicKey().MarshalBinary()
	require.NoError(t, err)

	pk, err := PublicKeyFromBytes(data)
	require.NoError(t, err)
	require.True(t, pk.Equal(signer.GetPublicKey()))

	text, err := pk.MarshalText()
	require.NoError(t, err)
	require.Contains(t, string(text), "bls:")

	require.Len(t, pk.String(), 4+16)

	_, err = PublicKeyFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestSignature_Serialization(t *testing.T) {
	signer := NewSigner()

	sig, err := signer.Sign([]byte("msg"))
	require.NoError(t, err)

	buf, err := sig.MarshalBinary()
	require.NoError(t, err)

	restored, err := SignatureFromBytes(buf)
	require.NoError(t, err)
	require.True(t, sig.Equal(restored))

	_, err = SignatureFromBytes([]byte("garbage"))
	require.Error(t, err)
}

func TestFastAggregateVerify(t *testing.T) {
	msg := []byte("common message")

	signers := []Signer{NewSigner(), NewSigner(), NewSigner()}
	sigs := make([]crypto.Signature, len(signers))
	pubkeys := make([]crypto.PublicKey, len(signers))
	for i, signer := range signers {
		sig, err := signer.Sign(msg)
		require.NoError(t, err)

		sigs[i] = sig
		pubkeys[i] = signer.GetPublicKey()
	}

	agg, err := AggregateSignatures(sigs...)
	require.NoError(t, err)

	err = FastAggregateVerify(pubkeys, msg, agg)
	require.NoError(t, err)

	// A missing participant makes the verification fail.
	err = FastAggregateVerify(pubkeys[:2], msg, agg)
	require.Error(t, err)

	// A flipped bit in the message makes the verification fail.
	tampered := append([]byte{}, msg...)
	tampered[0] ^= 1
	err = FastAggregateVerify(pubkeys, tampered, agg)
	require.Error(t, err)
}

func TestAggregate_OrderIndependence(t *testing.T) {
	a, b := NewSigner(), NewSigner()

	keyAB, err := AggregatePublicKeys(a.GetPublicKey(), b.GetPublicKey())
	require.NoError(t, err)

	keyBA, err := AggregatePublicKeys(b.GetPublicKey(), a.GetPublicKey())
	require.NoError(t, err)

	// Summing is commutative, so both orders derive the same key.
	require.True(t, keyAB.Equal(keyBA))
}

func TestAggregate_RejectsForeignTypes(t *testing.T) {
	_, err := AggregateSignatures(fakeSignature{})
	require.EqualError(t, err, "invalid signature type 'bls.fakeSignature'")

	_, err = AggregatePublicKeys(fakePublicKey{})
	require.EqualError(t, err, "invalid public key type 'bls.fakePublicKey'")

	signer := NewSigner()
	err = signer.GetPublicKey().Verify([]byte("msg"), fakeSignature{})
	require.EqualError(t, err, "invalid signature type 'bls.fakeSignature'")
}

// -----------------------------------------------------------------------------
// Utility functions

type fakeSignature struct {
	crypto.Signature
}

type fakePublicKey struct {
	crypto.PublicKey
}
