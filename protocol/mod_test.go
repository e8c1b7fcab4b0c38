package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/mps"
	"golang.org/x/xerrors"
)

func TestMpsPacketSigner(t *testing.T) {
	signer := mps.NewMpsSigner(name(t, "/org/KEY/1"))
	packetSigner := NewMpsPacketSigner(signer)

	data := &encoding.Data{Name: name(t, "/org/doc"), Content: []byte("x")}
	require.NoError(t, packetSigner.SignData(data))
	require.True(t, data.SigInfo.KeyLocator.Equal(signer.KeyName()))
	require.NotEmpty(t, data.SigValue)

	verifier := mps.NewMpsVerifier()
	verifier.AddCert(signer.KeyName(), signer.PublicKey())
	require.True(t, verifier.ReadyToVerify(data))

	itr := &encoding.Interest{Name: name(t, "/org/query"), AppParameters: []byte{1}}
	require.NoError(t, packetSigner.SignInterest(itr))
	require.True(t, itr.Name.Get(-1).IsParamsDigest())
	require.NotEmpty(t, itr.SigValue)
}

func TestKeyChainSigner(t *testing.T) {
	backing := mps.NewMpsSigner(name(t, "/org/KEY/1"))
	packetSigner := NewKeyChainSigner(backing.KeyName(), mps.SignatureSha256WithBls,
		backing.SignBytes)

	data := &encoding.Data{Name: name(t, "/org/doc"), Content: []byte("x")}
	require.NoError(t, packetSigner.SignData(data))

	// The signature checks out as a piece over the installed signature info.
	verifier := mps.NewMpsVerifier()
	verifier.AddCert(backing.KeyName(), backing.PublicKey())
	err := verifier.VerifySignaturePiece(data, data.SigInfo, backing.KeyName(), data.SigValue)
	require.NoError(t, err)

	itr := &encoding.Interest{Name: name(t, "/org/query")}
	require.NoError(t, packetSigner.SignInterest(itr))
	require.True(t, itr.Name.Get(-1).IsParamsDigest())
}

func TestKeyChainSigner_Refusal(t *testing.T) {
	packetSigner := NewKeyChainSigner(name(t, "/org/KEY/1"), mps.SignatureSha256WithBls,
		func([]byte) ([]byte, error) { return nil, xerrors.New("oops") })

	err := packetSigner.SignData(&encoding.Data{Name: name(t, "/org/doc")})
	require.EqualError(t, err, "key chain refused to sign: oops")

	err = packetSigner.SignInterest(&encoding.Interest{Name: name(t, "/org/query")})
	require.EqualError(t, err, "key chain refused to sign: oops")
}
