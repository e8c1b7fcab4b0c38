package mps

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/schema"
)

func TestReplyCode(t *testing.T) {
	require.Equal(t, "102", Processing.String())
	require.Equal(t, "200", OK.String())

	code, err := ParseReplyCode("424")
	require.NoError(t, err)
	require.Equal(t, FailedDependency, code)

	_, err = ParseReplyCode("abc")
	require.Error(t, err)
}

func TestSignerList(t *testing.T) {
	list, err := NewSignerList(name(t, "/a/b/c"), name(t, "/a/b/d"))
	require.NoError(t, err)
	require.Equal(t, 2, list.Size())
	require.True(t, list.Contains(name(t, "/a/b/c")))
	require.False(t, list.Contains(name(t, "/a/b/e")))

	_, err = NewSignerList(name(t, "/a/b/c"), name(t, "/a/b/c"))
	require.EqualError(t, err, "duplicate signer '/a/b/c'")
}

func TestSignerList_Wire(t *testing.T) {
	list, err := NewSignerList(name(t, "/a/b/c"), name(t, "/a/b/d"))
	require.NoError(t, err)

	out, err := DecodeSignerList(list.WireEncode())
	require.NoError(t, err)
	require.Equal(t, 2, out.Size())
	require.True(t, out.Names()[0].Equal(name(t, "/a/b/c")))
	require.True(t, out.Names()[1].Equal(name(t, "/a/b/d")))

	_, err = DecodeSignerList([]byte{1, 2})
	require.Error(t, err)

	_, err = DecodeSignerList(encoding.MakeTLV(encoding.TypeContent, nil))
	require.EqualError(t, err, "missing signer list element")
}

// Single signer happy path: sign with key /a/b/c against a schema requiring
// /a/b/_, then verify; a mutated content must not verify.
func TestSingleSigner_HappyPath(t *testing.T) {
	signer := NewMpsSigner(name(t, "/a/b/c"))

	data := &encoding.Data{
		Name:    name(t, "/a/b/c/d"),
		Content: []byte("/1/2/3/4"),
	}

	require.NoError(t, signer.Sign(data))

	verifier := NewMpsVerifier()
	verifier.AddCert(signer.KeyName(), signer.PublicKey())

	s := schemaOf(t, "/a/b/_/_", "/a/b/_")

	require.True(t, verifier.ReadyToVerify(data))
	require.NoError(t, verifier.VerifySignature(data, s))

	data.Content[len(data.Content)-1] ^= 1
	require.Error(t, verifier.VerifySignature(data, s))
}

// Two-of-two aggregate: both signers produce shares over the same signature
// info, the aggregate verifies, and a forged signer list is rejected by the
// schema check.
func TestTwoOfTwo_Aggregate(t *testing.T) {
	a := NewMpsSigner(name(t, "/a/b/c"))
	b := NewMpsSigner(name(t, "/a/b/d"))

	listName := name(t, "/init/mps/signers/0123456789abcdef")
	sigInfo := encoding.NewSignatureInfo(SignatureSha256WithBls, listName)

	data := &encoding.Data{
		Name:    name(t, "/a/b/x"),
		Content: []byte("payload"),
	}

	pieceA, err := a.GetSignature(data, sigInfo)
	require.NoError(t, err)
	pieceB, err := b.GetSignature(data, sigInfo)
	require.NoError(t, err)

	require.NoError(t, NewMpsAggregator().
		BuildMultiSignature(data, sigInfo, [][]byte{pieceA, pieceB}))

	verifier := NewMpsVerifier()
	verifier.AddCert(a.KeyName(), a.PublicKey())
	verifier.AddCert(b.KeyName(), b.PublicKey())

	list, err := NewSignerList(a.KeyName(), b.KeyName())
	require.NoError(t, err)
	verifier.AddSignerList(listName, list)

	s := schemaOf(t, "/a/b/_", "/a/b/c", "/a/b/d")

	require.True(t, verifier.ReadyToVerify(data))
	require.NoError(t, verifier.VerifySignature(data, s))

	// A list missing the second required signer fails the schema check.
	forged := NewMpsVerifier()
	forged.AddCert(a.KeyName(), a.PublicKey())
	forged.AddCert(b.KeyName(), b.PublicKey())

	badList, err := NewSignerList(a.KeyName())
	require.NoError(t, err)
	forged.AddSignerList(listName, badList)

	err = forged.VerifySignature(data, s)
	require.EqualError(t, err, "signer set does not satisfy the schema")
}

func TestMpsSigner_GetSignature(t *testing.T) {
	signer := NewMpsSigner(name(t, "/a/b/c"))
	data := &encoding.Data{Name: name(t, "/a/b/x")}

	_, err := signer.GetSignature(data, encoding.NewSignatureInfo(0, name(t, "/k")))
	require.EqualError(t, err, "unexpected signature type 0")

	sigInfo := encoding.NewSignatureInfo(SignatureSha256WithBls, name(t, "/k"))
	piece, err := signer.GetSignature(data, sigInfo)
	require.NoError(t, err)

	// The packet is left untouched.
	require.False(t, data.SigInfo.HasKeyLocator())

	verifier := NewMpsVerifier()
	verifier.AddCert(signer.KeyName(), signer.PublicKey())
	require.NoError(t, verifier.VerifySignaturePiece(data, sigInfo, signer.KeyName(), piece))
}

func TestMpsSigner_Restore(t *testing.T) {
	signer := NewMpsSigner(name(t, "/a/b/c"))

	secret, err := signer.MarshalBinary()
	require.NoError(t, err)

	restored, err := NewMpsSignerFromBytes(signer.KeyName(), secret)
	require.NoError(t, err)
	require.True(t, restored.PublicKey().Equal(signer.PublicKey()))

	_, err = NewMpsSignerFromBytes(signer.KeyName(), []byte{1})
	require.Error(t, err)
}

func TestMpsVerifier_Dependencies(t *testing.T) {
	a := NewMpsSigner(name(t, "/a/b/c"))
	b := NewMpsSigner(name(t, "/a/b/d"))

	listName := name(t, "/init/mps/signers/ff")
	data := &encoding.Data{Name: name(t, "/a/b/x")}
	data.SetSignatureInfo(encoding.NewSignatureInfo(SignatureSha256WithBls, listName))

	verifier := NewMpsVerifier()

	// Unknown locator: the locator itself is the missing item.
	require.False(t, verifier.ReadyToVerify(data))
	items := verifier.ItemsToFetch(data)
	require.Len(t, items, 1)
	require.True(t, items[0].Equal(listName))

	// Known list with missing member certificates.
	list, err := NewSignerList(a.KeyName(), b.KeyName())
	require.NoError(t, err)
	verifier.AddSignerList(listName, list)
	require.True(t, verifier.HasSignerList(listName))

	require.False(t, verifier.ReadyToVerify(data))
	items = verifier.ItemsToFetch(data)
	require.Len(t, items, 2)

	verifier.AddCert(a.KeyName(), a.PublicKey())
	items = verifier.ItemsToFetch(data)
	require.Len(t, items, 1)
	require.True(t, items[0].Equal(b.KeyName()))

	verifier.AddCert(b.KeyName(), b.PublicKey())
	require.True(t, verifier.ReadyToVerify(data))
	require.Empty(t, verifier.ItemsToFetch(data))

	// A packet without a key locator has no resolvable dependency.
	bare := &encoding.Data{Name: name(t, "/a/b/y")}
	require.False(t, verifier.ReadyToVerify(bare))
	require.Empty(t, verifier.ItemsToFetch(bare))
}

func TestMpsVerifier_Rejections(t *testing.T) {
	signer := NewMpsSigner(name(t, "/a/b/c"))
	s := schemaOf(t, "/a/b/_", "/a/b/_")

	data := &encoding.Data{Name: name(t, "/a/b/x")}

	verifier := NewMpsVerifier()
	err := verifier.VerifySignature(data, s)
	require.EqualError(t, err, "missing key locator")

	data.SetSignatureInfo(encoding.NewSignatureInfo(SignatureSha256WithBls, signer.KeyName()))
	err = verifier.VerifySignature(data, s)
	require.EqualError(t, err, "unresolvable key locator '/a/b/c'")

	verifier.AddCert(signer.KeyName(), signer.PublicKey())
	data.SigValue = []byte("not a signature")
	err = verifier.VerifySignature(data, s)
	require.Error(t, err)

	err = verifier.VerifySignaturePiece(data, encoding.NewSignatureInfo(0, signer.KeyName()),
		signer.KeyName(), nil)
	require.EqualError(t, err, "unexpected signature type 0")

	sigInfo := encoding.NewSignatureInfo(SignatureSha256WithBls, signer.KeyName())
	err = verifier.VerifySignaturePiece(data, sigInfo, name(t, "/unknown"), nil)
	require.EqualError(t, err, "missing certificate for '/unknown'")

	err = verifier.VerifySignaturePiece(data, sigInfo, signer.KeyName(), []byte("junk"))
	require.Error(t, err)
}

func TestMpsAggregator_Errors(t *testing.T) {
	agg := NewMpsAggregator()
	sigInfo := encoding.NewSignatureInfo(SignatureSha256WithBls, name(t, "/k"))
	data := &encoding.Data{Name: name(t, "/a")}

	err := agg.BuildMultiSignature(data, sigInfo, nil)
	require.EqualError(t, err, "no signature piece to aggregate")

	err = agg.BuildMultiSignature(data, sigInfo, [][]byte{[]byte("junk")})
	require.Error(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

func name(t *testing.T, uri string) encoding.Name {
	n, err := encoding.ParseName(uri)
	require.NoError(t, err)

	return n
}

func schemaOf(t *testing.T, pktName string, required ...string) schema.MultipartySchema {
	pkt, err := schema.ParsePattern(pktName)
	require.NoError(t, err)

	s := schema.MultipartySchema{PktName: pkt, RuleID: "test"}
	for _, str := range required {
		pattern, err := schema.ParsePattern(str)
		require.NoError(t, err)

		s.Signers = append(s.Signers, pattern)
	}

	return s
}
