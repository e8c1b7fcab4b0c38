package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVarNum_Roundtrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 252, 253, 65535, 65536, 1<<32 - 1, 1 << 32, 1<<64 - 1} {
		buf := AppendVarNum(nil, v)

		out, n, err := ReadVarNum(buf)
		require.NoError(t, err)
		require.Equal(t, v, out)
		require.Equal(t, len(buf), n)
	}

	_, _, err := ReadVarNum(nil)
	require.EqualError(t, err, "empty buffer")

	_, _, err = ReadVarNum([]byte{253, 0})
	require.EqualError(t, err, "truncated 2-octet number")
}

func TestNonNeg_Roundtrip(t *testing.T) {
	for _, v := range []uint64{0, 200, 400, 70000, 1 << 40} {
		out, err := DecodeNonNeg(EncodeNonNeg(v))
		require.NoError(t, err)
		require.Equal(t, v, out)
	}

	_, err := DecodeNonNeg([]byte{1, 2, 3})
	require.EqualError(t, err, "invalid non-negative integer length 3")
}

func TestName_Parse(t *testing.T) {
	name, err := ParseName("/a/b/c")
	require.NoError(t, err)
	require.Equal(t, 3, name.Size())
	require.Equal(t, "/a/b/c", name.String())

	empty, err := ParseName("/")
	require.NoError(t, err)
	require.Equal(t, 0, empty.Size())
	require.Equal(t, "/", empty.String())

	versioned, err := ParseName("/a/v=7")
	require.NoError(t, err)
	require.True(t, versioned.Get(-1).IsVersion())

	_, err = ParseName("/a/v=x")
	require.Error(t, err)
}

func TestName_Wire(t *testing.T) {
	name, err := ParseName("/ndn/mps/example")
	require.NoError(t, err)

	out, err := DecodeName(name.WireEncode())
	require.NoError(t, err)
	require.True(t, name.Equal(out))
}

func TestName_Prefixes(t *testing.T) {
	a, _ := ParseName("/a/b")
	b, _ := ParseName("/a/b/c")

	require.True(t, a.IsPrefixOf(b))
	require.False(t, b.IsPrefixOf(a))
	require.True(t, a.Equal(b.Prefix(2)))
	require.True(t, a.Equal(b.Prefix(-1)))
	require.False(t, a.Equal(b))
}

func TestName_Components(t *testing.T) {
	name := NewName().
		AppendStr("a").
		Append(NewNumberComponent(42)).
		Append(NewVersionComponent(3))

	num, err := name.Get(1).Number()
	require.NoError(t, err)
	require.Equal(t, uint64(42), num)

	v, err := name.Get(-1).Number()
	require.NoError(t, err)
	require.Equal(t, uint64(3), v)
}

func TestData_Roundtrip(t *testing.T) {
	name, _ := ParseName("/a/b/c/d")
	locator, _ := ParseName("/a/b/c")

	data := &Data{
		Name:            name,
		FreshnessPeriod: 4 * time.Second,
		Content:         []byte{1, 2, 3, 4},
	}
	data.SetSignatureInfo(NewSignatureInfo(64, locator))
	data.SigValue = []byte{0xde, 0xad}

	out, err := DecodeData(data.WireEncode())
	require.NoError(t, err)
	require.True(t, data.Name.Equal(out.Name))
	require.Equal(t, data.Content, out.Content)
	require.Equal(t, data.FreshnessPeriod, out.FreshnessPeriod)
	require.Equal(t, data.SigValue, out.SigValue)
	require.True(t, out.SigInfo.HasKeyLocator())
	require.True(t, locator.Equal(out.SigInfo.KeyLocator))
}

func TestData_SignedRanges(t *testing.T) {
	name, _ := ParseName("/a/b")
	data := &Data{Name: name, Content: []byte("payload")}
	data.SetSignatureInfo(NewSignatureInfo(64, name))

	ranges := data.SignedRanges()

	// The signature value must not be part of the signed ranges.
	data.SigValue = []byte{1, 2, 3}
	require.Equal(t, ranges, data.SignedRanges())

	data.Content = []byte("tampered")
	require.NotEqual(t, ranges, data.SignedRanges())
}

func TestData_FullName(t *testing.T) {
	name, _ := ParseName("/a/b")
	data := &Data{Name: name, Content: []byte("x")}

	full := data.FullName()
	require.Equal(t, name.Size()+1, full.Size())
	require.True(t, full.Get(-1).IsImplicitDigest())

	data.Content = []byte("y")
	require.False(t, full.Equal(data.FullName()))
}

func TestInterest_ParamsDigest(t *testing.T) {
	name, _ := ParseName("/signer/mps/sign")
	itr := &Interest{
		Name:          name,
		MustBeFresh:   true,
		Lifetime:      4 * time.Second,
		AppParameters: []byte{5, 5, 5},
	}

	itr.AppendParamsDigest()
	require.True(t, itr.Name.Get(-1).IsParamsDigest())

	// Re-appending replaces the previous digest component.
	itr.AppendParamsDigest()
	require.Equal(t, name.Size()+1, itr.Name.Size())
}

func TestInterest_SignedRanges(t *testing.T) {
	name, _ := ParseName("/signer/mps/sign")
	locator, _ := ParseName("/init/key")

	itr := &Interest{Name: name, AppParameters: []byte{1}}
	itr.SetSignatureInfo(NewSignatureInfo(64, locator))
	itr.AppendParamsDigest()

	ranges := itr.SignedRanges()

	// The digest component is excluded so the ranges are stable.
	itr.AppendParamsDigest()
	require.Equal(t, ranges, itr.SignedRanges())

	require.NotEmpty(t, itr.WireEncode())
}
