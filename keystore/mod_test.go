package keystore

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/ndnmps/crypto"
	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/mps"
)

func TestStore_Signers(t *testing.T) {
	store, err := New(t.TempDir() + "/keys.db")
	require.NoError(t, err)
	defer store.Close()

	keyName := name(t, "/org/KEY/1")
	signer := mps.NewMpsSigner(keyName)

	require.NoError(t, store.SaveSigner(signer, false))

	restored, err := store.LoadSigner(keyName)
	require.NoError(t, err)
	require.True(t, restored.PublicKey().Equal(signer.PublicKey()))

	// A second save without force is refused.
	err = store.SaveSigner(mps.NewMpsSigner(keyName), false)
	require.EqualError(t, err, "key '/org/KEY/1' already exists")

	require.NoError(t, store.SaveSigner(signer, true))

	_, err = store.LoadSigner(name(t, "/org/KEY/2"))
	require.EqualError(t, err, "key '/org/KEY/2' not found")
}

func TestStore_Certs(t *testing.T) {
	store, err := New(t.TempDir() + "/keys.db")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.LoadCert(name(t, "/org/KEY/1"))
	require.EqualError(t, err, "no certificate stored")

	a := mps.NewMpsSigner(name(t, "/org/KEY/1"))
	b := mps.NewMpsSigner(name(t, "/org/KEY/2"))

	require.NoError(t, store.SaveCert(a.KeyName(), a.PublicKey()))
	require.NoError(t, store.SaveCert(b.KeyName(), b.PublicKey()))

	pk, err := store.LoadCert(a.KeyName())
	require.NoError(t, err)
	require.True(t, pk.Equal(a.PublicKey()))

	_, err = store.LoadCert(name(t, "/org/KEY/3"))
	require.EqualError(t, err, "certificate '/org/KEY/3' not found")

	count := 0
	err = store.ForEachCert(func(encoding.Name, crypto.PublicKey) error {
		count++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestStore_EmptySigners(t *testing.T) {
	store, err := New(t.TempDir() + "/keys.db")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.LoadSigner(name(t, "/org/KEY/1"))
	require.EqualError(t, err, "no key stored")
}

func TestNew_BadPath(t *testing.T) {
	_, err := New("/this/path/does/not/exist/keys.db")
	require.Error(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

func name(t *testing.T, uri string) encoding.Name {
	n, err := encoding.ParseName(uri)
	require.NoError(t, err)

	return n
}
