// Package keystore implements the on-disk storage of the BLS secret keys
// and certificates, using bbolt as the engine
// (https://github.com/etcd-io/bbolt).
package keystore

import (
	"go.dedis.ch/ndnmps/crypto"
	"go.dedis.ch/ndnmps/crypto/bls"
	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/mps"
	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var (
	secretBucket = []byte("secrets")
	certBucket   = []byte("certs")
)

// Store is a key/certificate database backed by a bbolt file.
type Store struct {
	bolt *bbolt.DB
}

// New opens the database at the given path, creating it if necessary.
func New(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0666, &bbolt.Options{})
	if err != nil {
		return nil, xerrors.Errorf("failed to open db: %v", err)
	}

	return &Store{bolt: db}, nil
}

// Close closes the database. Any call will result in an error after this
// function is called.
func (s *Store) Close() error {
	return s.bolt.Close()
}

// SaveSigner stores the secret key of the signer under its key name. An
// existing key is not overwritten unless force is set.
func (s *Store) SaveSigner(signer *mps.MpsSigner, force bool) error {
	secret, err := signer.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("couldn't marshal key: %v", err)
	}

	key := []byte(signer.KeyName().String())

	return s.bolt.Update(func(txn *bbolt.Tx) error {
		bucket, err := txn.CreateBucketIfNotExists(secretBucket)
		if err != nil {
			return xerrors.Errorf("failed to create bucket: %v", err)
		}

		if !force && bucket.Get(key) != nil {
			return xerrors.Errorf("key '%s' already exists", signer.KeyName())
		}

		return bucket.Put(key, secret)
	})
}

// LoadSigner restores the signer stored under the key name.
func (s *Store) LoadSigner(keyName encoding.Name) (*mps.MpsSigner, error) {
	var secret []byte

	err := s.bolt.View(func(txn *bbolt.Tx) error {
		bucket := txn.Bucket(secretBucket)
		if bucket == nil {
			return xerrors.New("no key stored")
		}

		value := bucket.Get([]byte(keyName.String()))
		if value == nil {
			return xerrors.Errorf("key '%s' not found", keyName)
		}

		secret = append(secret, value...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	signer, err := mps.NewMpsSignerFromBytes(keyName, secret)
	if err != nil {
		return nil, xerrors.Errorf("couldn't restore signer: %v", err)
	}

	return signer, nil
}

// SaveCert stores the public key of a signer identity under its key name.
func (s *Store) SaveCert(keyName encoding.Name, pk crypto.PublicKey) error {
	raw, err := pk.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("couldn't marshal key: %v", err)
	}

	return s.bolt.Update(func(txn *bbolt.Tx) error {
		bucket, err := txn.CreateBucketIfNotExists(certBucket)
		if err != nil {
			return xerrors.Errorf("failed to create bucket: %v", err)
		}

		return bucket.Put([]byte(keyName.String()), raw)
	})
}

// LoadCert restores the public key stored under the key name.
func (s *Store) LoadCert(keyName encoding.Name) (crypto.PublicKey, error) {
	var raw []byte

	err := s.bolt.View(func(txn *bbolt.Tx) error {
		bucket := txn.Bucket(certBucket)
		if bucket == nil {
			return xerrors.New("no certificate stored")
		}

		value := bucket.Get([]byte(keyName.String()))
		if value == nil {
			return xerrors.Errorf("certificate '%s' not found", keyName)
		}

		raw = append(raw, value...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	pk, err := bls.PublicKeyFromBytes(raw)
	if err != nil {
		return nil, xerrors.Errorf("couldn't restore key: %v", err)
	}

	return pk, nil
}

// ForEachCert iterates over the stored certificates. The iteration stops
// when the callback returns an error.
func (s *Store) ForEachCert(fn func(keyName encoding.Name, pk crypto.PublicKey) error) error {
	return s.bolt.View(func(txn *bbolt.Tx) error {
		bucket := txn.Bucket(certBucket)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			keyName, err := encoding.ParseName(string(k))
			if err != nil {
				return xerrors.Errorf("couldn't parse name '%s': %v", k, err)
			}

			pk, err := bls.PublicKeyFromBytes(v)
			if err != nil {
				return xerrors.Errorf("couldn't parse key of '%s': %v", k, err)
			}

			return fn(keyName, pk)
		})
	})
}
