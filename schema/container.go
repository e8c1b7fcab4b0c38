package schema

import (
	"encoding/base64"
	"os"

	"go.dedis.ch/ndnmps/crypto"
	"go.dedis.ch/ndnmps/crypto/bls"
	"go.dedis.ch/ndnmps/encoding"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Container holds the schemas and the trusted signer identities of a party.
// Trusted identities keep their insertion order, which makes the selection
// of minimal signer sets reproducible.
//
// All the operations are pure with respect to signer unavailability: the
// unavailable keys are passed as arguments instead of being transient state,
// so public calls never leak search state into each other.
type Container struct {
	Schemas []MultipartySchema

	keys  map[string]crypto.PublicKey
	order []encoding.Name
}

// NewContainer returns an empty schema container.
func NewContainer() *Container {
	return &Container{
		keys: make(map[string]crypto.PublicKey),
	}
}

// AddTrustedID registers the public key of a trusted signer identity. An
// existing entry for the key name is left untouched.
func (c *Container) AddTrustedID(keyName encoding.Name, pk crypto.PublicKey) {
	if _, ok := c.keys[keyName.String()]; ok {
		return
	}

	c.keys[keyName.String()] = pk
	c.order = append(c.order, keyName)
}

// TrustedID returns the public key of a trusted identity.
func (c *Container) TrustedID(keyName encoding.Name) (crypto.PublicKey, bool) {
	pk, ok := c.keys[keyName.String()]
	return pk, ok
}

// TrustedIDs returns the trusted identities in insertion order.
func (c *Container) TrustedIDs() []encoding.Name {
	return append([]encoding.Name{}, c.order...)
}

// Satisfied returns true when the signer set satisfies every schema of the
// container that governs the given packet name.
func (c *Container) Satisfied(packetName encoding.Name, signers []encoding.Name) bool {
	for _, s := range c.Schemas {
		if s.Match(packetName) && !s.PassSchema(signers) {
			return false
		}
	}

	return true
}

// AvailableSigners returns a minimal signer set drawn from the trusted
// identities, excluding the unavailable keys, that satisfies the schema. It
// returns an empty set when the schema cannot be satisfied.
func (c *Container) AvailableSigners(s MultipartySchema, unavailable ...encoding.Name) []encoding.Name {
	candidates := make([]encoding.Name, 0, len(c.order))
	for _, name := range c.order {
		if !containsName(unavailable, name) {
			candidates = append(candidates, name)
		}
	}

	selected, ok := s.MinSigners(candidates)
	if !ok {
		return nil
	}

	return selected
}

// ReplaceSigner marks the key unavailable and attempts to restore the
// satisfaction of the schema without removing other members of the list,
// by adding a single replacement key. It returns the updated list and the
// added names, or an empty list when no single key restores it.
func (c *Container) ReplaceSigner(s MultipartySchema, list []encoding.Name,
	unavailableKey encoding.Name, alsoUnavailable ...encoding.Name) ([]encoding.Name, []encoding.Name) {

	remaining := make([]encoding.Name, 0, len(list))
	for _, name := range list {
		if !name.Equal(unavailableKey) {
			remaining = append(remaining, name)
		}
	}

	if s.PassSchema(remaining) {
		return remaining, nil
	}

	for _, candidate := range c.order {
		if candidate.Equal(unavailableKey) ||
			containsName(alsoUnavailable, candidate) ||
			containsName(remaining, candidate) {
			continue
		}

		trial := append(append([]encoding.Name{}, remaining...), candidate)
		if s.PassSchema(trial) {
			return trial, []encoding.Name{candidate}
		}
	}

	return nil, nil
}

// AggregateKey derives the aggregate public key of the listed signers, in
// the exact order of the list. Every verifier derives the same key from the
// same list.
func (c *Container) AggregateKey(list []encoding.Name) (crypto.PublicKey, error) {
	pubkeys := make([]crypto.PublicKey, len(list))
	for i, name := range list {
		pk, ok := c.keys[name.String()]
		if !ok {
			return nil, xerrors.Errorf("unknown trusted id '%s'", name)
		}

		pubkeys[i] = pk
	}

	aggKey, err := bls.AggregatePublicKeys(pubkeys...)
	if err != nil {
		return nil, xerrors.Errorf("couldn't aggregate keys: %v", err)
	}

	return aggKey, nil
}

// trustedIDsFile is the YAML form of the trusted identities.
type trustedIDsFile struct {
	TrustedIDs []struct {
		Name string `yaml:"name"`
		Key  string `yaml:"key"`
	} `yaml:"trusted-ids"`
}

// LoadTrustedIDs loads trusted identities from their YAML representation.
func (c *Container) LoadTrustedIDs(data []byte) error {
	file := trustedIDsFile{}

	err := yaml.Unmarshal(data, &file)
	if err != nil {
		return xerrors.Errorf("couldn't parse yaml: %v", err)
	}

	for _, entry := range file.TrustedIDs {
		name, err := encoding.ParseName(entry.Name)
		if err != nil {
			return xerrors.Errorf("couldn't parse name '%s': %v", entry.Name, err)
		}

		raw, err := base64.StdEncoding.DecodeString(entry.Key)
		if err != nil {
			return xerrors.Errorf("couldn't decode key of '%s': %v", entry.Name, err)
		}

		pk, err := bls.PublicKeyFromBytes(raw)
		if err != nil {
			return xerrors.Errorf("couldn't parse key of '%s': %v", entry.Name, err)
		}

		c.AddTrustedID(name, pk)
	}

	return nil
}

// LoadTrustedIDsFile loads trusted identities from a YAML file.
func (c *Container) LoadTrustedIDsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return xerrors.Errorf("couldn't read file: %v", err)
	}

	return c.LoadTrustedIDs(data)
}
