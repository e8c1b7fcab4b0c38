package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"
	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/keystore"
	"go.dedis.ch/ndnmps/mps"
	"go.dedis.ch/ndnmps/schema"
	"golang.org/x/xerrors"
)

// action defines the different cli actions of the mps commands. Injecting
// the printer helps in testing the commands.
type action struct {
	printer io.Writer
}

// keygenAction generates a BLS key pair, stores it in the key database and
// prints the public key.
func (a action) keygenAction(c *cli.Context) error {
	keyName, err := encoding.ParseName(c.String("name"))
	if err != nil {
		return xerrors.Errorf("failed to parse name: %v", err)
	}

	store, err := keystore.New(c.String("db"))
	if err != nil {
		return xerrors.Errorf("failed to open store: %v", err)
	}
	defer store.Close()

	signer := mps.NewMpsSigner(keyName)

	err = store.SaveSigner(signer, c.Bool("force"))
	if err != nil {
		return xerrors.Errorf("failed to save key: %v", err)
	}

	err = store.SaveCert(keyName, signer.PublicKey())
	if err != nil {
		return xerrors.Errorf("failed to save certificate: %v", err)
	}

	text, err := signer.PublicKey().MarshalText()
	if err != nil {
		return xerrors.Errorf("failed to marshal public key: %v", err)
	}

	fmt.Fprintln(a.printer, string(text))

	return nil
}

// pubkeyAction prints the public key of a stored signer.
func (a action) pubkeyAction(c *cli.Context) error {
	keyName, err := encoding.ParseName(c.String("name"))
	if err != nil {
		return xerrors.Errorf("failed to parse name: %v", err)
	}

	store, err := keystore.New(c.String("db"))
	if err != nil {
		return xerrors.Errorf("failed to open store: %v", err)
	}
	defer store.Close()

	signer, err := store.LoadSigner(keyName)
	if err != nil {
		return xerrors.Errorf("failed to load key: %v", err)
	}

	text, err := signer.PublicKey().MarshalText()
	if err != nil {
		return xerrors.Errorf("failed to marshal public key: %v", err)
	}

	fmt.Fprintln(a.printer, string(text))

	return nil
}

// schemaCheckAction loads a schema file and reports whether the given
// signer set satisfies it, along with a minimal satisfying subset.
func (a action) schemaCheckAction(c *cli.Context) error {
	path := c.String("file")

	var s schema.MultipartySchema
	var err error
	if strings.HasSuffix(path, ".json") {
		s, err = schema.FromJSONFile(path)
	} else {
		s, err = schema.FromINFOFile(path)
	}
	if err != nil {
		return xerrors.Errorf("failed to load schema: %v", err)
	}

	var signers []encoding.Name
	for _, uri := range strings.Split(c.String("signers"), ",") {
		if uri == "" {
			continue
		}

		name, err := encoding.ParseName(uri)
		if err != nil {
			return xerrors.Errorf("failed to parse signer '%s': %v", uri, err)
		}

		signers = append(signers, name)
	}

	if !s.PassSchema(signers) {
		fmt.Fprintln(a.printer, "not satisfied")
		return nil
	}

	minimal, _ := s.MinSigners(signers)
	uris := make([]string, len(minimal))
	for i, name := range minimal {
		uris[i] = name.String()
	}

	fmt.Fprintf(a.printer, "satisfied by %s\n", strings.Join(uris, ","))

	return nil
}
