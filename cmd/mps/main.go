// Package main provides a cli to manage the keys and schemas of the
// multi-party signing protocol.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

var printer io.Writer = os.Stderr

func main() {
	err := makeApp(os.Stdout).Run(os.Args)
	if err != nil {
		fmt.Fprintf(printer, "%+v\n", err)
		os.Exit(1)
	}
}

func makeApp(out io.Writer) *cli.App {
	a := action{printer: out}

	return &cli.App{
		Name:  "mps",
		Usage: "manage multi-party signing keys and schemas",
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "generate a BLS key pair and store it",
				Action: a.keygenAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "key name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "db",
						Usage:    "path of the key database",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "overwrite an existing key",
					},
				},
			},
			{
				Name:   "pubkey",
				Usage:  "print the public key of a stored signer",
				Action: a.pubkeyAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "key name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "db",
						Usage:    "path of the key database",
						Required: true,
					},
				},
			},
			{
				Name:  "schema",
				Usage: "operate on multi-party schemas",
				Subcommands: []*cli.Command{
					{
						Name:   "check",
						Usage:  "check a signer set against a schema",
						Action: a.schemaCheckAction,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "file",
								Usage:    "schema file (json or info)",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "signers",
								Usage: "comma-separated signer key names",
							},
						},
					},
				},
			},
		},
	}
}
