package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	car "github.com/ipld/go-car-datastore"
	"github.com/urfave/cli/v2"
)

// createCmd builds a CAR file from a directory of raw block files, each
// named by its CID. This module does not model a unixfs filesystem tree
// (see DESIGN.md); it only exercises the raw put/setRoots surface.
var createCmd = &cli.Command{
	Name:      "create",
	Usage:     "build a CAR file from a directory of <cid>-named block files",
	ArgsUsage: "<root-cid> <block-dir>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "file", Aliases: []string{"o"}, Required: true, Usage: "output CAR path"},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 2 {
			return fmt.Errorf("usage: car create --file out.car <root-cid> <block-dir>")
		}

		root, err := cid.Parse(c.Args().Get(0))
		if err != nil {
			return err
		}
		dir := c.Args().Get(1)

		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}

		out, err := os.Create(c.String("file"))
		if err != nil {
			return err
		}
		defer out.Close()

		ds, err := car.WriteStream(out)
		if err != nil {
			return err
		}

		if err := ds.SetRoots([]cid.Cid{root}); err != nil {
			return err
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			blkCid, err := cid.Parse(entry.Name())
			if err != nil {
				continue // not a cid-named file, skip
			}
			payload, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return err
			}
			if err := ds.Put(blkCid, payload); err != nil {
				return err
			}
		}

		return ds.Close()
	},
}
