package main

import (
	"fmt"
	"os"

	"github.com/ipfs/go-cid"
	car "github.com/ipld/go-car-datastore"
	"github.com/urfave/cli/v2"
)

// getCmd prints one block's raw payload to stdout.
var getCmd = &cli.Command{
	Name:      "get",
	Usage:     "print one block's payload",
	ArgsUsage: "<file.car> <cid>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 2 {
			return fmt.Errorf("usage: car get <file.car> <cid>")
		}

		ds, err := car.ReadFileComplete(c.Args().First())
		if err != nil {
			return err
		}
		defer ds.Close()

		blkCid, err := cid.Parse(c.Args().Get(1))
		if err != nil {
			return err
		}

		payload, err := ds.Get(blkCid)
		if err != nil {
			return err
		}

		_, err = os.Stdout.Write(payload)
		return err
	},
}
