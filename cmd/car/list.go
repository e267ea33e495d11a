package main

import (
	"context"
	"fmt"

	car "github.com/ipld/go-car-datastore"
	"github.com/urfave/cli/v2"
)

// listCmd prints every CID in a car file, in archive order.
var listCmd = &cli.Command{
	Name:      "list",
	Usage:     "list the CIDs in a CAR file",
	ArgsUsage: "<file.car>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 1 {
			return fmt.Errorf("usage: car list <file.car>")
		}

		ds, err := car.ReadFileComplete(c.Args().First())
		if err != nil {
			return err
		}
		defer ds.Close()

		entries, errc := ds.Query(context.Background(), "")
		for e := range entries {
			fmt.Println(e.Key)
		}
		if err := <-errc; err != nil {
			return err
		}
		return nil
	},
}
