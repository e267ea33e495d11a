package main

import (
	"fmt"

	car "github.com/ipld/go-car-datastore"
	"github.com/urfave/cli/v2"
)

// rootCmd prints the root CIDs in a car file.
var rootCmd = &cli.Command{
	Name:      "root",
	Usage:     "print the root CIDs of a CAR file",
	ArgsUsage: "<file.car>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 1 {
			return fmt.Errorf("usage: car root <file.car>")
		}

		ds, err := car.ReadFileComplete(c.Args().First())
		if err != nil {
			return err
		}
		defer ds.Close()

		roots, err := ds.GetRoots()
		if err != nil {
			return err
		}
		for _, r := range roots {
			fmt.Println(r.String())
		}
		return nil
	},
}
