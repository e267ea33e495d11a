// Command car is a thin CLI over the datastore facade: root, list and get
// read through the file-indexed reader (ReadFileComplete), and create
// writes through the streaming writer (WriteStream). The buffer and
// stream read modes are not reachable from it.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "car",
		Usage: "inspect and build Content ARchives",
		Commands: []*cli.Command{
			rootCmd,
			listCmd,
			getCmd,
			createCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "car: %s\n", err)
		os.Exit(1)
	}
}
