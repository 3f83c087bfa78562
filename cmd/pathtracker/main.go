// Package main is the pathtracker command itself.
package main

import (
	"log"
	"os"

	"github.com/steerlab/pathtracker/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
