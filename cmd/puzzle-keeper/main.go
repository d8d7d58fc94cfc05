package main

import (
	"os"

	"github.com/smith3v/puzzle-keeper/pkg/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
