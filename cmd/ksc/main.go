package main

import (
	"os"

	"github.com/Sun-in-Splendour/ksproject/cmd/ksc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
