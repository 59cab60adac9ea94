package main

import (
	"os"

	"github.com/ferreirogomes/greenfund/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
