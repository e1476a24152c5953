package main

import (
	"os"

	"github.com/freightpool/absorb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
