package main

import (
	"os"

	"github.com/lkmninja/aaflbot/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
