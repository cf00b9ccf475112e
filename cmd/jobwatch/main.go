package main

import (
	"errors"
	"fmt"
	"os"

	"jobwatch/internal/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		if !errors.Is(err, cmd.ErrNotOK) {
			fmt.Fprintln(os.Stderr, "jobwatch:", err)
		}
		os.Exit(1)
	}
}
