package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/codexrun/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var failed *cli.FailedError
		if errors.As(err, &failed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
