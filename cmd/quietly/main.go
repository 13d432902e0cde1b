package main

import (
	"fmt"
	"os"

	"github.com/quietly/quietly/internal/app"
)

func main() {
	if err := app.NewRootCmd(os.Stdout).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
