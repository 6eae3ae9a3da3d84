package main

import (
	"fmt"
	"os"

	"github.com/pscheid92/hearth/internal/cli"
	"github.com/pscheid92/hearth/internal/platform/version"
)

func main() {
	if err := cli.RootCmd(version.Get().String()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
