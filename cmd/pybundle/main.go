// # cmd/pybundle/main.go
package main

import (
	"os"

	"pybundle/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
