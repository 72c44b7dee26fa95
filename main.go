package main

import (
	"os"

	"github.com/leftmike/planexec/cmd"
)

func main() {
	if cmd.Execute() != nil {
		os.Exit(1)
	}
}
