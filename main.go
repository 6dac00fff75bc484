package main

import (
	"os"

	"github.com/markview/markview/cmd"
	_ "github.com/markview/markview/internal/renderer"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
