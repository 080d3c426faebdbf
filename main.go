package main

import (
	"os"

	"github.com/schmidt-silas/mem0-for-owui/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
