package main

import (
	"os"

	"github.com/iov-one/flowtree/cmd/flowd/commands"
)

func main() {
	rootCmd := commands.NewRootCmd(os.Stdout)

	// Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
