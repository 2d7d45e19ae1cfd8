package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCmd builds the walletauth command tree
func NewRootCmd() *cobra.Command {
	c := cobra.Command{
		Use:           "walletauth",
		Short:         "Wallet signature authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(newServeCmd(), newKeygenCmd())
	return &c
}
