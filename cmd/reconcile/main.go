package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "reconcile",
		Short:   "Operator tasks for payments and the transaction ledger",
		Version: Version,
	}

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(expireCmd())
	rootCmd.AddCommand(revenueCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
