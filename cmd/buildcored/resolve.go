package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildcore/engine/internal/resolverfs"
)

var (
	resolveRoot string
	resolveName string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "discover an SDK resolver artifact under a resolver root",
	RunE: func(cmd *cobra.Command, args []string) error {
		if resolveRoot == "" || resolveName == "" {
			return fmt.Errorf("resolve: --root and --name are required")
		}

		resolved, err := resolverfs.Discover(resolveRoot, resolveName)
		if err != nil {
			return fmt.Errorf("resolve: %w", err)
		}

		if jsonOutput {
			fmt.Printf("{\"name\":%q,\"path\":%q}\n", resolved.Name, resolved.Path)
		} else {
			fmt.Printf("%s -> %s\n", resolved.Name, resolved.Path)
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveRoot, "root", "", "resolver root directory")
	resolveCmd.Flags().StringVar(&resolveName, "name", "", "resolver name to discover")
}
