package main

import (
	"fmt"

	"github.com/glowdesk/aimeter/bootstrap"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aimeter %s\n", bootstrap.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
