package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"notehub/internal/drivelink"
)

var linkCmd = &cobra.Command{
	Use:   "link [url]",
	Short: "Show how a share link would be stored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(drivelink.Normalize(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(linkCmd)
}
