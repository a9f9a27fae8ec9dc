package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// appVersion is stamped at release time.
const appVersion = "1.4.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the qms version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Println("qms " + appVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
