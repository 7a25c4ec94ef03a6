package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "utapi",
	Short: "S3 utilization tracking service",
	Long: `utapi tracks per-operation usage of an S3-compatible object store:
operation counts, byte traffic, and storage/object levels, at bucket,
account, and service granularity.

  utapi init      # write a starter configuration file
  utapi serve     # start the HTTP query server
  utapi validate  # validate a configuration file`,
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "utapi.yaml", "config file path")
}
