package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scality/utapi/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the utapi HTTP query server",
	Long: `Start the utapi server.

The server will:
  - Load configuration from utapi.yaml (or --config), or UTAPI_* env vars
  - Construct the configured datastore adapter (memory or sqlite)
  - Serve the signed ListMetrics endpoint and a Prometheus /metrics scrape

Environment variables:
  UTAPI_COMPONENT             - component name (required if no config file)
  UTAPI_DATASTORE_DRIVER      - memory or sqlite
  UTAPI_ACCESS_KEY_ID         - SigV4 access key (auth disabled if unset)
  UTAPI_SECRET_ACCESS_KEY     - SigV4 secret key

Examples:
  utapi serve
  utapi serve --config /etc/utapi/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("initializing utapi: %w", err)
	}
	return app.Run()
}
