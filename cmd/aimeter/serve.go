package main

import (
	"fmt"

	"github.com/glowdesk/aimeter/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the metering API server",
	Long: `Start the aimeter HTTP server.

The server will:
  - Load configuration from aimeter.yaml (or --config)
  - Or load configuration from AIMETER_* environment variables
  - Connect to the database and apply migrations
  - Serve the metering API with token authentication

Environment variables (for Docker deployments):
  AIMETER_DATABASE_DSN   - Database path (default: aimeter.db)
  AIMETER_SERVER_PORT    - Server port (default: 8080)
  AIMETER_CREDITS_MODE   - Credit resolution: static or remote
  AIMETER_LOG_LEVEL      - Log level: debug, info, warn, error

Examples:
  aimeter serve
  aimeter serve --config /etc/aimeter/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	return app.Run()
}
