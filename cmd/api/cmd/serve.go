package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cun0/vessel-notify/internal/app"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(cmd.Context(), app.Options{
			Version:   Version,
			BuildTime: BuildDate,
			LogLevel:  logLevel,
			LogFormat: logFormat,
			Port:      servePort,
		})
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides PORT)")
}
