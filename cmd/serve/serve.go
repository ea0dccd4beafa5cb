package serve

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/lifer/internal/api"
	"github.com/tphakala/lifer/internal/app"
)

// Command creates the serve command that runs the HTTP API.
func Command(ctx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  `Serve scored observations, species sightings and life-list management over HTTP until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.Run(ctx, func(a *app.App) error {
				server, err := api.New(a.Finder, api.ConfigFromSettings(a.Settings),
					api.WithHTTPMetrics(a.Metrics.HTTP),
					api.WithMetricsHandler(a.Metrics.Handler()),
					api.WithBuildInfo(a.Build))
				if err != nil {
					return err
				}
				return server.Start(signalCtx)
			})
		},
	}

	setupFlags(cmd)

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command) {
	cmd.Flags().String("listen", "", "Address to listen on, e.g. :8080")
	cmd.Flags().Int("ratelimit", 0, "Requests per minute allowed per client IP")
	cmd.Flags().Bool("trustproxy", false, "Take the client IP from X-Forwarded-For")

	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("server.ratelimit", cmd.Flags().Lookup("ratelimit"))
	_ = viper.BindPFlag("server.trustproxy", cmd.Flags().Lookup("trustproxy"))
}
