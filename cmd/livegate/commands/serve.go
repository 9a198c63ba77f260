package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/livegate/internal/logger"
	"github.com/jmylchreest/livegate/internal/metrics"
	"github.com/jmylchreest/livegate/internal/server"
	"github.com/jmylchreest/livegate/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve room lookups over HTTP",
	Long: `Serve room lookups, session state and Prometheus metrics over HTTP.

Endpoints:
  GET  /api/info?url=<room>   look up a room
  GET  /api/info/<room>       same, room id in the path
  GET  /api/session           session state and age
  POST /api/session/reset     drop the session
  GET  /metrics               Prometheus metrics
  GET  /healthz               liveness`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := server.DefaultConfig()
	flags := serveCmd.Flags()
	flags.String("addr", defaults.Addr, "listen address")
	flags.Duration("lookup-timeout", defaults.LookupTimeout, "per-request lookup timeout (0=unbounded)")
	flags.Bool("warm", false, "acquire a session at startup")

	_ = viper.BindPFlag("addr", flags.Lookup("addr"))
	_ = viper.BindPFlag("lookup_timeout", flags.Lookup("lookup-timeout"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	client, err := newClient(ctx, m)
	if err != nil {
		logger.Error("failed to start client", "error", err)
		return err
	}
	defer func() { _ = client.Close() }()

	if warm, _ := cmd.Flags().GetBool("warm"); warm {
		go func() {
			if _, err := client.Acquire(ctx); err != nil {
				logger.Warn("warm-up acquisition failed", "error", err)
			}
		}()
	}

	srv := server.New(client, m, server.Config{
		Addr:          viper.GetString("addr"),
		LookupTimeout: viper.GetDuration("lookup_timeout"),
	})
	logger.Info("starting server", "version", version.UserAgentSuffix(), "addr", viper.GetString("addr"))
	return srv.ListenAndServe(ctx)
}
