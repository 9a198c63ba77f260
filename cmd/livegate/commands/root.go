// Package commands implements the CLI commands for livegate.
package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/livegate/internal/logger"
	"github.com/jmylchreest/livegate/pkg/livegate"
	"github.com/jmylchreest/livegate/pkg/session"
)

var rootCmd = &cobra.Command{
	Use:   "livegate",
	Short: "Douyin live room lookups behind a browser-acquired session",
	Long: `Livegate looks up Douyin live rooms.

It drives headless Chrome through the site's anti-bot challenge once,
keeps the resulting cookie session, and reuses it for plain HTTP
requests to room pages.

Examples:
  # Look up a room by URL or numeric id
  livegate info https://live.douyin.com/123456789

  # Several rooms, as YAML
  livegate info 123456789 987654321 --format yaml

  # Serve the HTTP API and Prometheus metrics
  livegate serve --addr 127.0.0.1:8090`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogger()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.livegate.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "suppress progress output")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("log-file", "", "also log to this file, rotated by size")

	// Browser and session settings
	flags.String("chrome", "", "Chrome binary (default: search PATH, or $LIVEGATE_CHROME)")
	flags.Bool("headless", true, "run Chrome headless")
	flags.Bool("stealth", true, "mask automation fingerprints in Chrome")
	flags.String("user-agent", "", "user agent for the browser and page requests")
	flags.Duration("timeout", 20*time.Second, "page request timeout")
	flags.Duration("attempt-timeout", 90*time.Second, "session acquisition timeout (0=unbounded)")
	flags.Int("max-challenges", 5, "challenge reloads before giving up (0=unbounded)")
	flags.Duration("reload-interval", time.Second, "minimum delay between challenge reloads")

	for _, name := range []string{
		"config", "debug", "quiet", "log-json", "log-file",
		"chrome", "headless", "stealth", "user-agent", "timeout",
		"attempt-timeout", "max-challenges", "reload-interval",
	} {
		_ = viper.BindPFlag(configKey(name), flags.Lookup(name))
	}
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".livegate")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. LIVEGATE_ATTEMPT_TIMEOUT
	viper.SetEnvPrefix("LIVEGATE")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

func initLogger() {
	opts := logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	}
	if path := viper.GetString("log_file"); path != "" {
		opts.File = &logger.FileOptions{Path: path, Compress: true}
	}
	logger.Init(opts)
	if f := viper.ConfigFileUsed(); f != "" {
		logger.Debug("loaded config", "path", f)
	}
}

// configKey maps a flag name onto its config file and env key.
func configKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// clientOptions builds client options from flags, env and config file.
func clientOptions(observers ...session.Observer) []livegate.Option {
	opts := []livegate.Option{
		livegate.WithHeadless(viper.GetBool("headless")),
		livegate.WithStealth(viper.GetBool("stealth")),
		livegate.WithAttemptTimeout(viper.GetDuration("attempt_timeout")),
		livegate.WithMaxChallenges(viper.GetInt("max_challenges")),
		livegate.WithReloadInterval(viper.GetDuration("reload_interval")),
	}
	if d := viper.GetDuration("timeout"); d > 0 {
		opts = append(opts, livegate.WithTimeout(d))
	}
	if path := viper.GetString("chrome"); path != "" {
		opts = append(opts, livegate.WithChromePath(path))
	}
	if ua := viper.GetString("user_agent"); ua != "" {
		opts = append(opts, livegate.WithUserAgent(ua))
	}

	obs := []session.Observer{logObserver()}
	obs = append(obs, observers...)
	opts = append(opts, livegate.WithObserver(session.NewMultiObserver(obs...)))
	return opts
}

// newClient starts a client, logging how long the browser took to come up.
func newClient(ctx context.Context, observers ...session.Observer) (*livegate.Client, error) {
	start := time.Now()
	c, err := livegate.New(ctx, clientOptions(observers...)...)
	if err != nil {
		return nil, err
	}
	logger.Debug("client ready", "duration", time.Since(start).Round(time.Millisecond))
	return c, nil
}

// logObserver reports acquisition progress at info level.
func logObserver() session.Observer {
	return session.ObserverFunc(func(ctx context.Context, ev session.Event) {
		args := []any{"attempt", ev.Attempt, "state", ev.State.String()}
		switch ev.Kind {
		case session.EventStarted:
			logger.InfoContext(ctx, "acquiring session", args...)
		case session.EventChallenge:
			logger.InfoContext(ctx, "challenge page, reloading", append(args, "title", ev.Title)...)
		case session.EventReady:
			logger.InfoContext(ctx, "session ready",
				append(args, "cookies", ev.Cookies, "elapsed", ev.Elapsed.Round(time.Millisecond))...)
		case session.EventFailed:
			logger.ErrorContext(ctx, "session acquisition failed", append(args, "error", ev.Err)...)
		default:
			logger.DebugContext(ctx, "session event", append(args, "kind", string(ev.Kind), "title", ev.Title)...)
		}
	})
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
