package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/livegate/internal/logger"
	"github.com/jmylchreest/livegate/internal/output"
)

var infoCmd = &cobra.Command{
	Use:   "info <room>...",
	Short: "Look up live rooms",
	Long: `Look up one or more Douyin live rooms.

A room is a live.douyin.com URL or a bare numeric room id. All lookups
share one browser-acquired session.

Examples:
  livegate info https://live.douyin.com/123456789
  livegate info 123456789 987654321 -c 2 --format jsonl
  livegate info 123456789 --format text`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)

	flags := infoCmd.Flags()
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml, text")
	flags.Bool("pretty", true, "indent json output")
	flags.IntP("concurrency", "c", 4, "concurrent room lookups")
	flags.Bool("fail-on-error", false, "exit non-zero if any lookup fails")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Debug("info command starting", "rooms", len(args))

	outFile := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", outPath, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		outFile = f
	}

	formatStr, _ := cmd.Flags().GetString("format")
	pretty, _ := cmd.Flags().GetBool("pretty")
	writer, err := output.NewWriter(outFile, output.Format(formatStr), output.WithPretty(pretty))
	if err != nil {
		logger.Error("failed to create output writer", "format", formatStr, "error", err)
		return err
	}
	defer func() { _ = writer.Close() }()

	client, err := newClient(ctx)
	if err != nil {
		logger.Error("failed to start client", "error", err)
		return err
	}
	defer func() { _ = client.Close() }()

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	start := time.Now()

	count, errorCount := 0, 0
	for result := range client.GetMany(ctx, args, concurrency) {
		if result.Error != nil {
			errorCount++
			logger.Warn("lookup failed", "room", result.URL, "error", result.Error)
		} else {
			count++
		}
		if err := writer.Write(output.NewRecord(result.URL, result.Info, result.Error, result.Duration)); err != nil {
			logger.Error("failed to write output", "error", err)
			return err
		}
	}

	logger.Info("lookups complete",
		"found", humanize.Comma(int64(count)),
		"errors", errorCount,
		"duration", time.Since(start).Round(time.Millisecond))

	if failOnError, _ := cmd.Flags().GetBool("fail-on-error"); failOnError && errorCount > 0 {
		logError("%d of %d lookups failed", errorCount, len(args))
		return fmt.Errorf("%d lookups failed", errorCount)
	}
	return nil
}
