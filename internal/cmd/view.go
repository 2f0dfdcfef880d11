package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atikulmunna/strand/internal/aggregator"
	"github.com/atikulmunna/strand/internal/config"
	"github.com/atikulmunna/strand/internal/tui"
	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open the interactive log view",
	Long: `Open a full-screen view of one instance's logs. Keys 1-4 (or tab)
switch transport; r refreshes short polling; a and c pause and resume
emission on the websocket transport; x clears the console.

Diagnostics go to a log file so they do not corrupt the screen.

Edits to the config file while running change log_level immediately; other
keys are logged as pending and apply on the next start.

Examples:
  strand view
  strand view --transport sse --instance instance-1712345678901
  strand view -u http://logs.internal:3001 --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// --- Diagnostics to a file ---
	logPath := cfg.LogFile
	if logPath == "" {
		if logPath, err = config.DefaultLogPath(); err != nil {
			return err
		}
	}
	logFile, err := config.OpenLogFile(logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()
	config.InitLogger(logFile, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	// --- Build pipeline; subscribe before anything can log ---
	p := newPipeline(ctx, cfg)
	defer p.close()

	agg := aggregator.New(p.sess.Subscribe(), p.sess.Dropped)
	go agg.Start(ctx)

	m := tui.New(p.sess, p.coord, agg.Snapshot)
	if err := p.start(); err != nil {
		return err
	}

	if err := tui.Run(ctx, m); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "strand: diagnostics written to %s\n", logPath)
	return nil
}
