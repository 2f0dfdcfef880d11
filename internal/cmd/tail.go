package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atikulmunna/strand/internal/config"
	"github.com/atikulmunna/strand/internal/filter"
	"github.com/atikulmunna/strand/internal/model"
	"github.com/atikulmunna/strand/internal/output"
	"github.com/atikulmunna/strand/internal/session"
	"github.com/spf13/cobra"
)

var (
	outputFmt    string
	levelFilter  string
	whereFilter  string
	refreshEvery time.Duration
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream an instance's logs to stdout",
	Long: `Follow one instance's logs over the chosen transport and print each
entry as it arrives. Suited to pipes and scripts; status messages from the
transport are printed like any other entry.

Edits to the config file while running change log_level immediately; other
keys are logged as pending and apply on the next start.

Examples:
  strand tail --transport sse
  strand tail --refresh-every 3s --output json
  strand tail -t websocket --level warn,error
  strand tail --where 'level == "error" && message contains "disk"'`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().StringVarP(&outputFmt, "output", "o", output.FormatAuto, "output format: auto, text, json, yaml")
	tailCmd.Flags().StringVarP(&levelFilter, "level", "l", "", "filter by severity (comma-separated: info,warn,error,debug)")
	tailCmd.Flags().StringVarP(&whereFilter, "where", "w", "", "filter expression over id, message, level, timestamp")
	tailCmd.Flags().DurationVar(&refreshEvery, "refresh-every", 0, "short polling refresh interval (0 = once at start)")
	bindFlag(tailCmd.Flags().Lookup("refresh-every"), "short_poll_interval")
}

func runTail(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// --- Diagnostics to stderr unless a file is configured ---
	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := config.OpenLogFile(cfg.LogFile)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	config.InitLogger(logOut, cfg.LogLevel)

	f, err := filter.New(levelFilter, whereFilter)
	if err != nil {
		return err
	}
	renderer, err := output.New(outputFmt, os.Stdout)
	if err != nil {
		return err
	}

	// --- Set up context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nstrand: shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	p := newPipeline(ctx, cfg)
	defer p.close()

	events := p.sess.Subscribe()
	if err := p.start(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "strand: following instance %s via %s\n", p.sess.InstanceID(), cfg.Kind().Label())

	// Manual-only short polling would otherwise never fetch.
	if cfg.Kind() == model.ShortPolling && cfg.ShortPollInterval == 0 {
		if err := p.coord.ManualRefresh(); err != nil {
			slog.Warn("initial refresh failed", "error", err)
		}
	}

	pr := newTailPrinter(renderer, f)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			pr.handle(ev)
		}
	}
}

// tailPrinter turns session events into output lines. A replaced sequence
// prints only the entries missing from the previous snapshot. seen holds the
// IDs of that snapshot alone; appends are never recorded.
type tailPrinter struct {
	renderer output.Renderer
	filter   *filter.Filter
	seen     map[string]bool
}

func newTailPrinter(r output.Renderer, f *filter.Filter) *tailPrinter {
	return &tailPrinter{renderer: r, filter: f, seen: make(map[string]bool)}
}

func (p *tailPrinter) handle(ev session.Event) {
	switch ev.Kind {
	case session.EntriesAppended:
		for _, e := range ev.Entries {
			p.print(e)
		}
	case session.EntriesReplaced:
		next := make(map[string]bool, len(ev.Entries))
		for _, e := range ev.Entries {
			next[e.ID] = true
			if !p.seen[e.ID] {
				p.print(e)
			}
		}
		p.seen = next
	case session.Cleared:
		p.seen = make(map[string]bool)
	case session.StatusChanged:
		slog.Debug("connection status", "connected", ev.Status.Connected, "transport", string(ev.Status.Method))
	}
}

func (p *tailPrinter) print(e model.LogEntry) {
	if !p.filter.Match(e) {
		return
	}
	if err := p.renderer.Render(e); err != nil {
		slog.Error("render error", "error", err)
	}
}

