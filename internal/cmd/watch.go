package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atikulmunna/sleuth/internal/engine"
	"github.com/atikulmunna/sleuth/internal/hub"
	"github.com/atikulmunna/sleuth/internal/output"
	"github.com/atikulmunna/sleuth/internal/server"
	"github.com/atikulmunna/sleuth/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-analyze log files whenever they change",
	Long: `Watch one or more log files (or glob patterns) and re-run the analysis
after each burst of writes. Reports are printed to the terminal and, with
--serve, published over HTTP and WebSocket.

Examples:
  sleuth watch /var/log/app.log
  sleuth watch "/var/log/**/*.log" --serve :8080`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("serve", "", "serve reports on this address, e.g. :8080")
	watchCmd.Flags().Duration("debounce", 0, "quiet period before re-analyzing a changed file")
	_ = viper.BindPFlag("server.addr", watchCmd.Flags().Lookup("serve"))
	_ = viper.BindPFlag("watch.debounce", watchCmd.Flags().Lookup("debounce"))

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	// --- Set up context with graceful shutdown ---
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return watch(ctx, cmd, args)
}

// watch runs until ctx is cancelled.
func watch(ctx context.Context, cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderer, err := output.New(outputFmt, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	// --- Initialize watcher ---
	w, err := watcher.New(args, logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	paths := w.Paths()
	if len(paths) == 0 {
		return fmt.Errorf("no files matched the given patterns: %v", args)
	}
	logger.Info("watching files", zap.Int("count", len(paths)), zap.Strings("paths", paths))

	an, err := engine.New(engine.OptionsFromConfig(cfg), logger)
	if err != nil {
		return err
	}

	// --- Hub: fans reports out to the terminal and API clients ---
	reports := make(chan hub.Report, 64)
	h := hub.New(reports, logger)
	h.SetHistory(cfg.Server.History)
	terminal := h.Subscribe()
	hubDone := make(chan struct{})
	go func() {
		h.Start(ctx)
		close(hubDone)
	}()

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for r := range terminal {
			if r.Result == nil {
				continue
			}
			if err := renderer.Render(r.Result); err != nil {
				logger.Warn("render failed", zap.String("path", r.Path), zap.Error(err))
			}
		}
	}()

	srvErr := make(chan error, 1)
	if addr := cfg.Server.Addr; addr != "" {
		srv := server.New(h, server.Options{Addr: addr, Pprof: cfg.Server.Pprof, Files: w.Paths}, logger)
		go func() {
			if err := srv.Start(ctx); err != nil {
				srvErr <- fmt.Errorf("api server: %w", err)
				cancel()
			}
		}()
	}

	publish := func(o engine.Outcome) {
		select {
		case reports <- hub.NewReport(o.Path, o.Result, o.Err):
		case <-ctx.Done():
		}
	}

	// --- Start pipeline ---
	go w.Start(ctx)

	outcomes, err := an.AnalyzeAll(ctx, paths)
	if err == nil {
		for _, o := range outcomes {
			publish(o)
		}
	}

	for path := range watcher.Debounce(ctx, w.Events, cfg.Watch.Debounce) {
		res, err := an.Analyze(ctx, path)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			logger.Warn("analysis failed", zap.String("path", path), zap.Error(err))
		}
		publish(engine.Outcome{Path: path, Result: res, Err: err})
	}

	cancel()
	<-hubDone
	<-rendered

	select {
	case err := <-srvErr:
		return err
	default:
		return nil
	}
}
