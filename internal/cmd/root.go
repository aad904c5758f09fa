package cmd

import (
	"fmt"
	"os"

	"github.com/atikulmunna/sleuth/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile   string
	outputFmt string
	verbose   bool

	// Set by PersistentPreRunE before any subcommand runs.
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "sleuth",
	Short: "Sleuth: log forensics analyzer",
	Long: `Sleuth analyzes database transaction logs, application logs and
generic system logs. It detects the log type, extracts entities, correlates
operations and reports security and operations insights.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.sleuth.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format: table, json, yaml, msgpack, markdown")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func setup(*cobra.Command, []string) error {
	v := viper.GetViper()
	config.Init(v, cfgFile)

	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c

	l, err := newLogger(cfg, verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = l
	return nil
}

// newLogger builds the process logger. Logs always go to stderr so that
// stdout carries only rendered reports.
func newLogger(c *config.Config, verbose bool) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.Sampling = nil

	if c.Log.Format != "json" {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
