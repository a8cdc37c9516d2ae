package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/signalnine/worldbench/internal/config"
	"github.com/signalnine/worldbench/internal/logging"
)

const defaultConfigFile = "worldbench.yaml"

var (
	cfgFile      string
	flagLogLevel string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "worldbench",
		Short:        "Benchmark tool-using agents against simulated app worlds",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigFile, "config file path")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error); overrides WORLDBENCH_LOG_LEVEL")
	root.AddCommand(newRunCmd())
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newWorldCmd())
	return root
}

// loadConfig reads the config file. The default file is optional; one named
// with --config must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}

// newLogger writes to stderr so stdout stays free for reports and the stdio
// world transport.
func newLogger(cfg *config.Config) zerolog.Logger {
	level := flagLogLevel
	if level == "" && cfg != nil {
		level = cfg.LogLevel
	}
	return logging.New(os.Stderr, level, logging.IsTerminal(os.Stderr))
}
