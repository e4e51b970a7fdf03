package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dashlytics/compute/cmd/cli/commands"
	"github.com/dashlytics/compute/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "computectl",
		Short: "Compute engine CLI for dataset analytics",
		Long: `A command-line interface for computing descriptive statistics,
analyzing time series and inspecting acceleration capabilities.`,
		Version: "0.1.0",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus COMPUTE_ env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	loadConfig := func() (*config.Config, *logrus.Logger, error) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, nil, err
		}
		logger := newLogger(cfg.Logging)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}
		return cfg, logger, nil
	}

	rootCmd.AddCommand(commands.NewStatsCmd(loadConfig))
	rootCmd.AddCommand(commands.NewAnalyzeCmd(loadConfig))
	rootCmd.AddCommand(commands.NewCapabilitiesCmd(loadConfig))
	rootCmd.AddCommand(commands.NewSimilarityCmd(loadConfig))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
