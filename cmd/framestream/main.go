// Command framestream streams camera frames to a single TCP peer using
// zstd compressed delta encoding, and receives such streams.
//
// Usage:
//
//	framestream serve --port 8080 --record
//	framestream view localhost:8080 --display
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-framestream/internal/log"
)

var (
	configPath string
	logLevel   string
	verbose    bool

	// appConfig is loaded once in PersistentPreRunE before any subcommand runs.
	appConfig Config
)

var rootCmd = &cobra.Command{
	Use:           "framestream",
	Short:         "Stream compressed camera frames over TCP",
	Version:       GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `framestream sends frames from a camera or test pattern to one TCP peer.
The first frame is sent whole. Every later frame is sent as its byte-wise
difference from the previous one, zstd compressed and length prefixed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Stream.Verbose = verbose
			cfg.Client.Verbose = verbose
		}
		log.Init(cfg.LogLevel)
		appConfig = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log session lifecycle and frames at info level")
	rootCmd.SetVersionTemplate(GetVersionInfo() + "\n")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
