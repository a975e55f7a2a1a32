package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProbe/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string
	envFiles   []string
	transport  string
	portName   string
	targetName string

	// Set by loadSettings before any command runs.
	settings *config.Config
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "probe",
	Short: "Hardware interface discovery, firmware dump and glitch tool",
	Long: `Drive a probe head wired to an unknown board: find UART, I2C, SPI and JTAG
interfaces, identify chips, dump firmware images and run glitch campaigns.
Every result is stored in a session database and exported as JSON.

Examples:
  probe probe                                        # Probe the built-in simulator
  probe all --transport pico --port /dev/ttyACM0     # Full run on a Pico head
  probe dump --transport tcp --port 127.0.0.1:7777   # Dump through a networked head
  probe export --out session.json                    # Re-export the session DB`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to read (default .env if present)")
	rootCmd.PersistentFlags().StringVarP(&transport, "transport", "t", "", "probe head transport (pico, tcp, sim)")
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "serial device for pico, host:port for tcp")
	rootCmd.PersistentFlags().StringVar(&targetName, "target", "", "target name recorded with findings")
}

// loadSettings layers the config file, env files, the environment and
// finally command-line flags, then builds the process logger.
func loadSettings(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Read(configPath, envFiles...)
	if err != nil {
		return err
	}
	if transport != "" {
		cfg.Transport = strings.ToLower(transport)
	}
	if portName != "" {
		cfg.Port = portName
	}
	if targetName != "" {
		cfg.Target = targetName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	settings = cfg
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}
