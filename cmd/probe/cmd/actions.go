package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/dump"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/glitch"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Search the board for UART, I2C, SPI and JTAG interfaces",
	Long: `Run the detection strategies in order: host UART endpoints, UART edge
timing, I2C pin pairs, SPI pin tuples and JTAG pin tuples. Each strategy
stops at its first hit or when its attempt budget is spent.

Examples:
  # Probe the simulated demo board
  probe probe

  # Probe through a Pico head, skipping the slow JTAG search
  probe probe --transport pico --port /dev/ttyACM0 --skip jtag`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.OutOrStdout(), func(s *session) error {
			_, err := runProbe(cmd.OutOrStdout(), s)
			return err
		})
	},
}

var reconCmd = &cobra.Command{
	Use:   "recon",
	Short: "Ask the probe head to identify chips on the board",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.OutOrStdout(), func(s *session) error {
			return runRecon(cmd.OutOrStdout(), s)
		})
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump firmware images the probe head can read",
	Long: `Stream SPI flash, I2C EEPROM and JTAG images from the probe head into the
dump directory. Files are named <source>_<timestamp>.bin, with .zst or .lz4
appended when a codec is selected. A short stream keeps its partial file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.OutOrStdout(), func(s *session) error {
			return runDump(cmd.OutOrStdout(), s)
		})
	},
}

var glitchCmd = &cobra.Command{
	Use:   "glitch",
	Short: "Run the configured glitch campaigns",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.OutOrStdout(), func(s *session) error {
			return runGlitch(cmd.OutOrStdout(), s)
		})
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Probe, recon, dump and glitch in one session",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		return withSession(w, func(s *session) error {
			if _, err := runProbe(w, s); err != nil {
				return err
			}
			if err := runRecon(w, s); err != nil {
				return err
			}
			if err := runDump(w, s); err != nil {
				return err
			}
			return runGlitch(w, s)
		})
	},
}

var (
	skipStrategies []string
	compression    string
)

func init() {
	rootCmd.AddCommand(probeCmd, reconCmd, dumpCmd, glitchCmd, allCmd)

	for _, c := range []*cobra.Command{probeCmd, allCmd} {
		c.Flags().StringSliceVar(&skipStrategies, "skip", nil,
			"strategies to skip (uart-host, uart-edges, i2c, spi, jtag)")
	}
	for _, c := range []*cobra.Command{dumpCmd, allCmd} {
		c.Flags().StringVar(&compression, "compress", "", "dump file codec (none, zstd, lz4)")
	}
}

func runProbe(w io.Writer, s *session) (*probe.Report, error) {
	fmt.Fprintln(w, "[*] Running probe...")

	cfg := s.cfg.ProbeConfig()
	cfg.SkipStrategies = append(cfg.SkipStrategies, skipStrategies...)
	prober, err := probe.NewProber(s.head, cfg, logger)
	if err != nil {
		return nil, err
	}

	report := prober.Run(s.target, s.store)
	for _, line := range report.Logs() {
		fmt.Fprintf(w, "    %s\n", line)
	}

	findings := report.Findings()
	fmt.Fprintf(w, "[*] Probe finished: %d finding(s)\n", len(findings))
	for _, f := range findings {
		fmt.Fprintf(w, "    - %s\n", f)
	}
	return report, nil
}

func runRecon(w io.Writer, s *session) error {
	fmt.Fprintln(w, "[*] Running recon (chip identification)...")

	prober, err := probe.NewProber(s.head, s.cfg.ProbeConfig(), logger)
	if err != nil {
		return err
	}
	chips := prober.RunRecon()
	if err := s.store.RecordChips(chips); err != nil {
		return err
	}

	fmt.Fprintf(w, "[*] Recon finished: %d chip(s)\n", len(chips))
	for _, c := range chips {
		fmt.Fprintf(w, "    - %s %s %s\n", c.Type, c.Vendor, c.Name)
	}
	return nil
}

func runDump(w io.Writer, s *session) error {
	fmt.Fprintln(w, "[*] Running firmware dump...")

	codec := s.cfg.Compression
	if compression != "" {
		codec = compression
	}
	runner, err := dump.NewRunner(s.head, dump.Options{
		Dir:      s.cfg.DumpDir,
		Codec:    dump.Codec(codec),
		Recorder: s.store,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	artifacts := runner.Run()
	for _, line := range runner.Logs() {
		fmt.Fprintf(w, "    %s\n", line)
		if err := s.store.RecordLog(s.target, line); err != nil {
			logger.Warn("recording dump log", "error", err)
		}
	}

	fmt.Fprintf(w, "[*] Firmware dump finished: %d artifact(s)\n", len(artifacts))
	for _, a := range artifacts {
		fmt.Fprintf(w, "    - %s\n", a)
	}
	return nil
}

func runGlitch(w io.Writer, s *session) error {
	fmt.Fprintln(w, "[*] Running glitch campaigns...")

	attempts := glitch.NewRunner(s.head, s.store, logger).Run(s.cfg.Glitch)
	failed := 0
	for _, a := range attempts {
		if a.Failed() {
			failed++
		}
	}
	fmt.Fprintf(w, "[*] Glitch campaigns finished: %d attempt(s), %d failed\n", len(attempts), failed)
	return nil
}
