package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probehead"
)

var listenAddr string

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Serve the demo board over TCP as a probe head",
	Long: `Listen on a TCP address and answer the probe-head protocol for a demo
board, so other commands can be exercised with --transport tcp.

Examples:
  probe emulate --listen 127.0.0.1:7777
  probe probe --transport tcp --port 127.0.0.1:7777`,
	RunE: runEmulate,
}

func init() {
	rootCmd.AddCommand(emulateCmd)
	emulateCmd.Flags().StringVarP(&listenAddr, "listen", "l", "127.0.0.1:7777", "address to listen on")
}

func runEmulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listenAddr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Emulated probe head listening on %s\n", ln.Addr())
	return serveEmulator(ctx, ln)
}

// serveEmulator answers every connection on ln with its own demo emulator
// until ctx is done.
func serveEmulator(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		log := logger.With("remote", conn.RemoteAddr().String())
		log.Info("host connected")
		go func() {
			defer conn.Close()
			emu := probehead.DemoEmulator()
			emu.Logger = log
			if err := emu.Serve(conn); err != nil {
				log.Warn("emulator stopped", "error", err)
				return
			}
			log.Info("host disconnected")
		}()
	}
}
