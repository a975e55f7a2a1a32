package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probehead"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available probe heads",
	Long: `Scan the host for probe heads (Raspberry Pi Pico running the probe firmware,
or a Pico in its USB bootloader) and print a summary. The simulator is always
listed. Use this to verify connectivity before probing.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	heads, err := probehead.DiscoverProbeHeads(ctx)
	if err != nil {
		return fmt.Errorf("discover probe heads: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Detected probe heads:")
	for _, h := range heads {
		if h.Kind == probehead.HeadKindSim {
			fmt.Fprintf(w, "  - %s [%s]\n", h.Label(), h.Kind)
			continue
		}
		fmt.Fprintf(w, "  - %s [%s] (VID:PID %04X:%04X at %s)\n", h.Label(), h.Kind, h.VendorID, h.ProductID, h.Path)
	}
	return nil
}
