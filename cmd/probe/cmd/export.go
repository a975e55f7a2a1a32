package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/store"
)

var exportPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the session database as JSON",
	Long: `Write every table of the session database (probes, logs, chips, dumps and
glitches) to a JSON file. No probe head is needed.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "output file (default: configured export path)")
}

func runExport(cmd *cobra.Command, args []string) error {
	out := exportPath
	if out == "" {
		out = settings.Export
	}
	if out == "" {
		return fmt.Errorf("no export path: pass --out or set export in the config")
	}

	st, err := store.Open(store.Options{Path: settings.DB, Logger: logger})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ExportJSON(out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Session exported to %s\n", out)
	return nil
}
