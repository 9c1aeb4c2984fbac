package commands

import (
	"fmt"
	"io"

	"kvksnapshot/internal/ledger"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var ledgerKeys *bool

func init() {
	ledgerKeys = ledgerShowCmd.Flags().Bool("keys", false, "Also print every registry number in the ledger.")
	ledgerCmd.AddCommand(ledgerShowCmd)
	rootCmd.AddCommand(ledgerCmd)
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspects the set of registry numbers emitted by earlier runs.",
}

func showLedger(w io.Writer, path string, keys bool) error {
	set, err := ledger.Load(path)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ledger", "registry numbers"})
	tw.AppendRow(table.Row{path, set.Len()})
	tw.Render()

	if keys {
		for _, key := range set.Sorted() {
			fmt.Fprintln(w, key)
		}
	}
	return nil
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show [--keys]",
	Short: "Prints the size and optionally the contents of the ledger.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(*configPath)
		if err != nil {
			return err
		}
		return showLedger(cmd.OutOrStdout(), cfg.LedgerPath, *ledgerKeys)
	},
}
