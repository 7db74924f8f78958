package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"marksweep/internal/clix"
	"marksweep/internal/diagnostics"
)

var (
	diagLimit  int
	diagFields bool
)

var diagnosticsCmd = &cobra.Command{
	Use:     "diagnostics",
	Aliases: []string{"errors"},
	Short:   "Show recorded pipeline failures",
	Long: `Lists the failures recorded by earlier runs (probe errors, classifier errors,
store mutations that gave up), newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		entries, err := appInstance.Store.ListDiagnostics(cmd.Context(), clix.ParseLimit(cmd.Flags()))
		if err != nil {
			return fmt.Errorf("failed to list diagnostics: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No errors recorded.")
			return nil
		}
		renderDiagnostics(entries, diagFields)
		return nil
	},
}

func renderDiagnostics(entries []diagnostics.Entry, withFields bool) {
	table := tablewriter.NewWriter(os.Stdout)
	header := []string{"Time", "Context", "Message"}
	if withFields {
		header = append(header, "Fields")
	}
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(true)

	for _, e := range entries {
		row := []string{
			e.Timestamp.Local().Format(time.DateTime),
			clix.Truncate(e.Context, 40),
			clix.Truncate(e.Message, 60),
		}
		if withFields {
			row = append(row, clix.Truncate(fmt.Sprint(e.Fields), 40))
		}
		table.Append(row)
	}
	table.Render()
}

func init() {
	rootCmd.AddCommand(diagnosticsCmd)

	diagnosticsCmd.Flags().IntVarP(&diagLimit, "limit", "n", diagnostics.DefaultCapacity, "Maximum number of entries to show")
	diagnosticsCmd.Flags().BoolVar(&diagFields, "fields", false, "Show the structured fields of each entry")
}
