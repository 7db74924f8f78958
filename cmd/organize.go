package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"marksweep/internal/report"
)

var (
	organizeReportPath string
	organizeYes        bool
)

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Apply a saved scan report to the store",
	Long: `Reads a report written by 'marksweep scan --report' and moves its accessible
bookmarks into per-category folders. Broken bookmarks are removed when
organize.auto_remove_broken is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		r, err := report.ReadFile(organizeReportPath)
		if err != nil {
			return err
		}
		scan := r.ScanResult()
		fmt.Printf("Report %s from %s: %s\n", r.RunID, r.GeneratedAt.Local().Format("2006-01-02 15:04"), report.ScanSummary(scan))

		settings := appInstance.Settings()
		desc := fmt.Sprintf("%d bookmarks into %d category folders", len(scan.Accessible), len(scan.Categories))
		if settings.AutoRemoveBroken && len(scan.Broken) > 0 {
			desc += fmt.Sprintf(", %d broken bookmarks removed", len(scan.Broken))
		}
		ok, err := confirm("Apply this report?", desc, organizeYes)
		if err != nil || !ok {
			return err
		}

		res := appInstance.Organize(cmd.Context(), scan)
		printOrganization(os.Stdout, res, report.OrganizationSummary(res))
		if !res.Success {
			return fmt.Errorf("organization failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(organizeCmd)

	organizeCmd.Flags().StringVarP(&organizeReportPath, "report", "r", "", "Scan report to apply (required)")
	organizeCmd.Flags().BoolVarP(&organizeYes, "yes", "y", false, "Do not ask for confirmation")
	organizeCmd.MarkFlagRequired("report")
}
