package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"marksweep/internal/report"
)

var (
	scanReportPath string
	scanOrganize   bool
	scanAsync      bool
	scanYes        bool
	scanQuiet      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Check every bookmark and assign categories",
	Long: `Probes each bookmark in the store, one at a time, and categorizes the reachable
ones. Ctrl-C stops the scan and keeps the results gathered so far.

With --report the result is written as YAML for a later 'marksweep organize'.
With --organize the store is reorganized right after the scan.
With --async the scan is queued for 'marksweep worker' instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		if scanAsync {
			jobID, err := appInstance.EnqueueScan(cmd.Context(), scanOrganize)
			if err != nil {
				return fmt.Errorf("failed to enqueue scan: %w", err)
			}
			fmt.Printf("Scan queued as job %s\n", jobID)
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		progress := progressPrinter(os.Stdout)
		if scanQuiet {
			progress = nil
		}
		scan, err := appInstance.Scan(ctx, progress)
		interrupted := ctx.Err() != nil && errors.Is(err, context.Canceled)
		if err != nil && !interrupted {
			return err
		}
		if interrupted {
			log.Warnf("Scan interrupted after %d bookmarks; results are partial", scan.Total)
		}

		printScanResult(os.Stdout, scan)

		if scanReportPath != "" {
			if err := report.WriteFile(scanReportPath, report.New(scan)); err != nil {
				return err
			}
			fmt.Printf("\nReport written to %s\n", scanReportPath)
		}

		if !scanOrganize || interrupted {
			return nil
		}
		ok, err := confirm("Reorganize bookmarks now?",
			fmt.Sprintf("%d bookmarks will be moved into category folders.", len(scan.Accessible)), scanYes)
		if err != nil || !ok {
			return err
		}
		res := appInstance.Organize(cmd.Context(), scan)
		printOrganization(os.Stdout, res, report.OrganizationSummary(res))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanReportPath, "report", "r", "", "Write the scan result to this YAML file")
	scanCmd.Flags().BoolVar(&scanOrganize, "organize", false, "Reorganize the store after the scan")
	scanCmd.Flags().BoolVar(&scanAsync, "async", false, "Queue the scan for the background worker")
	scanCmd.Flags().BoolVarP(&scanYes, "yes", "y", false, "Do not ask for confirmation before organizing")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "Do not print per-bookmark progress")
}
