package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"marksweep/internal/clix"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List queued scans, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job ID %q: %w", args[0], err)
			}
			job, err := appInstance.Store.GetJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printYAML(os.Stdout, map[string]any{
				"job_id":     job.JobID.String(),
				"task_type":  job.TaskType,
				"status":     job.Status,
				"payload":    string(job.Payload),
				"result":     string(job.Result),
				"created_at": job.CreatedAt,
				"updated_at": job.UpdatedAt,
			})
		}

		jobs, err := appInstance.Store.ListJobs(cmd.Context(), clix.ParseLimit(cmd.Flags()))
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Job ID", "Type", "Status", "Queue", "Created At", "Updated At"})
		table.SetBorder(true)
		table.SetRowLine(true)
		for _, job := range jobs {
			table.Append([]string{
				job.JobID.String(),
				job.TaskType,
				job.Status,
				job.Queue,
				job.CreatedAt.Format(time.RFC3339),
				job.UpdatedAt.Format(time.RFC3339),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", clix.DefaultLimit, "Maximum number of jobs to list")
}
