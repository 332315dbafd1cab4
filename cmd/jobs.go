package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	jobsTenant string
	jobsLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent sync jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		jobs, err := st.ListSyncJobs(ctx, jobsTenant, jobsLimit)
		if err != nil {
			return eris.Wrap(err, "list jobs")
		}

		if len(jobs) == 0 {
			fmt.Println("no sync jobs found")
			return nil
		}

		for _, j := range jobs {
			line := fmt.Sprintf("%s  %-9s  %-11s  tenant=%s  started=%s",
				j.ID, j.Status, j.SyncType, j.TenantID, j.StartedAt.Format("2006-01-02 15:04:05"))
			if j.Stats != nil {
				line += fmt.Sprintf("  added=%d updated=%d contacts=%d errors=%d",
					j.Stats.OpportunitiesAdded, j.Stats.OpportunitiesUpdated,
					j.Stats.ContactsFound, j.Stats.Errors)
			}
			if j.Error != "" {
				line += "  error=" + j.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsTenant, "tenant", "", "filter by tenant ID")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "maximum jobs to list")
	rootCmd.AddCommand(jobsCmd)
}
