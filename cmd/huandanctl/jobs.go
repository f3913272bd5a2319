package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// jobInfo mirrors the server's ingest job JSON.
type jobInfo struct {
	ID          string `json:"id"`
	ArchiveName string `json:"archive_name"`
	State       string `json:"state"`
	RequestedAt string `json:"requested_at"`
	Inserted    int    `json:"inserted"`
	Duplicates  int    `json:"duplicates"`
	Rejected    int    `json:"rejected"`
	LastError   string `json:"last_error,omitempty"`
}

func newJobsCmd() *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "jobs [jobId]",
		Short: "List ingest jobs, or show one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/jobs"
			if len(args) == 1 {
				path += "/" + url.PathEscape(args[0])
			} else if state != "" {
				path += "?state=" + url.QueryEscape(state)
			}

			body, err := globalClient.doRequest("GET", path, nil)
			if err != nil {
				return err
			}
			if outputFlag == "json" || len(args) == 1 {
				return printJSON(body)
			}

			var resp struct {
				Jobs      []jobInfo `json:"jobs"`
				TotalSize int       `json:"totalSize"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parsing jobs: %w", err)
			}
			if len(resp.Jobs) == 0 {
				fmt.Println("no ingest jobs")
				return nil
			}

			fmt.Printf("%-38s %-11s %-24s %-9s %-11s %s\n",
				"ID", "STATE", "ARCHIVE", "INSERTED", "DUPLICATES", "REJECTED")
			for _, job := range resp.Jobs {
				fmt.Printf("%-38s %-11s %-24s %-9d %-11d %d\n",
					job.ID, job.State, job.ArchiveName, job.Inserted, job.Duplicates, job.Rejected)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by state (queued, running, succeeded, failed, canceled)")
	return cmd
}
