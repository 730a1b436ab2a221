package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sweep stuck jobs",
	Long: "scanctl reconcile\n\n" +
		"Finds jobs whose heartbeat has gone stale, finalizes the ones whose\n" +
		"tasks are all terminal, and releases the rest for resumption.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(cmd)

		var result struct {
			ProcessedJobs int                      `json:"processed_jobs"`
			FinalizedJobs int                      `json:"finalized_jobs"`
			ResumedJobs   int                      `json:"resumed_jobs"`
			Results       []map[string]interface{} `json:"results,omitempty"`
		}
		if err := client.post("/api/v1/scheduler/reconcile", nil, &result); err != nil {
			return err
		}

		fmt.Printf("Swept %d stuck jobs: %d finalized, %d released for resume.\n",
			result.ProcessedJobs, result.FinalizedJobs, result.ResumedJobs)
		if len(result.Results) > 0 {
			printJSON(result.Results)
		}
		return nil
	},
}
