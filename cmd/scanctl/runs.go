package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the scheduler run log",
	Long:  "scanctl runs [--limit 50]\n\nLists the most recent scheduler runs, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client := newAPIClient(cmd)

		var result struct {
			Runs []struct {
				ID           string  `json:"id"`
				FunctionName string  `json:"function_name"`
				RunKey       string  `json:"run_key"`
				Status       string  `json:"status"`
				StartedAt    string  `json:"started_at"`
				CompletedAt  *string `json:"completed_at,omitempty"`
			} `json:"runs"`
		}
		params := map[string]string{"limit": strconv.Itoa(limit)}
		if err := client.get("/api/v1/admin/runs", params, &result); err != nil {
			return err
		}

		if len(result.Runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		fmt.Printf("%-38s  %-16s  %-12s  %-10s  %s\n", "RUN ID", "FUNCTION", "KEY", "STATUS", "STARTED")
		fmt.Println(strings.Repeat("─", 100))
		for _, r := range result.Runs {
			fmt.Printf("%-38s  %-16s  %-12s  %-10s  %s\n",
				r.ID, r.FunctionName, r.RunKey, r.Status, r.StartedAt)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 50, "Maximum runs to list")
}
