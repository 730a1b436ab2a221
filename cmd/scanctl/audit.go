package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the coverage audit",
	Long: "scanctl audit [--repair]\n\n" +
		"Measures today's prompt and tenant coverage against the expected\n" +
		"fan-out. With --repair, creates repair jobs for tenants missing a\n" +
		"completed job, subject to per-tenant backoff.",
	RunE: func(cmd *cobra.Command, args []string) error {
		repair, _ := cmd.Flags().GetBool("repair")

		client := newAPIClient(cmd)

		var summary struct {
			DayKey string `json:"day_key"`
			PromptCoverage struct {
				Expected int     `json:"expected"`
				Actual   int     `json:"actual"`
				Percent  float64 `json:"percent"`
			} `json:"prompt_coverage"`
			OrgCoverage struct {
				Expected int     `json:"expected"`
				Actual   int     `json:"actual"`
				Percent  float64 `json:"percent"`
			} `json:"org_coverage"`
			MissingOrgs []string `json:"missing_orgs"`
			Healing     struct {
				Attempted int `json:"attempted"`
				Created   int `json:"created"`
				Resumed   int `json:"resumed"`
				Skipped   int `json:"skipped"`
			} `json:"healing"`
			OverallHealth string `json:"overall_health"`
		}
		path := "/api/v1/scheduler/audit"
		if repair {
			path += "?repair=true"
		}
		if err := client.post(path, nil, &summary); err != nil {
			return err
		}

		fmt.Printf("Coverage for %s: %s\n", summary.DayKey, summary.OverallHealth)
		fmt.Printf("  Prompts: %d/%d (%.1f%%)\n",
			summary.PromptCoverage.Actual, summary.PromptCoverage.Expected, summary.PromptCoverage.Percent)
		fmt.Printf("  Tenants: %d/%d (%.1f%%)\n",
			summary.OrgCoverage.Actual, summary.OrgCoverage.Expected, summary.OrgCoverage.Percent)
		if len(summary.MissingOrgs) > 0 {
			fmt.Printf("  Missing: %v\n", summary.MissingOrgs)
		}
		if repair {
			fmt.Printf("  Healing: %d attempted, %d created, %d resumed, %d skipped\n",
				summary.Healing.Attempted, summary.Healing.Created,
				summary.Healing.Resumed, summary.Healing.Skipped)
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().Bool("repair", false, "Create repair jobs for missing tenants")
}
