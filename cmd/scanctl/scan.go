package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Launch a bulk scan across all active tenants",
	Long: "scanctl scan [--replace] [--preflight]\n\n" +
		"Creates scan jobs for every active tenant, bypassing the daily gate.\n" +
		"--preflight resolves each tenant's quota-clamped fan-out without\n" +
		"creating anything. --replace cancels each tenant's incomplete jobs\n" +
		"before creating the new one.",
	RunE: func(cmd *cobra.Command, args []string) error {
		replace, _ := cmd.Flags().GetBool("replace")
		preflight, _ := cmd.Flags().GetBool("preflight")

		client := newAPIClient(cmd)

		var result struct {
			Success   bool                     `json:"success"`
			Preflight bool                     `json:"preflight"`
			Tenants   []map[string]interface{} `json:"tenants"`
		}
		body := map[string]bool{"replace": replace, "preflight": preflight}
		if err := client.post("/api/v1/admin/scans", body, &result); err != nil {
			return err
		}

		if preflight {
			fmt.Printf("Preflight: %d tenants resolved, no jobs created.\n", len(result.Tenants))
		} else {
			fmt.Printf("Bulk scan launched across %d tenants.\n", len(result.Tenants))
		}
		printJSON(result.Tenants)
		return nil
	},
}

func init() {
	scanCmd.Flags().Bool("replace", false, "Cancel incomplete jobs before creating new ones")
	scanCmd.Flags().Bool("preflight", false, "Resolve fan-out without creating jobs")
}
