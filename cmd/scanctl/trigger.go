package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Fire the daily scan trigger",
	Long: "scanctl trigger\n\n" +
		"Asks the server to run today's scheduled scan. The server enforces the\n" +
		"daily window and the at-most-once claim: a second trigger on the same\n" +
		"day reports already_ran instead of creating duplicate jobs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(cmd)

		var result map[string]interface{}
		if err := client.post("/api/v1/scheduler/daily", nil, &result); err != nil {
			return err
		}

		status, _ := result["status"].(string)
		switch status {
		case "success":
			fmt.Println("Daily scan triggered.")
		case "already-ran", "locked":
			fmt.Printf("Not triggered: %s for day %v\n", status, result["key"])
		case "outside-window":
			fmt.Println("Not triggered: outside the daily run window.")
		default:
			fmt.Printf("Status: %s\n", status)
		}
		printJSON(result)
		return nil
	},
}
