package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var providerCmd = &cobra.Command{
	Use:   "provider <id>",
	Short: "Create or update a provider config",
	Long: "scanctl provider <id> --model <model> [--org <org-id>] [--disable]\n\n" +
		"Writes a provider config row. Without --org the row is the global\n" +
		"default; with --org it overrides the global row for that tenant\n" +
		"only. Changes apply to the next fan-out.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		orgID, _ := cmd.Flags().GetString("org")
		disable, _ := cmd.Flags().GetBool("disable")

		client := newAPIClient(cmd)

		body := map[string]interface{}{
			"id":      args[0],
			"org_id":  orgID,
			"model":   model,
			"enabled": !disable,
		}
		var result struct {
			Provider map[string]interface{} `json:"provider"`
		}
		if err := client.put("/api/v1/admin/providers", body, &result); err != nil {
			return err
		}

		scope := "global"
		if orgID != "" {
			scope = "org " + orgID
		}
		fmt.Printf("Provider %s (%s) saved.\n", args[0], scope)
		printJSON(result.Provider)
		return nil
	},
}

func init() {
	providerCmd.Flags().String("model", "", "Model identifier the provider should run")
	providerCmd.Flags().String("org", "", "Scope the config to one tenant")
	providerCmd.Flags().Bool("disable", false, "Disable the provider instead of enabling it")
	providerCmd.MarkFlagRequired("model")
}
