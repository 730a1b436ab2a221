package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scanctl",
	Short: "Limelight scan orchestration CLI",
	Long: "scanctl drives the Limelight scan engine over its HTTP API:\n" +
		"trigger the daily run, launch bulk scans, sweep stuck jobs,\n" +
		"audit coverage, and inspect jobs and the run log.",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().String("server", "", "API base URL (or LIMELIGHT_SERVER env var)")
	rootCmd.PersistentFlags().String("scheduler-secret", "", "Scheduler secret (or LIMELIGHT_SCHEDULER_SECRET env var)")
	rootCmd.PersistentFlags().String("admin-key", "", "Admin API key (or LIMELIGHT_ADMIN_KEY env var)")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(providerCmd)
	rootCmd.AddCommand(runsCmd)
}
