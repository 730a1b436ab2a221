package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// jobDetail mirrors the admin job endpoint response.
type jobDetail struct {
	Job struct {
		ID             string     `json:"id"`
		OrgID          string     `json:"org_id"`
		DayKey         string     `json:"day_key"`
		Status         string     `json:"status"`
		Source         string     `json:"source"`
		TotalTasks     int        `json:"total_tasks"`
		CompletedTasks int        `json:"completed_tasks"`
		FailedTasks    int        `json:"failed_tasks"`
		RepairAttempts int        `json:"repair_attempts"`
		RunnerID       string     `json:"runner_id"`
		CreatedAt      time.Time  `json:"created_at"`
		LastHeartbeat  *time.Time `json:"last_heartbeat,omitempty"`
		CompletedAt    *time.Time `json:"completed_at,omitempty"`
	} `json:"job"`
	Tasks []struct {
		ID         string `json:"id"`
		PromptID   string `json:"prompt_id"`
		ProviderID string `json:"provider_id"`
		Status     string `json:"status"`
	} `json:"tasks"`
}

var jobCmd = &cobra.Command{
	Use:   "job [job-id]",
	Short: "Show a job and its tasks",
	Long:  "scanctl job <job-id> [--output json]\n\nFetches a batch job with its per-task breakdown.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID := args[0]
		outputFmt, _ := cmd.Flags().GetString("output")

		client := newAPIClient(cmd)

		var detail jobDetail
		if err := client.get("/api/v1/admin/jobs/"+jobID, nil, &detail); err != nil {
			return err
		}

		if outputFmt == "json" {
			printJSON(detail)
			return nil
		}

		j := detail.Job
		fmt.Println("Job Details")
		fmt.Println("───────────")
		fmt.Printf("Job ID:    %s\n", j.ID)
		fmt.Printf("Tenant:    %s\n", j.OrgID)
		fmt.Printf("Day:       %s\n", j.DayKey)
		fmt.Printf("Status:    %s (%s)\n", j.Status, j.Source)
		fmt.Printf("Tasks:     %d/%d done, %d failed\n", j.CompletedTasks, j.TotalTasks, j.FailedTasks)
		if j.RunnerID != "" {
			fmt.Printf("Runner:    %s\n", j.RunnerID)
		}
		if j.LastHeartbeat != nil {
			fmt.Printf("Heartbeat: %s\n", j.LastHeartbeat.Local().Format("2006-01-02 15:04:05"))
		}
		if j.CompletedAt != nil {
			fmt.Printf("Finished:  %s\n", j.CompletedAt.Local().Format("2006-01-02 15:04:05"))
		}

		byStatus := map[string]int{}
		for _, t := range detail.Tasks {
			byStatus[t.Status]++
		}
		fmt.Printf("Breakdown: %v\n", byStatus)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a job's remaining pending tasks",
	Long: "scanctl resume <job-id>\n\n" +
		"Claims the job and executes only its pending tasks. Tasks that have\n" +
		"already reached a terminal status are not re-issued.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID := args[0]

		client := newAPIClient(cmd)

		var stats struct {
			Executed  int  `json:"executed"`
			Succeeded int  `json:"succeeded"`
			Failed    int  `json:"failed"`
			Completed bool `json:"completed"`
		}
		if err := client.post("/api/v1/admin/jobs/"+jobID+"/resume", nil, &stats); err != nil {
			return err
		}

		fmt.Printf("Resumed %s: %d executed (%d ok, %d failed), completed=%v\n",
			jobID, stats.Executed, stats.Succeeded, stats.Failed, stats.Completed)
		return nil
	},
}

func init() {
	jobCmd.Flags().String("output", "", "Output format: json")
}
