package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
	"github.com/celestiaorg/jobscheduler/internal/events"
	"github.com/celestiaorg/jobscheduler/internal/types"
)

// jobOutput represents the filtered output for a job
type jobOutput struct {
	ID         string          `json:"id"`
	JobType    string          `json:"job_type"`
	Status     string          `json:"status"`
	WorkerID   string          `json:"worker_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// jobListOutput represents the filtered output for a list of jobs
type jobListOutput struct {
	Jobs  []jobOutput `json:"jobs"`
	Total int         `json:"total"`
}

func newJobOutput(job models.Job) jobOutput {
	out := jobOutput{
		ID:         job.ID.String(),
		JobType:    job.JobType,
		Status:     job.Status.String(),
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
		Result:     job.Result,
	}
	if job.WorkerID != nil {
		out.WorkerID = *job.WorkerID
	}
	return out
}

func init() {
	jobsCmd.AddCommand(createJobCmd)
	jobsCmd.AddCommand(listJobsCmd)
	jobsCmd.AddCommand(getJobCmd)
	jobsCmd.AddCommand(watchJobsCmd)

	// Add flags
	createJobCmd.Flags().StringP("type", "t", "", "Job type")
	createJobCmd.Flags().StringP("payload", "p", "{}", "Job payload as JSON")
	_ = createJobCmd.MarkFlagRequired("type")

	listJobsCmd.Flags().IntP("limit", "l", 0, "Limit the number of jobs returned")
	listJobsCmd.Flags().IntP("offset", "o", 0, "Number of jobs to skip")
	listJobsCmd.Flags().StringP("status", "s", "", "Filter jobs by status")

	getJobCmd.Flags().StringP("id", "i", "", "Job ID to fetch")
	_ = getJobCmd.MarkFlagRequired("id")

	watchJobsCmd.Flags().StringP("id", "i", "", "Only show updates of this job and stop when it finishes")
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage jobs",
}

var createJobCmd = &cobra.Command{
	Use:   "create",
	Short: "Submit a new job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jobType, _ := cmd.Flags().GetString("type")
		payload, _ := cmd.Flags().GetString("payload")

		req := types.CreateJobRequest{
			JobType: jobType,
			Payload: json.RawMessage(payload),
		}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("invalid job: %w", err)
		}

		job, err := apiClient.CreateJob(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("error creating job: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), job)
	},
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		status, _ := cmd.Flags().GetString("status")

		opts := &models.ListOptions{Limit: limit, Offset: offset}
		if status != "" {
			jobStatus, err := models.ParseJobStatus(status)
			if err != nil {
				return err
			}
			opts.Status = jobStatus
		}

		response, err := apiClient.ListJobs(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("error fetching jobs: %w", err)
		}

		output := jobListOutput{
			Jobs:  make([]jobOutput, len(response.Jobs)),
			Total: response.Pagination.Total,
		}
		for i, job := range response.Jobs {
			output.Jobs[i] = newJobOutput(job)
		}
		return printJSON(cmd.OutOrStdout(), output)
	},
}

var getJobCmd = &cobra.Command{
	Use:   "get",
	Short: "Get a specific job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jobID, _ := cmd.Flags().GetString("id")

		job, err := apiClient.GetJob(cmd.Context(), jobID)
		if err != nil {
			return fmt.Errorf("error fetching job: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), job)
	},
}

var watchJobsCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream job status updates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jobID, _ := cmd.Flags().GetString("id")

		var filter uuid.UUID
		if jobID != "" {
			id, err := uuid.Parse(jobID)
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", jobID, err)
			}
			filter = id
		}
		return watchJobs(cmd.Context(), apiClient.StreamURL(), filter, cmd.OutOrStdout())
	},
}

// watchJobs prints each job update read from the stream at streamURL. With a
// non-nil filter only that job is shown and the watch ends once it finishes.
func watchJobs(ctx context.Context, streamURL string, filter uuid.UUID, out io.Writer) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return fmt.Errorf("error connecting to job stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on interrupt
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("error reading job stream: %w", err)
		}

		msg, err := events.Decode(data)
		if err != nil {
			return fmt.Errorf("error decoding stream message: %w", err)
		}
		update, ok := msg.(events.JobStatusUpdate)
		if !ok {
			continue
		}
		if filter != uuid.Nil && update.Job.ID != filter {
			continue
		}

		if err := printJSON(out, newJobOutput(update.Job)); err != nil {
			return err
		}
		if filter != uuid.Nil && update.Job.Status.IsTerminal() {
			return nil
		}
	}
}

// printJSON pretty prints v to out
func printJSON(out io.Writer, v interface{}) error {
	prettyJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	_, err = fmt.Fprintln(out, string(prettyJSON))
	return err
}

// GetJobsCmd returns the jobs command
func GetJobsCmd() *cobra.Command {
	return jobsCmd
}
