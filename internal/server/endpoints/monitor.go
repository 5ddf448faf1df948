package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sailsonlabs/pulse/internal/api"
	"github.com/sailsonlabs/pulse/internal/svcctx"
	"github.com/sailsonlabs/pulse/internal/tasks"
)

// monitorRequest is the body for competitor monitoring submissions.
// Dates use YYYY-MM-DD.
type monitorRequest struct {
	ProfileURL string `json:"profile_url"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// MonitorEndpoint handles POST /api/monitor.
type MonitorEndpoint struct{}

var _ api.Endpoint = (*MonitorEndpoint)(nil)

func (e *MonitorEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/monitor", e.handler
}

func (e *MonitorEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Submit a competitor monitoring task
//	@Description	Fetch a profile's recent posts in a date window and summarize activity
//	@Tags			monitor
//	@Accept			json
//	@Produce		json
//	@Success		202	{object}	TaskResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/monitor [post]
func (e *MonitorEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var body monitorRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	if body.ProfileURL == "" {
		writeError(w, http.StatusBadRequest, "profile_url is required")
		return
	}

	start, end, err := parseWindow(body.StartDate, body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pipeline := svcctx.PipelineFrom(r.Context())
	if pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	task, err := pipeline.Submit(r.Context(), tasks.Request{
		Kind:        tasks.KindMonitor,
		Owner:       ownerFrom(r),
		URL:         body.ProfileURL,
		WindowStart: start,
		WindowEnd:   end,
	})
	switch {
	case errors.Is(err, tasks.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, tasks.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, TaskResponse{TaskID: task.ID, Status: string(task.Status)})
}

// parseWindow validates the monitoring date window. A missing end date
// means "up to now"; a missing start date means a 7-day lookback.
func parseWindow(startDate, endDate string) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	end := time.Now().UTC()
	if endDate != "" {
		parsed, err := time.Parse(layout, endDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end_date must be YYYY-MM-DD: %w", err)
		}
		// Window end is inclusive of the named day.
		end = parsed.Add(24*time.Hour - time.Nanosecond)
	}

	start := end.Add(-7 * 24 * time.Hour)
	if startDate != "" {
		parsed, err := time.Parse(layout, startDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start_date must be YYYY-MM-DD: %w", err)
		}
		start = parsed
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end_date is before start_date")
	}
	return start, end, nil
}

func (e *MonitorEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		owner     string
		startDate string
		endDate   string
	)
	cmd := &cobra.Command{
		Use:   "monitor <profile-url>",
		Short: "Submit a competitor monitoring task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithOwner(owner)
			req := monitorRequest{ProfileURL: args[0], StartDate: startDate, EndDate: endDate}
			var resp TaskResponse
			if err := client.Post(cmd.Context(), "/api/monitor", req, &resp); err != nil {
				return err
			}
			fmt.Printf("Task:   %s\n", resp.TaskID)
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity (X-Owner header)")
	cmd.Flags().StringVar(&startDate, "start", "", "Window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end", "", "Window end (YYYY-MM-DD)")
	return cmd
}
