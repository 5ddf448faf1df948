package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/sailsonlabs/pulse/internal/api"
	"github.com/sailsonlabs/pulse/internal/results"
	"github.com/sailsonlabs/pulse/internal/svcctx"
	"github.com/sailsonlabs/pulse/internal/tasks"
)

// ExportEndpoint handles GET /api/export/{task_id}.
type ExportEndpoint struct{}

var _ api.Endpoint = (*ExportEndpoint)(nil)

func (e *ExportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/export/{task_id}", e.handler
}

func (e *ExportEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Export a task's classified items
//	@Description	Download the result as CSV or XLSX, grouped by language or category. Pass "latest" as task_id for the caller's most recent result.
//	@Tags			results
//	@Produce		octet-stream
//	@Param			task_id		path	string	true	"Task ID"
//	@Param			group_by	query	string	false	"language or category (default category)"
//	@Param			format		query	string	false	"csv or xlsx (default csv)"
//	@Success		200	{file}	binary
//	@Failure		403	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Router			/api/export/{task_id} [get]
func (e *ExportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	owner := ownerFrom(r)

	taskStore := svcctx.TaskStoreFrom(r.Context())
	resultStore := svcctx.ResultsFrom(r.Context())
	if taskStore == nil || resultStore == nil {
		writeError(w, http.StatusServiceUnavailable, "stores not initialized")
		return
	}

	var (
		res *results.Result
		err error
	)
	if taskID == "latest" {
		// Legacy path: the caller's most recent result, no task handle.
		res, err = resultStore.Latest(r.Context(), owner)
	} else {
		var task *tasks.Task
		task, err = taskStore.Get(r.Context(), taskID)
		if err == nil {
			if task.Owner != "" && task.Owner != owner {
				writeError(w, http.StatusForbidden, "task belongs to another owner")
				return
			}
			if task.Status != tasks.StatusCompleted {
				writeError(w, http.StatusConflict, fmt.Sprintf("task is %s, not completed", task.Status))
				return
			}
			res, err = resultStore.GetByTask(r.Context(), owner, taskID)
		}
	}
	if err != nil {
		var taskNotFound *tasks.NotFoundError
		var resultNotFound *results.NotFoundError
		if errors.As(err, &taskNotFound) || errors.As(err, &resultNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	groupBy := results.GroupBy(r.URL.Query().Get("group_by"))
	if groupBy == "" {
		groupBy = results.GroupByCategory
	}
	format := results.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = results.FormatCSV
	}

	data, contentType, err := results.Export(res, groupBy, format)
	if err != nil {
		var exportErr *results.ExportError
		if errors.As(err, &exportErr) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=pulse-export-%s.%s", taskID, format))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (e *ExportEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		owner   string
		groupBy string
		format  string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export <task-id>",
		Short: "Download a task's export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithOwner(owner)
			path := fmt.Sprintf("/api/export/%s?group_by=%s&format=%s", args[0], groupBy, format)
			data, err := client.GetRaw(cmd.Context(), path)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("pulse-export-%s.%s", args[0], format)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity (X-Owner header)")
	cmd.Flags().StringVar(&groupBy, "group-by", "category", "Grouping: language or category")
	cmd.Flags().StringVar(&format, "format", "csv", "Format: csv or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "Output file path")
	return cmd
}
