package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sailsonlabs/pulse/internal/api"
	"github.com/sailsonlabs/pulse/internal/svcctx"
	"github.com/sailsonlabs/pulse/internal/tasks"
)

// GetTaskEndpoint handles GET /api/tasks/{id}.
type GetTaskEndpoint struct{}

var _ api.Endpoint = (*GetTaskEndpoint)(nil)

func (e *GetTaskEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tasks/{id}", e.handler
}

func (e *GetTaskEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Poll a task
//	@Description	Return the current task snapshot
//	@Tags			tasks
//	@Produce		json
//	@Param			id	path	string	true	"Task ID"
//	@Success		200	{object}	tasks.Task
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/tasks/{id} [get]
func (e *GetTaskEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.TaskStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "task store not initialized")
		return
	}

	task, err := store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		var notFound *tasks.NotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (e *GetTaskEndpoint) Command(getServerURL func() string) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Poll a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithOwner(owner)
			var task tasks.Task
			if err := client.Get(cmd.Context(), "/api/tasks/"+args[0], &task); err != nil {
				return err
			}
			fmt.Printf("ID:       %s\n", task.ID)
			fmt.Printf("Status:   %s\n", task.Status)
			if task.Progress != "" {
				fmt.Printf("Progress: %s\n", task.Progress)
			}
			if task.Error != "" {
				fmt.Printf("Error:    %s\n", task.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity (X-Owner header)")
	return cmd
}

// ListTasksEndpoint handles GET /api/tasks.
type ListTasksEndpoint struct{}

var _ api.Endpoint = (*ListTasksEndpoint)(nil)

func (e *ListTasksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tasks", e.handler
}

func (e *ListTasksEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List tasks
//	@Description	List the caller's tasks, newest first
//	@Tags			tasks
//	@Produce		json
//	@Param			limit	query	int	false	"Maximum tasks to return (default 20, max 100)"
//	@Success		200	{array}	tasks.Task
//	@Router			/api/tasks [get]
func (e *ListTasksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.TaskStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "task store not initialized")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 100 {
		limit = 100
	}

	list, err := store.List(r.Context(), ownerFrom(r), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (e *ListTasksEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		owner string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithOwner(owner)
			var list []*tasks.Task
			path := fmt.Sprintf("/api/tasks?limit=%d", limit)
			if err := client.Get(cmd.Context(), path, &list); err != nil {
				return err
			}
			for _, t := range list {
				fmt.Printf("%s  %-10s  %s\n", t.ID, t.Status, t.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity (X-Owner header)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum tasks to return")
	return cmd
}
