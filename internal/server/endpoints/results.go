package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sailsonlabs/pulse/internal/api"
	"github.com/sailsonlabs/pulse/internal/results"
	"github.com/sailsonlabs/pulse/internal/svcctx"
)

// ListResultsEndpoint handles GET /api/results.
type ListResultsEndpoint struct{}

var _ api.Endpoint = (*ListResultsEndpoint)(nil)

func (e *ListResultsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/results", e.handler
}

func (e *ListResultsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List analysis results
//	@Description	List the caller's results, newest first
//	@Tags			results
//	@Produce		json
//	@Param			limit	query	int	false	"Maximum results to return (default 20, max 50)"
//	@Success		200	{array}	results.Result
//	@Router			/api/results [get]
func (e *ListResultsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.ResultsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "result store not initialized")
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
	if limit > 50 {
		limit = 50
	}

	list, err := store.List(r.Context(), ownerFrom(r), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*results.Result{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (e *ListResultsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		owner string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analysis results",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithOwner(owner)
			var list []*results.Result
			path := fmt.Sprintf("/api/results?limit=%d", limit)
			if err := client.Get(cmd.Context(), path, &list); err != nil {
				return err
			}
			for _, res := range list {
				fmt.Printf("%s  task=%s  items=%d  %s\n",
					res.ID, res.TaskID, len(res.Items), res.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity (X-Owner header)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results to return")
	return cmd
}

// GetResultEndpoint handles GET /api/results/{task_id}.
type GetResultEndpoint struct{}

var _ api.Endpoint = (*GetResultEndpoint)(nil)

func (e *GetResultEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/results/{task_id}", e.handler
}

func (e *GetResultEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a task's result
//	@Description	Return the persisted result for a completed task, owner-scoped
//	@Tags			results
//	@Produce		json
//	@Param			task_id	path	string	true	"Task ID"
//	@Success		200	{object}	results.Result
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/results/{task_id} [get]
func (e *GetResultEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.ResultsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "result store not initialized")
		return
	}

	res, err := store.GetByTask(r.Context(), ownerFrom(r), r.PathValue("task_id"))
	if err != nil {
		var notFound *results.NotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (e *GetResultEndpoint) Command(getServerURL func() string) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Get a task's result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithOwner(owner)
			var res results.Result
			if err := client.Get(cmd.Context(), "/api/results/"+args[0], &res); err != nil {
				return err
			}
			fmt.Printf("Result: %s (task %s, %d items)\n", res.ID, res.TaskID, len(res.Items))
			fmt.Println(res.Artifact)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity (X-Owner header)")
	return cmd
}
