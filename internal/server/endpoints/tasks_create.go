package endpoints

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sailsonlabs/pulse/internal/api"
	"github.com/sailsonlabs/pulse/internal/ingest"
	"github.com/sailsonlabs/pulse/internal/svcctx"
	"github.com/sailsonlabs/pulse/internal/tasks"
)

// TaskResponse is the handle returned for an accepted submission.
type TaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// createTaskRequest is the JSON body form of a submission. Multipart
// submissions carry the same fields as form values plus a file part.
type createTaskRequest struct {
	URL         string `json:"url"`
	MaxComments int    `json:"max_comments"`
}

// CreateTaskEndpoint handles POST /api/tasks.
type CreateTaskEndpoint struct{}

var _ api.Endpoint = (*CreateTaskEndpoint)(nil)

func (e *CreateTaskEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/tasks", e.handler
}

func (e *CreateTaskEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Submit a feedback analysis task
//	@Description	Submit a content URL or an uploaded file for classification
//	@Tags			tasks
//	@Accept			json
//	@Accept			mpfd
//	@Produce		json
//	@Param			url			formData	string	false	"Content URL to scrape"
//	@Param			file		formData	file	false	"Uploaded feedback file (txt/csv/xlsx/image); wins over url"
//	@Param			max_comments	formData	int	false	"Scrape comment cap"
//	@Success		202	{object}	TaskResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/tasks [post]
func (e *CreateTaskEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	req := tasks.Request{Kind: tasks.KindAnalyze, Owner: ownerFrom(r)}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		const maxMemory = 32 << 20 // 32MB
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		req.URL = r.FormValue("url")
		if v := r.FormValue("max_comments"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "max_comments must be an integer")
				return
			}
			req.MaxComments = n
		}

		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close()
			content, err := io.ReadAll(file)
			if err != nil {
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
				return
			}
			entries, err := ingest.Parse(header.Filename, content)
			if err != nil {
				var unsupported *ingest.UnsupportedFormatError
				if errors.As(err, &unsupported) {
					writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse %s: %v", header.Filename, err))
				return
			}
			req.Entries = entries
		}
	case strings.HasPrefix(contentType, "application/json"):
		var body createTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
			return
		}
		req.URL = body.URL
		req.MaxComments = body.MaxComments
	default:
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
			return
		}
		req.URL = r.FormValue("url")
		if v := r.FormValue("max_comments"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "max_comments must be an integer")
				return
			}
			req.MaxComments = n
		}
	}

	pipeline := svcctx.PipelineFrom(r.Context())
	if pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	task, err := pipeline.Submit(r.Context(), req)
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

func (e *CreateTaskEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		url         string
		file        string
		maxComments int
		owner       string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a feedback analysis task",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithOwner(owner)

			var resp TaskResponse
			if file != "" {
				body, contentType, err := buildUploadBody(file, url, maxComments)
				if err != nil {
					return err
				}
				if err := client.PostMultipart(cmd.Context(), "/api/tasks", contentType, body, &resp); err != nil {
					return err
				}
			} else {
				req := createTaskRequest{URL: url, MaxComments: maxComments}
				if err := client.Post(cmd.Context(), "/api/tasks", req, &resp); err != nil {
					return err
				}
			}

			fmt.Printf("Task:   %s\n", resp.TaskID)
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Content URL to scrape")
	cmd.Flags().StringVar(&file, "file", "", "Path to a feedback file to upload")
	cmd.Flags().IntVar(&maxComments, "max-comments", 0, "Scrape comment cap")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity (X-Owner header)")
	return cmd
}

// buildUploadBody assembles a multipart body for CLI file submissions.
func buildUploadBody(path, url string, maxComments int) (io.Reader, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if url != "" {
		mw.WriteField("url", url)
	}
	if maxComments > 0 {
		mw.WriteField("max_comments", strconv.Itoa(maxComments))
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
