package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gaia-magnetics/magclient/internal/api/response"
	"github.com/gaia-magnetics/magclient/internal/backend"
	"github.com/gaia-magnetics/magclient/internal/csvheader"
	"github.com/gaia-magnetics/magclient/internal/jobrequest"
	"github.com/gaia-magnetics/magclient/internal/lifecycle"
	"github.com/gaia-magnetics/magclient/internal/plot"
	"github.com/gaia-magnetics/magclient/internal/session"
	"github.com/gaia-magnetics/magclient/pkg/models"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxUploadBytes bounds a survey upload.
const DefaultMaxUploadBytes = 32 << 20

// Sessions is the subset of session.Manager the handlers use.
type Sessions interface {
	Create() (*session.Session, error)
	Get(id string) (*session.Session, error)
	Delete(id string) error
}

// SessionHandler serves the per-session routes.
type SessionHandler struct {
	sessions       Sessions
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewSessionHandler(sessions Sessions, maxUploadBytes int64, logger *slog.Logger) *SessionHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{sessions: sessions, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Create handles POST /api/v1/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, _ *http.Request) {
	s, err := h.sessions.Create()
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			response.Error(w, http.StatusServiceUnavailable, "TOO_MANY_SESSIONS",
				"The server has reached its session limit, try again later", nil)
			return
		}
		h.logger.Error("create session failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}
	response.Created(w, map[string]any{
		"session_id": s.ID,
		"created_at": s.CreatedAt.UTC(),
	})
}

// Delete handles DELETE /api/v1/sessions/{sessionID}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		sessionNotFound(w)
		return
	}
	response.NoContent(w)
}

type headersResponse struct {
	FileName string   `json:"file_name"`
	Headers  []string `json:"headers"`
}

// UploadHeaders handles POST /api/v1/sessions/{sessionID}/headers. The file is
// kept in the session for the next submission.
func (h *SessionHandler) UploadHeaders(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				fmt.Sprintf("Survey file exceeds %d bytes", h.maxUploadBytes), nil)
			return
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Multipart field \"file\" is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read uploaded file", nil)
		return
	}

	headers, err := csvheader.Extract(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, csvheader.ErrEmptyFile) {
			response.Error(w, http.StatusBadRequest, "EMPTY_FILE", "Uploaded file is empty", nil)
			return
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	s.SetUpload(session.Upload{FileName: hdr.Filename, Data: data, Headers: headers})
	h.logger.Info("survey uploaded", "session_id", s.ID, "file", hdr.Filename, "columns", len(headers))

	response.JSON(w, headersResponse{FileName: hdr.Filename, Headers: headers})
}

type submitRequest struct {
	Scenario       string          `json:"scenario"`
	XColumn        string          `json:"x_column"`
	YColumn        string          `json:"y_column"`
	ValueColumn    string          `json:"value_column"`
	StationSpacing json.RawMessage `json:"station_spacing,omitempty"`
}

// spacingText returns the spacing field as the user typed it. Numbers and
// strings are both accepted.
func (req submitRequest) spacingText() string {
	raw := bytes.TrimSpace(req.StationSpacing)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// SubmitJob handles POST /api/v1/sessions/{sessionID}/jobs.
func (h *SessionHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}

	scenario, ok := models.ParseScenario(req.Scenario)
	if !ok {
		scenario = models.Scenario(req.Scenario)
	}
	in := jobrequest.Input{
		Scenario: scenario,
		Mapping: models.ColumnMapping{
			XColumn:     req.XColumn,
			YColumn:     req.YColumn,
			ValueColumn: req.ValueColumn,
		},
		SpacingText: req.spacingText(),
	}
	if u, ok := s.Upload(); ok {
		in.File = u.Data
		in.FileName = u.FileName
		in.Headers = u.Headers
	}

	jr, err := jobrequest.Build(in)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), validationDetails(err))
		return
	}

	jobID, err := s.Client.Submit(r.Context(), jr)
	if err != nil {
		writeSubmitError(w, err)
		return
	}
	// The backend has the file now; a resubmission needs a fresh upload.
	s.ReleaseFile()

	body := map[string]any{
		"job_id":   jobID,
		"scenario": jr.Scenario(),
	}
	if c := jr.Collisions(); len(c) > 0 {
		body["warnings"] = c
	}
	response.Accepted(w, body)
}

func validationDetails(err error) map[string]string {
	var missing *jobrequest.MissingColumnError
	if errors.As(err, &missing) {
		return map[string]string{"field": string(missing.Which)}
	}
	var unknown *jobrequest.UnknownColumnError
	if errors.As(err, &unknown) {
		return map[string]string{"field": string(unknown.Which), "column": unknown.Column}
	}
	switch {
	case errors.Is(err, jobrequest.ErrMissingFile):
		return map[string]string{"field": "file"}
	case errors.Is(err, jobrequest.ErrInvalidScenario):
		return map[string]string{"field": "scenario"}
	case errors.Is(err, jobrequest.ErrMissingSpacing):
		return map[string]string{"field": "station_spacing"}
	}
	return nil
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var rejected *lifecycle.RejectedError
	switch {
	case errors.Is(err, lifecycle.ErrSubmitInProgress):
		response.Error(w, http.StatusConflict, "SUBMIT_IN_PROGRESS",
			"A submission is already in flight for this session", nil)
	case errors.Is(err, lifecycle.ErrSubmissionCancelled):
		response.Error(w, http.StatusConflict, "SUBMISSION_CANCELLED",
			"The submission was cancelled before the backend answered", nil)
	case errors.As(err, &rejected):
		response.Error(w, http.StatusUnprocessableEntity, "JOB_REJECTED",
			"The backend rejected the job", map[string]string{
				"status_code": strconv.Itoa(rejected.StatusCode),
				"body":        rejected.Body,
			})
	case errors.Is(err, lifecycle.ErrSubmissionFailed):
		response.Error(w, http.StatusBadGateway, "BACKEND_UNREACHABLE",
			"The processing backend could not be reached", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

// GetJob handles GET /api/v1/sessions/{sessionID}/job.
func (h *SessionHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	response.JSON(w, s.Client.Snapshot())
}

type resultResponse struct {
	JobID string `json:"job_id"`
	Rows  int    `json:"rows"`
	plot.Projection
}

// GetResult handles GET /api/v1/sessions/{sessionID}/result.
func (h *SessionHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	rows, ok := h.fetchResult(w, r, s)
	if !ok {
		return
	}
	response.JSON(w, resultResponse{
		JobID:      s.Client.Snapshot().JobID,
		Rows:       len(rows),
		Projection: plot.Project(rows),
	})
}

// GetPlot handles GET /api/v1/sessions/{sessionID}/plot.png.
func (h *SessionHandler) GetPlot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	rows, ok := h.fetchResult(w, r, s)
	if !ok {
		return
	}

	opts := plot.Options{}
	if v, err := strconv.Atoi(r.URL.Query().Get("width")); err == nil && v > 0 && v <= 4096 {
		opts.Width = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("height")); err == nil && v > 0 && v <= 4096 {
		opts.Height = v
	}

	var buf bytes.Buffer
	if err := plot.Render(&buf, plot.Project(rows), opts); err != nil {
		if errors.Is(err, plot.ErrNothingToPlot) {
			response.Error(w, http.StatusConflict, "NOTHING_TO_PLOT", "The result has no points", nil)
			return
		}
		h.logger.Error("plot render failed", "session_id", s.ID, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}
	response.Binary(w, "image/png", buf.Bytes())
}

// Download handles GET /api/v1/sessions/{sessionID}/download by redirecting to
// the backend artifact.
func (h *SessionHandler) Download(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	url, err := s.Client.DownloadURL()
	if err != nil {
		response.Error(w, http.StatusConflict, "NO_ACTIVE_JOB", "No job has been submitted in this session", nil)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *SessionHandler) fetchResult(w http.ResponseWriter, r *http.Request, s *session.Session) ([]models.ResultRow, bool) {
	rows, err := s.Client.FetchResult(r.Context())
	if err == nil {
		return rows, true
	}

	switch {
	case errors.Is(err, backend.ErrBackendUnreachable),
		errors.Is(err, backend.ErrBackendTimeout),
		errors.Is(err, backend.ErrBackendStatus),
		errors.Is(err, backend.ErrInvalidResponse):
		h.logger.Warn("result fetch failed", "session_id", s.ID, "error", err)
		response.Error(w, http.StatusBadGateway, "BACKEND_UNREACHABLE",
			"The result could not be retrieved from the backend", nil)
	case errors.Is(err, lifecycle.ErrResultUnavailable):
		response.Error(w, http.StatusConflict, "RESULT_UNAVAILABLE",
			"The job has not completed", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
	return nil, false
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		sessionNotFound(w)
		return nil, false
	}
	return s, true
}

func sessionNotFound(w http.ResponseWriter) {
	response.Error(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
}
