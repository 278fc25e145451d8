// Package backend talks to the GAIA job-processing service over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gaia-magnetics/magclient/internal/jobrequest"
	"github.com/gaia-magnetics/magclient/pkg/models"
)

// Sentinel errors for backend failures.
var (
	ErrBackendUnreachable = errors.New("backend unreachable")
	ErrBackendTimeout     = errors.New("backend request timeout")
	ErrBackendStatus      = errors.New("backend returned error status")
	ErrUnknownJobStatus   = errors.New("backend reported unknown job status")
	ErrInvalidResponse    = errors.New("backend returned invalid response")
)

// Download routes understood by the backend for the raw result artifact.
const (
	DownloadRouteResultCSV = "result.csv"
	DownloadRouteDownload  = "download"
)

const maxErrorBody = 4 << 10

// StatusError is a non-2xx response. Body holds at most the first 4 KiB.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", ErrBackendStatus, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrBackendStatus, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrBackendStatus }

// Client is the interface for the job-processing backend.
type Client interface {
	CreateJob(ctx context.Context, req *jobrequest.JobRequest) (string, error)
	JobStatus(ctx context.Context, jobID string) (models.JobStatus, error)
	JobResult(ctx context.Context, jobID string) ([]models.ResultRow, error)
	DownloadURL(jobID string) string
	Download(ctx context.Context, jobID string, w io.Writer) (int64, error)
	Ready(ctx context.Context) error
}

// HTTPClient implements Client using the backend's HTTP API.
type HTTPClient struct {
	baseURL       string
	downloadRoute string
	client        *http.Client
}

// NewHTTPClient creates a backend client rooted at baseURL.
// An empty downloadRoute selects result.csv.
func NewHTTPClient(baseURL, downloadRoute string, timeout time.Duration) *HTTPClient {
	if downloadRoute == "" {
		downloadRoute = DownloadRouteResultCSV
	}
	return &HTTPClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		downloadRoute: downloadRoute,
		client:        &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) CreateJob(ctx context.Context, req *jobrequest.JobRequest) (string, error) {
	body, contentType, err := encodeJobForm(req)
	if err != nil {
		return "", fmt.Errorf("encoding job form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var created createJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("%w: decoding job creation response: %v", ErrInvalidResponse, err)
	}
	if created.JobID == "" {
		return "", fmt.Errorf("%w: job creation response has no job_id", ErrInvalidResponse)
	}

	return created.JobID, nil
}

func (c *HTTPClient) JobStatus(ctx context.Context, jobID string) (models.JobStatus, error) {
	resp, err := c.get(ctx, c.jobURL(jobID, "status"))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("%w: decoding status response: %v", ErrInvalidResponse, err)
	}

	status, ok := models.ParseJobStatus(sr.Status)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownJobStatus, sr.Status)
	}
	return status, nil
}

func (c *HTTPClient) JobResult(ctx context.Context, jobID string) ([]models.ResultRow, error) {
	resp, err := c.get(ctx, c.jobURL(jobID, "result.json"))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var rows []models.ResultRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: decoding result rows: %v", ErrInvalidResponse, err)
	}
	if rows == nil {
		return []models.ResultRow{}, nil
	}
	return rows, nil
}

// DownloadURL returns the URL of the raw result artifact. No request is made.
func (c *HTTPClient) DownloadURL(jobID string) string {
	return c.jobURL(jobID, c.downloadRoute)
}

// Download streams the raw result artifact into w.
func (c *HTTPClient) Download(ctx context.Context, jobID string, w io.Writer) (int64, error) {
	resp, err := c.get(ctx, c.DownloadURL(jobID))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("copying artifact: %w", err)
	}
	return n, nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	resp, err := c.get(ctx, c.baseURL+"/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: backend not ready (status %d)", ErrBackendUnreachable, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, u string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	return resp, nil
}

func (c *HTTPClient) jobURL(jobID, leaf string) string {
	return fmt.Sprintf("%s/jobs/%s/%s", c.baseURL, url.PathEscape(jobID), leaf)
}

// encodeJobForm writes the multipart body for POST /jobs.
func encodeJobForm(req *jobrequest.JobRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", req.FileName())
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(req.File()); err != nil {
		return nil, "", fmt.Errorf("writing form file: %w", err)
	}

	mapping := req.Mapping()
	fields := [][2]string{
		{"scenario", string(req.Scenario())},
		{"x_column", mapping.XColumn},
		{"y_column", mapping.YColumn},
		{"value_column", mapping.ValueColumn},
	}
	if spacing, ok := req.Spacing(); ok {
		fields = append(fields, [2]string{"station_spacing", strconv.FormatFloat(spacing, 'f', -1, 64)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
}

type createJobResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
