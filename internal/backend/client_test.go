package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gaia-magnetics/magclient/internal/jobrequest"
	"github.com/gaia-magnetics/magclient/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func backendServer(t *testing.T, route func(r chi.Router)) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	route(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(baseURL, "", 5*time.Second)
}

func sparseRequest(t *testing.T) *jobrequest.JobRequest {
	t.Helper()
	req, err := jobrequest.Build(jobrequest.Input{
		File:        []byte("x,y,tmi\n0,0,50000\n"),
		FileName:    "line7.csv",
		Scenario:    models.ScenarioSparseGeometry,
		Mapping:     models.ColumnMapping{XColumn: "x", YColumn: "y", ValueColumn: "tmi"},
		SpacingText: "12.5",
	})
	require.NoError(t, err)
	return req
}

// --- CreateJob ---

func TestCreateJob_SendsMultipartForm(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {
		r.Post("/jobs", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))

			assert.Equal(t, "sparse_geometry", r.FormValue("scenario"))
			assert.Equal(t, "x", r.FormValue("x_column"))
			assert.Equal(t, "y", r.FormValue("y_column"))
			assert.Equal(t, "tmi", r.FormValue("value_column"))
			assert.Equal(t, "12.5", r.FormValue("station_spacing"))

			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, "line7.csv", hdr.Filename)
			data, _ := io.ReadAll(f)
			assert.Equal(t, "x,y,tmi\n0,0,50000\n", string(data))

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"job_id": "gaia-abc123", "status": "running"})
		})
	})

	id, err := newTestClient(t, ts.URL).CreateJob(context.Background(), sparseRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "gaia-abc123", id)
}

func TestCreateJob_ExplicitOmitsSpacing(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {
		r.Post("/jobs", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, present := r.MultipartForm.Value["station_spacing"]
			assert.False(t, present, "station_spacing must not be sent for explicit geometry")
			json.NewEncoder(w).Encode(map[string]string{"job_id": "j1"})
		})
	})

	req, err := jobrequest.Build(jobrequest.Input{
		File:        []byte("x,y,tmi\n"),
		Scenario:    models.ScenarioExplicitGeometry,
		Mapping:     models.ColumnMapping{XColumn: "x", YColumn: "y", ValueColumn: "tmi"},
		SpacingText: "40",
	})
	require.NoError(t, err)

	_, err = newTestClient(t, ts.URL).CreateJob(context.Background(), req)
	require.NoError(t, err)
}

func TestCreateJob_Rejected(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {
		r.Post("/jobs", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"station_spacing is required for sparse geometry"}`, http.StatusBadRequest)
		})
	})

	_, err := newTestClient(t, ts.URL).CreateJob(context.Background(), sparseRequest(t))
	require.ErrorIs(t, err, ErrBackendStatus)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Body, "station_spacing is required")
}

func TestCreateJob_MissingJobID(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {
		r.Post("/jobs", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"running"}`))
		})
	})

	_, err := newTestClient(t, ts.URL).CreateJob(context.Background(), sparseRequest(t))
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestCreateJob_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := newTestClient(t, url).CreateJob(context.Background(), sparseRequest(t))
	assert.ErrorIs(t, err, ErrBackendUnreachable)
}

func TestCreateJob_Timeout(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {
		r.Post("/jobs", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		})
	})

	c := NewHTTPClient(ts.URL, "", 50*time.Millisecond)
	_, err := c.CreateJob(context.Background(), sparseRequest(t))
	assert.ErrorIs(t, err, ErrBackendTimeout)
}

// --- JobStatus ---

func TestJobStatus(t *testing.T) {
	cases := map[string]models.JobStatus{
		"queued":    models.JobStatusQueued,
		"created":   models.JobStatusQueued,
		"running":   models.JobStatusRunning,
		"completed": models.JobStatusCompleted,
		"failed":    models.JobStatusFailed,
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			ts := backendServer(t, func(r chi.Router) {
				r.Get("/jobs/{jobID}/status", func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, "gaia-1", chi.URLParam(r, "jobID"))
					json.NewEncoder(w).Encode(map[string]string{"job_id": "gaia-1", "status": raw})
				})
			})

			got, err := newTestClient(t, ts.URL).JobStatus(context.Background(), "gaia-1")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestJobStatus_Unknown(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {
		r.Get("/jobs/{jobID}/status", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"unknown"}`))
		})
	})

	_, err := newTestClient(t, ts.URL).JobStatus(context.Background(), "gaia-1")
	assert.ErrorIs(t, err, ErrUnknownJobStatus)
}

func TestJobStatus_NotFound(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {})

	_, err := newTestClient(t, ts.URL).JobStatus(context.Background(), "gaia-1")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

// --- JobResult ---

func TestJobResult(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {
		r.Get("/jobs/{jobID}/result.json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[
				{"distance_along":0,"magnetic_value":10,"source":"measured"},
				{"distance_along":1,"magnetic_value":12,"source":"predicted"}
			]`))
		})
	})

	rows, err := newTestClient(t, ts.URL).JobResult(context.Background(), "gaia-1")
	require.NoError(t, err)
	assert.Equal(t, []models.ResultRow{
		{DistanceAlong: 0, MagneticValue: 10, Source: models.SourceMeasured},
		{DistanceAlong: 1, MagneticValue: 12, Source: models.SourcePredicted},
	}, rows)
}

func TestJobResult_BadSource(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {
		r.Get("/jobs/{jobID}/result.json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"distance_along":0,"magnetic_value":10,"source":"guessed"}]`))
		})
	})

	_, err := newTestClient(t, ts.URL).JobResult(context.Background(), "gaia-1")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestJobResult_EmptyArray(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {
		r.Get("/jobs/{jobID}/result.json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`null`))
		})
	})

	rows, err := newTestClient(t, ts.URL).JobResult(context.Background(), "gaia-1")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

// --- Download ---

func TestDownloadURL(t *testing.T) {
	c := NewHTTPClient("http://gaia.local/api/", "", time.Second)
	assert.Equal(t, "http://gaia.local/api/jobs/gaia-1/result.csv", c.DownloadURL("gaia-1"))

	c = NewHTTPClient("http://gaia.local", DownloadRouteDownload, time.Second)
	assert.Equal(t, "http://gaia.local/jobs/a%2Fb/download", c.DownloadURL("a/b"))
}

func TestDownload(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {
		r.Get("/jobs/{jobID}/result.csv", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/csv")
			w.Write([]byte("d_along,tmi,is_measured\n0,10,1\n"))
		})
	})

	var buf bytes.Buffer
	n, err := newTestClient(t, ts.URL).Download(context.Background(), "gaia-1", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "d_along,tmi,is_measured\n0,10,1\n", buf.String())
}

// --- Ready ---

func TestReady(t *testing.T) {
	ts := backendServer(t, func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ok"}`))
		})
	})
	assert.NoError(t, newTestClient(t, ts.URL).Ready(context.Background()))

	down := backendServer(t, func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	})
	assert.ErrorIs(t, newTestClient(t, down.URL).Ready(context.Background()), ErrBackendUnreachable)
}
