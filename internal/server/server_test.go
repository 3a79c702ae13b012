package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datadist/internal/config"
	"datadist/internal/distributor"
)

func newTestServer(t *testing.T, baseURL string) (*Server, *distributor.Distributor) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		BaseDir:      t.TempDir(),
		BaseURL:      baseURL,
		ProbeTimeout: time.Second,
	}
	dist, err := distributor.New(cfg.Distributor(), distributor.WithLogger(logger))
	require.NoError(t, err)

	s, err := New(cfg, dist, logger)
	require.NoError(t, err)
	return s, dist
}

func TestNewRequiresDistributor(t *testing.T) {
	_, err := New(config.Config{}, nil, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "https://example.com/data")

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestCreateDistribution(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, resp createResponse)
	}{
		{
			name:       "with fallback index and qr code",
			body:       `{"with_index": true, "title": "Scans", "body_markdown": "# Scans", "qr_code": true}`,
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, resp createResponse) {
				assert.Len(t, resp.Slug, 32)
				assert.Equal(t, "https://example.com/data/"+resp.Slug, resp.URL)
				require.NotNil(t, resp.Index)
				assert.Equal(t, distributor.IndexFallback, resp.Index.Source)
				page, err := os.ReadFile(resp.Index.Path)
				require.NoError(t, err)
				assert.Contains(t, string(page), "<title>Scans</title>")
				assert.Contains(t, string(page), "<h1>Scans</h1>")
				assert.True(t, strings.HasPrefix(resp.QRCode, "data:image/png;base64,"))
			},
		},
		{
			name:       "bare directory with custom length",
			body:       `{"length": 20}`,
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, resp createResponse) {
				assert.Len(t, resp.Slug, 20)
				assert.DirExists(t, resp.Path)
				assert.Nil(t, resp.Index)
				assert.Empty(t, resp.QRCode)
			},
		},
		{
			name:       "negative length",
			body:       `{"length": -3}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "length above file name limit",
			body:       `{"length": 4096}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "huge length",
			body:       `{"length": 4611686018427387904}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"with_index": `,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       `{"slug": "chosen-by-client"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, "https://example.com/data")

			req := httptest.NewRequest(http.MethodPost, "/api/distributions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.check == nil {
				return
			}
			var resp createResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			tt.check(t, resp)
		})
	}
}

func TestCreateDistributionReportsLeftoverDirectory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	baseDir := t.TempDir()
	// The template arrives only after the slug directory exists; block its temp file.
	tmpl := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries, err := os.ReadDir(baseDir)
		assert.NoError(t, err)
		for _, e := range entries {
			assert.NoError(t, os.Mkdir(filepath.Join(baseDir, e.Name(), distributor.IndexFileName+".tmp"), 0o755))
		}
		_, _ = w.Write([]byte("<html>T</html>"))
	}))
	t.Cleanup(tmpl.Close)

	cfg := config.Config{
		BaseDir:     baseDir,
		BaseURL:     "https://example.com/data",
		TemplateURL: tmpl.URL,
	}
	dist, err := distributor.New(cfg.Distributor(), distributor.WithLogger(logger))
	require.NoError(t, err)
	s, err := New(cfg, dist, logger)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/distributions", strings.NewReader(`{"with_index": true}`))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	var resp createErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Create Failed", resp.Error)
	require.NotEmpty(t, resp.Slug)
	assert.Equal(t, filepath.Join(baseDir, resp.Slug), resp.Path)
	assert.Equal(t, "https://example.com/data/"+resp.Slug, resp.URL)
	assert.DirExists(t, resp.Path)
}

func TestServeDistributionFiles(t *testing.T) {
	s, dist := newTestServer(t, "https://example.com/data")

	d, err := dist.Create(context.Background(), distributor.CreateOptions{WithIndex: true, Index: distributor.IndexOptions{Title: "Shared"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(d.Path, "result.csv"), []byte("a,b\n1,2\n"), 0o644))

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/data/"+d.Slug+"/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>Shared</title>")

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/data/"+d.Slug+"/result.csv", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a,b\n1,2\n", w.Body.String())

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/data/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "base directory must not be listed")
	assert.NotContains(t, w.Body.String(), d.Slug)
}

func TestDistributionStatus(t *testing.T) {
	var s *Server
	var dist *distributor.Distributor
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	s, dist = newTestServer(t, ts.URL+"/data")

	d, err := dist.Create(context.Background(), distributor.CreateOptions{WithIndex: true})
	require.NoError(t, err)

	tests := []struct {
		name          string
		slug          string
		wantStatus    int
		wantReachable bool
	}{
		{name: "existing distribution", slug: d.Slug, wantStatus: http.StatusOK, wantReachable: true},
		{name: "unknown distribution", slug: "doesNotExist", wantStatus: http.StatusOK, wantReachable: false},
		{name: "invalid slug", slug: "bad.slug", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/distributions/" + tt.slug + "/status")
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantReachable, body["reachable"])
		})
	}
}
