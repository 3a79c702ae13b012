package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"datadist/internal/config"
	"datadist/internal/distributor"
	"datadist/internal/qrcode"
	"datadist/internal/slug"
)

const maxRequestBody = 1 << 20

// Server exposes distributions over HTTP: it serves their files and lets
// clients create and probe them.
type Server struct {
	cfg    config.Config
	dist   *distributor.Distributor
	router chi.Router
	logger *slog.Logger
}

type createRequest struct {
	Length       int    `json:"length"`
	WithIndex    bool   `json:"with_index"`
	Title        string `json:"title"`
	BodyHTML     string `json:"body_html"`
	BodyMarkdown string `json:"body_markdown"`
	QRCode       bool   `json:"qr_code"`
}

type createResponse struct {
	distributor.Distribution
	QRCode string `json:"qr_code,omitempty"`
}

// createErrorResponse names the directory a failed create left behind, if any.
type createErrorResponse struct {
	Error string `json:"error"`
	Slug  string `json:"slug,omitempty"`
	Path  string `json:"path,omitempty"`
	URL   string `json:"url,omitempty"`
}

type statusResponse struct {
	distributor.ProbeResult
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// New creates a Server and registers its routes.
func New(cfg config.Config, dist *distributor.Distributor, logger *slog.Logger) (*Server, error) {
	if dist == nil {
		return nil, errors.New("distributor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		dist:   dist,
		router: chi.NewRouter(),
		logger: logger,
	}
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() error {
	s.router.Use(middleware.RequestID, s.logRequests, middleware.Recoverer)

	s.router.Get("/healthz", s.health)
	s.router.Post("/api/distributions", s.createDistribution)
	s.router.Get("/api/distributions/{slug}/status", s.distributionStatus)

	base, err := url.Parse(s.dist.Config().BaseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	prefix := strings.TrimRight(base.Path, "/")
	files := http.StripPrefix(prefix, hideRoot(http.FileServer(http.Dir(s.dist.Config().BaseDir))))
	s.router.Handle(prefix+"/*", files)
	return nil
}

// hideRoot refuses to list the base directory; listing it would reveal
// every slug.
func hideRoot(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path == "/" {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) createDistribution(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dist, err := s.dist.Create(r.Context(), distributor.CreateOptions{
		Length:    req.Length,
		WithIndex: req.WithIndex,
		Index: distributor.IndexOptions{
			Verify:       s.cfg.TLSVerify(),
			Title:        req.Title,
			BodyHTML:     req.BodyHTML,
			BodyMarkdown: req.BodyMarkdown,
		},
	})
	if err != nil {
		s.renderCreateError(w, err, dist)
		return
	}

	resp := createResponse{Distribution: dist}
	if req.QRCode {
		uri, err := qrcode.DataURI(dist.URL, 0)
		if err != nil {
			s.logger.Error("render qr code", "slug", dist.Slug, "error", err)
		} else {
			resp.QRCode = uri
		}
	}
	s.renderJSON(w, http.StatusCreated, resp)
}

func (s *Server) distributionStatus(w http.ResponseWriter, r *http.Request) {
	slugID := chi.URLParam(r, "slug")
	if !slug.Valid(slugID) {
		s.renderError(w, http.StatusBadRequest, "Invalid slug")
		return
	}

	res := s.dist.Probe(r.Context(), slugID, s.cfg.ProbeTimeout, s.cfg.TLSVerify())
	resp := statusResponse{ProbeResult: res, Reachable: res.Reachable()}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	s.renderJSON(w, http.StatusOK, resp)
}

func (s *Server) renderCreateError(w http.ResponseWriter, err error, dist distributor.Distribution) {
	status, message := http.StatusInternalServerError, "Create Failed"
	switch {
	case errors.Is(err, distributor.ErrInvalidArgument):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, distributor.ErrAlreadyExists):
		status, message = http.StatusConflict, "Distribution already exists, retry"
	default:
		s.logger.Error("create distribution", "slug", dist.Slug, "path", dist.Path, "error", err)
	}
	s.renderJSON(w, status, createErrorResponse{
		Error: message,
		Slug:  dist.Slug,
		Path:  dist.Path,
		URL:   dist.URL,
	})
}

func (s *Server) renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	s.renderJSON(w, status, map[string]string{"error": message})
}
