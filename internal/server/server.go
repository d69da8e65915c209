// Package server exposes the generation pipeline as an asynchronous HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/v0xg/bddgen/internal/app"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("server is shutting down")

// Generator runs one analysis. *app.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, pageURL string, opts app.Options) (*app.Result, error)
}

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending        Status = "pending"
	StatusRunning        Status = "running"
	StatusCompleted      Status = "completed"
	StatusNoInteractions Status = "no_interactions"
	StatusFailed         Status = "failed"
)

// Job is an analysis request and its outcome.
type Job struct {
	ID          string     `json:"task_id"`
	URL         string     `json:"url"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Cached      bool       `json:"cached,omitempty"`
	Scenarios   int        `json:"scenarios"`
	FeaturePath string     `json:"feature_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`

	feature string
}

// Config configures the Server.
type Config struct {
	ListenAddr        string
	MaxConcurrentJobs int
	// JobTimeout bounds a single analysis. Zero means no limit.
	JobTimeout time.Duration
}

// Server is the HTTP API surface.
type Server struct {
	cfg    Config
	gen    Generator
	router chi.Router
	logger *zap.Logger
	sem    *semaphore.Weighted

	mu     sync.RWMutex
	jobs   map[string]*Job
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a Server that runs jobs through gen.
func NewServer(cfg Config, gen Generator, logger *zap.Logger) *Server {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		gen:    gen,
		router: chi.NewRouter(),
		logger: logger.Named("server"),
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
		jobs:   make(map[string]*Job),
		ctx:    ctx,
		cancel: cancel,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Options("/analyze", s.optionsHandler("POST"))
	r.Options("/jobs/{jobID}", s.optionsHandler("GET"))
	r.Options("/results/{jobID}", s.optionsHandler("GET"))

	r.Get("/healthz", s.handleHealth)
	r.Post("/analyze", s.handleAnalyze)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Get("/results/{jobID}", s.handleGetResult)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("http_request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     s,
		ReadTimeout: 15 * time.Second,
	}
}

// Close cancels running jobs and waits for them to exit. Submit fails once
// Close has started.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Job returns a snapshot of the job, or nil if it does not exist.
func (s *Server) Job(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

// Submit queues an analysis of pageURL and returns its job id.
func (s *Server) Submit(pageURL string) (string, error) {
	j := &Job{
		ID:        uuid.NewString(),
		URL:       pageURL,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	s.jobs[j.ID] = j
	s.wg.Add(1)
	go s.run(j.ID, pageURL)
	return j.ID, nil
}

func (s *Server) run(id, pageURL string) {
	defer s.wg.Done()
	log := s.logger.With(zap.String("job_id", id), zap.String("url", pageURL))

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		s.finish(id, nil, err)
		return
	}
	defer s.sem.Release(1)

	s.update(id, func(j *Job) { j.Status = StatusRunning })
	log.Info("Job started")

	ctx := s.ctx
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	res, err := s.gen.Generate(ctx, pageURL, app.Options{})
	if err != nil {
		log.Error("Job failed", zap.Error(err))
	} else {
		log.Info("Job finished", zap.String("outcome", string(res.Outcome)))
	}
	s.finish(id, res, err)
}

func (s *Server) finish(id string, res *app.Result, err error) {
	now := time.Now().UTC()
	s.update(id, func(j *Job) {
		j.FinishedAt = &now
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusCompleted
		if res.Outcome == app.OutcomeNoInteractions {
			j.Status = StatusNoInteractions
		}
		j.Cached = res.Outcome == app.OutcomeCached
		j.Scenarios = len(res.Scenarios)
		j.FeaturePath = res.FeaturePath
		j.feature = res.FeatureContent
	})
}

func (s *Server) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- HTTP handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, err := url.Parse(body.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}

	id, err := s.Submit(body.URL)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Info("Job queued", zap.String("job_id", id), zap.String("url", body.URL))
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.Job(jobID)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.Job(jobID)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	switch job.Status {
	case StatusCompleted, StatusNoInteractions:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(job.feature))
	case StatusFailed:
		writeError(w, http.StatusUnprocessableEntity, job.Error)
	default:
		writeJSON(w, http.StatusConflict, map[string]string{"status": string(job.Status)})
	}
}
