// Package mockfirefly is an in-process stand-in for the Firefly and IMS
// endpoints used by the pipeline. It backs local dry runs and end-to-end
// tests.
//
// Prompts steer job outcomes through markers: "mock:failed", "mock:timeout"
// and "mock:cancelled" end the job in that state, and "mock:missing-url"
// drops the image link of the last output.
package mockfirefly

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/middleware"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/firefly"
)

const (
	MarkerFailed     = "mock:failed"
	MarkerTimeout    = "mock:timeout"
	MarkerCancelled  = "mock:cancelled"
	MarkerMissingURL = "mock:missing-url"

	// TokenPath is the IMS token endpoint served by the mock.
	TokenPath = "/ims/token/v3"
)

// Options configures a Server.
type Options struct {
	ClientID     string
	ClientSecret string
	// AccessToken is issued by the token endpoint. Default "mock-access-token".
	AccessToken string
	// RunningPolls is how many status calls answer "running" before the job
	// reaches its terminal state.
	RunningPolls int
	// RateLimit is requests per minute per api key. Zero disables it.
	RateLimit    int
	CustomModels []firefly.CustomModel
	Logger       *infra.Logger
}

type job struct {
	id        string
	prompt    string
	size      firefly.Size
	count     int
	composite bool
	polls     int
	seedBase  int64
}

// Submission is a generation request the mock accepted.
type Submission struct {
	Prompt    string
	Size      firefly.Size
	Count     int
	Composite bool
}

// Server holds the jobs and uploads submitted to the mock.
type Server struct {
	opts   Options
	logger zerolog.Logger
	router chi.Router

	mu       sync.Mutex
	jobs     map[string]*job
	uploads  map[string][]byte
	nextSeed int64
	requests []string
	accepted []Submission
}

// New builds the router.
func New(opts Options) *Server {
	if opts.AccessToken == "" {
		opts.AccessToken = "mock-access-token"
	}
	s := &Server{
		opts:     opts,
		logger:   infra.LoggerOrNop(opts.Logger),
		jobs:     make(map[string]*job),
		uploads:  make(map[string][]byte),
		nextSeed: 1000,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.Recoverer)
	r.Use(middleware.Logger(s.logger))
	r.Use(s.recordRequest)

	r.Post(TokenPath, s.handleToken)
	r.Get("/images/{jobID}/{index}.jpg", s.handleImage)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimit, time.Minute))
		r.Use(middleware.BearerAuth(opts.AccessToken, opts.ClientID))
		r.Post("/v3/images/generate-async", s.handleGenerate)
		r.Post("/v3/images/generate-object-composite-async", s.handleComposite)
		r.Get("/v3/status/{jobID}", s.handleStatus)
		r.Post("/v2/storage/image", s.handleUpload)
		r.Get("/v3/custom-models", s.handleCustomModels)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Requests returns "METHOD path" for every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Submissions returns the accepted generation requests in arrival order.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.accepted...)
}

// Uploads returns the number of stored uploads.
func (s *Server) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

func (s *Server) recordRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if r.PostForm.Get("grant_type") != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	if s.opts.ClientID != "" && (r.PostForm.Get("client_id") != s.opts.ClientID || r.PostForm.Get("client_secret") != s.opts.ClientSecret) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.opts.AccessToken,
		"token_type":   "bearer",
		"expires_in":   86399,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req firefly.GenerateImagesRequest
	if !decode(w, r, &req) {
		return
	}
	if v := firefly.ModelVersion(r.Header.Get("x-model-version")); !v.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_model_version", "unknown x-model-version "+string(v))
		return
	}
	s.accept(w, r, req.Prompt, req.Size, req.NumVariations, false)
}

func (s *Server) handleComposite(w http.ResponseWriter, r *http.Request) {
	var req firefly.ObjectCompositeRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	_, uploaded := s.uploads[req.Image.Source.UploadID]
	s.mu.Unlock()
	if !uploaded {
		writeError(w, http.StatusBadRequest, "invalid_upload_id", "unknown upload id")
		return
	}
	s.accept(w, r, req.Prompt, req.Size, req.NumVariations, true)
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request, prompt string, size *firefly.Size, count int, composite bool) {
	if strings.TrimSpace(prompt) == "" || len([]rune(prompt)) > 1024 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "prompt must be 1-1024 characters")
		return
	}
	if size == nil || size.Width <= 0 || size.Height <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "size is required")
		return
	}
	if count <= 0 {
		count = 1
	}
	if count > 4 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "numVariations must be 1-4")
		return
	}
	s.mu.Lock()
	j := &job{
		id:        uuid.NewString(),
		prompt:    prompt,
		size:      *size,
		count:     count,
		composite: composite,
		seedBase:  s.nextSeed,
	}
	s.nextSeed += int64(count)
	s.jobs[j.id] = j
	s.accepted = append(s.accepted, Submission{Prompt: prompt, Size: *size, Count: count, Composite: composite})
	s.mu.Unlock()

	base := baseURL(r)
	writeJSON(w, http.StatusAccepted, firefly.AsyncAccepted{
		JobID:     j.id,
		StatusURL: base + "/v3/status/" + j.id,
		CancelURL: base + "/v3/cancel/" + j.id,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	s.mu.Lock()
	j, ok := s.jobs[id]
	if ok {
		j.polls++
	}
	var polls int
	if ok {
		polls = j.polls
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_job_id", "job "+id+" not found")
		return
	}
	if polls <= s.opts.RunningPolls {
		writeJSON(w, http.StatusOK, firefly.JobResult{JobID: id, Status: firefly.StatusRunning})
		return
	}
	switch {
	case strings.Contains(j.prompt, MarkerFailed):
		writeJSON(w, http.StatusOK, firefly.JobResult{JobID: id, Status: firefly.StatusFailed, ErrorCode: "generation_failed", Message: "the job failed"})
		return
	case strings.Contains(j.prompt, MarkerTimeout):
		writeJSON(w, http.StatusOK, firefly.JobResult{JobID: id, Status: firefly.StatusTimeout, ErrorCode: "timeout", Message: "the job timed out"})
		return
	case strings.Contains(j.prompt, MarkerCancelled):
		writeJSON(w, http.StatusOK, firefly.JobResult{JobID: id, Status: firefly.StatusCancelled, Message: "the job was cancelled"})
		return
	}
	base := baseURL(r)
	outcome := &firefly.JobOutcome{ContentClass: firefly.ContentClassPhoto, Size: j.size}
	for i := 0; i < j.count; i++ {
		out := firefly.Output{Seed: j.seedBase + int64(i)}
		if !(i == j.count-1 && strings.Contains(j.prompt, MarkerMissingURL)) {
			out.Image.URL = fmt.Sprintf("%s/images/%s/%d.jpg", base, id, i)
		}
		outcome.Outputs = append(outcome.Outputs, out)
	}
	writeJSON(w, http.StatusOK, firefly.JobResult{JobID: id, Status: firefly.StatusSucceeded, Result: outcome})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected an image content type")
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty_upload", "upload body is empty")
		return
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.uploads[id] = data
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"images": []map[string]string{{"id": id}}})
}

func (s *Server) handleCustomModels(w http.ResponseWriter, r *http.Request) {
	models := s.opts.CustomModels
	if models == nil {
		models = []firefly.CustomModel{}
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(models) {
		models = models[:limit]
	}
	writeJSON(w, http.StatusOK, firefly.CustomModels{Models: models, TotalCount: len(s.opts.CustomModels)})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok || err != nil || index < 0 || index >= j.count {
		http.NotFound(w, r)
		return
	}
	data, err := placeholderJPEG(index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// placeholderJPEG renders a small solid tile so downloaded files are valid
// images.
func placeholderJPEG(index int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	c := color.RGBA{R: uint8(60 * index), G: 120, B: 200, A: 255}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error_code": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
