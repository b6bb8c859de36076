package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/menta2k/geostamp/pkg/locate"
	"github.com/menta2k/geostamp/pkg/pipeline"
	"github.com/menta2k/geostamp/pkg/types"
)

// DefaultMaxBytes bounds the multipart upload size
const DefaultMaxBytes = 32 << 20

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    int       `json:"uptime"`
	Version   string    `json:"version"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Server serves the stamping API
type Server struct {
	pipeline  *pipeline.Pipeline
	version   string
	maxBytes  int64
	startTime time.Time
}

// NewServer creates a new server instance
func NewServer(p *pipeline.Pipeline, version string, maxBytes int64) *Server {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Server{
		pipeline:  p,
		version:   version,
		maxBytes:  maxBytes,
		startTime: time.Now(),
	}
}

// Router builds the chi router with the API mounted at /api/v1
func (s *Server) Router(timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.GetHealth)
		r.Post("/stamp", s.Stamp)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/v1/health", http.StatusMovedPermanently)
	})

	return r
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    int(time.Since(s.startTime).Seconds()),
		Version:   s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// Stamp annotates an uploaded photo.
//
// Multipart fields: image (file), address, lat, lng, timestamp (RFC 3339),
// facing (back|front), map (bool, default true), store (bool).
func (s *Server) Stamp(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_FORM", "Invalid multipart form: "+err.Error(), requestID)
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "MISSING_IMAGE", "image file is required", requestID)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_IMAGE", "failed to read image: "+err.Error(), requestID)
		return
	}

	session, err := sessionFromForm(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), requestID)
		return
	}

	result, err := s.pipeline.Process(r.Context(), data, session)
	if err != nil {
		if errors.Is(err, pipeline.ErrDecode) {
			s.writeErrorResponse(w, http.StatusUnprocessableEntity, "UNDECODABLE_IMAGE", err.Error(), requestID)
			return
		}
		log.Printf("stamp %s failed: %v", requestID, err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", requestID)
		return
	}

	w.Header().Set("Content-Type", result.Format.ContentType())
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Annotation", string(result.Annotation.Outcome))
	if result.Path != "" {
		w.Header().Set("X-Capture-Path", result.Path)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Encoded)))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Encoded); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// sessionFromForm validates the form fields into a pipeline session
func sessionFromForm(r *http.Request) (pipeline.Session, error) {
	var session pipeline.Session

	facing, err := types.ParseFacing(strings.ToLower(r.FormValue("facing")))
	if err != nil {
		return session, err
	}
	session.Facing = facing

	if v := r.FormValue("timestamp"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return session, errors.New("timestamp must be RFC 3339")
		}
		session.Time = ts
	}

	if v := r.FormValue("map"); v != "" {
		withMap, err := strconv.ParseBool(v)
		if err != nil {
			return session, errors.New("map must be a boolean")
		}
		session.SkipMap = !withMap
	}
	if v := r.FormValue("store"); v != "" {
		store, err := strconv.ParseBool(v)
		if err != nil {
			return session, errors.New("store must be a boolean")
		}
		session.Store = store
	}

	address := r.FormValue("address")
	lat, lng := r.FormValue("lat"), r.FormValue("lng")
	switch {
	case lat != "" && lng != "":
		p, err := parsePoint(lat, lng)
		if err != nil {
			return session, err
		}
		session.Locator = locate.NewStatic(address, p)
	case lat != "" || lng != "":
		return session, errors.New("lat and lng must be given together")
	case address != "":
		session.Locator = &locate.Static{Location: types.Location{Address: address}}
	default:
		session.Locator = &locate.Static{Err: locate.ErrUnavailable}
	}
	return session, nil
}

func parsePoint(lat, lng string) (types.GeoPoint, error) {
	var p types.GeoPoint
	var err error
	if p.Lat, err = strconv.ParseFloat(lat, 64); err != nil {
		return p, errors.New("lat must be a number")
	}
	if p.Lng, err = strconv.ParseFloat(lng, 64); err != nil {
		return p, errors.New("lng must be a number")
	}
	return p, p.Validate()
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message, requestID string) {
	response := ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding error response: %v", err)
	}
}
