// Package server exposes the reconstruction pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz   - liveness probe
//	POST /v1/label  - run a reconstruction; JSON in, JSON out
//
// The server is a thin shell: all validation and semantics live in
// pkg/pipeline, and input errors surface as 400s with their machine-
// readable code.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phylotrace/phylotrace/pkg/errors"
	"github.com/phylotrace/phylotrace/pkg/pipeline"
	"github.com/phylotrace/phylotrace/pkg/tips"
)

// maxBodyBytes bounds request bodies; topologies with tens of thousands of
// leaves stay well under this.
const maxBodyBytes = 32 << 20

// New builds the HTTP handler.
func New(runner *pipeline.Runner, logger *log.Logger) http.Handler {
	s := &server{runner: runner, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/label", s.handleLabel)
	return r
}

type server struct {
	runner *pipeline.Runner
	logger *log.Logger
}

// labelRequest is the JSON body of POST /v1/label.
type labelRequest struct {
	Newick       string            `json:"newick"`
	Tips         map[string]string `json:"tips"`
	MatrixCSV    string            `json:"matrix_csv,omitempty"`
	Delimiter    string            `json:"delimiter,omitempty"`
	ExpandStates bool              `json:"expand_states,omitempty"`
	Refresh      bool              `json:"refresh,omitempty"`
}

// labelResponse is the JSON body of a successful reconstruction.
type labelResponse struct {
	RunID     string         `json:"run_id"`
	Labeled   string         `json:"labeled"`
	RootState string         `json:"root_state"`
	MinCost   float64        `json:"min_cost"`
	CacheHit  bool           `json:"cache_hit"`
	Stats     pipeline.Stats `json:"stats"`
}

// errorResponse carries the machine-readable code alongside the message.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    string(errors.ErrCodeInvalidInput),
			Message: "invalid JSON body: " + err.Error(),
		})
		return
	}

	opts := pipeline.Options{
		Topology:     req.Newick,
		Tips:         tips.Mapping(req.Tips),
		MatrixCSV:    []byte(req.MatrixCSV),
		ExpandStates: req.ExpandStates,
		Refresh:      req.Refresh,
		Logger:       s.logger,
	}
	if req.Delimiter != "" {
		runes := []rune(req.Delimiter)
		if len(runes) != 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:    string(errors.ErrCodeInvalidInput),
				Message: "delimiter must be a single character",
			})
			return
		}
		opts.Delimiter = runes[0]
	}

	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("label request failed", "status", status, "error", err)
		writeJSON(w, status, errorResponse{
			Code:    string(errors.GetCode(err)),
			Message: errors.UserMessage(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, labelResponse{
		RunID:     res.RunID,
		Labeled:   res.Labeled,
		RootState: res.RootState,
		MinCost:   res.MinCost,
		CacheHit:  res.CacheHit,
		Stats:     res.Stats,
	})
}

// statusFor maps error codes to HTTP statuses. Every validation code is the
// client's fault; UNREACHABLE is a well-formed request whose answer is "no
// finite labeling", reported as 422.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeMalformedTopology,
		errors.ErrCodeUnknownLabel,
		errors.ErrCodeDimensionMismatch,
		errors.ErrCodeInvalidCost,
		errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeUnreachable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
