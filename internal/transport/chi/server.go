// Package chi exposes the query service over HTTP: POST /query answers a
// question with retrieval-augmented generation, POST /data returns the raw
// retrieval hits, GET /health reports the load state.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recipedex/internal/answerer"
	"github.com/kailas-cloud/recipedex/internal/domain"
	"github.com/kailas-cloud/recipedex/internal/logger"
	"github.com/kailas-cloud/recipedex/internal/retriever"
)

// State tracks the serving lifecycle. The server starts Loading, becomes
// Ready once the store is resident, or Degraded if the load fails. Degraded
// keeps answering health checks while data routes return 503.
type State int32

const (
	StateLoading State = iota
	StateReady
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ok"
	case StateDegraded:
		return "degraded"
	default:
		return "loading"
	}
}

// Retriever is the consumer interface for document retrieval.
type Retriever interface {
	Search(ctx context.Context, query string, k int, m retriever.Mode) ([]domain.Hit, error)
}

// Answerer is the consumer interface for answer generation.
type Answerer interface {
	Answer(ctx context.Context, question string, docs []domain.Hit, thinking domain.ThinkingLevel) (answerer.Answer, error)
	Model() string
}

// Limits bounds per-request result counts.
type Limits struct {
	DefaultResults int
	MaxResults     int
}

// services holds everything that only exists once the store is loaded.
type services struct {
	retriever Retriever
	answerer  Answerer
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server implements the HTTP API. The store behind the retriever is read-only
// after load, so handlers run concurrently without locking.
type Server struct {
	state         atomic.Int32
	svc           atomic.Pointer[services]
	limits        Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates a server in the Loading state.
func NewServer(limits Limits, logger *zap.Logger) *Server {
	s := &Server{limits: limits, logger: logger}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, true),
		sentinelHandler(domain.ErrStoreNotReady, http.StatusServiceUnavailable, true),
		// Provider and model failures stay 500 with the sentinel text only:
		// wrapped detail goes to the log, never to the response body.
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusInternalServerError, false),
		sentinelHandler(domain.ErrGenerationProvider, http.StatusInternalServerError, false),
		sentinelHandler(domain.ErrModelMismatch, http.StatusInternalServerError, false),
	}
	return s
}

// SetReady installs the loaded services and transitions to Ready.
func (s *Server) SetReady(r Retriever, a Answerer) {
	s.svc.Store(&services{retriever: r, answerer: a})
	s.state.Store(int32(StateReady))
}

// SetDegraded records a failed load. Data routes answer 503 from here on;
// the process keeps running so the health check can report the state.
func (s *Server) SetDegraded() {
	s.state.Store(int32(StateDegraded))
}

// CurrentState returns the serving state.
func (s *Server) CurrentState() State {
	return State(s.state.Load())
}

// Routes registers all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/query", s.handleQuery)
	r.Post("/data", s.handleData)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

type queryRequest struct {
	Question  string `json:"question"`
	NbResults *int   `json:"nbResults"`
	Thinking  string `json:"thinking"`
}

type queryResponse struct {
	Answer    string `json:"answer"`
	Duration  int64  `json:"duration"`
	NbResults int    `json:"nbResults"`
	Thinking  string `json:"thinking"`
	Model     string `json:"model"`
}

type row struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type dataResponse struct {
	Data     []row `json:"data"`
	Duration int64 `json:"duration"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// handleQuery runs hybrid retrieval and answer generation.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "missing 'question' field")
		return
	}

	thinking, err := domain.ParseThinkingLevel(req.Thinking)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log := s.reqLogger(r)

	svc, err := s.ready()
	if err != nil {
		s.handleDomainError(w, log, err)
		return
	}

	k := s.clampResults(req.NbResults)

	log.Info("query",
		zap.String("question", req.Question),
		zap.Int("nb_results", k),
		zap.String("thinking", string(thinking)),
		zap.String("model", svc.answerer.Model()),
	)

	start := time.Now()

	docs, err := svc.retriever.Search(r.Context(), req.Question, k, retriever.ModeHybrid)
	if err != nil {
		s.handleDomainError(w, log, err)
		return
	}

	ans, err := svc.answerer.Answer(r.Context(), req.Question, docs, thinking)
	if err != nil {
		s.handleDomainError(w, log, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:    ans.Text,
		Duration:  time.Since(start).Milliseconds(),
		NbResults: k,
		Thinking:  string(ans.Thinking),
		Model:     ans.Model,
	})
}

// handleData runs retrieval only, useful for debugging ranking without
// paying for generation.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "missing 'question' field")
		return
	}

	log := s.reqLogger(r)

	svc, err := s.ready()
	if err != nil {
		s.handleDomainError(w, log, err)
		return
	}

	k := s.clampResults(req.NbResults)

	log.Info("data query",
		zap.String("question", req.Question),
		zap.Int("nb_results", k),
	)

	start := time.Now()

	docs, err := svc.retriever.Search(r.Context(), req.Question, k, retriever.ModeHybrid)
	if err != nil {
		s.handleDomainError(w, log, err)
		return
	}

	rows := make([]row, len(docs))
	for i, d := range docs {
		rows[i] = row{ID: d.ID, Text: d.Text, Score: d.Score}
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Data:     rows,
		Duration: time.Since(start).Milliseconds(),
	})
}

// handleHealth reports the serving state in every lifecycle phase.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.CurrentState()

	status := http.StatusOK
	if state != StateReady {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, healthResponse{Status: state.String()})
}

// ready returns the loaded services or ErrStoreNotReady.
func (s *Server) ready() (*services, error) {
	if s.CurrentState() != StateReady {
		return nil, domain.ErrStoreNotReady
	}
	return s.svc.Load(), nil
}

func (s *Server) clampResults(nb *int) int {
	k := s.limits.DefaultResults
	if nb != nil && *nb > 0 {
		k = *nb
	}
	if k > s.limits.MaxResults {
		k = s.limits.MaxResults
	}
	return k
}

// reqLogger returns the request-scoped logger installed by the logging
// middleware, or the server logger when a request arrives without one.
func (s *Server) reqLogger(r *http.Request) *zap.Logger {
	if l := logger.FromContext(r.Context()); l != nil {
		return l
	}
	return s.logger
}

// handleDomainError maps a domain error onto an HTTP response.
func (s *Server) handleDomainError(w http.ResponseWriter, log *zap.Logger, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("request failed", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// sentinelHandler maps one sentinel error to a status. detailed controls
// whether the full error text is safe to return to the client.
func sentinelHandler(sentinel error, status int, detailed bool) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if detailed {
			msg = err.Error()
		}
		writeError(w, status, msg)
		return true
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
