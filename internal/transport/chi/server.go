// Package chi exposes the fusion pipeline over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	domfusion "github.com/kailas-cloud/rankfuse/internal/domain/fusion"
	batchuc "github.com/kailas-cloud/rankfuse/internal/usecase/batch"
	fusionuc "github.com/kailas-cloud/rankfuse/internal/usecase/fusion"
	healthuc "github.com/kailas-cloud/rankfuse/internal/usecase/health"
)

const maxBatchSize = 100

// Error codes returned in error response bodies.
const (
	codeValidationFailed = "validation_failed"
	codeConfigInvalid    = "configuration_invalid"
	codeBadRequest       = "bad_request"
	codeUnauthorized     = "unauthorized"
	codeIndexNotFound    = "index_not_found"
	codeRateLimited      = "rate_limited"
	codeQuotaExceeded    = "quota_exceeded"
	codeTimeout          = "timeout"
	codeRetrievalFailed  = "retrieval_failed"
	codeRerankingFailed  = "reranking_failed"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server handles the HTTP API.
type Server struct {
	fusion        *fusionuc.Service
	batch         *batchuc.Service
	health        *healthuc.Service
	defaults      domfusion.Config
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	fusion *fusionuc.Service,
	batch *batchuc.Service,
	health *healthuc.Service,
	defaults domfusion.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		fusion:   fusion,
		batch:    batch,
		health:   health,
		defaults: defaults,
		logger:   logger,
	}
	// Sub-sentinels come first: a not-found is also a retrieval failure,
	// and the more specific status must win.
	s.errorHandlers = []errorHandler{
		detailedHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		detailedHandler(domain.ErrConfiguration, http.StatusBadRequest, codeConfigInvalid),
		detailedHandler(domain.ErrBadRequest, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrAuthentication, http.StatusUnauthorized, codeUnauthorized),
		sentinelHandler(domain.ErrIndexNotFound, http.StatusNotFound, codeIndexNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, codeTimeout),
		sentinelHandler(domain.ErrRetrieval, http.StatusBadGateway, codeRetrievalFailed),
		sentinelHandler(domain.ErrReranking, http.StatusBadGateway, codeRerankingFailed),
		sentinelHandler(domain.ErrScorerAPI, http.StatusBadGateway, codeRerankingFailed),
		sentinelHandler(domain.ErrConnection, http.StatusBadGateway, codeRetrievalFailed),
	}
	return s
}

// Routes mounts the API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/search", s.Search)
	r.Post("/v1/search/batch", s.BatchSearch)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	fr, err := fusionRequestFromDTO(req, s.defaults)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.fusion.Search(r.Context(), fr)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, responseToDTO(resp))
}

// BatchSearch handles POST /v1/search/batch.
func (s *Server) BatchSearch(w http.ResponseWriter, r *http.Request) {
	var req batchSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Requests) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("requests count must not exceed %d", maxBatchSize))
		return
	}

	frs := make([]domfusion.Request, len(req.Requests))
	for i, item := range req.Requests {
		fr, err := fusionRequestFromDTO(item, s.defaults)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		frs[i] = fr
	}

	responses, err := s.batch.Run(r.Context(), frs, req.MaxConcurrent)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := batchSearchResponse{Responses: make([]searchResponse, len(responses))}
	for i := range responses {
		out.Responses[i] = responseToDTO(responses[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]healthCheck, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = healthCheck{Status: string(v.Status), Error: v.Error}
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrAuthentication,
		domain.ErrIndexNotFound,
		domain.ErrRateLimited,
		domain.ErrQuotaExceeded,
		domain.ErrTimeout,
		domain.ErrRetrieval,
		domain.ErrReranking,
		domain.ErrScorerAPI,
		domain.ErrConnection,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

// detailedHandler matches a sentinel but keeps the full error text. Only
// used for errors our own validators produce.
func detailedHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
