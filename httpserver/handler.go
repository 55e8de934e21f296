package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/challenge-oracle-client/api"
	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/ruteri/challenge-oracle-client/orchestrator"
)

// maxBodySize is the maximum accepted request body (1MB).
const maxBodySize = 1024 * 1024

// FlowRunner is the orchestration surface exposed over HTTP.
// *orchestrator.Orchestrator implements it.
type FlowRunner interface {
	Enabled(ctx context.Context) bool
	RunChallengeFlowWithDID(ctx context.Context, code string, did interfaces.DID) *orchestrator.TestResult
	SubmitEvidenceBatch(ctx context.Context, instanceID string, items []interfaces.EvidenceItem) (*interfaces.BatchResult, error)
}

// Handler serves the flow and batch submission endpoints.
type Handler struct {
	runner      FlowRunner
	flowTimeout time.Duration
	log         *slog.Logger
}

// NewHandler creates a handler. flowTimeout bounds each flow run; zero leaves
// it bounded by the request context only.
func NewHandler(runner FlowRunner, flowTimeout time.Duration, log *slog.Logger) *Handler {
	return &Handler{
		runner:      runner,
		flowTimeout: flowTimeout,
		log:         log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/flows/{challenge_set}", h.HandleRunFlow)
	r.Post("/api/challenge-evidence/batch", h.HandleSubmitBatch)
}

// HandleRunFlow runs the challenge flow for the set in the URL. The response
// is the TestResult; a failed stage is reported inside it with status 200.
func (h *Handler) HandleRunFlow(w http.ResponseWriter, r *http.Request) {
	if !h.runner.Enabled(r.Context()) {
		writeError(w, http.StatusServiceUnavailable, interfaces.ErrServiceNotEnabled)
		return
	}

	code := chi.URLParam(r, "challenge_set")
	if code == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing challenge set in URL"))
		return
	}

	var req api.RunFlowRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("failed to read request body"))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
	}

	ctx := r.Context()
	if h.flowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.flowTimeout)
		defer cancel()
	}

	result := h.runner.RunChallengeFlowWithDID(ctx, code, req.DID)
	writeJSON(w, http.StatusOK, result, h.log)
}

// HandleSubmitBatch submits a caller-built evidence batch. The response is the
// BatchResult with a status reflecting the failure class.
func (h *Handler) HandleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	if !h.runner.Enabled(r.Context()) {
		writeError(w, http.StatusServiceUnavailable, interfaces.ErrServiceNotEnabled)
		return
	}

	var req api.SubmitEvidenceBatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	result, err := h.runner.SubmitEvidenceBatch(r.Context(), req.ChallengeInstanceID, req.Responses)
	if err != nil {
		h.log.Debug("Batch submission failed", "instanceID", req.ChallengeInstanceID, "err", err)
	}
	writeJSON(w, statusFor(err), result, h.log)
}

// statusFor maps a submission error to the gateway response status.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var oerr *interfaces.OracleError
	switch {
	case errors.Is(err, interfaces.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrInstanceTerminal):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrServiceNotEnabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrBusinessRejection):
		return http.StatusUnprocessableEntity
	case errors.As(err, &oerr) && oerr.Status >= 400 && oerr.Status < 500:
		return oerr.Status
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: err.Error(), Hint: interfaces.Hint(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}
