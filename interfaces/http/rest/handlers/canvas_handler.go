package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"canvas-sync/application/services"
	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"
	apperrors "canvas-sync/pkg/errors"
	"canvas-sync/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CanvasHandler serves the canvas sync endpoints consumed by the engine's
// remote client
type CanvasHandler struct {
	service *services.CanvasAPIService
	errors  *apperrors.ErrorHandler
	logger  *zap.Logger
}

// NewCanvasHandler creates a new canvas handler
func NewCanvasHandler(service *services.CanvasAPIService, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) *CanvasHandler {
	return &CanvasHandler{
		service: service,
		errors:  errorHandler,
		logger:  logger,
	}
}

// SyncRequest is the push payload: the client's version lineage and its
// unsynced transactions
type SyncRequest struct {
	Version      string                   `json:"version" validate:"required"`
	Transactions []aggregates.Transaction `json:"transactions" validate:"required"`
}

// TransactionsResponse wraps a transaction list
type TransactionsResponse struct {
	Transactions []aggregates.Transaction `json:"transactions"`
}

// GetState handles GET /api/canvases/{canvasID}/state
func (h *CanvasHandler) GetState(w http.ResponseWriter, r *http.Request) {
	canvasID, err := h.canvasID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	state, err := h.service.GetState(r.Context(), canvasID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, state)
}

// GetTransactions handles GET /api/canvases/{canvasID}/transactions
func (h *CanvasHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	canvasID, err := h.canvasID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	version := r.URL.Query().Get("version")
	if version == "" {
		h.errors.Handle(w, r, apperrors.NewValidationError("version query parameter is required"))
		return
	}

	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("since must be a unix millisecond timestamp"))
		return
	}

	transactions, err := h.service.TransactionsSince(r.Context(), canvasID, valueobjects.NewVersionIDFromString(version), since)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, TransactionsResponse{Transactions: transactions})
}

// Sync handles POST /api/canvases/{canvasID}/sync
func (h *CanvasHandler) Sync(w http.ResponseWriter, r *http.Request) {
	canvasID, err := h.canvasID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body").WithCause(err))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	err = h.service.ApplySync(r.Context(), canvasID, valueobjects.NewVersionIDFromString(req.Version), req.Transactions)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateVersion handles POST /api/canvases/{canvasID}/versions
func (h *CanvasHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	canvasID, err := h.canvasID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	// The client state is optional; an empty body compacts the stored state
	var client *aggregates.CanvasState
	if r.Body != nil && r.ContentLength != 0 {
		client = &aggregates.CanvasState{}
		if err := json.NewDecoder(r.Body).Decode(client); err != nil {
			h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body").WithCause(err))
			return
		}
	}

	fresh, err := h.service.CreateVersion(r.Context(), canvasID, client)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, fresh)
}

// GetSnapshot handles GET /api/canvases/{canvasID}/snapshot
func (h *CanvasHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	canvasID, err := h.canvasID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	graph, err := h.service.Snapshot(r.Context(), canvasID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, graph)
}

func (h *CanvasHandler) canvasID(r *http.Request) (valueobjects.CanvasID, error) {
	canvasID, err := valueobjects.NewCanvasID(chi.URLParam(r, "canvasID"))
	if err != nil {
		return valueobjects.CanvasID{}, apperrors.NewValidationError("canvas ID is required")
	}
	return canvasID, nil
}

func (h *CanvasHandler) respond(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}
