package stockledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/corefin/corefin/internal/observability"
	"github.com/corefin/corefin/internal/platform/httpx"
	"github.com/corefin/corefin/internal/shared"
)

// Handler exposes stock ledger operations over HTTP.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
	metrics   *observability.Metrics
}

// NewHandler constructs Handler.
func NewHandler(service *Service, logger *slog.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{service: service, logger: logger, validator: validator.New(), metrics: metrics}
}

// MountRoutes registers stock ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.handleAppend)
	r.Get("/items/{itemID}/balance", h.handleBalance)
	r.Get("/items/{itemID}/history", h.handleHistory)
	r.Get("/items/{itemID}/reconcile", h.handleReconcile)
	r.Get("/sources/{sourceType}/{sourceID}", h.handleBySource)
	r.Get("/valuation", h.handleValuation)
}

type appendRequest struct {
	OrgID          int64     `json:"org_id" validate:"required"`
	ItemID         int64     `json:"item_id" validate:"required"`
	Type           string    `json:"type" validate:"required"`
	SourceType     string    `json:"source_type" validate:"required"`
	SourceID       uuid.UUID `json:"source_id" validate:"required"`
	QuantityChange float64   `json:"quantity_change" validate:"required"`
	CostPerUnit    float64   `json:"cost_per_unit" validate:"gte=0"`
	OccurredAt     time.Time `json:"occurred_at"`
	ActorID        int64     `json:"actor_id" validate:"required"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Append(r.Context(), AppendInput{
		OrgID:          req.OrgID,
		ItemID:         req.ItemID,
		Type:           TransactionType(req.Type),
		Source:         shared.SourceDocument{Type: shared.SourceType(req.SourceType), ID: req.SourceID},
		QuantityChange: req.QuantityChange,
		CostPerUnit:    req.CostPerUnit,
		OccurredAt:     req.OccurredAt,
		ActorID:        req.ActorID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.metrics.ObserveLedgerAppend()
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleBySource(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org is required")
		return
	}
	sourceID, err := uuid.Parse(chi.URLParam(r, "sourceID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "sourceID must be a UUID")
		return
	}
	source := shared.SourceDocument{Type: shared.SourceType(chi.URLParam(r, "sourceType")), ID: sourceID}
	entries, err := h.service.EntriesBySource(r.Context(), orgID, source)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	orgID, itemID, err := h.pathIdentity(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	asOf, err := optionalDate(r, "as_of")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	balance, err := h.service.RunningBalance(r.Context(), orgID, itemID, asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"org_id": orgID, "item_id": itemID, "balance": balance})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	orgID, itemID, err := h.pathIdentity(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	from, err := optionalDate(r, "from")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	to, err := optionalDate(r, "to")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entries, err := h.service.History(orgID, itemID, from, to).Collect(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	orgID, itemID, err := h.pathIdentity(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Reconcile(r.Context(), orgID, itemID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleValuation(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org is required")
		return
	}
	asOf, err := optionalDate(r, "as_of")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	valuation, err := h.service.Valuate(r.Context(), orgID, asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, valuation)
}

func (h *Handler) pathIdentity(r *http.Request) (orgID, itemID int64, err error) {
	orgID, err = strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("org is required")
	}
	itemID, err = strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("itemID must be numeric")
	}
	return orgID, itemID, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInsufficientInventory):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost), errors.Is(err, ErrUnknownTransactionType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("stock ledger request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func optionalDate(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errors.New(key + " must be YYYY-MM-DD")
	}
	return t, nil
}
