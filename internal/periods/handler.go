package periods

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/corefin/corefin/internal/platform/httpx"
	"github.com/corefin/corefin/internal/shared"
)

// Handler exposes financial period operations over HTTP.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger, validator: validator.New()}
}

// MountRoutes registers period routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/resolve", h.handleResolve)
	r.Get("/fiscal-year/{year}", h.handleListFiscalYear)
	r.Post("/generate", h.handleGenerate)
	r.Post("/{id}/lock", h.handleTransition(h.service.Lock))
	r.Post("/{id}/unlock", h.handleTransition(h.service.Unlock))
	r.Post("/{id}/close", h.handleTransition(h.service.Close))
	r.Put("/{id}/notes", h.handleUpdateNotes)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	orgID, err := queryInt64(r, "org")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org is required")
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	period, err := h.service.Resolve(r.Context(), orgID, date)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) handleListFiscalYear(w http.ResponseWriter, r *http.Request) {
	orgID, err := queryInt64(r, "org")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org is required")
		return
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "year must be numeric")
		return
	}
	list, err := h.service.ListFiscalYear(r.Context(), orgID, year)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

type generateRequest struct {
	OrgID      int64 `json:"org_id" validate:"required"`
	FiscalYear int   `json:"fiscal_year" validate:"required,min=1900,max=9999"`
	StartMonth int   `json:"start_month" validate:"required,min=1,max=12"`
	ActorID    int64 `json:"actor_id" validate:"required"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.GenerateFiscalYear(r.Context(), GenerateInput{
		OrgID:      req.OrgID,
		FiscalYear: req.FiscalYear,
		StartMonth: req.StartMonth,
		ActorID:    req.ActorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleTransition(op func(ctx context.Context, periodID, actorID int64) (Period, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		periodID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
			return
		}
		actorID, _ := queryInt64(r, "actor")
		period, err := op(r.Context(), periodID, actorID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, period)
	}
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	periodID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	var req notesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	period, err := h.service.UpdateNotes(r.Context(), periodID, req.Notes)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPeriodNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrPeriodLocked), errors.Is(err, ErrPeriodClosed), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrPeriodOverlap):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidRange), errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("period request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func queryInt64(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
}
