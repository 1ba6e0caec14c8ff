package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/corefin/corefin/internal/periods"
	"github.com/corefin/corefin/internal/platform/httpx"
	"github.com/corefin/corefin/internal/shared"
)

// Handler exposes journal operations and reports over HTTP.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
	// reports collapses concurrent identical report builds into one query.
	reports singleflight.Group
}

// NewHandler constructs Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger, validator: validator.New()}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.handleCreate)
	r.Get("/entries", h.handleList)
	r.Get("/entries/{id}", h.handleGet)
	r.Post("/entries/{id}/post", h.handlePost)
	r.Post("/entries/{id}/void", h.handleVoid)
	r.Get("/reports/trial-balance", h.handleTrialBalance)
	r.Get("/reports/profit-loss", h.handleProfitAndLoss)
}

type lineRequest struct {
	AccountID   int64   `json:"account_id" validate:"required"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Description string  `json:"description"`
}

type createRequest struct {
	OrgID      int64         `json:"org_id" validate:"required"`
	PeriodID   int64         `json:"period_id" validate:"required"`
	Date       time.Time     `json:"date" validate:"required"`
	SourceType string        `json:"source_type" validate:"required"`
	SourceID   uuid.UUID     `json:"source_id" validate:"required"`
	Memo       string        `json:"memo"`
	ActorID    int64         `json:"actor_id" validate:"required"`
	AutoPost   bool          `json:"auto_post"`
	Lines      []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		OrgID:    req.OrgID,
		PeriodID: req.PeriodID,
		Date:     req.Date,
		Source:   shared.SourceDocument{Type: shared.SourceType(req.SourceType), ID: req.SourceID},
		Memo:     req.Memo,
		ActorID:  req.ActorID,
		AutoPost: req.AutoPost,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	entry, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org is required")
		return
	}
	filter := ListFilter{OrgID: orgID, Status: Status(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("from"); raw != "" {
		if filter.From, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if filter.To, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	orgID, entryID, err := h.pathIdentity(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Get(r.Context(), orgID, entryID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	orgID, entryID, err := h.pathIdentity(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor"), 10, 64)
	entry, err := h.service.Post(r.Context(), orgID, entryID, actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

type voidRequest struct {
	ActorID int64  `json:"actor_id" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	orgID, entryID, err := h.pathIdentity(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Void(r.Context(), VoidInput{
		OrgID:   orgID,
		EntryID: entryID,
		ActorID: req.ActorID,
		Reason:  req.Reason,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	orgID, from, to, err := reportParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key := fmt.Sprintf("tb:%d:%s:%s", orgID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	result, err, _ := h.reports.Do(key, func() (any, error) {
		return h.service.BuildTrialBalance(r.Context(), orgID, from, to)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	tb := result.(TrialBalance)
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="trial-balance.csv"`)
		if err := WriteTrialBalanceCSV(w, tb); err != nil {
			h.logger.Error("write trial balance csv", slog.Any("error", err))
		}
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) handleProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	orgID, from, to, err := reportParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key := fmt.Sprintf("pl:%d:%s:%s", orgID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	result, err, _ := h.reports.Do(key, func() (any, error) {
		return h.service.BuildProfitAndLoss(r.Context(), orgID, from, to)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	pl := result.(ProfitAndLoss)
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="profit-loss.csv"`)
		if err := WriteProfitAndLossCSV(w, pl); err != nil {
			h.logger.Error("write profit and loss csv", slog.Any("error", err))
		}
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) pathIdentity(r *http.Request) (orgID, entryID int64, err error) {
	orgID, err = strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("org is required")
	}
	entryID, err = strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("id must be numeric")
	}
	return orgID, entryID, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, periods.ErrPeriodNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrEntryImmutable),
		errors.Is(err, periods.ErrPeriodLocked), errors.Is(err, periods.ErrPeriodClosed):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrTooFewLines),
		errors.Is(err, ErrVoidReasonRequired), errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("journal request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func reportParams(r *http.Request) (orgID int64, from, to time.Time, err error) {
	orgID, err = strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil {
		return 0, time.Time{}, time.Time{}, errors.New("org is required")
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			return 0, time.Time{}, time.Time{}, errors.New("from must be YYYY-MM-DD")
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			return 0, time.Time{}, time.Time{}, errors.New("to must be YYYY-MM-DD")
		}
	}
	return orgID, from, to, nil
}
