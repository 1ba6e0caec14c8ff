package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/corefin/corefin/internal/platform/httpx"
)

// Handler exposes chart-of-accounts reads over HTTP.
type Handler struct {
	service  *Service
	resolver *RoleResolver
	logger   *slog.Logger
}

// NewHandler constructs Handler.
func NewHandler(service *Service, resolver *RoleResolver, logger *slog.Logger) *Handler {
	return &Handler{service: service, resolver: resolver, logger: logger}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/roles", h.handleRoles)
	r.Get("/{code}", h.handleGetByCode)
	r.Post("/{code}/deactivate", h.handleDeactivate)
	r.Post("/{code}/reactivate", h.handleReactivate)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org is required")
		return
	}
	list, err := h.service.List(r.Context(), orgID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleRoles(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org is required")
		return
	}
	set, err := h.resolver.Resolve(r.Context(), orgID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, set)
}

func (h *Handler) handleGetByCode(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org is required")
		return
	}
	account, err := h.service.GetByCode(r.Context(), orgID, chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org is required")
		return
	}
	code := chi.URLParam(r, "code")
	if err := h.service.Deactivate(r.Context(), orgID, code); err != nil {
		h.respondError(w, err)
		return
	}
	// Role sets may embed the retired account.
	if err := h.resolver.Invalidate(r.Context(), orgID); err != nil {
		h.logger.Warn("invalidate role cache", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"code": code, "is_active": false})
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "org is required")
		return
	}
	code := chi.URLParam(r, "code")
	if err := h.service.Reactivate(r.Context(), orgID, code); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"code": code, "is_active": true})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAccountNotConfigured):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Configuration Error", err.Error())
	case errors.Is(err, ErrSystemAccount):
		httpx.Problem(w, http.StatusConflict, "System Account", err.Error())
	default:
		h.logger.Error("account request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
