package posting

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/corefin/corefin/internal/accounts"
	"github.com/corefin/corefin/internal/journal"
	"github.com/corefin/corefin/internal/observability"
	"github.com/corefin/corefin/internal/periods"
	"github.com/corefin/corefin/internal/platform/httpx"
	"github.com/corefin/corefin/internal/stockledger"
)

// Handler exposes orchestrated postings over HTTP.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs Handler. metrics may be nil.
func NewHandler(service *Service, logger *slog.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: metrics, validator: validator.New()}
}

// MountRoutes registers posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchase", h.handlePurchase)
	r.Post("/sale", h.handleSale)
	r.Post("/payment", h.handlePayment)
}

type purchaseItemRequest struct {
	ItemID   int64   `json:"item_id" validate:"required"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
	UnitCost float64 `json:"unit_cost" validate:"gte=0"`
}

type purchaseRequest struct {
	OrgID       int64                 `json:"org_id" validate:"required"`
	PurchaseID  uuid.UUID             `json:"purchase_id" validate:"required"`
	PeriodID    int64                 `json:"period_id" validate:"required"`
	Date        time.Time             `json:"date" validate:"required"`
	TotalAmount float64               `json:"total_amount" validate:"required,gt=0"`
	OnCredit    bool                  `json:"on_credit"`
	Items       []purchaseItemRequest `json:"items" validate:"required,min=1,dive"`
	ActorID     int64                 `json:"actor_id" validate:"required"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := PurchaseInput{
		OrgID:       req.OrgID,
		PurchaseID:  req.PurchaseID,
		PeriodID:    req.PeriodID,
		Date:        req.Date,
		TotalAmount: req.TotalAmount,
		OnCredit:    req.OnCredit,
		ActorID:     req.ActorID,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, PurchaseItem{ItemID: item.ItemID, Quantity: item.Quantity, UnitCost: item.UnitCost})
	}
	entry, err := h.service.PostPurchase(r.Context(), input)
	h.metrics.ObservePosting("purchase", err)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

type saleItemRequest struct {
	ItemID   int64   `json:"item_id" validate:"required"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
}

type saleRequest struct {
	OrgID         int64             `json:"org_id" validate:"required"`
	InvoiceID     uuid.UUID         `json:"invoice_id" validate:"required"`
	PeriodID      int64             `json:"period_id" validate:"required"`
	Date          time.Time         `json:"date" validate:"required"`
	TotalAmount   float64           `json:"total_amount" validate:"required,gt=0"`
	OnCredit      bool              `json:"on_credit"`
	CostingMethod string            `json:"costing_method" validate:"required"`
	Items         []saleItemRequest `json:"items" validate:"required,min=1,dive"`
	ActorID       int64             `json:"actor_id" validate:"required"`
}

func (h *Handler) handleSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := SaleInput{
		OrgID:         req.OrgID,
		InvoiceID:     req.InvoiceID,
		PeriodID:      req.PeriodID,
		Date:          req.Date,
		TotalAmount:   req.TotalAmount,
		OnCredit:      req.OnCredit,
		CostingMethod: stockledger.CostingMethod(req.CostingMethod),
		ActorID:       req.ActorID,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, SaleItem{ItemID: item.ItemID, Quantity: item.Quantity})
	}
	result, err := h.service.PostSale(r.Context(), input)
	h.metrics.ObservePosting("sale", err)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

type paymentRequest struct {
	OrgID     int64     `json:"org_id" validate:"required"`
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
	PeriodID  int64     `json:"period_id" validate:"required"`
	Date      time.Time `json:"date" validate:"required"`
	Amount    float64   `json:"amount" validate:"required,gt=0"`
	Kind      string    `json:"kind" validate:"required,oneof=SUPPLIER CUSTOMER"`
	Channel   string    `json:"channel" validate:"required,oneof=CASH BANK"`
	ActorID   int64     `json:"actor_id" validate:"required"`
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.PostPayment(r.Context(), PaymentInput{
		OrgID:     req.OrgID,
		PaymentID: req.PaymentID,
		PeriodID:  req.PeriodID,
		Date:      req.Date,
		Amount:    req.Amount,
		Kind:      PaymentKind(req.Kind),
		Channel:   PaymentChannel(req.Channel),
		ActorID:   req.ActorID,
	})
	h.metrics.ObservePosting("payment", err)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, periods.ErrPeriodNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, periods.ErrPeriodLocked), errors.Is(err, periods.ErrPeriodClosed):
		httpx.Problem(w, http.StatusConflict, "Period Not Open", err.Error())
	case errors.Is(err, stockledger.ErrInsufficientStock), errors.Is(err, stockledger.ErrInsufficientInventory):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, accounts.ErrAccountNotConfigured):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Configuration Error", err.Error())
	case errors.Is(err, journal.ErrUnbalanced), errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrNoItems), errors.Is(err, ErrUnknownPaymentKind), errors.Is(err, ErrUnknownChannel):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("posting request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
