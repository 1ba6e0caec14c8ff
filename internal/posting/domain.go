package posting

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/corefin/corefin/internal/journal"
	"github.com/corefin/corefin/internal/stockledger"
)

// PaymentKind distinguishes the direction of a payment posting.
type PaymentKind string

const (
	// PaymentToSupplier settles an accounts payable balance.
	PaymentToSupplier PaymentKind = "SUPPLIER"
	// PaymentFromCustomer settles an accounts receivable balance.
	PaymentFromCustomer PaymentKind = "CUSTOMER"
)

// PaymentChannel selects the money account a payment moves through.
type PaymentChannel string

const (
	ChannelCash PaymentChannel = "CASH"
	ChannelBank PaymentChannel = "BANK"
)

var (
	// ErrInvalidAmount indicates a non-positive monetary amount.
	ErrInvalidAmount = errors.New("posting: amount must be positive")
	// ErrNoItems indicates a purchase or sale without item lines.
	ErrNoItems = errors.New("posting: at least one item required")
	// ErrUnknownPaymentKind indicates a payment direction outside the closed set.
	ErrUnknownPaymentKind = errors.New("posting: unknown payment kind")
	// ErrUnknownChannel indicates a money channel outside the closed set.
	ErrUnknownChannel = errors.New("posting: unknown payment channel")
)

// PurchaseItem is one received item line of a purchase.
type PurchaseItem struct {
	ItemID   int64
	Quantity float64
	UnitCost float64
}

// PurchaseInput describes a finalized purchase to post.
type PurchaseInput struct {
	OrgID       int64
	PurchaseID  uuid.UUID
	PeriodID    int64
	Date        time.Time
	TotalAmount float64
	// OnCredit posts against accounts payable instead of cash.
	OnCredit bool
	Items    []PurchaseItem
	ActorID  int64
}

func (in PurchaseInput) validate() error {
	if in.OrgID == 0 || in.PeriodID == 0 {
		return errors.New("posting: org and period required")
	}
	if in.PurchaseID == uuid.Nil {
		return errors.New("posting: purchase id required")
	}
	if in.TotalAmount <= 0 {
		return ErrInvalidAmount
	}
	if len(in.Items) == 0 {
		return ErrNoItems
	}
	for idx, item := range in.Items {
		if item.ItemID == 0 || item.Quantity <= 0 {
			return fmt.Errorf("posting: purchase item %d invalid", idx)
		}
		if item.UnitCost < 0 {
			return stockledger.ErrInvalidUnitCost
		}
	}
	return nil
}

// SaleItem is one sold item line of an invoice.
type SaleItem struct {
	ItemID   int64
	Quantity float64
}

// SaleInput describes an invoiced sale to post.
type SaleInput struct {
	OrgID       int64
	InvoiceID   uuid.UUID
	PeriodID    int64
	Date        time.Time
	TotalAmount float64
	// OnCredit posts against accounts receivable instead of cash.
	OnCredit      bool
	CostingMethod stockledger.CostingMethod
	Items         []SaleItem
	ActorID       int64
}

func (in SaleInput) validate() error {
	if in.OrgID == 0 || in.PeriodID == 0 {
		return errors.New("posting: org and period required")
	}
	if in.InvoiceID == uuid.Nil {
		return errors.New("posting: invoice id required")
	}
	if in.TotalAmount <= 0 {
		return ErrInvalidAmount
	}
	if len(in.Items) == 0 {
		return ErrNoItems
	}
	for idx, item := range in.Items {
		if item.ItemID == 0 || item.Quantity <= 0 {
			return fmt.Errorf("posting: sale item %d invalid", idx)
		}
	}
	switch in.CostingMethod {
	case stockledger.CostingFIFO, stockledger.CostingLIFO, stockledger.CostingWeightedAverage:
		return nil
	default:
		return fmt.Errorf("posting: unknown costing method %q", in.CostingMethod)
	}
}

// SaleResult reports the entries created by a sale posting.
type SaleResult struct {
	RevenueEntry journal.Entry
	COGSEntry    journal.Entry
	TotalCOGS    float64
}

// PaymentInput describes a recorded payment to post.
type PaymentInput struct {
	OrgID     int64
	PaymentID uuid.UUID
	PeriodID  int64
	Date      time.Time
	Amount    float64
	Kind      PaymentKind
	Channel   PaymentChannel
	ActorID   int64
}

func (in PaymentInput) validate() error {
	if in.OrgID == 0 || in.PeriodID == 0 {
		return errors.New("posting: org and period required")
	}
	if in.PaymentID == uuid.Nil {
		return errors.New("posting: payment id required")
	}
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	switch in.Kind {
	case PaymentToSupplier, PaymentFromCustomer:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPaymentKind, in.Kind)
	}
	switch in.Channel {
	case ChannelCash, ChannelBank:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChannel, in.Channel)
	}
	return nil
}
