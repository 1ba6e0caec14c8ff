package stockledger

import (
	"errors"
	"time"

	"github.com/corefin/corefin/internal/shared"
)

// TransactionType enumerates supported stock ledger movements.
type TransactionType string

const (
	TransactionTypePurchase       TransactionType = "PURCHASE"
	TransactionTypeSale           TransactionType = "SALE"
	TransactionTypePurchaseReturn TransactionType = "PURCHASE_RETURN"
	TransactionTypeSalesReturn    TransactionType = "SALES_RETURN"
	TransactionTypeAdjustmentIn   TransactionType = "ADJUSTMENT_IN"
	TransactionTypeAdjustmentOut  TransactionType = "ADJUSTMENT_OUT"
	TransactionTypeTransferIn     TransactionType = "TRANSFER_IN"
	TransactionTypeTransferOut    TransactionType = "TRANSFER_OUT"
	TransactionTypeDamage         TransactionType = "DAMAGE"
	TransactionTypeInitialStock   TransactionType = "INITIAL_STOCK"
)

var validTransactionTypes = map[TransactionType]struct{}{
	TransactionTypePurchase:       {},
	TransactionTypeSale:           {},
	TransactionTypePurchaseReturn: {},
	TransactionTypeSalesReturn:    {},
	TransactionTypeAdjustmentIn:   {},
	TransactionTypeAdjustmentOut:  {},
	TransactionTypeTransferIn:     {},
	TransactionTypeTransferOut:    {},
	TransactionTypeDamage:         {},
	TransactionTypeInitialStock:   {},
}

// Entry is one immutable record of a single inventory quantity/value change.
// Entries are never updated or deleted after creation.
type Entry struct {
	ID             int64
	OrgID          int64
	ItemID         int64
	Type           TransactionType
	Source         shared.SourceDocument
	QuantityChange float64
	RunningBalance float64
	CostPerUnit    float64
	TotalValue     float64
	OccurredAt     time.Time
	CreatedBy      int64
	IdempotencyKey string
	CreatedAt      time.Time
}

// Direction annotates history entries with flow orientation.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// AnnotatedEntry pairs a ledger entry with direction and absolute magnitude.
type AnnotatedEntry struct {
	Entry
	Direction Direction
	Magnitude float64
}

// Annotate derives the direction annotation for an entry.
func Annotate(e Entry) AnnotatedEntry {
	a := AnnotatedEntry{Entry: e, Magnitude: e.QuantityChange}
	if e.QuantityChange >= 0 {
		a.Direction = DirectionIn
	} else {
		a.Direction = DirectionOut
		a.Magnitude = -e.QuantityChange
	}
	return a
}

// inflowTypes feed COGS cost layers.
var inflowTypes = map[TransactionType]struct{}{
	TransactionTypePurchase:     {},
	TransactionTypeSalesReturn:  {},
	TransactionTypeAdjustmentIn: {},
	TransactionTypeInitialStock: {},
}

// IsCostLayerInflow reports whether the entry contributes a cost layer.
func IsCostLayerInflow(t TransactionType) bool {
	_, ok := inflowTypes[t]
	return ok
}

var (
	// ErrInsufficientStock indicates the append would drive the balance negative.
	ErrInsufficientStock = errors.New("stockledger: insufficient stock")
	// ErrInsufficientInventory indicates COGS layers cannot cover the sale quantity.
	ErrInsufficientInventory = errors.New("stockledger: insufficient inventory for costing")
	// ErrEntryNotFound indicates no ledger entry matches.
	ErrEntryNotFound = errors.New("stockledger: entry not found")
	// ErrInvalidQuantity indicates a zero quantity change.
	ErrInvalidQuantity = errors.New("stockledger: quantity change must be non zero")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("stockledger: unit cost must be >= 0")
	// ErrUnknownTransactionType indicates a movement kind outside the closed set.
	ErrUnknownTransactionType = errors.New("stockledger: unknown transaction type")
)
