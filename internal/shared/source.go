package shared

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SourceType enumerates the business documents ledger and journal records
// can trace to. The set is closed: unknown kinds are rejected at the
// boundary.
type SourceType string

const (
	SourceTypePurchase   SourceType = "PURCHASE"
	SourceTypeInvoice    SourceType = "INVOICE"
	SourceTypePayment    SourceType = "PAYMENT"
	SourceTypeAdjustment SourceType = "ADJUSTMENT"
	SourceTypeTransfer   SourceType = "TRANSFER"
	SourceTypeOpening    SourceType = "OPENING"
	SourceTypeManual     SourceType = "MANUAL"
)

var validSourceTypes = map[SourceType]struct{}{
	SourceTypePurchase:   {},
	SourceTypeInvoice:    {},
	SourceTypePayment:    {},
	SourceTypeAdjustment: {},
	SourceTypeTransfer:   {},
	SourceTypeOpening:    {},
	SourceTypeManual:     {},
}

// SourceDocument traces a record back to its originating business document.
type SourceDocument struct {
	Type SourceType `json:"type"`
	ID   uuid.UUID  `json:"id"`
}

// Validate checks the source document against the closed set of known kinds.
func (d SourceDocument) Validate() error {
	if _, ok := validSourceTypes[d.Type]; !ok {
		return fmt.Errorf("shared: unknown source type %q", d.Type)
	}
	if d.ID == uuid.Nil {
		return errors.New("shared: source document id required")
	}
	return nil
}

func (d SourceDocument) String() string {
	return fmt.Sprintf("%s:%s", d.Type, d.ID)
}
