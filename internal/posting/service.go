package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/corefin/corefin/internal/accounts"
	"github.com/corefin/corefin/internal/journal"
	"github.com/corefin/corefin/internal/shared"
	"github.com/corefin/corefin/internal/stockledger"
)

// RoleSource resolves the posting role accounts of an organization.
type RoleSource interface {
	Resolve(ctx context.Context, orgID int64) (accounts.RoleSet, error)
}

// AuditPort records orchestrated postings for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service translates business events into balanced journal entries and stock
// ledger rows. Every posting runs as one unit of work: on any failure nothing
// is persisted.
type Service struct {
	uow   UnitOfWork
	roles RoleSource
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the posting orchestrator.
func NewService(uow UnitOfWork, roles RoleSource, audit AuditPort) *Service {
	return &Service{uow: uow, roles: roles, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostPurchase records a finalized purchase: one balanced entry debiting
// Inventory and crediting Cash or Accounts Payable, plus one stock ledger
// inflow per received item.
func (s *Service) PostPurchase(ctx context.Context, input PurchaseInput) (journal.Entry, error) {
	if err := input.validate(); err != nil {
		return journal.Entry{}, err
	}
	roles, err := s.roles.Resolve(ctx, input.OrgID)
	if err != nil {
		return journal.Entry{}, err
	}
	inventory, err := roles.Get(accounts.RoleInventory)
	if err != nil {
		return journal.Entry{}, err
	}
	counterRole := accounts.RoleCash
	if input.OnCredit {
		counterRole = accounts.RoleAccountsPayable
	}
	counter, err := roles.Get(counterRole)
	if err != nil {
		return journal.Entry{}, err
	}

	source := shared.SourceDocument{Type: shared.SourceTypePurchase, ID: input.PurchaseID}
	var entry journal.Entry
	err = s.uow.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		entry, err = journal.CreateTx(ctx, tx.Journal, journal.CreateInput{
			OrgID:    input.OrgID,
			PeriodID: input.PeriodID,
			Date:     input.Date,
			Source:   source,
			Memo:     fmt.Sprintf("Purchase %s", input.PurchaseID),
			ActorID:  input.ActorID,
			AutoPost: true,
			Lines: []journal.LineInput{
				{AccountID: inventory.ID, Debit: input.TotalAmount, Description: "Inventory received"},
				{AccountID: counter.ID, Credit: input.TotalAmount, Description: counter.Name},
			},
		}, s.now)
		if err != nil {
			return err
		}
		for _, item := range input.Items {
			_, err := stockledger.AppendTx(ctx, tx.Stock, stockledger.AppendInput{
				OrgID:          input.OrgID,
				ItemID:         item.ItemID,
				Type:           stockledger.TransactionTypePurchase,
				Source:         source,
				QuantityChange: item.Quantity,
				CostPerUnit:    item.UnitCost,
				OccurredAt:     input.Date,
				ActorID:        input.ActorID,
				IdempotencyKey: fmt.Sprintf("purchase:%s:item:%d", input.PurchaseID, item.ItemID),
			}, s.now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return journal.Entry{}, err
	}
	s.record(ctx, input.OrgID, input.ActorID, "posting.purchase", source, map[string]any{
		"entry_number": entry.EntryNumber,
		"total":        input.TotalAmount,
		"items":        len(input.Items),
	})
	return entry, nil
}

// PostSale records an invoiced sale as two balanced entries in one unit of
// work: revenue (debit Cash or Accounts Receivable, credit Sales Revenue) and
// cost (debit COGS, credit Inventory), with one SALE ledger outflow per item
// priced by the requested costing method. Both entries share the invoice's
// source document.
func (s *Service) PostSale(ctx context.Context, input SaleInput) (SaleResult, error) {
	if err := input.validate(); err != nil {
		return SaleResult{}, err
	}
	roles, err := s.roles.Resolve(ctx, input.OrgID)
	if err != nil {
		return SaleResult{}, err
	}
	moneyRole := accounts.RoleCash
	if input.OnCredit {
		moneyRole = accounts.RoleAccountsReceivable
	}
	money, err := roles.Get(moneyRole)
	if err != nil {
		return SaleResult{}, err
	}
	revenue, err := roles.Get(accounts.RoleSalesRevenue)
	if err != nil {
		return SaleResult{}, err
	}
	cogsAccount, err := roles.Get(accounts.RoleCOGS)
	if err != nil {
		return SaleResult{}, err
	}
	inventory, err := roles.Get(accounts.RoleInventory)
	if err != nil {
		return SaleResult{}, err
	}

	source := shared.SourceDocument{Type: shared.SourceTypeInvoice, ID: input.InvoiceID}
	var result SaleResult
	err = s.uow.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		result.RevenueEntry, err = journal.CreateTx(ctx, tx.Journal, journal.CreateInput{
			OrgID:    input.OrgID,
			PeriodID: input.PeriodID,
			Date:     input.Date,
			Source:   source,
			Memo:     fmt.Sprintf("Sale %s", input.InvoiceID),
			ActorID:  input.ActorID,
			AutoPost: true,
			Lines: []journal.LineInput{
				{AccountID: money.ID, Debit: input.TotalAmount, Description: money.Name},
				{AccountID: revenue.ID, Credit: input.TotalAmount, Description: "Sales revenue"},
			},
		}, s.now)
		if err != nil {
			return err
		}

		for _, item := range input.Items {
			entries, err := tx.Stock.ListForCosting(ctx, input.OrgID, item.ItemID, input.Date)
			if err != nil {
				return err
			}
			cogs, err := stockledger.CalculateCOGS(entries, item.Quantity, input.Date, input.CostingMethod)
			if err != nil {
				return fmt.Errorf("posting: item %d: %w", item.ItemID, err)
			}
			result.TotalCOGS += cogs.TotalCOGS

			_, err = stockledger.AppendTx(ctx, tx.Stock, stockledger.AppendInput{
				OrgID:          input.OrgID,
				ItemID:         item.ItemID,
				Type:           stockledger.TransactionTypeSale,
				Source:         source,
				QuantityChange: -item.Quantity,
				CostPerUnit:    cogs.AverageCost,
				OccurredAt:     input.Date,
				ActorID:        input.ActorID,
				IdempotencyKey: fmt.Sprintf("invoice:%s:item:%d", input.InvoiceID, item.ItemID),
			}, s.now)
			if err != nil {
				return err
			}
		}

		result.COGSEntry, err = journal.CreateTx(ctx, tx.Journal, journal.CreateInput{
			OrgID:    input.OrgID,
			PeriodID: input.PeriodID,
			Date:     input.Date,
			Source:   source,
			Memo:     fmt.Sprintf("COGS for sale %s", input.InvoiceID),
			ActorID:  input.ActorID,
			AutoPost: true,
			Lines: []journal.LineInput{
				{AccountID: cogsAccount.ID, Debit: result.TotalCOGS, Description: "Cost of goods sold"},
				{AccountID: inventory.ID, Credit: result.TotalCOGS, Description: "Inventory consumed"},
			},
		}, s.now)
		return err
	})
	if err != nil {
		return SaleResult{}, err
	}
	s.record(ctx, input.OrgID, input.ActorID, "posting.sale", source, map[string]any{
		"revenue_entry": result.RevenueEntry.EntryNumber,
		"cogs_entry":    result.COGSEntry.EntryNumber,
		"total":         input.TotalAmount,
		"total_cogs":    result.TotalCOGS,
	})
	return result, nil
}

// PostPayment records a payment: paying a supplier debits Accounts Payable
// and credits Cash or Bank; receiving from a customer debits Cash or Bank and
// credits Accounts Receivable.
func (s *Service) PostPayment(ctx context.Context, input PaymentInput) (journal.Entry, error) {
	if err := input.validate(); err != nil {
		return journal.Entry{}, err
	}
	roles, err := s.roles.Resolve(ctx, input.OrgID)
	if err != nil {
		return journal.Entry{}, err
	}
	channelRole := accounts.RoleCash
	if input.Channel == ChannelBank {
		channelRole = accounts.RoleBank
	}
	channel, err := roles.Get(channelRole)
	if err != nil {
		return journal.Entry{}, err
	}

	var lines []journal.LineInput
	switch input.Kind {
	case PaymentToSupplier:
		payable, err := roles.Get(accounts.RoleAccountsPayable)
		if err != nil {
			return journal.Entry{}, err
		}
		lines = []journal.LineInput{
			{AccountID: payable.ID, Debit: input.Amount, Description: "Supplier payment"},
			{AccountID: channel.ID, Credit: input.Amount, Description: channel.Name},
		}
	case PaymentFromCustomer:
		receivable, err := roles.Get(accounts.RoleAccountsReceivable)
		if err != nil {
			return journal.Entry{}, err
		}
		lines = []journal.LineInput{
			{AccountID: channel.ID, Debit: input.Amount, Description: channel.Name},
			{AccountID: receivable.ID, Credit: input.Amount, Description: "Customer payment"},
		}
	}

	source := shared.SourceDocument{Type: shared.SourceTypePayment, ID: input.PaymentID}
	var entry journal.Entry
	err = s.uow.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		entry, err = journal.CreateTx(ctx, tx.Journal, journal.CreateInput{
			OrgID:    input.OrgID,
			PeriodID: input.PeriodID,
			Date:     input.Date,
			Source:   source,
			Memo:     fmt.Sprintf("Payment %s", input.PaymentID),
			ActorID:  input.ActorID,
			AutoPost: true,
			Lines:    lines,
		}, s.now)
		return err
	})
	if err != nil {
		return journal.Entry{}, err
	}
	s.record(ctx, input.OrgID, input.ActorID, "posting.payment", source, map[string]any{
		"entry_number": entry.EntryNumber,
		"amount":       input.Amount,
		"kind":         string(input.Kind),
	})
	return entry, nil
}

func (s *Service) record(ctx context.Context, orgID, actorID int64, action string, source shared.SourceDocument, meta map[string]any) {
	if s.audit == nil {
		return
	}
	meta["source"] = source.String()
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    orgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "posting",
		EntityID: source.ID.String(),
		Meta:     meta,
		At:       s.now(),
	})
}
