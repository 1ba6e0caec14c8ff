package stockledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bsm/redislock"
	"golang.org/x/sync/errgroup"

	"github.com/corefin/corefin/internal/shared"
)

var endOfTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLatest(ctx context.Context, orgID, itemID int64, asOf time.Time) (Entry, error)
	FindByIdempotencyKey(ctx context.Context, orgID int64, key string) (Entry, error)
	FindBySource(ctx context.Context, orgID int64, source shared.SourceDocument) ([]Entry, error)
	ListHistory(ctx context.Context, page HistoryPage) ([]Entry, error)
	ListItemIDs(ctx context.Context, orgID int64) ([]int64, error)
	GetItemStock(ctx context.Context, orgID, itemID int64) (float64, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Locker obtains distributed per-item locks. Satisfied by redislock.Client.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// Service coordinates stock ledger appends, balances and reconciliation.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	locker  Locker
	lockTTL time.Duration
	now     func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	LockTTL time.Duration
}

// NewService builds Service. locker may be nil when the database row lock is
// the only serialization required (single writer deployment).
func NewService(repo RepositoryPort, audit AuditPort, locker Locker, cfg ServiceConfig) *Service {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Service{repo: repo, audit: audit, locker: locker, lockTTL: ttl, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AppendInput describes a ledger append request.
type AppendInput struct {
	OrgID          int64
	ItemID         int64
	Type           TransactionType
	Source         shared.SourceDocument
	QuantityChange float64
	CostPerUnit    float64
	OccurredAt     time.Time
	ActorID        int64
	IdempotencyKey string
}

func (in AppendInput) validate() error {
	if in.OrgID == 0 || in.ItemID == 0 {
		return errors.New("stockledger: org and item required")
	}
	if _, ok := validTransactionTypes[in.Type]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTransactionType, in.Type)
	}
	if in.QuantityChange == 0 {
		return ErrInvalidQuantity
	}
	if in.CostPerUnit < 0 {
		return ErrInvalidUnitCost
	}
	return in.Source.Validate()
}

// Append creates one immutable ledger entry and mirrors the new balance onto
// the item stock cache. A duplicate idempotency key returns the previously
// stored entry without writing a new row.
func (s *Service) Append(ctx context.Context, input AppendInput) (Entry, error) {
	if err := input.validate(); err != nil {
		return Entry{}, err
	}
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, shared.ItemLockKey(input.OrgID, input.ItemID), s.lockTTL, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 20),
		})
		if err != nil {
			return Entry{}, fmt.Errorf("stockledger: obtain item lock: %w", err)
		}
		defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()
	}

	var entry Entry
	var replayed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, replayed, err = appendInTx(ctx, tx, input, s.now)
		return err
	})
	// Losing an insert race on the key aborts the transaction, so the
	// winner's row is fetched after rollback, outside of it.
	if errors.Is(err, ErrDuplicateIdempotencyKey) && input.IdempotencyKey != "" {
		existing, findErr := s.repo.FindByIdempotencyKey(ctx, input.OrgID, input.IdempotencyKey)
		if findErr != nil {
			return Entry{}, fmt.Errorf("stockledger: recover duplicate key %q: %w", input.IdempotencyKey, findErr)
		}
		return existing, nil
	}
	if err != nil {
		return Entry{}, err
	}
	if !replayed && s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			OrgID:    input.OrgID,
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("stockledger.%s", input.Type),
			Entity:   "stock_ledger_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"item_id":         input.ItemID,
				"quantity_change": input.QuantityChange,
				"running_balance": entry.RunningBalance,
				"source":          fmt.Sprintf("%s:%s", input.Source.Type, input.Source.ID),
			},
			At: s.now(),
		})
	}
	return entry, nil
}

// AppendTx runs the append algorithm inside an externally managed
// transaction. The posting orchestrator uses it so that journal entries and
// ledger rows commit or roll back together. A lost idempotency-key race
// surfaces as ErrDuplicateIdempotencyKey and rolls the whole unit of work
// back; a retried posting replays through the key pre-check.
func AppendTx(ctx context.Context, tx TxRepository, input AppendInput, now func() time.Time) (Entry, error) {
	if err := input.validate(); err != nil {
		return Entry{}, err
	}
	entry, _, err := appendInTx(ctx, tx, input, now)
	return entry, err
}

func appendInTx(ctx context.Context, tx TxRepository, input AppendInput, now func() time.Time) (Entry, bool, error) {
	if input.IdempotencyKey != "" {
		existing, err := tx.FindByIdempotencyKey(ctx, input.OrgID, input.IdempotencyKey)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, ErrEntryNotFound) {
			return Entry{}, false, err
		}
	}

	// The item stock row lock serializes concurrent appends to one item.
	if _, err := tx.LockItemStock(ctx, input.OrgID, input.ItemID); err != nil {
		return Entry{}, false, err
	}

	var prior float64
	latest, err := tx.GetLatest(ctx, input.OrgID, input.ItemID, endOfTime)
	switch {
	case err == nil:
		prior = latest.RunningBalance
	case errors.Is(err, ErrEntryNotFound):
		prior = 0
	default:
		return Entry{}, false, err
	}

	newBalance := prior + input.QuantityChange
	if newBalance < 0 {
		return Entry{}, false, fmt.Errorf("%w: have %.4f, change %.4f", ErrInsufficientStock, prior, input.QuantityChange)
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now().UTC()
	}
	entry := Entry{
		OrgID:          input.OrgID,
		ItemID:         input.ItemID,
		Type:           input.Type,
		Source:         input.Source,
		QuantityChange: input.QuantityChange,
		RunningBalance: newBalance,
		CostPerUnit:    input.CostPerUnit,
		TotalValue:     input.QuantityChange * input.CostPerUnit,
		OccurredAt:     occurredAt,
		CreatedBy:      input.ActorID,
		IdempotencyKey: input.IdempotencyKey,
	}
	// A unique violation here means a concurrent append won the key race.
	// The failed statement aborts the transaction, so recovery cannot
	// happen in-tx; the error propagates and the caller re-reads the
	// winner's row after rollback.
	inserted, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, false, err
	}
	if err := tx.UpdateItemStock(ctx, input.OrgID, input.ItemID, newBalance); err != nil {
		return Entry{}, false, err
	}
	return inserted, false, nil
}

// EntriesBySource returns every ledger row a business document produced, in
// append order. Used to trace a purchase or invoice back to its movements.
func (s *Service) EntriesBySource(ctx context.Context, orgID int64, source shared.SourceDocument) ([]Entry, error) {
	if orgID == 0 {
		return nil, errors.New("stockledger: org required")
	}
	if err := source.Validate(); err != nil {
		return nil, err
	}
	return s.repo.FindBySource(ctx, orgID, source)
}

// RunningBalance returns the item balance at or before asOf. Zero when the
// item has no entries.
func (s *Service) RunningBalance(ctx context.Context, orgID, itemID int64, asOf time.Time) (float64, error) {
	if asOf.IsZero() {
		asOf = s.now().UTC()
	}
	latest, err := s.repo.GetLatest(ctx, orgID, itemID, asOf)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return latest.RunningBalance, nil
}

// ReconcileStatus enumerates reconciliation outcomes.
type ReconcileStatus string

const (
	ReconcileOK       ReconcileStatus = "OK"
	ReconcileMismatch ReconcileStatus = "MISMATCH"
)

// ReconcileResult reports ledger balance vs the denormalized stock cache.
type ReconcileResult struct {
	OrgID         int64
	ItemID        int64
	LedgerBalance float64
	CachedQty     float64
	Status        ReconcileStatus
	Discrepancy   float64
}

// Reconcile compares the ledger-derived balance against the cached stock
// quantity. Read-only: mismatches are reported, never corrected, so the
// audit trail keeps its authority.
func (s *Service) Reconcile(ctx context.Context, orgID, itemID int64) (ReconcileResult, error) {
	ledger, err := s.RunningBalance(ctx, orgID, itemID, s.now().UTC())
	if err != nil {
		return ReconcileResult{}, err
	}
	cached, err := s.repo.GetItemStock(ctx, orgID, itemID)
	if err != nil {
		return ReconcileResult{}, err
	}
	result := ReconcileResult{
		OrgID:         orgID,
		ItemID:        itemID,
		LedgerBalance: ledger,
		CachedQty:     cached,
		Status:        ReconcileOK,
	}
	if diff := cached - ledger; diff != 0 {
		result.Status = ReconcileMismatch
		result.Discrepancy = diff
	}
	return result, nil
}

// ValuationLine is the per-item contribution to inventory value.
type ValuationLine struct {
	ItemID      int64
	Quantity    float64
	CostPerUnit float64
	Value       float64
}

// Valuation is the point-in-time total inventory value for an organization.
type Valuation struct {
	OrgID int64
	AsOf  time.Time
	Total float64
	Lines []ValuationLine
}

// Valuate computes inventory value at asOf: per item, the latest entry's
// running balance times its cost per unit, aggregated across all items.
func (s *Service) Valuate(ctx context.Context, orgID int64, asOf time.Time) (Valuation, error) {
	if asOf.IsZero() {
		asOf = s.now().UTC()
	}
	itemIDs, err := s.repo.ListItemIDs(ctx, orgID)
	if err != nil {
		return Valuation{}, err
	}

	lines := make([]ValuationLine, len(itemIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, itemID := range itemIDs {
		g.Go(func() error {
			latest, err := s.repo.GetLatest(gctx, orgID, itemID, asOf)
			if err != nil {
				if errors.Is(err, ErrEntryNotFound) {
					return nil
				}
				return err
			}
			lines[i] = ValuationLine{
				ItemID:      itemID,
				Quantity:    latest.RunningBalance,
				CostPerUnit: latest.CostPerUnit,
				Value:       latest.RunningBalance * latest.CostPerUnit,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Valuation{}, err
	}

	result := Valuation{OrgID: orgID, AsOf: asOf}
	for _, line := range lines {
		if line.ItemID == 0 {
			continue
		}
		result.Lines = append(result.Lines, line)
		result.Total += line.Value
	}
	sort.Slice(result.Lines, func(i, j int) bool { return result.Lines[i].ItemID < result.Lines[j].ItemID })
	return result, nil
}
