package posting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/corefin/corefin/internal/accounts"
	"github.com/corefin/corefin/internal/journal"
	"github.com/corefin/corefin/internal/periods"
	"github.com/corefin/corefin/internal/shared"
	"github.com/corefin/corefin/internal/stockledger"
)

// fakeState mimics the database. The unit of work mutates a clone and only
// publishes it on commit, so rollback behavior is observable in tests.
type fakeState struct {
	periods     map[int64]periods.Period
	journal     map[int64]*journal.Entry
	stock       []stockledger.Entry
	itemQty     map[int64]float64
	seq         int64
	nextEntryID int64
	nextStockID int64
}

func newFakeState() *fakeState {
	return &fakeState{
		periods: make(map[int64]periods.Period),
		journal: make(map[int64]*journal.Entry),
		itemQty: make(map[int64]float64),
	}
}

func (s *fakeState) clone() *fakeState {
	out := &fakeState{
		periods:     make(map[int64]periods.Period, len(s.periods)),
		journal:     make(map[int64]*journal.Entry, len(s.journal)),
		stock:       append([]stockledger.Entry(nil), s.stock...),
		itemQty:     make(map[int64]float64, len(s.itemQty)),
		seq:         s.seq,
		nextEntryID: s.nextEntryID,
		nextStockID: s.nextStockID,
	}
	for id, p := range s.periods {
		out.periods[id] = p
	}
	for id, e := range s.journal {
		copied := *e
		copied.Lines = append([]journal.Line(nil), e.Lines...)
		out.journal[id] = &copied
	}
	for id, qty := range s.itemQty {
		out.itemQty[id] = qty
	}
	return out
}

func (s *fakeState) seedStock(itemID int64, day int, qty, cost float64) {
	s.nextStockID++
	balance := s.itemQty[itemID] + qty
	s.stock = append(s.stock, stockledger.Entry{
		ID:             s.nextStockID,
		OrgID:          1,
		ItemID:         itemID,
		Type:           stockledger.TransactionTypePurchase,
		Source:         shared.SourceDocument{Type: shared.SourceTypePurchase, ID: uuid.New()},
		QuantityChange: qty,
		RunningBalance: balance,
		CostPerUnit:    cost,
		TotalValue:     qty * cost,
		OccurredAt:     marchDay(day),
		CreatedBy:      1,
	})
	s.itemQty[itemID] = balance
}

type fakeUOW struct {
	state *fakeState
}

func (u *fakeUOW) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	staged := u.state.clone()
	tx := Tx{
		Journal: &fakeJournalTx{state: staged},
		Stock:   &fakeStockTx{state: staged},
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	u.state = staged
	return nil
}

type fakeJournalTx struct {
	state *fakeState
}

func (tx *fakeJournalTx) Periods() periods.TxRepository {
	return &fakePeriodsTx{state: tx.state}
}

func (tx *fakeJournalTx) NextEntryNumber(ctx context.Context, orgID int64, year int) (string, error) {
	tx.state.seq++
	return journal.FormatEntryNumber(year, tx.state.seq), nil
}

func (tx *fakeJournalTx) InsertEntry(ctx context.Context, e journal.Entry) (journal.Entry, error) {
	tx.state.nextEntryID++
	e.ID = tx.state.nextEntryID
	stored := e
	tx.state.journal[e.ID] = &stored
	return e, nil
}

func (tx *fakeJournalTx) InsertLines(ctx context.Context, entryID int64, lines []journal.Line) ([]journal.Line, error) {
	out := make([]journal.Line, 0, len(lines))
	for i, line := range lines {
		line.ID = int64(i + 1)
		line.EntryID = entryID
		out = append(out, line)
	}
	tx.state.journal[entryID].Lines = out
	return out, nil
}

func (tx *fakeJournalTx) GetForUpdate(ctx context.Context, orgID, entryID int64) (journal.Entry, error) {
	return journal.Entry{}, errors.New("not used")
}

func (tx *fakeJournalTx) MarkPosted(ctx context.Context, entryID, actorID int64, at time.Time) error {
	return errors.New("not used")
}

func (tx *fakeJournalTx) MarkVoid(ctx context.Context, entryID, actorID int64, at time.Time, reason string) error {
	return errors.New("not used")
}

type fakePeriodsTx struct {
	state *fakeState
}

func (tx *fakePeriodsTx) GetForUpdate(ctx context.Context, periodID int64) (periods.Period, error) {
	p, ok := tx.state.periods[periodID]
	if !ok {
		return periods.Period{}, periods.ErrPeriodNotFound
	}
	return p, nil
}

func (tx *fakePeriodsTx) AnyOverlap(ctx context.Context, orgID int64, start, end time.Time) (bool, error) {
	return false, nil
}

func (tx *fakePeriodsTx) Insert(ctx context.Context, p periods.Period) (periods.Period, error) {
	return periods.Period{}, errors.New("not used")
}

func (tx *fakePeriodsTx) UpdateStatus(ctx context.Context, p periods.Period) error {
	return errors.New("not used")
}

func (tx *fakePeriodsTx) UpdateNotes(ctx context.Context, periodID int64, notes string) error {
	return errors.New("not used")
}

type fakeStockTx struct {
	state *fakeState
}

func (tx *fakeStockTx) LockItemStock(ctx context.Context, orgID, itemID int64) (float64, error) {
	return tx.state.itemQty[itemID], nil
}

func (tx *fakeStockTx) GetLatest(ctx context.Context, orgID, itemID int64, asOf time.Time) (stockledger.Entry, error) {
	for i := len(tx.state.stock) - 1; i >= 0; i-- {
		e := tx.state.stock[i]
		if e.OrgID == orgID && e.ItemID == itemID && !e.OccurredAt.After(asOf) {
			return e, nil
		}
	}
	return stockledger.Entry{}, stockledger.ErrEntryNotFound
}

func (tx *fakeStockTx) FindByIdempotencyKey(ctx context.Context, orgID int64, key string) (stockledger.Entry, error) {
	for _, e := range tx.state.stock {
		if e.OrgID == orgID && e.IdempotencyKey == key {
			return e, nil
		}
	}
	return stockledger.Entry{}, stockledger.ErrEntryNotFound
}

func (tx *fakeStockTx) InsertEntry(ctx context.Context, e stockledger.Entry) (stockledger.Entry, error) {
	tx.state.nextStockID++
	e.ID = tx.state.nextStockID
	tx.state.stock = append(tx.state.stock, e)
	return e, nil
}

func (tx *fakeStockTx) UpdateItemStock(ctx context.Context, orgID, itemID int64, qty float64) error {
	tx.state.itemQty[itemID] = qty
	return nil
}

func (tx *fakeStockTx) ListForCosting(ctx context.Context, orgID, itemID int64, asOf time.Time) ([]stockledger.Entry, error) {
	var out []stockledger.Entry
	for _, e := range tx.state.stock {
		if e.OrgID == orgID && e.ItemID == itemID && !e.OccurredAt.After(asOf) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeRoles struct {
	set accounts.RoleSet
}

func (f fakeRoles) Resolve(ctx context.Context, orgID int64) (accounts.RoleSet, error) {
	return f.set, nil
}

func fullRoleSet() accounts.RoleSet {
	roles := []accounts.Role{
		accounts.RoleCash,
		accounts.RoleBank,
		accounts.RoleAccountsReceivable,
		accounts.RoleInventory,
		accounts.RoleAccountsPayable,
		accounts.RoleSalesRevenue,
		accounts.RoleCOGS,
	}
	set := accounts.RoleSet{Accounts: make(map[accounts.Role]accounts.Account, len(roles))}
	for i, role := range roles {
		set.Accounts[role] = accounts.Account{
			ID:    int64(i + 1),
			OrgID: 1,
			Code:  accounts.DefaultRoleCodes[role],
			Name:  string(role),
		}
	}
	return set
}

func marchDay(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func seedOpenPeriod(state *fakeState, status periods.Status) {
	state.periods[1] = periods.Period{
		ID:         1,
		OrgID:      1,
		Name:       "Mar 2025",
		FiscalYear: 2025,
		StartDate:  marchDay(1),
		EndDate:    marchDay(31),
		Status:     status,
	}
}

func newTestService(state *fakeState) (*Service, *fakeUOW) {
	uow := &fakeUOW{state: state}
	svc := NewService(uow, fakeRoles{set: fullRoleSet()}, nil)
	svc.WithNow(func() time.Time { return marchDay(15) })
	return svc, uow
}

func accountFor(t *testing.T, role accounts.Role) accounts.Account {
	t.Helper()
	acc, err := fullRoleSet().Get(role)
	require.NoError(t, err)
	return acc
}

func TestPostPurchaseCash(t *testing.T) {
	state := newFakeState()
	seedOpenPeriod(state, periods.StatusOpen)
	svc, uow := newTestService(state)

	purchaseID := uuid.New()
	entry, err := svc.PostPurchase(context.Background(), PurchaseInput{
		OrgID:       1,
		PurchaseID:  purchaseID,
		PeriodID:    1,
		Date:        marchDay(10),
		TotalAmount: 500,
		Items:       []PurchaseItem{{ItemID: 42, Quantity: 10, UnitCost: 50}},
		ActorID:     7,
	})
	require.NoError(t, err)
	require.Equal(t, journal.StatusPosted, entry.Status)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, accountFor(t, accounts.RoleInventory).ID, entry.Lines[0].AccountID)
	require.InDelta(t, 500.0, entry.Lines[0].Debit, 0.001)
	require.Equal(t, accountFor(t, accounts.RoleCash).ID, entry.Lines[1].AccountID)
	require.InDelta(t, 500.0, entry.Lines[1].Credit, 0.001)

	require.Len(t, uow.state.stock, 1)
	row := uow.state.stock[0]
	require.Equal(t, stockledger.TransactionTypePurchase, row.Type)
	require.InDelta(t, 10.0, row.QuantityChange, 0.001)
	require.InDelta(t, 10.0, row.RunningBalance, 0.001)
	require.Equal(t, fmt.Sprintf("purchase:%s:item:42", purchaseID), row.IdempotencyKey)
	require.InDelta(t, 10.0, uow.state.itemQty[42], 0.001)
}

func TestPostPurchaseOnCreditUsesPayable(t *testing.T) {
	state := newFakeState()
	seedOpenPeriod(state, periods.StatusOpen)
	svc, _ := newTestService(state)

	entry, err := svc.PostPurchase(context.Background(), PurchaseInput{
		OrgID:       1,
		PurchaseID:  uuid.New(),
		PeriodID:    1,
		Date:        marchDay(10),
		TotalAmount: 500,
		OnCredit:    true,
		Items:       []PurchaseItem{{ItemID: 42, Quantity: 10, UnitCost: 50}},
		ActorID:     7,
	})
	require.NoError(t, err)
	require.Equal(t, accountFor(t, accounts.RoleAccountsPayable).ID, entry.Lines[1].AccountID)
}

func TestPostSaleCreatesRevenueAndCOGSEntries(t *testing.T) {
	state := newFakeState()
	seedOpenPeriod(state, periods.StatusOpen)
	state.seedStock(42, 1, 10, 50)
	state.seedStock(42, 2, 10, 70)
	svc, uow := newTestService(state)

	invoiceID := uuid.New()
	result, err := svc.PostSale(context.Background(), SaleInput{
		OrgID:         1,
		InvoiceID:     invoiceID,
		PeriodID:      1,
		Date:          marchDay(12),
		TotalAmount:   1500,
		CostingMethod: stockledger.CostingFIFO,
		Items:         []SaleItem{{ItemID: 42, Quantity: 15}},
		ActorID:       7,
	})
	require.NoError(t, err)
	require.InDelta(t, 850.0, result.TotalCOGS, 0.01)

	// Both entries reference the same invoice.
	require.Equal(t, result.RevenueEntry.Source, result.COGSEntry.Source)
	require.Equal(t, invoiceID, result.RevenueEntry.Source.ID)

	require.Equal(t, accountFor(t, accounts.RoleCash).ID, result.RevenueEntry.Lines[0].AccountID)
	require.InDelta(t, 1500.0, result.RevenueEntry.Lines[0].Debit, 0.001)
	require.Equal(t, accountFor(t, accounts.RoleSalesRevenue).ID, result.RevenueEntry.Lines[1].AccountID)
	require.InDelta(t, 1500.0, result.RevenueEntry.Lines[1].Credit, 0.001)

	require.Equal(t, accountFor(t, accounts.RoleCOGS).ID, result.COGSEntry.Lines[0].AccountID)
	require.InDelta(t, 850.0, result.COGSEntry.Lines[0].Debit, 0.01)
	require.Equal(t, accountFor(t, accounts.RoleInventory).ID, result.COGSEntry.Lines[1].AccountID)
	require.InDelta(t, 850.0, result.COGSEntry.Lines[1].Credit, 0.01)

	require.Len(t, uow.state.stock, 3)
	sale := uow.state.stock[2]
	require.Equal(t, stockledger.TransactionTypeSale, sale.Type)
	require.InDelta(t, -15.0, sale.QuantityChange, 0.001)
	require.InDelta(t, 5.0, sale.RunningBalance, 0.001)
	require.InDelta(t, 56.67, sale.CostPerUnit, 0.01)
	require.InDelta(t, 5.0, uow.state.itemQty[42], 0.001)
}

func TestPostSaleOnCreditUsesReceivable(t *testing.T) {
	state := newFakeState()
	seedOpenPeriod(state, periods.StatusOpen)
	state.seedStock(42, 1, 10, 50)
	svc, _ := newTestService(state)

	result, err := svc.PostSale(context.Background(), SaleInput{
		OrgID:         1,
		InvoiceID:     uuid.New(),
		PeriodID:      1,
		Date:          marchDay(12),
		TotalAmount:   800,
		OnCredit:      true,
		CostingMethod: stockledger.CostingWeightedAverage,
		Items:         []SaleItem{{ItemID: 42, Quantity: 5}},
		ActorID:       7,
	})
	require.NoError(t, err)
	require.Equal(t, accountFor(t, accounts.RoleAccountsReceivable).ID, result.RevenueEntry.Lines[0].AccountID)
}

func TestPostSaleLockedPeriodPersistsNothing(t *testing.T) {
	state := newFakeState()
	seedOpenPeriod(state, periods.StatusLocked)
	state.seedStock(42, 1, 10, 50)
	svc, uow := newTestService(state)

	_, err := svc.PostSale(context.Background(), SaleInput{
		OrgID:         1,
		InvoiceID:     uuid.New(),
		PeriodID:      1,
		Date:          marchDay(12),
		TotalAmount:   500,
		CostingMethod: stockledger.CostingFIFO,
		Items:         []SaleItem{{ItemID: 42, Quantity: 5}},
		ActorID:       7,
	})
	require.ErrorIs(t, err, periods.ErrPeriodLocked)
	require.Empty(t, uow.state.journal)
	require.Len(t, uow.state.stock, 1)
}

func TestPostSaleInsufficientInventoryRollsBackRevenue(t *testing.T) {
	state := newFakeState()
	seedOpenPeriod(state, periods.StatusOpen)
	state.seedStock(42, 1, 10, 50)
	svc, uow := newTestService(state)

	_, err := svc.PostSale(context.Background(), SaleInput{
		OrgID:         1,
		InvoiceID:     uuid.New(),
		PeriodID:      1,
		Date:          marchDay(12),
		TotalAmount:   2000,
		CostingMethod: stockledger.CostingFIFO,
		Items:         []SaleItem{{ItemID: 42, Quantity: 20}},
		ActorID:       7,
	})
	require.ErrorIs(t, err, stockledger.ErrInsufficientInventory)

	// The revenue entry was created inside the transaction but must not
	// survive the rollback.
	require.Empty(t, uow.state.journal)
	require.Len(t, uow.state.stock, 1)
	require.InDelta(t, 10.0, uow.state.itemQty[42], 0.001)
}

func TestPostPaymentToSupplier(t *testing.T) {
	state := newFakeState()
	seedOpenPeriod(state, periods.StatusOpen)
	svc, _ := newTestService(state)

	entry, err := svc.PostPayment(context.Background(), PaymentInput{
		OrgID:     1,
		PaymentID: uuid.New(),
		PeriodID:  1,
		Date:      marchDay(20),
		Amount:    300,
		Kind:      PaymentToSupplier,
		Channel:   ChannelCash,
		ActorID:   7,
	})
	require.NoError(t, err)
	require.Equal(t, accountFor(t, accounts.RoleAccountsPayable).ID, entry.Lines[0].AccountID)
	require.InDelta(t, 300.0, entry.Lines[0].Debit, 0.001)
	require.Equal(t, accountFor(t, accounts.RoleCash).ID, entry.Lines[1].AccountID)
	require.InDelta(t, 300.0, entry.Lines[1].Credit, 0.001)
}

func TestPostPaymentFromCustomerViaBank(t *testing.T) {
	state := newFakeState()
	seedOpenPeriod(state, periods.StatusOpen)
	svc, _ := newTestService(state)

	entry, err := svc.PostPayment(context.Background(), PaymentInput{
		OrgID:     1,
		PaymentID: uuid.New(),
		PeriodID:  1,
		Date:      marchDay(20),
		Amount:    300,
		Kind:      PaymentFromCustomer,
		Channel:   ChannelBank,
		ActorID:   7,
	})
	require.NoError(t, err)
	require.Equal(t, accountFor(t, accounts.RoleBank).ID, entry.Lines[0].AccountID)
	require.Equal(t, accountFor(t, accounts.RoleAccountsReceivable).ID, entry.Lines[1].AccountID)
}

func TestPostPaymentValidation(t *testing.T) {
	svc, _ := newTestService(newFakeState())

	base := PaymentInput{
		OrgID: 1, PaymentID: uuid.New(), PeriodID: 1,
		Date: marchDay(20), Amount: 300, Kind: PaymentToSupplier, Channel: ChannelCash,
	}

	bad := base
	bad.Amount = 0
	_, err := svc.PostPayment(context.Background(), bad)
	require.ErrorIs(t, err, ErrInvalidAmount)

	bad = base
	bad.Kind = "WIRE"
	_, err = svc.PostPayment(context.Background(), bad)
	require.ErrorIs(t, err, ErrUnknownPaymentKind)

	bad = base
	bad.Channel = "CHECK"
	_, err = svc.PostPayment(context.Background(), bad)
	require.ErrorIs(t, err, ErrUnknownChannel)
}

func TestMissingRoleAccountIsFatal(t *testing.T) {
	state := newFakeState()
	seedOpenPeriod(state, periods.StatusOpen)
	set := fullRoleSet()
	delete(set.Accounts, accounts.RoleInventory)

	uow := &fakeUOW{state: state}
	svc := NewService(uow, fakeRoles{set: set}, nil)

	_, err := svc.PostPurchase(context.Background(), PurchaseInput{
		OrgID:       1,
		PurchaseID:  uuid.New(),
		PeriodID:    1,
		Date:        marchDay(10),
		TotalAmount: 500,
		Items:       []PurchaseItem{{ItemID: 42, Quantity: 10, UnitCost: 50}},
		ActorID:     7,
	})
	require.ErrorIs(t, err, accounts.ErrAccountNotConfigured)
	require.Empty(t, uow.state.journal)
	require.Empty(t, uow.state.stock)
}
