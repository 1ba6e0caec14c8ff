package stockledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func inflow(id int64, d int, qty, cost float64) Entry {
	return Entry{
		ID:             id,
		Type:           TransactionTypePurchase,
		QuantityChange: qty,
		CostPerUnit:    cost,
		TotalValue:     qty * cost,
		OccurredAt:     day(d),
	}
}

func outflow(id int64, d int, qty, cost float64) Entry {
	return Entry{
		ID:             id,
		Type:           TransactionTypeSale,
		QuantityChange: -qty,
		CostPerUnit:    cost,
		TotalValue:     -qty * cost,
		OccurredAt:     day(d),
	}
}

func TestFIFOConsumesOldestLayersFirst(t *testing.T) {
	entries := []Entry{
		inflow(1, 1, 10, 50),
		inflow(2, 2, 10, 70),
	}
	result, err := CalculateCOGS(entries, 15, day(3), CostingFIFO)
	require.NoError(t, err)
	require.InDelta(t, 850.0, result.TotalCOGS, 0.01)
	require.InDelta(t, 56.67, result.AverageCost, 0.01)
	require.Len(t, result.Layers, 2)
	require.InDelta(t, 10.0, result.Layers[0].Quantity, 0.0001)
	require.InDelta(t, 50.0, result.Layers[0].CostPerUnit, 0.0001)
	require.InDelta(t, 5.0, result.Layers[1].Quantity, 0.0001)
	require.InDelta(t, 70.0, result.Layers[1].CostPerUnit, 0.0001)
}

func TestLIFOConsumesNewestLayersFirst(t *testing.T) {
	entries := []Entry{
		inflow(1, 1, 10, 50),
		inflow(2, 2, 10, 70),
	}
	result, err := CalculateCOGS(entries, 15, day(3), CostingLIFO)
	require.NoError(t, err)
	require.InDelta(t, 10*70+5*50, result.TotalCOGS, 0.01)
	require.InDelta(t, 70.0, result.Layers[0].CostPerUnit, 0.0001)
	require.InDelta(t, 50.0, result.Layers[1].CostPerUnit, 0.0001)
}

func TestFIFOSkipsQuantityConsumedByPriorOutflows(t *testing.T) {
	entries := []Entry{
		inflow(1, 1, 10, 50),
		inflow(2, 2, 10, 70),
		outflow(3, 3, 8, 50),
	}
	result, err := CalculateCOGS(entries, 5, day(4), CostingFIFO)
	require.NoError(t, err)
	// 8 of the 10@50 layer were already sold: 2@50 + 3@70.
	require.InDelta(t, 2*50+3*70, result.TotalCOGS, 0.01)
	require.Len(t, result.Layers, 2)
	require.InDelta(t, 2.0, result.Layers[0].Quantity, 0.0001)
	require.InDelta(t, 3.0, result.Layers[1].Quantity, 0.0001)
}

func TestCOGSIgnoresLayersAfterSaleDate(t *testing.T) {
	entries := []Entry{
		inflow(1, 1, 10, 50),
		inflow(2, 10, 100, 10),
	}
	result, err := CalculateCOGS(entries, 5, day(5), CostingFIFO)
	require.NoError(t, err)
	require.InDelta(t, 250.0, result.TotalCOGS, 0.01)
}

func TestCOGSInsufficientInventory(t *testing.T) {
	entries := []Entry{inflow(1, 1, 10, 50)}
	_, err := CalculateCOGS(entries, 20, day(2), CostingFIFO)
	require.ErrorIs(t, err, ErrInsufficientInventory)

	_, err = CalculateCOGS(entries, 20, day(2), CostingWeightedAverage)
	require.ErrorIs(t, err, ErrInsufficientInventory)
}

func TestWeightedAverageBlendsCost(t *testing.T) {
	entries := []Entry{
		inflow(1, 1, 10, 50),
		inflow(2, 2, 10, 70),
	}
	result, err := CalculateCOGS(entries, 15, day(3), CostingWeightedAverage)
	require.NoError(t, err)
	require.InDelta(t, 60.0, result.AverageCost, 0.0001)
	require.InDelta(t, 900.0, result.TotalCOGS, 0.01)
	require.InDelta(t, 5.0, result.RemainingQty, 0.0001)
	require.InDelta(t, 300.0, result.RemainingValue, 0.01)
}

func TestCOGSRejectsNonPositiveQuantity(t *testing.T) {
	_, err := CalculateCOGS(nil, 0, day(1), CostingFIFO)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCOGSRejectsUnknownMethod(t *testing.T) {
	_, err := CalculateCOGS(nil, 1, day(1), "GUESS")
	require.Error(t, err)
}
