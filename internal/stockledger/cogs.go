package stockledger

import (
	"fmt"
	"sort"
	"time"
)

// CostingMethod selects how cost of goods sold is derived from the ledger.
type CostingMethod string

const (
	CostingFIFO            CostingMethod = "FIFO"
	CostingLIFO            CostingMethod = "LIFO"
	CostingWeightedAverage CostingMethod = "WEIGHTED_AVERAGE"
)

// CostLayer records which historical inflow funded part of a sale.
type CostLayer struct {
	EntryID     int64
	Date        time.Time
	Quantity    float64
	CostPerUnit float64
	Cost        float64
}

// COGSResult is the cost basis assigned to the units sold.
type COGSResult struct {
	Method      CostingMethod
	TotalCOGS   float64
	AverageCost float64
	Layers      []CostLayer
	// Remaining quantity and value after the hypothetical sale, reported
	// for the weighted-average method.
	RemainingQty   float64
	RemainingValue float64
}

// CalculateCOGS derives the cost of goods sold for quantitySold units sold
// on saleDate, from the item's ledger entries. The function is pure so the
// posting orchestrator can run it against entries read inside its own
// transaction.
func CalculateCOGS(entries []Entry, quantitySold float64, saleDate time.Time, method CostingMethod) (COGSResult, error) {
	if quantitySold <= 0 {
		return COGSResult{}, fmt.Errorf("stockledger: quantity sold must be positive: %w", ErrInvalidQuantity)
	}
	switch method {
	case CostingFIFO:
		return layeredCOGS(entries, quantitySold, saleDate, false)
	case CostingLIFO:
		return layeredCOGS(entries, quantitySold, saleDate, true)
	case CostingWeightedAverage:
		return weightedAverageCOGS(entries, quantitySold, saleDate)
	default:
		return COGSResult{}, fmt.Errorf("stockledger: unknown costing method %q", method)
	}
}

// layeredCOGS implements FIFO and LIFO. Inflow entries at or before saleDate
// form cost layers; quantity already consumed by outflows strictly before
// saleDate is walked off the layers as an offset before consumption starts.
func layeredCOGS(entries []Entry, quantitySold float64, saleDate time.Time, newestFirst bool) (COGSResult, error) {
	var inflows []Entry
	var consumedBefore float64
	for _, e := range entries {
		if e.OccurredAt.After(saleDate) {
			continue
		}
		if IsCostLayerInflow(e.Type) && e.QuantityChange > 0 {
			inflows = append(inflows, e)
		} else if e.QuantityChange < 0 && e.OccurredAt.Before(saleDate) {
			consumedBefore += -e.QuantityChange
		}
	}
	sort.SliceStable(inflows, func(i, j int) bool {
		if newestFirst {
			return inflows[i].OccurredAt.After(inflows[j].OccurredAt)
		}
		return inflows[i].OccurredAt.Before(inflows[j].OccurredAt)
	})

	method := CostingFIFO
	if newestFirst {
		method = CostingLIFO
	}
	result := COGSResult{Method: method}

	remaining := quantitySold
	offset := consumedBefore
	for _, layer := range inflows {
		available := layer.QuantityChange
		if offset > 0 {
			if offset >= available {
				offset -= available
				continue
			}
			available -= offset
			offset = 0
		}
		if available <= 0 {
			continue
		}
		take := available
		if take > remaining {
			take = remaining
		}
		cost := take * layer.CostPerUnit
		result.Layers = append(result.Layers, CostLayer{
			EntryID:     layer.ID,
			Date:        layer.OccurredAt,
			Quantity:    take,
			CostPerUnit: layer.CostPerUnit,
			Cost:        cost,
		})
		result.TotalCOGS += cost
		remaining -= take
		if remaining <= 0 {
			break
		}
	}
	if remaining > 0 {
		return COGSResult{}, fmt.Errorf("%w: short %.4f of %.4f", ErrInsufficientInventory, remaining, quantitySold)
	}
	result.AverageCost = result.TotalCOGS / quantitySold
	return result, nil
}

// weightedAverageCOGS sums all quantity and value movement up to saleDate
// and prices the sale at the blended average cost.
func weightedAverageCOGS(entries []Entry, quantitySold float64, saleDate time.Time) (COGSResult, error) {
	var totalQty, totalValue float64
	for _, e := range entries {
		if e.OccurredAt.After(saleDate) {
			continue
		}
		totalQty += e.QuantityChange
		totalValue += e.TotalValue
	}
	if totalQty < quantitySold {
		return COGSResult{}, fmt.Errorf("%w: have %.4f, need %.4f", ErrInsufficientInventory, totalQty, quantitySold)
	}
	averageCost := 0.0
	if totalQty > 0 {
		averageCost = totalValue / totalQty
	}
	totalCOGS := averageCost * quantitySold
	return COGSResult{
		Method:         CostingWeightedAverage,
		TotalCOGS:      totalCOGS,
		AverageCost:    averageCost,
		RemainingQty:   totalQty - quantitySold,
		RemainingValue: totalValue - totalCOGS,
	}, nil
}
