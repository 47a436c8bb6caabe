package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetRequest is an outstanding ask to raise a tract's max budget.
// Amount and Unit travel together so a unit can never be set without a value.
type BudgetRequest struct {
	Amount decimal.Decimal
	Unit   Unit
}

// Tract is the record for one auction lot. All amounts are canonical
// scaled values (unit already applied).
type Tract struct {
	ID                 string
	Label              string
	CurrentBid         decimal.Decimal
	MaxBudget          decimal.Decimal
	ApprovedOverBudget bool
	Request            *BudgetRequest
	HighBidder         bool
	LastUpdated        time.Time
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (t *Tract) Clone() *Tract {
	clone := *t
	if t.Request != nil {
		req := *t.Request
		clone.Request = &req
	}
	return &clone
}

// SampleTracts is the fixed collection the process starts with and that
// an admin reset restores.
func SampleTracts(now time.Time) map[string]*Tract {
	sample := []struct {
		id         string
		currentBid int64
		maxBudget  int64
	}{
		{"Tract 1", 120_000, 150_000},
		{"Tract 2", 210_500, 200_000},
		{"Tract 3", 95_250, 110_000},
	}

	tracts := make(map[string]*Tract, len(sample))
	for _, s := range sample {
		tracts[s.id] = &Tract{
			ID:          s.id,
			Label:       s.id,
			CurrentBid:  decimal.NewFromInt(s.currentBid),
			MaxBudget:   decimal.NewFromInt(s.maxBudget),
			LastUpdated: now,
		}
	}
	return tracts
}
