package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TractView is the serializable read model of one tract.
type TractView struct {
	Label              string           `json:"label"`
	CurrentBid         decimal.Decimal  `json:"current_bid"`
	MaxBudget          decimal.Decimal  `json:"max_budget"`
	ApprovedOverBudget bool             `json:"approved_over_budget"`
	RequestedBudget    *decimal.Decimal `json:"requested_budget"`
	RequestedUnit      *Unit            `json:"requested_unit"`
	HighBidder         bool             `json:"high_bidder"`
	LastUpdated        time.Time        `json:"last_updated"`
}

// Snapshot is an immutable, versioned copy of the whole collection.
// Readers only ever see snapshots, never the live records.
type Snapshot struct {
	Version     uint64               `json:"version"`
	GeneratedAt time.Time            `json:"generated_at"`
	Tracts      map[string]TractView `json:"tracts"`
}

// PctOfBudget reports how much of the authorized budget the current bid
// consumes, clamped to [0, 150] for gauge display. A zero max budget
// reports 0 to avoid division errors.
func (v TractView) PctOfBudget() float64 {
	if !v.MaxBudget.IsPositive() {
		return 0
	}
	pct, _ := v.CurrentBid.Div(v.MaxBudget).Mul(decimal.NewFromInt(100)).Round(1).Float64()
	if pct < 0 {
		return 0
	}
	if pct > 150 {
		return 150
	}
	return pct
}

// NewSnapshot builds a snapshot from a set of records the caller owns
// (already copied out of the store).
func NewSnapshot(version uint64, generatedAt time.Time, records map[string]*Tract) Snapshot {
	tracts := make(map[string]TractView, len(records))
	for id, t := range records {
		view := TractView{
			Label:              t.Label,
			CurrentBid:         t.CurrentBid,
			MaxBudget:          t.MaxBudget,
			ApprovedOverBudget: t.ApprovedOverBudget,
			HighBidder:         t.HighBidder,
			LastUpdated:        t.LastUpdated,
		}
		if t.Request != nil {
			amount := t.Request.Amount
			unit := t.Request.Unit
			view.RequestedBudget = &amount
			view.RequestedUnit = &unit
		}
		tracts[id] = view
	}
	return Snapshot{Version: version, GeneratedAt: generatedAt, Tracts: tracts}
}
