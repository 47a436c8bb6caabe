package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/tract-board/internal/model"
)

// Store owns the shared tract collection. It is the only legal mutation
// surface; callers never reach the records directly. One lock covers the
// whole collection; every operation is a handful of O(1) field updates on
// one record.
//
// Each successful mutation returns a State: a deep copy of all records
// plus the mutation sequence that produced it, both taken while still
// holding the lock. The caller publishes after the lock is released, and
// the sequence lets the publisher order copies whose publication raced.
type Store struct {
	mu     sync.Mutex
	seq    uint64
	tracts map[string]*model.Tract
	now    func() time.Time
}

// State is a coherent copy of the collection. Seq increases by one per
// applied mutation, so of two copies the higher Seq is always the newer
// store state.
type State struct {
	Seq     uint64
	Records map[string]*model.Tract
}

// EditFields is the subset of a record an admin may overwrite directly.
// Administrative edits bypass live-auction side effects: they never touch
// approval, high-bidder, or an outstanding request.
type EditFields struct {
	MaxBudget *decimal.Decimal
	Label     *string
}

// AddFields are the initial values for an admin-added tract.
type AddFields struct {
	Label      string
	CurrentBid decimal.Decimal
	MaxBudget  decimal.Decimal
}

func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		tracts: model.SampleTracts(now()),
		now:    now,
	}
}

// PlaceBid sets the canonical asking price. A new bid always clears the
// approval and high-bidder flags and stamps LastUpdated.
func (s *Store) PlaceBid(id string, amount decimal.Decimal) (State, error) {
	if amount.IsNegative() {
		return State{}, fmt.Errorf("%w: bid must not be negative", model.ErrInvalidValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracts[id]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", model.ErrUnknownTract, id)
	}

	t.CurrentBid = amount
	t.LastUpdated = s.now()
	t.ApprovedOverBudget = false
	t.HighBidder = false
	clearSatisfiedRequest(t)
	return s.applyLocked(), nil
}

// SetHighBidder toggles the high-bidder flag and nothing else. The flag is
// only ever set by this explicit action; other mutations may reset it but
// never infer it.
func (s *Store) SetHighBidder(id string, high bool) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracts[id]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", model.ErrUnknownTract, id)
	}

	t.HighBidder = high
	return s.applyLocked(), nil
}

// RequestBudget records an outstanding ask to raise the max budget. The ask
// must exceed the current max budget or it is rejected outright.
func (s *Store) RequestBudget(id string, amount decimal.Decimal, unit model.Unit) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracts[id]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", model.ErrUnknownTract, id)
	}
	if amount.LessThanOrEqual(t.MaxBudget) {
		return State{}, fmt.Errorf("%w: requested %s, current max %s",
			model.ErrBudgetNotHigher, amount, t.MaxBudget)
	}

	t.Request = &model.BudgetRequest{Amount: amount, Unit: unit}
	t.ApprovedOverBudget = false
	return s.applyLocked(), nil
}

// Approve sanctions over-budget spend. When newMax is given the max budget
// is raised to it (never lowered); if the result covers the outstanding
// request, the request is cleared. High-bidder is never touched.
func (s *Store) Approve(id string, newMax *decimal.Decimal) (State, error) {
	if newMax != nil && newMax.IsNegative() {
		return State{}, fmt.Errorf("%w: budget must not be negative", model.ErrInvalidValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracts[id]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", model.ErrUnknownTract, id)
	}

	if newMax != nil && newMax.GreaterThan(t.MaxBudget) {
		t.MaxBudget = *newMax
	}
	t.ApprovedOverBudget = true
	clearSatisfiedRequest(t)
	return s.applyLocked(), nil
}

// EditTract overwrites fields directly as an administrative override.
func (s *Store) EditTract(id string, fields EditFields) (State, error) {
	if fields.MaxBudget != nil && fields.MaxBudget.IsNegative() {
		return State{}, fmt.Errorf("%w: max budget must not be negative", model.ErrInvalidValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracts[id]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", model.ErrUnknownTract, id)
	}

	if fields.MaxBudget != nil {
		t.MaxBudget = *fields.MaxBudget
	}
	if fields.Label != nil && strings.TrimSpace(*fields.Label) != "" {
		t.Label = strings.TrimSpace(*fields.Label)
	}
	return s.applyLocked(), nil
}

// AddTract creates a new record. Identifiers are immutable once created.
func (s *Store) AddTract(id string, fields AddFields) (State, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return State{}, fmt.Errorf("%w: tract id is required", model.ErrInvalidValue)
	}
	if fields.CurrentBid.IsNegative() || fields.MaxBudget.IsNegative() {
		return State{}, fmt.Errorf("%w: amounts must not be negative", model.ErrInvalidValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tracts[id]; exists {
		return State{}, fmt.Errorf("%w: %s", model.ErrDuplicateTract, id)
	}

	label := strings.TrimSpace(fields.Label)
	if label == "" {
		label = id
	}
	s.tracts[id] = &model.Tract{
		ID:          id,
		Label:       label,
		CurrentBid:  fields.CurrentBid,
		MaxBudget:   fields.MaxBudget,
		LastUpdated: s.now(),
	}
	return s.applyLocked(), nil
}

// ResetAll atomically replaces the whole collection with the sample set.
func (s *Store) ResetAll() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracts = model.SampleTracts(s.now())
	return s.applyLocked()
}

// Records returns a deep copy of the current collection for readers.
func (s *Store) Records() map[string]*model.Tract {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// State returns the current collection copy with its sequence, without
// counting as a mutation. Used to seed the publisher at startup.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Seq: s.seq, Records: s.copyLocked()}
}

// An outstanding request that the max budget already satisfies is stale;
// any bid or budget change drops it.
func clearSatisfiedRequest(t *model.Tract) {
	if t.Request != nil && t.MaxBudget.GreaterThanOrEqual(t.Request.Amount) {
		t.Request = nil
	}
}

func (s *Store) applyLocked() State {
	s.seq++
	return State{Seq: s.seq, Records: s.copyLocked()}
}

func (s *Store) copyLocked() map[string]*model.Tract {
	records := make(map[string]*model.Tract, len(s.tracts))
	for id, t := range s.tracts {
		records[id] = t.Clone()
	}
	return records
}
