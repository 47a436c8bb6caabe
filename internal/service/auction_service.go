package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/tract-board/internal/model"
	"github.com/nurpe/tract-board/internal/snapshot"
	"github.com/nurpe/tract-board/internal/store"
)

type ExcelGenerator interface {
	Generate(snap model.Snapshot) ([]byte, error)
}

type PDFGenerator interface {
	Generate(snap model.Snapshot) ([]byte, error)
}

// AuctionService sits between the handlers and the store: it normalizes
// unit-tagged amounts, applies the mutation, and publishes the resulting
// snapshot exactly once per successful operation, after the store's lock
// has been released.
type AuctionService struct {
	store     *store.Store
	publisher *snapshot.Publisher
	excel     ExcelGenerator
	pdf       PDFGenerator
	log       zerolog.Logger
}

func NewAuctionService(st *store.Store, pub *snapshot.Publisher, excel ExcelGenerator, pdf PDFGenerator, log zerolog.Logger) *AuctionService {
	return &AuctionService{
		store:     st,
		publisher: pub,
		excel:     excel,
		pdf:       pdf,
		log:       log,
	}
}

type PlaceBidInput struct {
	TractID string
	Amount  string
	Unit    string
}

type RequestBudgetInput struct {
	TractID string
	Amount  string
	Unit    string
}

type ApproveInput struct {
	TractID   string
	NewBudget string
	Unit      string
}

type EditTractInput struct {
	TractID   string
	MaxBudget *string
	Unit      string
	Label     *string
}

type AddTractInput struct {
	TractID    string
	Label      string
	CurrentBid string
	MaxBudget  string
	Unit       string
}

// MutationResult is returned to the action handler: the version the
// mutation produced plus a user-visible feedback message.
type MutationResult struct {
	Version uint64
	Message string
}

type TractOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type ExportResult struct {
	FileName string
	Content  []byte
}

func (s *AuctionService) PlaceBid(in PlaceBidInput) (*MutationResult, error) {
	unit, err := model.ParseUnit(in.Unit)
	if err != nil {
		return nil, err
	}
	amount, err := model.ParseAmount(in.Amount, unit)
	if err != nil {
		return nil, err
	}

	state, err := s.store.PlaceBid(in.TractID, amount)
	if err != nil {
		return nil, err
	}
	snap := s.publisher.Publish(state)

	s.log.Info().Str("tract", in.TractID).Str("bid", amount.String()).Msg("bid updated")
	return &MutationResult{
		Version: snap.Version,
		Message: fmt.Sprintf("Updated %s to %s.", in.TractID, currency(amount)),
	}, nil
}

func (s *AuctionService) SetHighBidder(tractID string, high bool) (*MutationResult, error) {
	state, err := s.store.SetHighBidder(tractID, high)
	if err != nil {
		return nil, err
	}
	snap := s.publisher.Publish(state)

	status := "NO"
	if high {
		status = "YES"
	}
	s.log.Info().Str("tract", tractID).Bool("high_bidder", high).Msg("high bidder toggled")
	return &MutationResult{
		Version: snap.Version,
		Message: fmt.Sprintf("High bidder status set to %s for %s.", status, tractID),
	}, nil
}

func (s *AuctionService) RequestBudget(in RequestBudgetInput) (*MutationResult, error) {
	unit, err := model.ParseUnit(in.Unit)
	if err != nil {
		return nil, err
	}
	amount, err := model.ParseAmount(in.Amount, unit)
	if err != nil {
		return nil, err
	}

	state, err := s.store.RequestBudget(in.TractID, amount, unit)
	if err != nil {
		return nil, err
	}
	snap := s.publisher.Publish(state)

	s.log.Info().Str("tract", in.TractID).Str("requested", amount.String()).Str("unit", string(unit)).Msg("budget increase requested")
	return &MutationResult{
		Version: snap.Version,
		Message: fmt.Sprintf("Requested budget of %s for %s.", currency(amount), in.TractID),
	}, nil
}

func (s *AuctionService) Approve(in ApproveInput) (*MutationResult, error) {
	var newMax *decimal.Decimal
	if strings.TrimSpace(in.NewBudget) != "" {
		unit, err := model.ParseUnit(in.Unit)
		if err != nil {
			return nil, err
		}
		amount, err := model.ParseAmount(in.NewBudget, unit)
		if err != nil {
			return nil, err
		}
		newMax = &amount
	}

	state, err := s.store.Approve(in.TractID, newMax)
	if err != nil {
		return nil, err
	}
	snap := s.publisher.Publish(state)

	s.log.Info().Str("tract", in.TractID).Msg("over-budget spend approved")
	return &MutationResult{
		Version: snap.Version,
		Message: fmt.Sprintf("Approved over-budget spend for %s.", in.TractID),
	}, nil
}

func (s *AuctionService) EditTract(in EditTractInput) (*MutationResult, error) {
	var fields store.EditFields
	if in.MaxBudget != nil {
		unit, err := model.ParseUnit(in.Unit)
		if err != nil {
			return nil, err
		}
		amount, err := model.ParseAmount(*in.MaxBudget, unit)
		if err != nil {
			return nil, err
		}
		fields.MaxBudget = &amount
	}
	fields.Label = in.Label

	state, err := s.store.EditTract(in.TractID, fields)
	if err != nil {
		return nil, err
	}
	snap := s.publisher.Publish(state)

	s.log.Info().Str("tract", in.TractID).Msg("tract edited")
	return &MutationResult{
		Version: snap.Version,
		Message: fmt.Sprintf("Saved changes to %s.", in.TractID),
	}, nil
}

func (s *AuctionService) AddTract(in AddTractInput) (*MutationResult, error) {
	unit, err := model.ParseUnit(in.Unit)
	if err != nil {
		return nil, err
	}
	bid, err := model.ParseAmount(orZero(in.CurrentBid), unit)
	if err != nil {
		return nil, err
	}
	budget, err := model.ParseAmount(orZero(in.MaxBudget), unit)
	if err != nil {
		return nil, err
	}

	state, err := s.store.AddTract(in.TractID, store.AddFields{
		Label:      in.Label,
		CurrentBid: bid,
		MaxBudget:  budget,
	})
	if err != nil {
		return nil, err
	}
	snap := s.publisher.Publish(state)

	s.log.Info().Str("tract", in.TractID).Str("bid", bid.String()).Str("max", budget.String()).Msg("tract added")
	return &MutationResult{
		Version: snap.Version,
		Message: fmt.Sprintf("Added tract %s.", in.TractID),
	}, nil
}

func (s *AuctionService) ResetAll() *MutationResult {
	state := s.store.ResetAll()
	snap := s.publisher.Publish(state)

	s.log.Info().Msg("state reset to sample values")
	return &MutationResult{
		Version: snap.Version,
		Message: "State reset to sample values.",
	}
}

func (s *AuctionService) Snapshot() model.Snapshot {
	return s.publisher.Latest()
}

func (s *AuctionService) Poll(lastSeen uint64) (model.Snapshot, bool) {
	return s.publisher.Poll(lastSeen)
}

// TractOptions feeds the UI's tract dropdowns.
func (s *AuctionService) TractOptions() []TractOption {
	snap := s.publisher.Latest()
	options := make([]TractOption, 0, len(snap.Tracts))
	for id, view := range snap.Tracts {
		options = append(options, TractOption{ID: id, Label: view.Label})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].ID < options[j].ID })
	return options
}

func (s *AuctionService) ExportExcel() (*ExportResult, error) {
	snap := s.publisher.Latest()
	content, err := s.excel.Generate(snap)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName: buildFileName(snap, "xlsx"),
		Content:  content,
	}, nil
}

func (s *AuctionService) ExportPDF() (*ExportResult, error) {
	snap := s.publisher.Latest()
	content, err := s.pdf.Generate(snap)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName: buildFileName(snap, "pdf"),
		Content:  content,
	}, nil
}

func buildFileName(snap model.Snapshot, ext string) string {
	return fmt.Sprintf("tract-bids-v%d-%s.%s", snap.Version, snap.GeneratedAt.Format("20060102"), ext)
}

func orZero(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "0"
	}
	return raw
}

// currency renders a scaled amount the way the dashboard shows money.
func currency(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return fmt.Sprintf("%s$%s.%s", sign, b.String(), frac)
}
