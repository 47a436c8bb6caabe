package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/tract-board/internal/excel"
	"github.com/nurpe/tract-board/internal/model"
	"github.com/nurpe/tract-board/internal/pdf"
	"github.com/nurpe/tract-board/internal/snapshot"
	"github.com/nurpe/tract-board/internal/store"
)

func newTestService() *AuctionService {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return base }

	st := store.New(now)
	pub := snapshot.New(500*time.Millisecond, 4, now, zerolog.Nop())
	svc := NewAuctionService(st, pub, excel.NewGenerator(), pdf.NewGenerator(), zerolog.Nop())
	pub.Publish(st.State())
	return svc
}

// The full monitor/bidder/approver round trip from the dashboard workflow.
func TestBidRequestApproveScenario(t *testing.T) {
	svc := newTestService()

	// Bidder asks for 150000 against Tract 1 (bid 120000, max 150000 in the
	// sample set, so ask for more than the max).
	result, err := svc.RequestBudget(RequestBudgetInput{TractID: "Tract 1", Amount: "175000", Unit: "1"})
	require.NoError(t, err)
	assert.Contains(t, result.Message, "Tract 1")

	view := svc.Snapshot().Tracts["Tract 1"]
	require.NotNil(t, view.RequestedBudget)
	assert.Equal(t, "175000", view.RequestedBudget.String())
	require.NotNil(t, view.RequestedUnit)
	assert.Equal(t, model.UnitExact, *view.RequestedUnit)

	// Approver grants the requested amount.
	_, err = svc.Approve(ApproveInput{TractID: "Tract 1", NewBudget: "175000", Unit: "1"})
	require.NoError(t, err)

	view = svc.Snapshot().Tracts["Tract 1"]
	assert.Equal(t, "175000", view.MaxBudget.String())
	assert.True(t, view.ApprovedOverBudget)
	assert.Nil(t, view.RequestedBudget)
	assert.Nil(t, view.RequestedUnit)

	// Monitor posts a new asking price; approval and high-bidder reset.
	_, err = svc.PlaceBid(PlaceBidInput{TractID: "Tract 1", Amount: "180", Unit: "K"})
	require.NoError(t, err)

	view = svc.Snapshot().Tracts["Tract 1"]
	assert.Equal(t, "180000", view.CurrentBid.String())
	assert.False(t, view.ApprovedOverBudget)
	assert.False(t, view.HighBidder)
}

func TestRequestBudgetRejectionSurfacesRule(t *testing.T) {
	svc := newTestService()
	before := svc.Snapshot()

	_, err := svc.RequestBudget(RequestBudgetInput{TractID: "Tract 1", Amount: "100000", Unit: "1"})
	require.ErrorIs(t, err, model.ErrBudgetNotHigher)

	after := svc.Snapshot()
	assert.Equal(t, before.Version, after.Version, "rejected mutations publish nothing")
}

func TestResetAllBumpsVersion(t *testing.T) {
	svc := newTestService()

	_, err := svc.PlaceBid(PlaceBidInput{TractID: "Tract 2", Amount: "300000", Unit: "1"})
	require.NoError(t, err)
	before := svc.Snapshot()

	result := svc.ResetAll()
	assert.Greater(t, result.Version, before.Version)

	view := svc.Snapshot().Tracts["Tract 2"]
	assert.Equal(t, "210500", view.CurrentBid.String())
}

func TestConcurrentBidsProduceOneVersionEach(t *testing.T) {
	svc := newTestService()
	initial := svc.Snapshot().Version

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.PlaceBid(PlaceBidInput{
				TractID: "Tract 3",
				Amount:  fmt.Sprintf("%d", 100_000+i),
				Unit:    "1",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, initial+n, svc.Snapshot().Version)
}

func TestLatestMatchesStoreAfterConcurrentMutations(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return base }
	st := store.New(now)
	pub := snapshot.New(500*time.Millisecond, 4, now, zerolog.Nop())
	svc := NewAuctionService(st, pub, excel.NewGenerator(), pdf.NewGenerator(), zerolog.Nop())
	pub.Publish(st.State())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.PlaceBid(PlaceBidInput{
				TractID: "Tract 1",
				Amount:  fmt.Sprintf("%d", 200_000+i),
				Unit:    "1",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// However the publishes interleaved, the snapshot readers see must
	// settle on the store's actual final state.
	want := st.Records()["Tract 1"].CurrentBid
	got := svc.Snapshot().Tracts["Tract 1"].CurrentBid
	assert.True(t, got.Equal(want), "latest snapshot bid %s, store holds %s", got, want)
}

func TestSetHighBidderMessage(t *testing.T) {
	svc := newTestService()

	result, err := svc.SetHighBidder("Tract 1", true)
	require.NoError(t, err)
	assert.Equal(t, "High bidder status set to YES for Tract 1.", result.Message)

	assert.True(t, svc.Snapshot().Tracts["Tract 1"].HighBidder)
}

func TestTractOptionsSorted(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddTract(AddTractInput{TractID: "Tract 0", CurrentBid: "1000", MaxBudget: "2000", Unit: "1"})
	require.NoError(t, err)

	options := svc.TractOptions()
	require.Len(t, options, 4)
	assert.Equal(t, "Tract 0", options[0].ID)
	assert.Equal(t, "Tract 3", options[3].ID)
}

func TestExportFileNames(t *testing.T) {
	svc := newTestService()

	xlsx, err := svc.ExportExcel()
	require.NoError(t, err)
	assert.Equal(t, "tract-bids-v1-20250601.xlsx", xlsx.FileName)
	assert.NotEmpty(t, xlsx.Content)

	pdfResult, err := svc.ExportPDF()
	require.NoError(t, err)
	assert.Equal(t, "tract-bids-v1-20250601.pdf", pdfResult.FileName)
	assert.NotEmpty(t, pdfResult.Content)
}

func TestCurrencyFormatting(t *testing.T) {
	cases := map[string]string{
		"0":          "$0.00",
		"950":        "$950.00",
		"160000":     "$160,000.00",
		"2500000.5":  "$2,500,000.50",
		"1234567890": "$1,234,567,890.00",
	}
	for raw, want := range cases {
		assert.Equal(t, want, currency(decimal.RequireFromString(raw)), "amount %s", raw)
	}
}
