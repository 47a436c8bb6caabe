package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/tract-board/internal/excel"
	"github.com/nurpe/tract-board/internal/hub"
	"github.com/nurpe/tract-board/internal/model"
	"github.com/nurpe/tract-board/internal/pdf"
	"github.com/nurpe/tract-board/internal/service"
	"github.com/nurpe/tract-board/internal/snapshot"
	"github.com/nurpe/tract-board/internal/store"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return base }

	st := store.New(now)
	pub := snapshot.New(500*time.Millisecond, 4, now, zerolog.Nop())
	pushHub := hub.New(zerolog.Nop())

	snapshots, unsubscribe := pub.Subscribe()
	t.Cleanup(unsubscribe)
	go pushHub.Run(t.Context(), snapshots)

	svc := service.NewAuctionService(st, pub, excel.NewGenerator(), pdf.NewGenerator(), zerolog.Nop())
	pub.Publish(st.State())

	handler := NewHandler(svc, pushHub, 16, zerolog.Nop())
	return NewRouter(handler, zerolog.Nop(), "test")
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, body []byte) model.Snapshot {
	t.Helper()
	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	return snap
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSnapshot(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decodeSnapshot(t, rec.Body.Bytes())
	assert.Equal(t, uint64(1), snap.Version)
	assert.Len(t, snap.Tracts, 3)
	assert.Equal(t, "120000", snap.Tracts["Tract 1"].CurrentBid.String())
}

func TestPlaceBidAndPoll(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tracts/Tract%201/bid",
		map[string]any{"amount": 160, "unit": "K"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Updated Tract 1 to $160,000.00.")

	rec = doJSON(t, router, http.MethodGet, "/api/poll?since=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec.Body.Bytes())
	assert.Equal(t, uint64(2), snap.Version)
	assert.Equal(t, "160000", snap.Tracts["Tract 1"].CurrentBid.String())
	assert.False(t, snap.Tracts["Tract 1"].ApprovedOverBudget)

	rec = doJSON(t, router, http.MethodGet, "/api/poll?since=2", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPollRejectsBadVersion(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/poll?since=banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBudgetRequestRejectedWhenNotHigher(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tracts/Tract%201/budget-request",
		map[string]any{"amount": 100000, "unit": "1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "requested budget must exceed current max budget")
}

func TestUnknownTractIs404(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tracts/Tract%2099/bid",
		map[string]any{"amount": 1, "unit": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddTractConflict(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tracts",
		map[string]any{"id": "Tract 1", "current_bid": 1, "max_budget": 2, "unit": "1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminEditAndOptions(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPatch, "/api/tracts/Tract%202",
		map[string]any{"max_budget": 300, "unit": "K", "label": "River Parcel"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/snapshot", nil)
	snap := decodeSnapshot(t, rec.Body.Bytes())
	assert.Equal(t, "300000", snap.Tracts["Tract 2"].MaxBudget.String())
	assert.Equal(t, "River Parcel", snap.Tracts["Tract 2"].Label)

	rec = doJSON(t, router, http.MethodGet, "/api/tracts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "River Parcel")
}

func TestApproveFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tracts/Tract%201/budget-request",
		map[string]any{"amount": 175, "unit": "K"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/tracts/Tract%201/approve",
		map[string]any{"new_budget": 175, "unit": "K"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/snapshot", nil)
	snap := decodeSnapshot(t, rec.Body.Bytes())
	view := snap.Tracts["Tract 1"]
	assert.Equal(t, "175000", view.MaxBudget.String())
	assert.True(t, view.ApprovedOverBudget)
	assert.Nil(t, view.RequestedBudget)
}

func TestResetAll(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tracts/Tract%203/bid",
		map[string]any{"amount": 999999, "unit": "1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/snapshot", nil)
	snap := decodeSnapshot(t, rec.Body.Bytes())
	assert.Equal(t, uint64(3), snap.Version)
	assert.Equal(t, "95250", snap.Tracts["Tract 3"].CurrentBid.String())
}

func TestExportHeaders(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tract-bids-v1-20250601.xlsx")
	assert.NotZero(t, rec.Body.Len())

	rec = doJSON(t, router, http.MethodGet, "/api/export/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".pdf")
}

func TestWebsocketPush(t *testing.T) {
	router := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The seed frame carries the current state.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	seed := decodeSnapshot(t, payload)
	assert.Equal(t, uint64(1), seed.Version)

	// A mutation is pushed to the connected client.
	rec := doJSON(t, router, http.MethodPost, "/api/tracts/Tract%201/bid",
		map[string]any{"amount": 130000, "unit": "1"})
	require.Equal(t, http.StatusOK, rec.Code)

	_, payload, err = conn.ReadMessage()
	require.NoError(t, err)
	pushed := decodeSnapshot(t, payload)
	assert.Equal(t, uint64(2), pushed.Version)
	assert.Equal(t, "130000", pushed.Tracts["Tract 1"].CurrentBid.String())
}
