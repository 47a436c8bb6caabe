package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/tract-board/internal/hub"
	"github.com/nurpe/tract-board/internal/model"
	"github.com/nurpe/tract-board/internal/service"
)

type Handler struct {
	auction *service.AuctionService
	hub     *hub.Hub
	wsBuf   int
	log     zerolog.Logger
}

func NewHandler(auction *service.AuctionService, h *hub.Hub, wsSendBuffer int, log zerolog.Logger) *Handler {
	return &Handler{auction: auction, hub: h, wsBuf: wsSendBuffer, log: log}
}

func (h *Handler) Register(router *gin.Engine) {
	router.GET("/healthz", h.healthz)
	router.GET("/ws", h.serveWS)

	api := router.Group("/api")
	api.GET("/snapshot", h.getSnapshot)
	api.GET("/poll", h.poll)
	api.GET("/tracts", h.listTracts)
	api.POST("/tracts", h.addTract)
	api.PATCH("/tracts/:id", h.editTract)
	api.POST("/tracts/:id/bid", h.placeBid)
	api.POST("/tracts/:id/high-bidder", h.setHighBidder)
	api.POST("/tracts/:id/budget-request", h.requestBudget)
	api.POST("/tracts/:id/approve", h.approve)
	api.POST("/reset", h.resetAll)
	api.GET("/export", h.exportExcel)
	api.GET("/export/pdf", h.exportPDF)
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.auction.Snapshot())
}

// poll returns 200 with the latest snapshot when it is newer than the
// caller's last seen version, else 204. This is the authoritative refresh
// path; the websocket push is only a latency optimization.
func (h *Handler) poll(c *gin.Context) {
	var since uint64
	if raw := c.Query("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a non-negative integer"})
			return
		}
		since = parsed
	}

	snap, changed := h.auction.Poll(since)
	if !changed {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) listTracts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tracts": h.auction.TractOptions()})
}

type amountRequest struct {
	Amount json.Number `json:"amount" binding:"required"`
	Unit   string      `json:"unit"`
}

func (h *Handler) placeBid(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auction.PlaceBid(service.PlaceBidInput{
		TractID: c.Param("id"),
		Amount:  req.Amount.String(),
		Unit:    req.Unit,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.respondMutation(c, result)
}

type highBidderRequest struct {
	High *bool `json:"high" binding:"required"`
}

func (h *Handler) setHighBidder(c *gin.Context) {
	var req highBidderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auction.SetHighBidder(c.Param("id"), *req.High)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.respondMutation(c, result)
}

func (h *Handler) requestBudget(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auction.RequestBudget(service.RequestBudgetInput{
		TractID: c.Param("id"),
		Amount:  req.Amount.String(),
		Unit:    req.Unit,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.respondMutation(c, result)
}

type approveRequest struct {
	NewBudget json.Number `json:"new_budget"`
	Unit      string      `json:"unit"`
}

func (h *Handler) approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auction.Approve(service.ApproveInput{
		TractID:   c.Param("id"),
		NewBudget: req.NewBudget.String(),
		Unit:      req.Unit,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.respondMutation(c, result)
}

type editTractRequest struct {
	MaxBudget *json.Number `json:"max_budget"`
	Unit      string       `json:"unit"`
	Label     *string      `json:"label"`
}

func (h *Handler) editTract(c *gin.Context) {
	var req editTractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.EditTractInput{
		TractID: c.Param("id"),
		Unit:    req.Unit,
		Label:   req.Label,
	}
	if req.MaxBudget != nil {
		raw := req.MaxBudget.String()
		input.MaxBudget = &raw
	}

	result, err := h.auction.EditTract(input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.respondMutation(c, result)
}

type addTractRequest struct {
	ID         string      `json:"id" binding:"required"`
	Label      string      `json:"label"`
	CurrentBid json.Number `json:"current_bid"`
	MaxBudget  json.Number `json:"max_budget"`
	Unit       string      `json:"unit"`
}

func (h *Handler) addTract(c *gin.Context) {
	var req addTractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auction.AddTract(service.AddTractInput{
		TractID:    req.ID,
		Label:      req.Label,
		CurrentBid: req.CurrentBid.String(),
		MaxBudget:  req.MaxBudget.String(),
		Unit:       req.Unit,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.respondMutation(c, result)
}

func (h *Handler) resetAll(c *gin.Context) {
	h.respondMutation(c, h.auction.ResetAll())
}

func (h *Handler) exportExcel(c *gin.Context) {
	result, err := h.auction.ExportExcel()
	if err != nil {
		h.handleError(c, err)
		return
	}

	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentType, result.Content)
}

func (h *Handler) exportPDF(c *gin.Context) {
	result, err := h.auction.ExportPDF()
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

func (h *Handler) respondMutation(c *gin.Context, result *service.MutationResult) {
	c.JSON(http.StatusOK, gin.H{
		"version": result.Version,
		"message": result.Message,
	})
}

// Validation failures are returned to the caller with the violated rule;
// the shared state is left unchanged.
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrUnknownTract):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrDuplicateTract):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidValue), errors.Is(err, model.ErrBudgetNotHigher):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
