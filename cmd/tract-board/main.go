package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nurpe/tract-board/internal/config"
	"github.com/nurpe/tract-board/internal/excel"
	httphandler "github.com/nurpe/tract-board/internal/http"
	"github.com/nurpe/tract-board/internal/hub"
	"github.com/nurpe/tract-board/internal/logger"
	"github.com/nurpe/tract-board/internal/pdf"
	"github.com/nurpe/tract-board/internal/service"
	"github.com/nurpe/tract-board/internal/snapshot"
	"github.com/nurpe/tract-board/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	tractStore := store.New(time.Now)
	publisher := snapshot.New(cfg.Snapshot.PollInterval, cfg.Snapshot.WSSendBuffer, time.Now, log)
	publisher.Publish(tractStore.State())

	pushHub := hub.New(log)
	snapshots, unsubscribe := publisher.Subscribe()
	defer unsubscribe()

	ctx := context.Background()
	go publisher.Run(ctx)
	go pushHub.Run(ctx, snapshots)

	auctionService := service.NewAuctionService(tractStore, publisher, excel.NewGenerator(), pdf.NewGenerator(), log)
	handler := httphandler.NewHandler(auctionService, pushHub, cfg.Snapshot.WSSendBuffer, log)
	router := httphandler.NewRouter(handler, log, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting tract board")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
