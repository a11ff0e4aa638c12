package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reedfamily/gamewatch/internal/api"
	"github.com/reedfamily/gamewatch/internal/command"
	"github.com/reedfamily/gamewatch/internal/config"
	"github.com/reedfamily/gamewatch/internal/discord"
	"github.com/reedfamily/gamewatch/internal/monitor"
	"github.com/reedfamily/gamewatch/internal/notify"
	"github.com/reedfamily/gamewatch/internal/proc"
	"github.com/reedfamily/gamewatch/internal/source"
	"github.com/reedfamily/gamewatch/internal/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := state.Load(cfg.StatePath)
	if err != nil {
		log.Fatalf("failed to load state: %v", err)
	}

	controller, err := proc.New(cfg.Controller)
	if err != nil {
		log.Fatalf("failed to create service controller: %v", err)
	}
	defer controller.Close()

	perf := source.NewTmuxReader(cfg.TmuxSession, cfg.SourceTimeout)
	bans := source.NewBattleMetricsClient(cfg.SourceTimeout)

	bot, err := discord.New(cfg.DiscordToken, cfg.GuildID)
	if err != nil {
		log.Fatalf("failed to create discord bot: %v", err)
	}

	dispatcher := notify.NewDispatcher(discord.NewSender(bot.Session()))
	mon := monitor.New(store, perf, bans, dispatcher, cfg.PollInterval, cfg.MaxPlayers)
	gate := command.NewGate(store, controller, mon)

	if err := bot.Start(gate); err != nil {
		log.Fatalf("failed to start discord bot: %v", err)
	}
	mon.Start()

	statusHandler := api.NewStatusHandler(mon, store)
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewRouter(statusHandler, cfg.APIToken),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("gamewatch listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	mon.Stop(10 * time.Second)
	if err := bot.Stop(); err != nil {
		log.Printf("discord shutdown error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
