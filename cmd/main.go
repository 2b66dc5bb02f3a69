package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ai-interview-coach-service/internal/app"
	"ai-interview-coach-service/internal/config"
	"ai-interview-coach-service/internal/events"
	"ai-interview-coach-service/internal/gateway"
	"ai-interview-coach-service/internal/history"
	"ai-interview-coach-service/internal/llm"
	"ai-interview-coach-service/internal/observability"
)

func main() {
	cfg := config.Load()

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("application start failed")
	}
	defer application.Shutdown()

	// Kafka publisher with separate topics for partials, finals and turns
	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		TopicTurn:    cfg.Kafka.TopicTurn,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	historyDir := cfg.History.Dir
	if cfg.History.InMemory {
		historyDir = ""
	}
	store, err := history.Open(historyDir)
	if err != nil {
		log.Fatal().Err(err).Msg("history store open failed")
	}
	defer store.Close()

	var client llm.Client
	if cfg.LLM.APIKey != "" {
		client, err = llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.Model, llm.WithTimeout(60*time.Second))
		if err != nil {
			log.Fatal().Err(err).Msg("llm client init failed")
		}
	} else {
		log.Warn().Msg("no OPENAI_API_KEY set, using scripted interviewer")
		client = llm.NewScripted()
	}

	gw, err := gateway.New(cfg, client, publisher, store)
	if err != nil {
		log.Fatal().Err(err).Msg("gateway init failed")
	}

	httpServer := &http.Server{
		Addr:        ":" + cfg.Service.HTTPPort,
		Handler:     gw.Router(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	obsServer := observability.NewServer(":"+cfg.Observability.Port, gw.Ready)
	obsServer.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("interview gateway listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("observability shutdown failed")
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}
