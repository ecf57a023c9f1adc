package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"docsearch/internal/api"
	"docsearch/internal/app"
	"docsearch/internal/config"
	"docsearch/internal/logging"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	a, err := app.Build(ctx, cfg, logger)
	cancel()
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	deps := api.Deps{
		Config:     cfg,
		Workspaces: a.Service,
		Pipeline:   a.Pipeline,
		Retriever:  a.Retriever,
		Duplicates: a.Documents,
		Logger:     logger,
	}
	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Warn("temporal unavailable, batch ingestion disabled", "address", cfg.TemporalAddress, "error", err)
	} else {
		defer c.Close()
		deps.Temporal = c
	}

	h := api.NewServer(deps)
	log.Printf("docsearch api listening on %s embed_providers=%q vector_backend=%q", cfg.APIAddr, cfg.EmbedProviders, cfg.VectorBackend)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
