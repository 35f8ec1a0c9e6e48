package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/pdfchat/internal/api"
	"github.com/dgallion1/pdfchat/internal/chunker"
	"github.com/dgallion1/pdfchat/internal/claude"
	"github.com/dgallion1/pdfchat/internal/config"
)

func main() {
	cfg, err := config.Load()
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.CheckCredential(); err != nil {
		log.Warn("chat disabled until an API key is entered", "error", err)
	}

	// Chunk the document once at startup.
	ch := chunker.New(chunker.NewPDFSplitter(), chunker.Config{MaxPages: cfg.MaxPagesPerChunk})
	doc := api.LoadDocument(ch, cfg.PDFPath, log)
	if doc.Err != nil {
		log.Error("document unavailable", "path", cfg.PDFPath, "error", doc.Err)
	} else {
		log.Info("document loaded", "path", cfg.PDFPath, "pages", doc.Pages(), "chunks", len(doc.Chunks))
	}

	newClient := func(apiKey string) *claude.Client {
		return claude.NewClient(claude.Config{
			APIKey:      apiKey,
			Model:       cfg.AnthropicModel,
			BaseURL:     cfg.AnthropicBaseURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.RequestTimeout,
			StatsWindow: cfg.LLMStatsWindow,
		})
	}
	srv := api.NewServer(cfg, doc, newClient, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		srv.Close()
	}()

	log.Info("starting pdfchat", "port", cfg.Port, "model", cfg.AnthropicModel)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
