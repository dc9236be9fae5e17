package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vespid-ai/control-plane/internal/authn"
	"github.com/vespid-ai/control-plane/internal/billing"
	"github.com/vespid-ai/control-plane/internal/config"
	"github.com/vespid-ai/control-plane/internal/executor"
	"github.com/vespid-ai/control-plane/internal/gateway"
	"github.com/vespid-ai/control-plane/internal/httpapi"
	"github.com/vespid-ai/control-plane/internal/llm"
	"github.com/vespid-ai/control-plane/internal/oauthcoord"
	"github.com/vespid-ai/control-plane/internal/orgctx"
	"github.com/vespid-ai/control-plane/internal/queue"
	"github.com/vespid-ai/control-plane/internal/secretvault"
	"github.com/vespid-ai/control-plane/internal/sessionrouter"
	"github.com/vespid-ai/control-plane/internal/store"
	"github.com/vespid-ai/control-plane/internal/store/memstore"
	"github.com/vespid-ai/control-plane/internal/store/postgres"
	"github.com/vespid-ai/control-plane/internal/toolset"
	"github.com/vespid-ai/control-plane/internal/toolsetbuilder"
	"github.com/vespid-ai/control-plane/internal/workflowrun"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "control-plane").Logger()

	cfg := config.Load()
	if cfg.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pool.Close()
		st = postgres.New(pool)
	} else {
		log.Warn().Msg("DATABASE_URL not set, running against the in-memory store")
		st = memstore.New()
	}

	kek, err := secretvault.LoadKEK(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load KEK")
	}
	vault := secretvault.New(st, kek, secretvault.DefaultCatalog())

	authnCoord := authn.New(st, cfg)
	orgCtx := orgctx.New(st, cfg)

	providers := oauthcoord.NewProviders(
		oauthcoord.GoogleProvider{ClientID: cfg.OAuthGoogleClientID, ClientSecret: cfg.OAuthGoogleClientSecret},
		oauthcoord.GitHubProvider{ClientID: cfg.OAuthGitHubClientID, ClientSecret: cfg.OAuthGitHubClientSecret},
	)
	oauthCoord := oauthcoord.New(providers, authnCoord, vault, cfg)

	gatewayClient := gateway.New(cfg.GatewayHTTPURL, cfg.GatewayServiceToken)
	sessionRouterCoord := sessionrouter.New(st, gatewayClient)

	workflowRunCoord := workflowrun.New(st, queue.NewMemory())

	llmDispatcher := llm.NewDispatcher()
	toolsetBuilderCoord := toolsetbuilder.New(st, toolsetbuilder.DefaultCatalog(), vault, llmDispatcher)
	toolsetCoord := toolset.New(st)

	billingCoord := billing.New(st, billing.ParsePacks(cfg.StripeCreditsPacksRaw), cfg.StripeWebhookSecret, cfg.StripeSecretKey)
	executorCoord := executor.New(st)

	srv := &httpapi.Server{
		Store: st,
		Cfg:   cfg,

		Authn:          authnCoord,
		OrgCtx:         orgCtx,
		OAuth:          oauthCoord,
		Vault:          vault,
		WorkflowRun:    workflowRunCoord,
		SessionRouter:  sessionRouterCoord,
		ToolsetBuilder: toolsetBuilderCoord,
		Toolset:        toolsetCoord,
		Billing:        billingCoord,
		Executor:       executorCoord,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
