package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/outreach"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/research"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/store"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/verify"
	"github.com/oldmoneygit/MARCOLA-sub004/pkg/aiwriter"
	"github.com/oldmoneygit/MARCOLA-sub004/pkg/places"
	"github.com/oldmoneygit/MARCOLA-sub004/pkg/siteaudit"
	"github.com/oldmoneygit/MARCOLA-sub004/pkg/whatsapp"
)

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newPlacesClient() places.Client {
	return places.NewClient(cfg.Places.Key,
		places.WithBaseURL(cfg.Places.BaseURL),
		places.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Places.TimeoutSecs) * time.Second}),
	)
}

func newAuditClient() siteaudit.Client {
	return siteaudit.NewClient(cfg.SiteAudit.BaseURL, cfg.SiteAudit.Key,
		siteaudit.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.SiteAudit.TimeoutSecs) * time.Second}),
	)
}

// newWhatsAppClient returns nil when the gateway is not configured; outreach
// then degrades to wa.me links.
func newWhatsAppClient() whatsapp.Client {
	if cfg.WhatsApp.BaseURL == "" || cfg.WhatsApp.Key == "" {
		return nil
	}
	return whatsapp.NewClient(cfg.WhatsApp.BaseURL, cfg.WhatsApp.Key, cfg.WhatsApp.Instance,
		whatsapp.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.WhatsApp.TimeoutSecs) * time.Second}),
	)
}

// newWriter returns nil when no Anthropic key is configured; research runs
// then skip icebreaker generation.
func newWriter() aiwriter.Generator {
	if cfg.Anthropic.Key == "" {
		return nil
	}
	return aiwriter.New(cfg.Anthropic.Key, aiwriter.Config{
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
	})
}

func newOrchestrator(st store.Store) *research.Orchestrator {
	return research.New(st, newPlacesClient(), newWriter(), research.Options{
		DefaultQuantity: cfg.Research.DefaultQuantity,
		MaxQuantity:     cfg.Research.MaxQuantity,
		DefaultTone:     cfg.Research.DefaultTone,
		MaxConcurrent:   cfg.Research.MaxConcurrent,
	})
}

func newVerifyService(st store.Store) *verify.Service {
	delay := time.Duration(cfg.Batch.DelayMS) * time.Millisecond
	return verify.NewService(st, verify.NewVerifier(newAuditClient()), delay)
}

func newDispatcher(st store.Store) *outreach.Dispatcher {
	return outreach.NewDispatcher(st, newWhatsAppClient())
}

// resolveOwner picks the CLI tenant: explicit flag first, configured default
// second.
func resolveOwner(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.Server.DefaultOwnerID != "" {
		return cfg.Server.DefaultOwnerID, nil
	}
	return "", eris.New("owner is required: pass --owner or set server.default_owner_id")
}
