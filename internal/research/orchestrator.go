// Package research drives one end-to-end prospecting run: discovery,
// mapping, scoring, deduplicating persistence, and run bookkeeping.
package research

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/lead"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/store"
	"github.com/oldmoneygit/MARCOLA-sub004/pkg/aiwriter"
	"github.com/oldmoneygit/MARCOLA-sub004/pkg/places"
)

// ErrInvalidParams marks request validation failures, rejected before any
// external call.
var ErrInvalidParams = eris.New("research: invalid parameters")

// Params are the user-supplied run parameters.
type Params struct {
	BusinessType string `json:"business_type"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
	Tone         string `json:"tone,omitempty"`
}

// Options carry the configured defaults and caps.
type Options struct {
	DefaultQuantity int
	MaxQuantity     int
	DefaultTone     string
	MaxConcurrent   int
}

// Result is the structured outcome of a completed run.
type Result struct {
	RunID string        `json:"run_id"`
	Stats lead.RunStats `json:"stats"`
	Leads []lead.Lead   `json:"leads"`
}

// Orchestrator coordinates a research run. The run record transitions
// processing to completed or failed exactly once; discovery failure is
// terminal for the run but per-lead persistence failure is not.
type Orchestrator struct {
	store     store.Store
	discovery places.Client
	writer    aiwriter.Generator
	opts      Options
}

// New creates an Orchestrator. writer may be nil, in which case icebreaker
// generation is skipped.
func New(s store.Store, discovery places.Client, writer aiwriter.Generator, opts Options) *Orchestrator {
	if opts.DefaultQuantity <= 0 {
		opts.DefaultQuantity = 20
	}
	if opts.MaxQuantity <= 0 {
		opts.MaxQuantity = 100
	}
	if opts.DefaultTone == "" {
		opts.DefaultTone = "consultivo"
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	return &Orchestrator{store: s, discovery: discovery, writer: writer, opts: opts}
}

func (o *Orchestrator) normalize(p *Params) error {
	p.BusinessType = strings.TrimSpace(p.BusinessType)
	p.City = strings.TrimSpace(p.City)
	if p.BusinessType == "" {
		return eris.Wrap(ErrInvalidParams, "business type is required")
	}
	if p.City == "" {
		return eris.Wrap(ErrInvalidParams, "city is required")
	}
	if p.Quantity <= 0 {
		p.Quantity = o.opts.DefaultQuantity
	}
	if p.Quantity > o.opts.MaxQuantity {
		p.Quantity = o.opts.MaxQuantity
	}
	if strings.TrimSpace(p.Tone) == "" {
		p.Tone = o.opts.DefaultTone
	}
	return nil
}

// Run executes one research run for the owner and returns the run id, the
// aggregate stats, and the accepted leads.
func (o *Orchestrator) Run(ctx context.Context, ownerID string, p Params) (*Result, error) {
	if ownerID == "" {
		return nil, eris.Wrap(ErrInvalidParams, "owner id is required")
	}
	if err := o.normalize(&p); err != nil {
		return nil, err
	}

	logger := zap.L().With(
		zap.String("owner_id", ownerID),
		zap.String("business_type", p.BusinessType),
		zap.String("city", p.City))

	// The run exists in processing state before the discovery call, so a
	// crash mid-call still leaves an auditable record.
	runID, err := o.store.CreateRun(ctx, lead.Run{
		OwnerID:      ownerID,
		BusinessType: p.BusinessType,
		City:         p.City,
		State:        p.State,
		Quantity:     p.Quantity,
		Tone:         p.Tone,
	})
	if err != nil {
		return nil, eris.Wrap(err, "research: create run")
	}
	logger = logger.With(zap.String("run_id", runID))

	found, err := o.discovery.SearchBusinesses(ctx, places.Query{
		BusinessType: p.BusinessType,
		City:         p.City,
		State:        p.State,
		MaxResults:   p.Quantity,
	})
	if err != nil {
		logger.Error("discovery failed", zap.Error(err))
		if failErr := o.store.FailRun(ctx, runID, err.Error()); failErr != nil {
			logger.Error("could not mark run failed", zap.Error(failErr))
		}
		return nil, eris.Wrapf(err, "research: run %s discovery", runID)
	}

	stats := lead.RunStats{TotalFound: len(found)}
	var accepted []lead.Lead
	var newIDs map[string]bool

	for _, b := range found {
		l, ok := leadFromBusiness(ownerID, runID, b)
		if !ok {
			stats.Failed++
			continue
		}

		res, err := o.store.UpsertLead(ctx, l)
		if err != nil {
			// One bad record never aborts the batch.
			stats.Failed++
			logger.Warn("lead upsert failed",
				zap.String("place_id", l.PlaceID), zap.Error(err))
			continue
		}

		l.ID = res.ID
		if res.IsNew {
			stats.NewLeads++
			if newIDs == nil {
				newIDs = make(map[string]bool)
			}
			newIDs[l.ID] = true
		} else {
			stats.Duplicates++
		}
		accepted = append(accepted, l)
	}

	countStats(&stats, accepted)

	o.generateIcebreakers(ctx, ownerID, p.Tone, accepted, newIDs, logger)

	if err := o.store.CompleteRun(ctx, runID, stats); err != nil {
		return nil, eris.Wrapf(err, "research: complete run %s", runID)
	}

	logger.Info("research run completed",
		zap.Int("found", stats.TotalFound),
		zap.Int("new", stats.NewLeads),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("failed", stats.Failed))

	return &Result{RunID: runID, Stats: stats, Leads: accepted}, nil
}

// leadFromBusiness maps one discovery candidate into a scored lead. Returns
// false when the candidate has no usable identity.
func leadFromBusiness(ownerID, runID string, b places.Business) (lead.Lead, bool) {
	if b.PlaceID == "" || b.Name == "" {
		return lead.Lead{}, false
	}

	phone := lead.NormalizePhone(b.Phone)
	city, state := splitLocality(b.Address)

	l := lead.Lead{
		OwnerID:     ownerID,
		PlaceID:     b.PlaceID,
		RunID:       runID,
		Name:        b.Name,
		Address:     b.Address,
		City:        city,
		State:       state,
		Category:    b.Category,
		Phone:       phone,
		HasWhatsApp: isBrazilianMobile(phone),
		Website:     b.Website,
		Status:      lead.StatusNew,
	}
	l.Score = lead.Score(lead.SignalsFrom(l))
	l.Classification = lead.Classify(l.Score)
	return l, true
}

// isBrazilianMobile reports whether a digits-only phone looks like a mobile
// number (9 prefix after the area code), the signal used for WhatsApp
// capability.
func isBrazilianMobile(digits string) bool {
	if strings.HasPrefix(digits, "55") && len(digits) == 13 {
		digits = digits[2:]
	}
	return len(digits) == 11 && digits[2] == '9'
}

// splitLocality extracts "city, ST" from the tail of a formatted Brazilian
// address like "Rua das Flores, 123 - Centro, São Paulo - SP, 01000-000".
func splitLocality(address string) (city, state string) {
	parts := strings.Split(address, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		seg := strings.TrimSpace(parts[i])
		if cityPart, statePart, ok := strings.Cut(seg, " - "); ok {
			statePart = strings.TrimSpace(statePart)
			if len(statePart) == 2 {
				return strings.TrimSpace(cityPart), statePart
			}
		}
	}
	return "", ""
}

func countStats(stats *lead.RunStats, accepted []lead.Lead) {
	for _, l := range accepted {
		switch l.Classification {
		case lead.ClassificationHot:
			stats.Hot++
		case lead.ClassificationWarm:
			stats.Warm++
		case lead.ClassificationCool:
			stats.Cool++
		default:
			stats.Cold++
		}
		if l.Website != "" {
			stats.WithWebsite++
		}
		if l.HasWhatsApp {
			stats.WithWhatsApp++
		}
	}
}

// generateIcebreakers writes opening messages for newly discovered leads.
// Failures are logged and skipped; they never fail the run.
func (o *Orchestrator) generateIcebreakers(ctx context.Context, ownerID, tone string, accepted []lead.Lead, newIDs map[string]bool, logger *zap.Logger) {
	if o.writer == nil || len(newIDs) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.MaxConcurrent)

	for i := range accepted {
		l := accepted[i]
		if !newIDs[l.ID] {
			continue
		}
		g.Go(func() error {
			text, err := o.writer.Icebreaker(gctx, aiwriter.Prompt{
				BusinessName: l.Name,
				Category:     l.Category,
				City:         l.City,
				Tone:         tone,
				HasWebsite:   l.Website != "",
				HasWhatsApp:  l.HasWhatsApp,
			})
			if err != nil {
				logger.Warn("icebreaker generation failed",
					zap.String("lead_id", l.ID), zap.Error(err))
				return nil
			}
			if err := o.store.SetIcebreaker(gctx, ownerID, l.ID, text); err != nil {
				logger.Warn("icebreaker persist failed",
					zap.String("lead_id", l.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
