package verify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/lead"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/store"
)

// ErrNoWebsite is returned when a single-lead verification is requested for
// a lead without a website.
var ErrNoWebsite = eris.New("verify: lead has no website")

// Outcome is the per-lead result of a batch run.
type Outcome struct {
	LeadID  string              `json:"lead_id"`
	Name    string              `json:"name"`
	Website string              `json:"website"`
	OK      bool                `json:"ok"`
	Level   lead.MarketingLevel `json:"level,omitempty"`
	Score   int                 `json:"score,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Summary aggregates a batch run. ActiveAds counts leads with paid traffic
// detected; NoMarketing counts leads with zero signals.
type Summary struct {
	Total       int       `json:"total"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	ActiveAds   int       `json:"active_ads"`
	NoMarketing int       `json:"no_marketing"`
	Outcomes    []Outcome `json:"outcomes"`
}

// Service runs single and batch verifications against the store. Batch runs
// are strictly sequential with an inter-call delay: the audit provider is
// rate-limited and this is the backpressure policy.
type Service struct {
	store    store.Store
	verifier *Verifier
	delay    time.Duration
}

// NewService creates a verification service. delay is the minimum spacing
// between audit calls in a batch.
func NewService(s store.Store, verifier *Verifier, delay time.Duration) *Service {
	return &Service{store: s, verifier: verifier, delay: delay}
}

// VerifyLead verifies one lead and persists the result, returning the
// re-scored lead. The lead is left untouched on any failure.
func (s *Service) VerifyLead(ctx context.Context, ownerID, leadID string) (*lead.Lead, error) {
	l, err := s.store.GetLead(ctx, ownerID, leadID)
	if err != nil {
		return nil, err
	}
	if l.Website == "" {
		return nil, ErrNoWebsite
	}

	ver, err := s.verifier.Verify(ctx, l.Website, l.ID)
	if err != nil {
		return nil, err
	}

	l.Verification = ver
	lead.Rescore(l, ver.Bonus)
	if err := s.store.SetVerification(ctx, ownerID, l.ID, *ver, l.Score, l.Classification); err != nil {
		return nil, err
	}
	return l, nil
}

// RunBatch verifies every unverified lead with a website for the owner, one
// at a time. A failing lead is recorded and the loop continues; only context
// cancellation aborts the run.
func (s *Service) RunBatch(ctx context.Context, ownerID string) (*Summary, error) {
	pending, err := s.store.ListUnverified(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Every(s.delay), 1)
	summary := &Summary{Total: len(pending)}
	logger := zap.L().With(zap.String("owner_id", ownerID))

	logger.Info("starting verification batch", zap.Int("pending", len(pending)))

	for i := range pending {
		l := pending[i]

		if err := limiter.Wait(ctx); err != nil {
			return summary, eris.Wrap(err, "verify: batch interrupted")
		}

		ver, err := s.verifier.Verify(ctx, l.Website, l.ID)
		if err != nil {
			summary.Failed++
			summary.Outcomes = append(summary.Outcomes, Outcome{
				LeadID: l.ID, Name: l.Name, Website: l.Website, Error: err.Error(),
			})
			logger.Warn("lead verification failed",
				zap.String("lead_id", l.ID), zap.Error(err))
			continue
		}

		l.Verification = ver
		lead.Rescore(&l, ver.Bonus)
		if err := s.store.SetVerification(ctx, ownerID, l.ID, *ver, l.Score, l.Classification); err != nil {
			summary.Failed++
			summary.Outcomes = append(summary.Outcomes, Outcome{
				LeadID: l.ID, Name: l.Name, Website: l.Website, Error: err.Error(),
			})
			logger.Warn("verification persist failed",
				zap.String("lead_id", l.ID), zap.Error(err))
			continue
		}

		summary.Succeeded++
		if ver.HasActiveAds() {
			summary.ActiveAds++
		}
		if ver.NoMarketing() {
			summary.NoMarketing++
		}
		summary.Outcomes = append(summary.Outcomes, Outcome{
			LeadID: l.ID, Name: l.Name, Website: l.Website,
			OK: true, Level: ver.Level, Score: l.Score,
		})
	}

	logger.Info("verification batch finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))

	return summary, nil
}

// CountPending reports how many leads still qualify for verification.
func (s *Service) CountPending(ctx context.Context, ownerID string) (int, error) {
	return s.store.CountUnverified(ctx, ownerID)
}
