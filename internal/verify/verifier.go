// Package verify inspects lead websites for marketing-stack signals and
// feeds the findings back into lead scoring.
package verify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/lead"
	"github.com/oldmoneygit/MARCOLA-sub004/pkg/siteaudit"
)

// Bonus per maturity level. The agency sells marketing services, so the less
// tracking a site carries the bigger the sales opportunity and the bonus.
// All bonuses are non-negative, keeping re-classification monotone.
const (
	bonusNone         = 20
	bonusBasic        = 12
	bonusIntermediate = 6
	bonusAdvanced     = 0
)

// Verifier maps raw audit detections into a lead.Verification.
type Verifier struct {
	audit siteaudit.Client
}

// NewVerifier creates a Verifier backed by the given audit client.
func NewVerifier(audit siteaudit.Client) *Verifier {
	return &Verifier{audit: audit}
}

// Verify audits the website and derives level, bonus, and opportunity label.
// The caller guarantees websiteURL is non-empty; an audit failure propagates
// as an error without producing a partial verification.
func (v *Verifier) Verify(ctx context.Context, websiteURL, leadID string) (*lead.Verification, error) {
	res, err := v.audit.Audit(ctx, websiteURL)
	if err != nil {
		return nil, eris.Wrapf(err, "verify: audit lead %s", leadID)
	}

	ver := &lead.Verification{
		GoogleAds:       res.GoogleAds,
		MetaAds:         res.MetaAds,
		TikTokAds:       res.TikTokAds,
		GoogleAnalytics: res.GoogleAnalytics,
		TagManager:      res.TagManager,
		MetaPixel:       res.MetaPixel,
		Heatmap:         res.Heatmap,
		CRM:             res.CRM,
		VerifiedAt:      time.Now().UTC(),
	}
	ver.Level = LevelForCount(ver.SignalCount())
	ver.Bonus = BonusFor(ver.Level)
	ver.Opportunity = OpportunityFor(ver.Level)

	zap.L().Debug("website verified",
		zap.String("lead_id", leadID),
		zap.Int("signals", ver.SignalCount()),
		zap.String("level", string(ver.Level)))

	return ver, nil
}

// LevelForCount derives the marketing maturity level from the number of
// distinct detected signals.
func LevelForCount(n int) lead.MarketingLevel {
	switch {
	case n >= 5:
		return lead.LevelAdvanced
	case n >= 3:
		return lead.LevelIntermediate
	case n >= 1:
		return lead.LevelBasic
	default:
		return lead.LevelNone
	}
}

// BonusFor returns the score bonus for a maturity level.
func BonusFor(level lead.MarketingLevel) int {
	switch level {
	case lead.LevelNone:
		return bonusNone
	case lead.LevelBasic:
		return bonusBasic
	case lead.LevelIntermediate:
		return bonusIntermediate
	default:
		return bonusAdvanced
	}
}

// OpportunityFor returns the human-readable judgment for a maturity level.
func OpportunityFor(level lead.MarketingLevel) string {
	switch level {
	case lead.LevelNone:
		return "Sem nenhum rastreamento de marketing, oportunidade máxima"
	case lead.LevelBasic:
		return "Presença digital básica, grande espaço para evoluir"
	case lead.LevelIntermediate:
		return "Stack intermediário, oportunidades pontuais"
	default:
		return "Stack maduro, baixa oportunidade"
	}
}
