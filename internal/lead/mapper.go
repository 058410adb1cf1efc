package lead

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Row is the loosely-typed persisted shape of a lead. Nullable columns are
// pointers; the mapper is the only place that turns them into the strict
// domain record and back. Both store drivers scan into and insert from Row.
type Row struct {
	ID      string
	OwnerID string
	PlaceID string
	RunID   *string

	Name        *string
	Address     *string
	City        *string
	State       *string
	Category    *string
	Phone       *string
	HasWhatsApp bool
	Website     *string
	Instagram   *string

	Score          int
	Classification string

	GoogleAds       bool
	MetaAds         bool
	TikTokAds       bool
	GoogleAnalytics bool
	TagManager      bool
	MetaPixel       bool
	Heatmap         bool
	CRM             bool
	MarketingLevel  *string
	MarketingBonus  int
	Opportunity     *string
	Verified        bool
	VerifiedAt      *time.Time

	Icebreaker           *string
	Diagnosis            []byte
	DiagnosisScore       *int
	DiagnosisTemperature *string

	Status          string
	FirstContactAt  *time.Time
	FirstResponseAt *time.Time
	Notes           *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FromRow maps a persisted row into the domain record, applying defaults for
// missing optional fields and coercing unknown enum strings instead of
// failing. Pure; no side effects.
func FromRow(r Row) Lead {
	l := Lead{
		ID:                   r.ID,
		OwnerID:              r.OwnerID,
		PlaceID:              r.PlaceID,
		RunID:                deref(r.RunID),
		Name:                 deref(r.Name),
		Address:              deref(r.Address),
		City:                 deref(r.City),
		State:                deref(r.State),
		Category:             deref(r.Category),
		Phone:                NormalizePhone(deref(r.Phone)),
		HasWhatsApp:          r.HasWhatsApp,
		Website:              deref(r.Website),
		Instagram:            deref(r.Instagram),
		Score:                r.Score,
		Classification:       ParseClassification(r.Classification),
		Icebreaker:           deref(r.Icebreaker),
		DiagnosisTemperature: deref(r.DiagnosisTemperature),
		Status:               ParseStatus(r.Status),
		FirstContactAt:       r.FirstContactAt,
		FirstResponseAt:      r.FirstResponseAt,
		Notes:                deref(r.Notes),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}

	if len(r.Diagnosis) > 0 {
		l.Diagnosis = json.RawMessage(r.Diagnosis)
	}
	if r.DiagnosisScore != nil {
		l.DiagnosisScore = *r.DiagnosisScore
	}

	if r.Verified {
		v := Verification{
			GoogleAds:       r.GoogleAds,
			MetaAds:         r.MetaAds,
			TikTokAds:       r.TikTokAds,
			GoogleAnalytics: r.GoogleAnalytics,
			TagManager:      r.TagManager,
			MetaPixel:       r.MetaPixel,
			Heatmap:         r.Heatmap,
			CRM:             r.CRM,
			Level:           ParseLevel(deref(r.MarketingLevel)),
			Bonus:           r.MarketingBonus,
			Opportunity:     deref(r.Opportunity),
		}
		if r.VerifiedAt != nil {
			v.VerifiedAt = *r.VerifiedAt
		}
		l.Verification = &v
	}

	return l
}

// ToRow maps a domain record back into the persisted row shape. Empty
// optional strings become NULLs.
func ToRow(l Lead) Row {
	r := Row{
		ID:                   l.ID,
		OwnerID:              l.OwnerID,
		PlaceID:              l.PlaceID,
		RunID:                optional(l.RunID),
		Name:                 optional(l.Name),
		Address:              optional(l.Address),
		City:                 optional(l.City),
		State:                optional(l.State),
		Category:             optional(l.Category),
		Phone:                optional(NormalizePhone(l.Phone)),
		HasWhatsApp:          l.HasWhatsApp,
		Website:              optional(l.Website),
		Instagram:            optional(l.Instagram),
		Score:                l.Score,
		Classification:       string(l.Classification),
		Icebreaker:           optional(l.Icebreaker),
		DiagnosisTemperature: optional(l.DiagnosisTemperature),
		Status:               string(l.Status),
		FirstContactAt:       l.FirstContactAt,
		FirstResponseAt:      l.FirstResponseAt,
		Notes:                optional(l.Notes),
		CreatedAt:            l.CreatedAt,
		UpdatedAt:            l.UpdatedAt,
	}

	if l.Classification == "" {
		r.Classification = string(ClassificationCold)
	}
	if l.Status == "" {
		r.Status = string(StatusNew)
	}
	if len(l.Diagnosis) > 0 {
		r.Diagnosis = []byte(l.Diagnosis)
		score := l.DiagnosisScore
		r.DiagnosisScore = &score
	}

	if v := l.Verification; v != nil {
		r.GoogleAds = v.GoogleAds
		r.MetaAds = v.MetaAds
		r.TikTokAds = v.TikTokAds
		r.GoogleAnalytics = v.GoogleAnalytics
		r.TagManager = v.TagManager
		r.MetaPixel = v.MetaPixel
		r.Heatmap = v.Heatmap
		r.CRM = v.CRM
		level := string(v.Level)
		r.MarketingLevel = &level
		r.MarketingBonus = v.Bonus
		r.Opportunity = optional(v.Opportunity)
		r.Verified = true
		at := v.VerifiedAt
		r.VerifiedAt = &at
	}

	return r
}

// ParseClassification coerces a stored tier string to a known tier. Unknown
// values (including the legacy Portuguese vocabulary) map to a safe default
// rather than propagating arbitrary strings.
func ParseClassification(s string) Classification {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HOT", "QUENTE":
		return ClassificationHot
	case "WARM", "MORNO":
		return ClassificationWarm
	case "COOL":
		return ClassificationCool
	case "WARM_COLD", "FRIO":
		// Legacy flow collapsed COOL and COLD; treat as COLD.
		return ClassificationCold
	default:
		return ClassificationCold
	}
}

// ParseStatus coerces a stored status string; unknown values default to NOVO.
func ParseStatus(s string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusNew, StatusContacted, StatusReplied, StatusClosed, StatusDisqualified:
		return Status(strings.ToUpper(strings.TrimSpace(s)))
	default:
		return StatusNew
	}
}

// ParseLevel coerces a stored marketing level; unknown values default to NONE.
func ParseLevel(s string) MarketingLevel {
	switch MarketingLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelNone, LevelBasic, LevelIntermediate, LevelAdvanced:
		return MarketingLevel(strings.ToUpper(strings.TrimSpace(s)))
	default:
		return LevelNone
	}
}

// NormalizePhone strips a phone number down to digits for outbound channel
// use. Returns "" when no digits remain.
func NormalizePhone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cityKeyTransformer strips diacritics so "São Paulo" and "Sao Paulo" share
// a key.
var cityKeyTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CityKey returns the accent-folded, lowercased lookup key for a city name.
func CityKey(city string) string {
	folded, _, err := transform.String(cityKeyTransformer, strings.TrimSpace(city))
	if err != nil {
		folded = strings.TrimSpace(city)
	}
	return strings.ToLower(folded)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
