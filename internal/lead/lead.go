// Package lead defines the domain records for the prospecting pipeline and
// the pure logic that operates on them: row mapping, scoring, classification,
// and the interaction state machine.
package lead

import (
	"encoding/json"
	"time"
)

// Classification is the sales-priority tier derived from the score.
type Classification string

const (
	ClassificationHot  Classification = "HOT"
	ClassificationWarm Classification = "WARM"
	ClassificationCool Classification = "COOL"
	ClassificationCold Classification = "COLD"
)

// Rank orders tiers for monotonicity checks; higher is hotter.
func (c Classification) Rank() int {
	switch c {
	case ClassificationHot:
		return 3
	case ClassificationWarm:
		return 2
	case ClassificationCool:
		return 1
	default:
		return 0
	}
}

// Status is the outreach state of a lead.
type Status string

const (
	StatusNew          Status = "NOVO"
	StatusContacted    Status = "CONTATADO"
	StatusReplied      Status = "RESPONDEU"
	StatusClosed       Status = "FECHADO"
	StatusDisqualified Status = "DESQUALIFICADO"
)

// Direction indicates whether an interaction was outbound or inbound.
type Direction string

const (
	DirectionOutbound Direction = "ENVIADO"
	DirectionInbound  Direction = "RECEBIDO"
)

// MarketingLevel summarizes how sophisticated a site's marketing stack is.
type MarketingLevel string

const (
	LevelNone         MarketingLevel = "NONE"
	LevelBasic        MarketingLevel = "BASIC"
	LevelIntermediate MarketingLevel = "INTERMEDIATE"
	LevelAdvanced     MarketingLevel = "ADVANCED"
)

// RunStatus is the lifecycle state of a research run.
type RunStatus string

const (
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// Verification holds the marketing-stack detection result for a lead.
// A nil *Verification on a Lead means the lead was never verified.
type Verification struct {
	GoogleAds       bool `json:"google_ads"`
	MetaAds         bool `json:"meta_ads"`
	TikTokAds       bool `json:"tiktok_ads"`
	GoogleAnalytics bool `json:"google_analytics"`
	TagManager      bool `json:"tag_manager"`
	MetaPixel       bool `json:"meta_pixel"`
	Heatmap         bool `json:"heatmap"`
	CRM             bool `json:"crm"`

	Level       MarketingLevel `json:"level"`
	Bonus       int            `json:"bonus"`
	Opportunity string         `json:"opportunity"`
	VerifiedAt  time.Time      `json:"verified_at"`
}

// SignalCount returns the number of distinct marketing signals detected.
func (v Verification) SignalCount() int {
	n := 0
	for _, b := range []bool{
		v.GoogleAds, v.MetaAds, v.TikTokAds, v.GoogleAnalytics,
		v.TagManager, v.MetaPixel, v.Heatmap, v.CRM,
	} {
		if b {
			n++
		}
	}
	return n
}

// HasActiveAds reports whether any paid ad platform was detected.
func (v Verification) HasActiveAds() bool {
	return v.GoogleAds || v.MetaAds || v.TikTokAds
}

// NoMarketing reports whether the site carries no marketing tooling at all.
func (v Verification) NoMarketing() bool {
	return v.SignalCount() == 0
}

// Lead is a prospected business.
type Lead struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	PlaceID string `json:"place_id"`
	RunID   string `json:"run_id,omitempty"`

	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Category    string `json:"category,omitempty"`
	Phone       string `json:"phone,omitempty"`
	HasWhatsApp bool   `json:"has_whatsapp"`
	Website     string `json:"website,omitempty"`
	Instagram   string `json:"instagram,omitempty"`

	Score          int            `json:"score"`
	Classification Classification `json:"classification"`

	Verification *Verification `json:"verification,omitempty"`

	Icebreaker           string          `json:"icebreaker,omitempty"`
	Diagnosis            json.RawMessage `json:"diagnosis,omitempty"`
	DiagnosisScore       int             `json:"diagnosis_score,omitempty"`
	DiagnosisTemperature string          `json:"diagnosis_temperature,omitempty"`

	Status          Status     `json:"status"`
	FirstContactAt  *time.Time `json:"first_contact_at,omitempty"`
	FirstResponseAt *time.Time `json:"first_response_at,omitempty"`
	Notes           string     `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Verified reports whether the lead has completed marketing verification.
func (l Lead) Verified() bool {
	return l.Verification != nil
}

// Interaction is one logged contact event against a lead. Append-only.
type Interaction struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Type      string    `json:"type"`
	Direction Direction `json:"direction"`
	Content   string    `json:"content,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RunStats is the aggregate snapshot computed from the leads a run accepted.
type RunStats struct {
	TotalFound   int `json:"total_found"`
	NewLeads     int `json:"new_leads"`
	Duplicates   int `json:"duplicates"`
	Failed       int `json:"failed"`
	Hot          int `json:"hot"`
	Warm         int `json:"warm"`
	Cool         int `json:"cool"`
	Cold         int `json:"cold"`
	WithWebsite  int `json:"with_website"`
	WithWhatsApp int `json:"with_whatsapp"`
}

// Run is one discovery execution over a business type/city query.
type Run struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	BusinessType string     `json:"business_type"`
	City         string     `json:"city"`
	State        string     `json:"state,omitempty"`
	Quantity     int        `json:"quantity"`
	Tone         string     `json:"tone,omitempty"`
	Status       RunStatus  `json:"status"`
	Stats        *RunStats  `json:"stats,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
