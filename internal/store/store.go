// Package store persists leads, research runs, and interactions. Two drivers
// implement the same interface: postgres (production) and sqlite (local).
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/lead"
)

// ErrNotFound is returned when an entity does not exist or is not visible to
// the requesting owner.
var ErrNotFound = eris.New("store: not found")

// UpsertResult reports the per-call outcome of a deduplicating upsert so the
// caller can count new leads and duplicates exactly once.
type UpsertResult struct {
	ID    string `json:"id"`
	IsNew bool   `json:"is_new"`
}

// LeadFilter narrows ListLeads. Zero values mean "no constraint".
type LeadFilter struct {
	Classification lead.Classification `json:"classification,omitempty"`
	Status         lead.Status         `json:"status,omitempty"`
	City           string              `json:"city,omitempty"`
	MinScore       *int                `json:"min_score,omitempty"`
	MaxScore       *int                `json:"max_score,omitempty"`
	HasWebsite     *bool               `json:"has_website,omitempty"`
	HasWhatsApp    *bool               `json:"has_whatsapp,omitempty"`
	Limit          int                 `json:"limit,omitempty"`
	Offset         int                 `json:"offset,omitempty"`
}

// LeadPatch is a partial manual edit. Nil fields are untouched.
type LeadPatch struct {
	Name      *string      `json:"name,omitempty"`
	Phone     *string      `json:"phone,omitempty"`
	Website   *string      `json:"website,omitempty"`
	Instagram *string      `json:"instagram,omitempty"`
	Notes     *string      `json:"notes,omitempty"`
	Status    *lead.Status `json:"status,omitempty"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Status lead.RunStatus `json:"status,omitempty"`
	Limit  int            `json:"limit,omitempty"`
	Offset int            `json:"offset,omitempty"`
}

// Store is the persistence interface for the prospecting pipeline. Every
// read and write is scoped by owner id; a lead is never visible across
// owners.
type Store interface {
	// Leads
	UpsertLead(ctx context.Context, l lead.Lead) (*UpsertResult, error)
	GetLead(ctx context.Context, ownerID, id string) (*lead.Lead, error)
	ListLeads(ctx context.Context, ownerID string, f LeadFilter) ([]lead.Lead, error)
	PatchLead(ctx context.Context, ownerID, id string, p LeadPatch) (*lead.Lead, error)
	DeleteLead(ctx context.Context, ownerID, id string) error
	ListUnverified(ctx context.Context, ownerID string) ([]lead.Lead, error)
	CountUnverified(ctx context.Context, ownerID string) (int, error)
	SetVerification(ctx context.Context, ownerID, id string, v lead.Verification, score int, class lead.Classification) error
	SetIcebreaker(ctx context.Context, ownerID, id, text string) error

	// Interactions
	LogInteraction(ctx context.Context, ownerID string, it lead.Interaction) (*lead.Lead, error)
	ListInteractions(ctx context.Context, ownerID, leadID string) ([]lead.Interaction, error)

	// Research runs
	CreateRun(ctx context.Context, r lead.Run) (string, error)
	CompleteRun(ctx context.Context, runID string, stats lead.RunStats) error
	FailRun(ctx context.Context, runID, errMsg string) error
	GetRun(ctx context.Context, ownerID, runID string) (*lead.Run, error)
	ListRuns(ctx context.Context, ownerID string, f RunFilter) ([]lead.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
