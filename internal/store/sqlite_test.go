package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/lead"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "marcola.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func TestSQLiteStore_UpsertLead_NewThenDuplicate(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := s.UpsertLead(ctx, lead.Lead{
		OwnerID: "owner-1",
		PlaceID: "place-abc",
		Name:    "Padaria Sete Grãos",
		City:    "São Paulo",
		Phone:   "(11) 98888-7777",
		Score:   70,
	})
	require.NoError(t, err)
	assert.True(t, first.IsNew)

	second, err := s.UpsertLead(ctx, lead.Lead{
		OwnerID: "owner-1",
		PlaceID: "place-abc",
		Name:    "Padaria Sete Grãos ME",
		City:    "São Paulo",
		Score:   75,
	})
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.ID, second.ID)

	l, err := s.GetLead(ctx, "owner-1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Padaria Sete Grãos ME", l.Name)
	assert.Equal(t, 75, l.Score)
}

func TestSQLiteStore_UpsertLead_PreservesVerifiedScore(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := s.UpsertLead(ctx, lead.Lead{
		OwnerID: "owner-1",
		PlaceID: "place-abc",
		Name:    "Padaria Sete Grãos",
		Website: "https://setegraos.example.com.br",
		Score:   80,
	})
	require.NoError(t, err)

	v := lead.Verification{
		Level:       lead.LevelNone,
		Bonus:       20,
		Opportunity: "Site sem nenhum rastreamento",
		VerifiedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.SetVerification(ctx, "owner-1", res.ID, v, 100, lead.ClassificationHot))

	// A re-research downgrades the raw signal score; the earned one stays.
	_, err = s.UpsertLead(ctx, lead.Lead{
		OwnerID: "owner-1",
		PlaceID: "place-abc",
		Name:    "Padaria Sete Grãos",
		Score:   40,
	})
	require.NoError(t, err)

	l, err := s.GetLead(ctx, "owner-1", res.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, l.Score)
	assert.Equal(t, lead.ClassificationHot, l.Classification)
	require.NotNil(t, l.Verification)
	assert.Equal(t, 20, l.Verification.Bonus)
}

func TestSQLiteStore_OwnerScoping(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := s.UpsertLead(ctx, lead.Lead{OwnerID: "owner-1", PlaceID: "place-abc", Name: "Açougue Central"})
	require.NoError(t, err)

	_, err = s.GetLead(ctx, "owner-2", res.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	leads, err := s.ListLeads(ctx, "owner-2", LeadFilter{})
	require.NoError(t, err)
	assert.Empty(t, leads)

	err = s.DeleteLead(ctx, "owner-2", res.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Same place id under another owner is a distinct lead, not a duplicate.
	other, err := s.UpsertLead(ctx, lead.Lead{OwnerID: "owner-2", PlaceID: "place-abc"})
	require.NoError(t, err)
	assert.True(t, other.IsNew)
}

func TestSQLiteStore_ListLeads_FiltersAndOrder(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seed := []lead.Lead{
		{OwnerID: "owner-1", PlaceID: "p1", Name: "A", City: "São Paulo", Score: 85, Classification: lead.ClassificationHot, Website: "https://a.example"},
		{OwnerID: "owner-1", PlaceID: "p2", Name: "B", City: "Sao Paulo", Score: 65, Classification: lead.ClassificationWarm},
		{OwnerID: "owner-1", PlaceID: "p3", Name: "C", City: "Campinas", Score: 45, Classification: lead.ClassificationCool},
	}
	for _, l := range seed {
		_, err := s.UpsertLead(ctx, l)
		require.NoError(t, err)
	}

	// Accent-folded city match catches both spellings.
	leads, err := s.ListLeads(ctx, "owner-1", LeadFilter{City: "sao paulo"})
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "A", leads[0].Name)
	assert.Equal(t, "B", leads[1].Name)

	minScore := 60
	leads, err = s.ListLeads(ctx, "owner-1", LeadFilter{MinScore: &minScore})
	require.NoError(t, err)
	assert.Len(t, leads, 2)

	hasWebsite := false
	leads, err = s.ListLeads(ctx, "owner-1", LeadFilter{HasWebsite: &hasWebsite})
	require.NoError(t, err)
	assert.Len(t, leads, 2)

	leads, err = s.ListLeads(ctx, "owner-1", LeadFilter{Classification: lead.ClassificationCool})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "C", leads[0].Name)
}

func TestSQLiteStore_PatchAndDelete(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := s.UpsertLead(ctx, lead.Lead{OwnerID: "owner-1", PlaceID: "p1", Name: "Antigo"})
	require.NoError(t, err)

	name := "Novo Nome"
	phone := "(11) 3333-2222"
	status := lead.StatusDisqualified
	l, err := s.PatchLead(ctx, "owner-1", res.ID, LeadPatch{Name: &name, Phone: &phone, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Novo Nome", l.Name)
	assert.Equal(t, "1133332222", l.Phone)
	assert.Equal(t, lead.StatusDisqualified, l.Status)

	require.NoError(t, s.DeleteLead(ctx, "owner-1", res.ID))

	_, err = s.GetLead(ctx, "owner-1", res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteLead(ctx, "owner-1", res.ID), ErrNotFound)
}

func TestSQLiteStore_Interactions_Lifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := s.UpsertLead(ctx, lead.Lead{OwnerID: "owner-1", PlaceID: "p1", Name: "Padaria"})
	require.NoError(t, err)

	l, err := s.LogInteraction(ctx, "owner-1", lead.Interaction{
		LeadID:    res.ID,
		Type:      "mensagem",
		Direction: lead.DirectionOutbound,
		Content:   "Olá! Vi o site de vocês.",
	})
	require.NoError(t, err)
	assert.Equal(t, lead.StatusContacted, l.Status)
	require.NotNil(t, l.FirstContactAt)
	firstContact := *l.FirstContactAt

	l, err = s.LogInteraction(ctx, "owner-1", lead.Interaction{
		LeadID:    res.ID,
		Type:      "mensagem",
		Direction: lead.DirectionInbound,
		Content:   "Oi, pode falar.",
	})
	require.NoError(t, err)
	assert.Equal(t, lead.StatusReplied, l.Status)
	require.NotNil(t, l.FirstResponseAt)

	// Further messages append without touching status or the first stamps.
	l, err = s.LogInteraction(ctx, "owner-1", lead.Interaction{
		LeadID:    res.ID,
		Type:      "mensagem",
		Direction: lead.DirectionOutbound,
		Content:   "Posso te mandar uma proposta?",
	})
	require.NoError(t, err)
	assert.Equal(t, lead.StatusReplied, l.Status)
	assert.Equal(t, firstContact.Unix(), l.FirstContactAt.Unix())

	items, err := s.ListInteractions(ctx, "owner-1", res.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, lead.DirectionOutbound, items[0].Direction)
	assert.Equal(t, lead.DirectionInbound, items[1].Direction)

	_, err = s.LogInteraction(ctx, "owner-2", lead.Interaction{LeadID: res.ID, Type: "mensagem", Direction: lead.DirectionOutbound})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := s.CreateRun(ctx, lead.Run{
		OwnerID:      "owner-1",
		BusinessType: "padaria",
		City:         "São Paulo",
		State:        "SP",
		Quantity:     20,
		Tone:         "consultivo",
	})
	require.NoError(t, err)

	r, err := s.GetRun(ctx, "owner-1", id)
	require.NoError(t, err)
	assert.Equal(t, lead.RunStatusProcessing, r.Status)
	assert.Nil(t, r.CompletedAt)

	stats := lead.RunStats{TotalFound: 18, NewLeads: 15, Duplicates: 3, Hot: 4}
	require.NoError(t, s.CompleteRun(ctx, id, stats))

	r, err = s.GetRun(ctx, "owner-1", id)
	require.NoError(t, err)
	assert.Equal(t, lead.RunStatusCompleted, r.Status)
	require.NotNil(t, r.Stats)
	assert.Equal(t, stats, *r.Stats)
	assert.NotNil(t, r.CompletedAt)

	// Terminal states are reached exactly once.
	assert.Error(t, s.CompleteRun(ctx, id, stats))
	assert.Error(t, s.FailRun(ctx, id, "late failure"))
}

func TestSQLiteStore_FailRun(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := s.CreateRun(ctx, lead.Run{OwnerID: "owner-1", BusinessType: "padaria", City: "Campinas", Quantity: 10})
	require.NoError(t, err)

	require.NoError(t, s.FailRun(ctx, id, "discovery provider unavailable"))

	r, err := s.GetRun(ctx, "owner-1", id)
	require.NoError(t, err)
	assert.Equal(t, lead.RunStatusFailed, r.Status)
	assert.Equal(t, "discovery provider unavailable", r.Error)
}

func TestSQLiteStore_UnverifiedQueue(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	withSite, err := s.UpsertLead(ctx, lead.Lead{OwnerID: "owner-1", PlaceID: "p1", Website: "https://a.example", Score: 80})
	require.NoError(t, err)
	_, err = s.UpsertLead(ctx, lead.Lead{OwnerID: "owner-1", PlaceID: "p2", Score: 60})
	require.NoError(t, err)
	verified, err := s.UpsertLead(ctx, lead.Lead{OwnerID: "owner-1", PlaceID: "p3", Website: "https://c.example", Score: 70})
	require.NoError(t, err)

	require.NoError(t, s.SetVerification(ctx, "owner-1", verified.ID, lead.Verification{
		Level: lead.LevelAdvanced, VerifiedAt: time.Now().UTC(),
	}, 70, lead.ClassificationWarm))

	// Only leads with a website and no verification yet are queued.
	pending, err := s.ListUnverified(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, withSite.ID, pending[0].ID)

	n, err := s.CountUnverified(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_SetIcebreaker(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := s.UpsertLead(ctx, lead.Lead{OwnerID: "owner-1", PlaceID: "p1", Name: "Padaria"})
	require.NoError(t, err)

	require.NoError(t, s.SetIcebreaker(ctx, "owner-1", res.ID, "Vi que a padaria de vocês ainda não tem site."))

	l, err := s.GetLead(ctx, "owner-1", res.ID)
	require.NoError(t, err)
	assert.Contains(t, l.Icebreaker, "ainda não tem site")

	assert.ErrorIs(t, s.SetIcebreaker(ctx, "owner-2", res.ID, "x"), ErrNotFound)
}
