package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/lead"
)

var leadTestColumns = []string{
	"id", "owner_id", "place_id", "run_id", "name", "address", "city", "state", "category", "phone",
	"has_whatsapp", "website", "instagram", "score", "classification",
	"google_ads", "meta_ads", "tiktok_ads", "google_analytics", "tag_manager", "meta_pixel", "heatmap", "crm",
	"marketing_level", "marketing_bonus", "opportunity", "verified", "verified_at",
	"icebreaker", "diagnosis", "diagnosis_score", "diagnosis_temperature",
	"status", "first_contact_at", "first_response_at", "notes", "created_at", "updated_at",
}

func ptr[T any](v T) *T { return &v }

// leadRowValues builds a full leads row in leadColumns order.
func leadRowValues(id, owner, place string, score int, class, status string) []any {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return []any{
		id, owner, place, nil, ptr("Padaria Sete Grãos"), nil, ptr("São Paulo"), ptr("SP"), ptr("padaria"), ptr("5511988887777"),
		true, ptr("https://setegraos.example.com.br"), nil, score, class,
		false, false, false, false, false, false, false, false,
		nil, 0, nil, false, nil,
		nil, nil, nil, nil,
		status, nil, nil, nil, now, now,
	}
}

func TestPostgresStore_UpsertLead_New(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectQuery(`ON CONFLICT ON CONSTRAINT leads_owner_place_key`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_new"}).AddRow("lead-1", true))

	res, err := store.UpsertLead(context.Background(), lead.Lead{
		OwnerID: "owner-1",
		PlaceID: "place-abc",
		Name:    "Padaria Sete Grãos",
		City:    "São Paulo",
	})

	require.NoError(t, err)
	assert.Equal(t, "lead-1", res.ID)
	assert.True(t, res.IsNew)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertLead_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectQuery(`ON CONFLICT ON CONSTRAINT leads_owner_place_key`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_new"}).AddRow("lead-1", false))

	res, err := store.UpsertLead(context.Background(), lead.Lead{
		OwnerID: "owner-1",
		PlaceID: "place-abc",
	})

	require.NoError(t, err)
	assert.False(t, res.IsNew)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertLead_LegacyKeyFallback(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectQuery(`ON CONFLICT ON CONSTRAINT leads_owner_place_key`).
		WillReturnError(&pgconn.PgError{Code: "42704", Message: `constraint "leads_owner_place_key" for table "leads" does not exist`})
	mock.ExpectQuery(`ON CONFLICT ON CONSTRAINT leads_owner_legacy_place_key`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_new"}).AddRow("lead-2", false))

	res, err := store.UpsertLead(context.Background(), lead.Lead{
		OwnerID: "owner-1",
		PlaceID: "place-old",
	})

	require.NoError(t, err)
	assert.Equal(t, "lead-2", res.ID)
	assert.False(t, res.IsNew)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertLead_RequiresOwnerAndPlace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	_, err = store.UpsertLead(context.Background(), lead.Lead{PlaceID: "place-abc"})
	assert.Error(t, err)

	_, err = store.UpsertLead(context.Background(), lead.Lead{OwnerID: "owner-1"})
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("lead-1", "owner-1").
		WillReturnRows(pgxmock.NewRows(leadTestColumns).
			AddRow(leadRowValues("lead-1", "owner-1", "place-abc", 80, "HOT", "NOVO")...))

	l, err := store.GetLead(context.Background(), "owner-1", "lead-1")

	require.NoError(t, err)
	assert.Equal(t, "Padaria Sete Grãos", l.Name)
	assert.Equal(t, lead.ClassificationHot, l.Classification)
	assert.Equal(t, lead.StatusNew, l.Status)
	assert.Nil(t, l.Verification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectQuery(`SELECT .+ FROM leads`).
		WithArgs("missing", "owner-1").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetLead(context.Background(), "owner-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads_AppliesFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectQuery(`classification = \$2 AND city_key = \$3 AND score >= \$4 AND website IS NOT NULL`).
		WithArgs("owner-1", "HOT", "sao paulo", 60, 50, 0).
		WillReturnRows(pgxmock.NewRows(leadTestColumns).
			AddRow(leadRowValues("lead-1", "owner-1", "place-a", 80, "HOT", "NOVO")...).
			AddRow(leadRowValues("lead-2", "owner-1", "place-b", 65, "HOT", "CONTATADO")...))

	leads, err := store.ListLeads(context.Background(), "owner-1", LeadFilter{
		Classification: lead.ClassificationHot,
		City:           "São Paulo",
		MinScore:       ptr(60),
		HasWebsite:     ptr(true),
	})

	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "lead-1", leads[0].ID)
	assert.Equal(t, lead.StatusContacted, leads[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteLead_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectExec(`DELETE FROM leads`).
		WithArgs("missing", "owner-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = store.DeleteLead(context.Background(), "owner-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountUnverified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectQuery(`SELECT count\(\*\) FROM leads WHERE owner_id = \$1 AND verified = false AND website IS NOT NULL`).
		WithArgs("owner-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.CountUnverified(context.Background(), "owner-1")

	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetVerification(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	v := lead.Verification{
		GoogleAnalytics: true,
		MetaPixel:       true,
		Level:           lead.LevelBasic,
		Bonus:           12,
		Opportunity:     "Site sem rastreamento de anúncios",
		VerifiedAt:      time.Now().UTC(),
	}

	mock.ExpectExec(`UPDATE leads SET`).
		WithArgs("lead-1", "owner-1",
			false, false, false, true,
			false, true, false, false,
			"BASIC", 12, "Site sem rastreamento de anúncios",
			v.VerifiedAt, 92, "HOT",
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.SetVerification(context.Background(), "owner-1", "lead-1", v, 92, lead.ClassificationHot)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetVerification_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectExec(`UPDATE leads SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.SetVerification(context.Background(), "owner-1", "missing", lead.Verification{}, 0, lead.ClassificationCold)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LogInteraction_TransitionsStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM leads WHERE id = \$1 AND owner_id = \$2 FOR UPDATE`).
		WithArgs("lead-1", "owner-1").
		WillReturnRows(pgxmock.NewRows(leadTestColumns).
			AddRow(leadRowValues("lead-1", "owner-1", "place-abc", 80, "HOT", "NOVO")...))
	mock.ExpectExec(`INSERT INTO interactions`).
		WithArgs(pgxmock.AnyArg(), "lead-1", "mensagem", "ENVIADO", "Olá, tudo bem?", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE leads SET status = \$3`).
		WithArgs("lead-1", "owner-1", "CONTATADO", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	l, err := store.LogInteraction(context.Background(), "owner-1", lead.Interaction{
		LeadID:    "lead-1",
		Type:      "mensagem",
		Direction: lead.DirectionOutbound,
		Content:   "Olá, tudo bem?",
	})

	require.NoError(t, err)
	assert.Equal(t, lead.StatusContacted, l.Status)
	require.NotNil(t, l.FirstContactAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LogInteraction_NoTransition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	// RESPONDEU is terminal for the modeled transitions: another outbound
	// message only appends to history.
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("lead-1", "owner-1").
		WillReturnRows(pgxmock.NewRows(leadTestColumns).
			AddRow(leadRowValues("lead-1", "owner-1", "place-abc", 80, "HOT", "RESPONDEU")...))
	mock.ExpectExec(`INSERT INTO interactions`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	l, err := store.LogInteraction(context.Background(), "owner-1", lead.Interaction{
		LeadID:    "lead-1",
		Type:      "mensagem",
		Direction: lead.DirectionOutbound,
	})

	require.NoError(t, err)
	assert.Equal(t, lead.StatusReplied, l.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LogInteraction_LeadNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("missing", "owner-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err = store.LogInteraction(context.Background(), "owner-1", lead.Interaction{
		LeadID:    "missing",
		Direction: lead.DirectionOutbound,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectExec(`INSERT INTO research_runs`).
		WithArgs(pgxmock.AnyArg(), "owner-1", "padaria", "São Paulo", "SP", 20, "consultivo",
			"processing", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.CreateRun(context.Background(), lead.Run{
		OwnerID:      "owner-1",
		BusinessType: "padaria",
		City:         "São Paulo",
		State:        "SP",
		Quantity:     20,
		Tone:         "consultivo",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectExec(`UPDATE research_runs SET status = 'completed'`).
		WithArgs("run-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.CompleteRun(context.Background(), "run-1", lead.RunStats{TotalFound: 18, NewLeads: 15, Duplicates: 3})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_AlreadyFinalized(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	// The status = 'processing' guard means a second terminal transition
	// matches zero rows.
	mock.ExpectExec(`UPDATE research_runs SET status = 'completed'`).
		WithArgs("run-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.CompleteRun(context.Background(), "run-1", lead.RunStats{})

	assert.ErrorContains(t, err, "already finalized")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectExec(`UPDATE research_runs SET status = 'failed'`).
		WithArgs("run-1", "discovery provider unavailable").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.FailRun(context.Background(), "run-1", "discovery provider unavailable")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	created := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	completed := created.Add(45 * time.Second)
	statsJSON := []byte(`{"total_found":18,"new_leads":15,"duplicates":3,"hot":4}`)

	mock.ExpectQuery(`SELECT .+ FROM research_runs WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("run-1", "owner-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "owner_id", "business_type", "city", "state", "quantity", "tone",
			"status", "stats", "error", "created_at", "completed_at",
		}).AddRow("run-1", "owner-1", "padaria", "São Paulo", ptr("SP"), 20, nil,
			"completed", statsJSON, nil, created, &completed))

	r, err := store.GetRun(context.Background(), "owner-1", "run-1")

	require.NoError(t, err)
	assert.Equal(t, lead.RunStatusCompleted, r.Status)
	require.NotNil(t, r.Stats)
	assert.Equal(t, 18, r.Stats.TotalFound)
	assert.Equal(t, 4, r.Stats.Hot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectQuery(`SELECT .+ FROM research_runs`).
		WithArgs("missing", "owner-1").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetRun(context.Background(), "owner-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
