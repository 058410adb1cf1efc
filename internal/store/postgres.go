package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/db"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/lead"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS research_runs (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	business_type TEXT NOT NULL,
	city          TEXT NOT NULL,
	state         TEXT,
	quantity      INTEGER NOT NULL DEFAULT 20,
	tone          TEXT,
	status        TEXT NOT NULL DEFAULT 'processing',
	stats         JSONB,
	error         TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_research_runs_owner ON research_runs(owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_research_runs_status ON research_runs(status);

CREATE TABLE IF NOT EXISTS leads (
	id                TEXT PRIMARY KEY,
	owner_id          TEXT NOT NULL,
	place_id          TEXT NOT NULL,
	legacy_place_id   TEXT,
	run_id            TEXT REFERENCES research_runs(id) ON DELETE SET NULL,
	name              TEXT,
	address           TEXT,
	city              TEXT,
	state             TEXT,
	city_key          TEXT,
	category          TEXT,
	phone             TEXT,
	has_whatsapp      BOOLEAN NOT NULL DEFAULT false,
	website           TEXT,
	instagram         TEXT,
	score             INTEGER NOT NULL DEFAULT 0,
	classification    TEXT NOT NULL DEFAULT 'COLD',
	google_ads        BOOLEAN NOT NULL DEFAULT false,
	meta_ads          BOOLEAN NOT NULL DEFAULT false,
	tiktok_ads        BOOLEAN NOT NULL DEFAULT false,
	google_analytics  BOOLEAN NOT NULL DEFAULT false,
	tag_manager       BOOLEAN NOT NULL DEFAULT false,
	meta_pixel        BOOLEAN NOT NULL DEFAULT false,
	heatmap           BOOLEAN NOT NULL DEFAULT false,
	crm               BOOLEAN NOT NULL DEFAULT false,
	marketing_level   TEXT,
	marketing_bonus   INTEGER NOT NULL DEFAULT 0,
	opportunity       TEXT,
	verified          BOOLEAN NOT NULL DEFAULT false,
	verified_at       TIMESTAMPTZ,
	icebreaker        TEXT,
	diagnosis         JSONB,
	diagnosis_score   INTEGER,
	diagnosis_temperature TEXT,
	status            TEXT NOT NULL DEFAULT 'NOVO',
	first_contact_at  TIMESTAMPTZ,
	first_response_at TIMESTAMPTZ,
	notes             TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT leads_owner_place_key UNIQUE (owner_id, place_id),
	CONSTRAINT leads_owner_legacy_place_key UNIQUE (owner_id, legacy_place_id)
);

CREATE INDEX IF NOT EXISTS idx_leads_owner ON leads(owner_id);
CREATE INDEX IF NOT EXISTS idx_leads_owner_classification ON leads(owner_id, classification);
CREATE INDEX IF NOT EXISTS idx_leads_owner_status ON leads(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_leads_owner_city_key ON leads(owner_id, city_key);
CREATE INDEX IF NOT EXISTS idx_leads_pending_verify ON leads(owner_id) WHERE verified = false AND website IS NOT NULL;

CREATE TABLE IF NOT EXISTS interactions (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	type       TEXT NOT NULL,
	direction  TEXT NOT NULL,
	content    TEXT,
	outcome    TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interactions_lead ON interactions(lead_id, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// leadColumns is the canonical column list; scanLead depends on its order.
const leadColumns = `id, owner_id, place_id, run_id, name, address, city, state, category, phone,
	has_whatsapp, website, instagram, score, classification,
	google_ads, meta_ads, tiktok_ads, google_analytics, tag_manager, meta_pixel, heatmap, crm,
	marketing_level, marketing_bonus, opportunity, verified, verified_at,
	icebreaker, diagnosis, diagnosis_score, diagnosis_temperature,
	status, first_contact_at, first_response_at, notes, created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*lead.Lead, error) {
	var r lead.Row
	err := row.Scan(
		&r.ID, &r.OwnerID, &r.PlaceID, &r.RunID, &r.Name, &r.Address, &r.City, &r.State, &r.Category, &r.Phone,
		&r.HasWhatsApp, &r.Website, &r.Instagram, &r.Score, &r.Classification,
		&r.GoogleAds, &r.MetaAds, &r.TikTokAds, &r.GoogleAnalytics, &r.TagManager, &r.MetaPixel, &r.Heatmap, &r.CRM,
		&r.MarketingLevel, &r.MarketingBonus, &r.Opportunity, &r.Verified, &r.VerifiedAt,
		&r.Icebreaker, &r.Diagnosis, &r.DiagnosisScore, &r.DiagnosisTemperature,
		&r.Status, &r.FirstContactAt, &r.FirstResponseAt, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l := lead.FromRow(r)
	return &l, nil
}

// upsertLeadSQL targets a named unique constraint so the historical key can
// be retried when the primary one is not recognized by the store. On
// conflict only discovery-stage fields are overwritten; verification,
// outreach state, notes, and the icebreaker survive a re-research. Score and
// classification are preserved once the lead is verified so a re-discovery
// never strips an earned bonus.
const upsertLeadSQL = `
INSERT INTO leads (
	id, owner_id, place_id, legacy_place_id, run_id, name, address, city, state, city_key,
	category, phone, has_whatsapp, website, instagram, score, classification, status,
	created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
ON CONFLICT ON CONSTRAINT %s DO UPDATE SET
	run_id = EXCLUDED.run_id,
	name = EXCLUDED.name,
	address = EXCLUDED.address,
	city = EXCLUDED.city,
	state = EXCLUDED.state,
	city_key = EXCLUDED.city_key,
	category = EXCLUDED.category,
	phone = EXCLUDED.phone,
	has_whatsapp = EXCLUDED.has_whatsapp,
	website = EXCLUDED.website,
	instagram = EXCLUDED.instagram,
	score = CASE WHEN leads.verified THEN leads.score ELSE EXCLUDED.score END,
	classification = CASE WHEN leads.verified THEN leads.classification ELSE EXCLUDED.classification END,
	updated_at = EXCLUDED.updated_at
RETURNING id, (xmax = 0) AS is_new`

const (
	primaryConflictConstraint = "leads_owner_place_key"
	legacyConflictConstraint  = "leads_owner_legacy_place_key"
)

// UpsertLead persists a discovered lead, resolving (owner_id, place_id)
// conflicts atomically at the storage layer. Falls back to the historical
// conflict key when the primary constraint does not exist on the underlying
// store; exactly one of the two statements completes, so new/duplicate is
// never double-counted.
func (s *PostgresStore) UpsertLead(ctx context.Context, l lead.Lead) (*UpsertResult, error) {
	if l.OwnerID == "" || l.PlaceID == "" {
		return nil, eris.New("postgres: upsert lead: owner id and place id are required")
	}

	r := lead.ToRow(l)
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	res, err := s.upsertOn(ctx, primaryConflictConstraint, r, now)
	if err != nil && isUndefinedConstraint(err) {
		res, err = s.upsertOn(ctx, legacyConflictConstraint, r, now)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert lead %s", l.PlaceID)
	}
	return res, nil
}

func (s *PostgresStore) upsertOn(ctx context.Context, constraint string, r lead.Row, now time.Time) (*UpsertResult, error) {
	var legacyID *string
	if constraint == legacyConflictConstraint {
		legacyID = &r.PlaceID
	}

	var res UpsertResult
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(upsertLeadSQL, constraint),
		r.ID, r.OwnerID, r.PlaceID, legacyID, r.RunID, r.Name, r.Address, r.City, r.State, lead.CityKey(deref(r.City)),
		r.Category, r.Phone, r.HasWhatsApp, r.Website, r.Instagram, r.Score, r.Classification, r.Status,
		now, now,
	).Scan(&res.ID, &res.IsNew)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// isUndefinedConstraint detects postgres error 42704 (undefined_object),
// raised when the named ON CONFLICT constraint does not exist.
func isUndefinedConstraint(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42704"
	}
	return strings.Contains(err.Error(), "does not exist")
}

func (s *PostgresStore) GetLead(ctx context.Context, ownerID, id string) (*lead.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, ownerID string, f LeadFilter) ([]lead.Lead, error) {
	conditions := []string{"owner_id = $1"}
	args := []any{ownerID}
	argIdx := 2

	if f.Classification != "" {
		conditions = append(conditions, fmt.Sprintf("classification = $%d", argIdx))
		args = append(args, string(f.Classification))
		argIdx++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(f.Status))
		argIdx++
	}
	if f.City != "" {
		conditions = append(conditions, fmt.Sprintf("city_key = $%d", argIdx))
		args = append(args, lead.CityKey(f.City))
		argIdx++
	}
	if f.MinScore != nil {
		conditions = append(conditions, fmt.Sprintf("score >= $%d", argIdx))
		args = append(args, *f.MinScore)
		argIdx++
	}
	if f.MaxScore != nil {
		conditions = append(conditions, fmt.Sprintf("score <= $%d", argIdx))
		args = append(args, *f.MaxScore)
		argIdx++
	}
	if f.HasWebsite != nil {
		if *f.HasWebsite {
			conditions = append(conditions, "website IS NOT NULL")
		} else {
			conditions = append(conditions, "website IS NULL")
		}
	}
	if f.HasWhatsApp != nil {
		conditions = append(conditions, fmt.Sprintf("has_whatsapp = $%d", argIdx))
		args = append(args, *f.HasWhatsApp)
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(
		`SELECT %s FROM leads WHERE %s ORDER BY score DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		leadColumns, strings.Join(conditions, " AND "), argIdx, argIdx+1,
	)
	args = append(args, limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads rows")
}

func (s *PostgresStore) PatchLead(ctx context.Context, ownerID, id string, p LeadPatch) (*lead.Lead, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id, ownerID}
	argIdx := 3

	addSet := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, val)
		argIdx++
	}

	if p.Name != nil {
		addSet("name", *p.Name)
	}
	if p.Phone != nil {
		addSet("phone", lead.NormalizePhone(*p.Phone))
	}
	if p.Website != nil {
		addSet("website", nullable(*p.Website))
	}
	if p.Instagram != nil {
		addSet("instagram", nullable(*p.Instagram))
	}
	if p.Notes != nil {
		addSet("notes", nullable(*p.Notes))
	}
	if p.Status != nil {
		addSet("status", string(lead.ParseStatus(string(*p.Status))))
	}

	query := fmt.Sprintf(
		`UPDATE leads SET %s WHERE id = $1 AND owner_id = $2 RETURNING %s`,
		strings.Join(sets, ", "), leadColumns,
	)
	l, err := scanLead(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: patch lead %s", id)
	}
	return l, nil
}

func (s *PostgresStore) DeleteLead(ctx context.Context, ownerID, id string) error {
	// Interactions go with the lead via ON DELETE CASCADE.
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM leads WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUnverified(ctx context.Context, ownerID string) ([]lead.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE owner_id = $1 AND verified = false AND website IS NOT NULL
		 ORDER BY score DESC, created_at`,
		ownerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unverified")
	}
	defer rows.Close()

	var leads []lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan unverified lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list unverified rows")
}

func (s *PostgresStore) CountUnverified(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM leads WHERE owner_id = $1 AND verified = false AND website IS NOT NULL`,
		ownerID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count unverified")
	}
	return n, nil
}

func (s *PostgresStore) SetVerification(ctx context.Context, ownerID, id string, v lead.Verification, score int, class lead.Classification) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET
			google_ads = $3, meta_ads = $4, tiktok_ads = $5, google_analytics = $6,
			tag_manager = $7, meta_pixel = $8, heatmap = $9, crm = $10,
			marketing_level = $11, marketing_bonus = $12, opportunity = $13,
			verified = true, verified_at = $14,
			score = $15, classification = $16, updated_at = now()
		WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
		v.GoogleAds, v.MetaAds, v.TikTokAds, v.GoogleAnalytics,
		v.TagManager, v.MetaPixel, v.Heatmap, v.CRM,
		string(v.Level), v.Bonus, v.Opportunity,
		v.VerifiedAt, score, string(class),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set verification %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetIcebreaker(ctx context.Context, ownerID, id, text string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET icebreaker = $3, updated_at = now() WHERE id = $1 AND owner_id = $2`,
		id, ownerID, text,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set icebreaker %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LogInteraction appends an interaction and applies the status transition it
// implies in a single transaction. The lead row is locked so concurrent logs
// for the same lead serialize.
func (s *PostgresStore) LogInteraction(ctx context.Context, ownerID string, it lead.Interaction) (*lead.Lead, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin log interaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	l, err := scanLead(tx.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 AND owner_id = $2 FOR UPDATE`,
		it.LeadID, ownerID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: lock lead %s", it.LeadID)
	}

	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO interactions (id, lead_id, type, direction, content, outcome, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		it.ID, it.LeadID, it.Type, string(it.Direction), it.Content, it.Outcome, it.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert interaction")
	}

	if lead.ApplyTransition(l, it.Direction, it.CreatedAt) {
		_, err = tx.Exec(ctx,
			`UPDATE leads SET status = $3, first_contact_at = $4, first_response_at = $5, updated_at = now()
			 WHERE id = $1 AND owner_id = $2`,
			it.LeadID, ownerID, string(l.Status), l.FirstContactAt, l.FirstResponseAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: update lead status")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit log interaction")
	}
	return l, nil
}

func (s *PostgresStore) ListInteractions(ctx context.Context, ownerID, leadID string) ([]lead.Interaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT i.id, i.lead_id, i.type, i.direction, i.content, i.outcome, i.created_at
		 FROM interactions i
		 JOIN leads l ON l.id = i.lead_id
		 WHERE i.lead_id = $1 AND l.owner_id = $2
		 ORDER BY i.created_at`,
		leadID, ownerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list interactions")
	}
	defer rows.Close()

	var items []lead.Interaction
	for rows.Next() {
		var it lead.Interaction
		var content, outcome *string
		var direction string
		if err := rows.Scan(&it.ID, &it.LeadID, &it.Type, &direction, &content, &outcome, &it.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan interaction")
		}
		it.Direction = lead.Direction(direction)
		it.Content = deref(content)
		it.Outcome = deref(outcome)
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list interactions rows")
}

func (s *PostgresStore) CreateRun(ctx context.Context, r lead.Run) (string, error) {
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO research_runs (id, owner_id, business_type, city, state, quantity, tone, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, r.OwnerID, r.BusinessType, r.City, r.State, r.Quantity, r.Tone,
		string(lead.RunStatusProcessing), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: create run")
	}
	return id, nil
}

// CompleteRun transitions a run out of processing exactly once; a second
// terminal transition hits zero rows and fails.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, stats lead.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run stats")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE research_runs SET status = 'completed', stats = $2, completed_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		runID, statsJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found or already finalized", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE research_runs SET status = 'failed', error = $2, completed_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		runID, errMsg,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found or already finalized", runID)
	}
	return nil
}

func scanRun(row scannable) (*lead.Run, error) {
	var r lead.Run
	var state, tone, errMsg *string
	var statsJSON []byte
	var status string
	err := row.Scan(
		&r.ID, &r.OwnerID, &r.BusinessType, &r.City, &state, &r.Quantity, &tone,
		&status, &statsJSON, &errMsg, &r.CreatedAt, &r.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if state != nil {
		r.State = *state
	}
	if tone != nil {
		r.Tone = *tone
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	r.Status = lead.RunStatus(status)
	if len(statsJSON) > 0 {
		r.Stats = &lead.RunStats{}
		if err := json.Unmarshal(statsJSON, r.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run stats")
		}
	}
	return &r, nil
}

const runColumns = `id, owner_id, business_type, city, state, quantity, tone, status, stats, error, created_at, completed_at`

func (s *PostgresStore) GetRun(ctx context.Context, ownerID, runID string) (*lead.Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM research_runs WHERE id = $1 AND owner_id = $2`,
		runID, ownerID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, ownerID string, f RunFilter) ([]lead.Run, error) {
	query := `SELECT ` + runColumns + ` FROM research_runs WHERE owner_id = $1`
	args := []any{ownerID}
	argIdx := 2

	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(f.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []lead.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs rows")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
