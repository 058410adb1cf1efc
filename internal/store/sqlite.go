package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/lead"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS research_runs (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	business_type TEXT NOT NULL,
	city          TEXT NOT NULL,
	state         TEXT,
	quantity      INTEGER NOT NULL DEFAULT 20,
	tone          TEXT,
	status        TEXT NOT NULL DEFAULT 'processing',
	stats         TEXT,
	error         TEXT,
	created_at    DATETIME NOT NULL,
	completed_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_research_runs_owner ON research_runs(owner_id, created_at DESC);

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
	has_whatsapp      BOOLEAN NOT NULL DEFAULT 0,
	website           TEXT,
	instagram         TEXT,
	score             INTEGER NOT NULL DEFAULT 0,
	classification    TEXT NOT NULL DEFAULT 'COLD',
	google_ads        BOOLEAN NOT NULL DEFAULT 0,
	meta_ads          BOOLEAN NOT NULL DEFAULT 0,
	tiktok_ads        BOOLEAN NOT NULL DEFAULT 0,
	google_analytics  BOOLEAN NOT NULL DEFAULT 0,
	tag_manager       BOOLEAN NOT NULL DEFAULT 0,
	meta_pixel        BOOLEAN NOT NULL DEFAULT 0,
	heatmap           BOOLEAN NOT NULL DEFAULT 0,
	crm               BOOLEAN NOT NULL DEFAULT 0,
	marketing_level   TEXT,
	marketing_bonus   INTEGER NOT NULL DEFAULT 0,
	opportunity       TEXT,
	verified          BOOLEAN NOT NULL DEFAULT 0,
	verified_at       DATETIME,
	icebreaker        TEXT,
	diagnosis         TEXT,
	diagnosis_score   INTEGER,
	diagnosis_temperature TEXT,
	status            TEXT NOT NULL DEFAULT 'NOVO',
	first_contact_at  DATETIME,
	first_response_at DATETIME,
	notes             TEXT,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	UNIQUE (owner_id, place_id),
	UNIQUE (owner_id, legacy_place_id)
);

CREATE INDEX IF NOT EXISTS idx_leads_owner ON leads(owner_id);
CREATE INDEX IF NOT EXISTS idx_leads_owner_city_key ON leads(owner_id, city_key);

CREATE TABLE IF NOT EXISTS interactions (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	type       TEXT NOT NULL,
	direction  TEXT NOT NULL,
	content    TEXT,
	outcome    TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interactions_lead ON interactions(lead_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertLead resolves conflicts inside a single transaction: the insert is
// attempted first (the unique constraint decides, not a racy pre-check), and
// only when the row already exists are the discovery-stage fields updated.
func (s *SQLiteStore) UpsertLead(ctx context.Context, l lead.Lead) (*UpsertResult, error) {
	if l.OwnerID == "" || l.PlaceID == "" {
		return nil, eris.New("sqlite: upsert lead: owner id and place id are required")
	}

	r := lead.ToRow(l)
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := s.upsertInTx(ctx, tx, "place_id", r, now)
	if err != nil && strings.Contains(err.Error(), "ON CONFLICT clause does not match") {
		res, err = s.upsertInTx(ctx, tx, "legacy_place_id", r, now)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert lead %s", l.PlaceID)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit upsert")
	}
	return res, nil
}

func (s *SQLiteStore) upsertInTx(ctx context.Context, tx *sql.Tx, keyColumn string, r lead.Row, now time.Time) (*UpsertResult, error) {
	var legacyID *string
	if keyColumn == "legacy_place_id" {
		legacyID = &r.PlaceID
	}

	insert := fmt.Sprintf(`INSERT INTO leads (
		id, owner_id, place_id, legacy_place_id, run_id, name, address, city, state, city_key,
		category, phone, has_whatsapp, website, instagram, score, classification, status,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (owner_id, %s) DO NOTHING`, keyColumn)

	insRes, err := tx.ExecContext(ctx, insert,
		r.ID, r.OwnerID, r.PlaceID, legacyID, r.RunID, r.Name, r.Address, r.City, r.State, lead.CityKey(deref(r.City)),
		r.Category, r.Phone, r.HasWhatsApp, r.Website, r.Instagram, r.Score, r.Classification, r.Status,
		now, now,
	)
	if err != nil {
		return nil, err
	}
	if n, err := insRes.RowsAffected(); err == nil && n == 1 {
		return &UpsertResult{ID: r.ID, IsNew: true}, nil
	}

	// Existing row: overwrite discovery-stage fields only, preserving
	// verification, outreach state, notes, icebreaker, and the earned
	// score once verified.
	update := fmt.Sprintf(`UPDATE leads SET
		run_id = ?, name = ?, address = ?, city = ?, state = ?, city_key = ?,
		category = ?, phone = ?, has_whatsapp = ?, website = ?, instagram = ?,
		score = CASE WHEN verified THEN score ELSE ? END,
		classification = CASE WHEN verified THEN classification ELSE ? END,
		updated_at = ?
	WHERE owner_id = ? AND %s = ?`, keyColumn)

	keyValue := r.PlaceID
	if _, err := tx.ExecContext(ctx, update,
		r.RunID, r.Name, r.Address, r.City, r.State, lead.CityKey(deref(r.City)),
		r.Category, r.Phone, r.HasWhatsApp, r.Website, r.Instagram,
		r.Score, r.Classification, now,
		r.OwnerID, keyValue,
	); err != nil {
		return nil, err
	}

	var id string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM leads WHERE owner_id = ? AND %s = ?`, keyColumn),
		r.OwnerID, keyValue,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	return &UpsertResult{ID: id, IsNew: false}, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, ownerID, id string) (*lead.Lead, error) {
	l, err := scanLead(s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, ownerID string, f LeadFilter) ([]lead.Lead, error) {
	conditions := []string{"owner_id = ?"}
	args := []any{ownerID}

	if f.Classification != "" {
		conditions = append(conditions, "classification = ?")
		args = append(args, string(f.Classification))
	}
	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.City != "" {
		conditions = append(conditions, "city_key = ?")
		args = append(args, lead.CityKey(f.City))
	}
	if f.MinScore != nil {
		conditions = append(conditions, "score >= ?")
		args = append(args, *f.MinScore)
	}
	if f.MaxScore != nil {
		conditions = append(conditions, "score <= ?")
		args = append(args, *f.MaxScore)
	}
	if f.HasWebsite != nil {
		if *f.HasWebsite {
			conditions = append(conditions, "website IS NOT NULL")
		} else {
			conditions = append(conditions, "website IS NULL")
		}
	}
	if f.HasWhatsApp != nil {
		conditions = append(conditions, "has_whatsapp = ?")
		args = append(args, *f.HasWhatsApp)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(
		`SELECT %s FROM leads WHERE %s ORDER BY score DESC, created_at DESC LIMIT ? OFFSET ?`,
		leadColumns, strings.Join(conditions, " AND "),
	)
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads rows")
}

func (s *SQLiteStore) PatchLead(ctx context.Context, ownerID, id string, p LeadPatch) (*lead.Lead, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, lead.NormalizePhone(*p.Phone))
	}
	if p.Website != nil {
		sets = append(sets, "website = ?")
		args = append(args, nullable(*p.Website))
	}
	if p.Instagram != nil {
		sets = append(sets, "instagram = ?")
		args = append(args, nullable(*p.Instagram))
	}
	if p.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, nullable(*p.Notes))
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(lead.ParseStatus(string(*p.Status))))
	}

	args = append(args, id, ownerID)
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE leads SET %s WHERE id = ? AND owner_id = ?`, strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: patch lead %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.GetLead(ctx, ownerID, id)
}

func (s *SQLiteStore) DeleteLead(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM leads WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete lead %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListUnverified(ctx context.Context, ownerID string) ([]lead.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE owner_id = ? AND verified = 0 AND website IS NOT NULL
		 ORDER BY score DESC, created_at`,
		ownerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unverified")
	}
	defer rows.Close() //nolint:errcheck

	var leads []lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unverified lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list unverified rows")
}

func (s *SQLiteStore) CountUnverified(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM leads WHERE owner_id = ? AND verified = 0 AND website IS NOT NULL`,
		ownerID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: count unverified")
	}
	return n, nil
}

func (s *SQLiteStore) SetVerification(ctx context.Context, ownerID, id string, v lead.Verification, score int, class lead.Classification) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
			google_ads = ?, meta_ads = ?, tiktok_ads = ?, google_analytics = ?,
			tag_manager = ?, meta_pixel = ?, heatmap = ?, crm = ?,
			marketing_level = ?, marketing_bonus = ?, opportunity = ?,
			verified = 1, verified_at = ?,
			score = ?, classification = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		v.GoogleAds, v.MetaAds, v.TikTokAds, v.GoogleAnalytics,
		v.TagManager, v.MetaPixel, v.Heatmap, v.CRM,
		string(v.Level), v.Bonus, v.Opportunity,
		v.VerifiedAt, score, string(class), time.Now().UTC(),
		id, ownerID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set verification %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SetIcebreaker(ctx context.Context, ownerID, id, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET icebreaker = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		text, time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set icebreaker %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) LogInteraction(ctx context.Context, ownerID string, it lead.Interaction) (*lead.Lead, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin log interaction")
	}
	defer tx.Rollback() //nolint:errcheck

	l, err := scanLead(tx.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ? AND owner_id = ?`,
		it.LeadID, ownerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: load lead %s", it.LeadID)
	}

	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO interactions (id, lead_id, type, direction, content, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.LeadID, it.Type, string(it.Direction), it.Content, it.Outcome, it.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert interaction")
	}

	if lead.ApplyTransition(l, it.Direction, it.CreatedAt) {
		_, err = tx.ExecContext(ctx,
			`UPDATE leads SET status = ?, first_contact_at = ?, first_response_at = ?, updated_at = ?
			 WHERE id = ? AND owner_id = ?`,
			string(l.Status), l.FirstContactAt, l.FirstResponseAt, time.Now().UTC(),
			it.LeadID, ownerID,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: update lead status")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit log interaction")
	}
	return l, nil
}

func (s *SQLiteStore) ListInteractions(ctx context.Context, ownerID, leadID string) ([]lead.Interaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.lead_id, i.type, i.direction, i.content, i.outcome, i.created_at
		 FROM interactions i
		 JOIN leads l ON l.id = i.lead_id
		 WHERE i.lead_id = ? AND l.owner_id = ?
		 ORDER BY i.created_at`,
		leadID, ownerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list interactions")
	}
	defer rows.Close() //nolint:errcheck

	var items []lead.Interaction
	for rows.Next() {
		var it lead.Interaction
		var content, outcome *string
		var direction string
		if err := rows.Scan(&it.ID, &it.LeadID, &it.Type, &direction, &content, &outcome, &it.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan interaction")
		}
		it.Direction = lead.Direction(direction)
		it.Content = deref(content)
		it.Outcome = deref(outcome)
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list interactions rows")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, r lead.Run) (string, error) {
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO research_runs (id, owner_id, business_type, city, state, quantity, tone, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.OwnerID, r.BusinessType, r.City, r.State, r.Quantity, r.Tone,
		string(lead.RunStatusProcessing), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: create run")
	}
	return id, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats lead.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stats")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE research_runs SET status = 'completed', stats = ?, completed_at = ?
		 WHERE id = ? AND status = 'processing'`,
		string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return eris.Errorf("sqlite: run %s not found or already finalized", runID)
	}
	return nil
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE research_runs SET status = 'failed', error = ?, completed_at = ?
		 WHERE id = ? AND status = 'processing'`,
		errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return eris.Errorf("sqlite: run %s not found or already finalized", runID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, ownerID, runID string) (*lead.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM research_runs WHERE id = ? AND owner_id = ?`,
		runID, ownerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, ownerID string, f RunFilter) ([]lead.Run, error) {
	query := `SELECT ` + runColumns + ` FROM research_runs WHERE owner_id = ?`
	args := []any{ownerID}

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []lead.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs rows")
}
