package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/scoutbase/curator/internal/db"
	"github.com/scoutbase/curator/internal/model"
)

// PostgresStore implements Store using pgx.
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

// NewPostgresWithPool wraps an existing pool. Used by tests (pgxmock) and by
// commands that manage the pool themselves.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	website       TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	funding       TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL,
	article_url   TEXT NOT NULL DEFAULT '',
	imported      BOOLEAN NOT NULL DEFAULT false,
	discovered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source, name)
);

CREATE TABLE IF NOT EXISTS startups (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	tagline      TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	score        DOUBLE PRECISION,
	candidate_id BIGINT REFERENCES candidates(id),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_records (
	id           BIGSERIAL PRIMARY KEY,
	entity_id    TEXT NOT NULL DEFAULT '',
	candidate_id BIGINT,
	prev_status  TEXT NOT NULL,
	new_status   TEXT NOT NULL DEFAULT '',
	actor        TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_startups_status ON startups(status);
CREATE INDEX IF NOT EXISTS idx_startups_created ON startups(created_at, id);
CREATE INDEX IF NOT EXISTS idx_candidates_imported ON candidates(imported);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_records(entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_candidate ON audit_records(candidate_id);
`

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const startupColumns = `id, name, tagline, status, score, candidate_id, created_at`

// ListStartups returns one directory page plus the total count matching the
// filter. The count runs as a separate query over the same predicate so
// page math stays accurate even when the requested page is empty.
func (s *PostgresStore) ListStartups(ctx context.Context, f DirectoryFilter) ([]model.Startup, int, error) {
	conditions, args := startupConditions(f)

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM startups` + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count startups")
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	offset := f.Page * pageSize

	argIdx := len(args) + 1
	query := fmt.Sprintf(
		`SELECT %s FROM startups%s ORDER BY created_at, id LIMIT $%d OFFSET $%d`,
		startupColumns, where, argIdx, argIdx+1,
	)
	args = append(args, pageSize, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list startups")
	}
	defer rows.Close()

	startups, err := scanStartups(rows)
	if err != nil {
		return nil, 0, err
	}
	return startups, total, nil
}

// GetStartups returns the startups for the given IDs in request order.
// Missing IDs are simply absent from the result.
func (s *PostgresStore) GetStartups(ctx context.Context, ids []string) ([]model.Startup, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+startupColumns+` FROM startups WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get startups")
	}
	defer rows.Close()

	startups, err := scanStartups(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Startup, len(startups))
	for _, st := range startups {
		byID[st.ID] = st
	}
	ordered := make([]model.Startup, 0, len(startups))
	for _, id := range ids {
		if st, ok := byID[id]; ok {
			ordered = append(ordered, st)
		}
	}
	return ordered, nil
}

// TransitionStatus moves every ID from pending to target inside one
// transaction, appending one audit record per entity. Row locks on the
// selected startups mean two overlapping calls cannot both win the same
// entity: the loser sees the mutated status and aborts.
func (s *PostgresStore) TransitionStatus(ctx context.Context, ids []string, target model.Status, actor string) (int, error) {
	if len(ids) == 0 {
		return 0, eris.New("postgres: transition: no ids")
	}
	if !target.Terminal() {
		return 0, eris.Errorf("postgres: transition: invalid target status %q", target)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: transition: begin tx")
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, status FROM startups WHERE id = ANY($1) FOR UPDATE`, ids)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: transition: lock rows")
	}

	statuses := make(map[string]model.Status, len(ids))
	for rows.Next() {
		var id string
		var status model.Status
		if err := rows.Scan(&id, &status); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "postgres: transition: scan status")
		}
		statuses[id] = status
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "postgres: transition: read statuses")
	}

	var offending []string
	for _, id := range ids {
		if st, ok := statuses[id]; !ok || st != model.StatusPending {
			offending = append(offending, id)
		}
	}
	if len(offending) > 0 {
		return 0, &model.NotFoundError{IDs: offending}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE startups SET status = $2 WHERE id = ANY($1)`, ids, string(target))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: transition: update status")
	}

	for _, id := range ids {
		if _, err := tx.Exec(ctx,
			`INSERT INTO audit_records (entity_id, prev_status, new_status, actor, outcome)
			VALUES ($1, $2, $3, $4, $5)`,
			id, string(model.StatusPending), string(target), actor, model.OutcomeOK,
		); err != nil {
			return 0, eris.Wrapf(err, "postgres: transition: audit %s", id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: transition: commit")
	}
	return int(tag.RowsAffected()), nil
}

// GetCandidate returns the candidate or nil when it does not exist.
func (s *PostgresStore) GetCandidate(ctx context.Context, id int64) (*model.Candidate, error) {
	var c model.Candidate
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, website, description, funding, source, article_url, imported, discovered_at
		FROM candidates WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Website, &c.Description, &c.Funding,
		&c.Source, &c.ArticleURL, &c.Imported, &c.DiscoveredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get candidate %d", id)
	}
	return &c, nil
}

// ClaimCandidate atomically flips imported false→true. Returns false when the
// candidate was already imported (or claimed by a concurrent caller). The
// conditional UPDATE is the idempotency check-and-set, evaluated against
// current persisted state.
func (s *PostgresStore) ClaimCandidate(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates SET imported = true WHERE id = $1 AND imported = false`, id)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: claim candidate %d", id)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseCandidate reverts a claim after a failed enrichment.
func (s *PostgresStore) ReleaseCandidate(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE candidates SET imported = false WHERE id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: release candidate %d", id)
	}
	return nil
}

// CreateStartup inserts a new curated startup.
func (s *PostgresStore) CreateStartup(ctx context.Context, st *model.Startup) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO startups (id, name, tagline, status, score, candidate_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		st.ID, st.Name, st.Tagline, string(st.Status), st.Score, st.CandidateID, st.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: create startup %s", st.Name)
	}
	return nil
}

// BulkInsertCandidates loads discovered candidates, skipping rows whose
// (source, name) pair already exists.
func (s *PostgresStore) BulkInsertCandidates(ctx context.Context, candidates []model.Candidate) (int64, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(candidates))
	for i, c := range candidates {
		discoveredAt := c.DiscoveredAt
		if discoveredAt.IsZero() {
			discoveredAt = time.Now().UTC()
		}
		rows[i] = []any{
			c.Name, c.Website, c.Description, c.Funding,
			c.Source, c.ArticleURL, discoveredAt,
		}
	}

	cfg := db.UpsertConfig{
		Table: "candidates",
		Columns: []string{
			"name", "website", "description", "funding",
			"source", "article_url", "discovered_at",
		},
		ConflictKeys: []string{"source", "name"},
		DoNothing:    true,
	}

	return db.BulkUpsert(ctx, s.pool, cfg, rows)
}

// AppendAudit appends one immutable audit record.
func (s *PostgresStore) AppendAudit(ctx context.Context, rec *model.AuditRecord) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO audit_records (entity_id, candidate_id, prev_status, new_status, actor, outcome, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.EntityID, rec.CandidateID, rec.PrevStatus, rec.NewStatus,
		rec.Actor, rec.Outcome, rec.Reason,
	); err != nil {
		return eris.Wrap(err, "postgres: append audit")
	}
	return nil
}

const auditColumns = `id, entity_id, candidate_id, prev_status, new_status, actor, outcome, reason, created_at`

// ListAudit returns the audit trail for a curated entity, oldest first.
func (s *PostgresStore) ListAudit(ctx context.Context, entityID string) ([]model.AuditRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM audit_records WHERE entity_id = $1 ORDER BY id`, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()
	return scanAudit(rows)
}

// ListAuditByCandidate returns the audit trail for a source candidate,
// oldest first.
func (s *PostgresStore) ListAuditByCandidate(ctx context.Context, candidateID int64) ([]model.AuditRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM audit_records WHERE candidate_id = $1 ORDER BY id`, candidateID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit by candidate")
	}
	defer rows.Close()
	return scanAudit(rows)
}

func startupConditions(f DirectoryFilter) ([]string, []any) {
	var conditions []string
	var args []any
	argIdx := 1

	if f.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*f.Status))
		argIdx++
	}
	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argIdx))
		args = append(args, "%"+f.Search+"%")
	}
	return conditions, args
}

func scanStartups(rows pgx.Rows) ([]model.Startup, error) {
	var startups []model.Startup
	for rows.Next() {
		var st model.Startup
		if err := rows.Scan(
			&st.ID, &st.Name, &st.Tagline, &st.Status,
			&st.Score, &st.CandidateID, &st.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan startup")
		}
		startups = append(startups, st)
	}
	return startups, rows.Err()
}

func scanAudit(rows pgx.Rows) ([]model.AuditRecord, error) {
	var records []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		if err := rows.Scan(
			&rec.ID, &rec.EntityID, &rec.CandidateID, &rec.PrevStatus,
			&rec.NewStatus, &rec.Actor, &rec.Outcome, &rec.Reason, &rec.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit record")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
