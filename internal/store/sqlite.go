package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/scoutbase/curator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	// Write transactions take their lock at BEGIN, so an overlapping
	// transition queues on busy_timeout and then re-reads the committed
	// statuses instead of failing mid-transaction on a stale snapshot.
	if !strings.Contains(dsn, "_txlock=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_txlock=immediate"
	}
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	website       TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	funding       TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL,
	article_url   TEXT NOT NULL DEFAULT '',
	imported      INTEGER NOT NULL DEFAULT 0,
	discovered_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (source, name)
);

CREATE TABLE IF NOT EXISTS startups (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	tagline      TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	score        REAL,
	candidate_id INTEGER REFERENCES candidates(id),
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_records (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id    TEXT NOT NULL DEFAULT '',
	candidate_id INTEGER,
	prev_status  TEXT NOT NULL,
	new_status   TEXT NOT NULL DEFAULT '',
	actor        TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_startups_status ON startups(status);
CREATE INDEX IF NOT EXISTS idx_startups_created ON startups(created_at, id);
CREATE INDEX IF NOT EXISTS idx_candidates_imported ON candidates(imported);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_records(entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_candidate ON audit_records(candidate_id);
`

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListStartups returns one directory page plus the total count matching the
// filter, counted independently of the page window.
func (s *SQLiteStore) ListStartups(ctx context.Context, f DirectoryFilter) ([]model.Startup, int, error) {
	var conditions []string
	var args []any

	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Search != "" {
		conditions = append(conditions, "LOWER(name) LIKE LOWER(?)")
		args = append(args, "%"+f.Search+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM startups"+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count startups")
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}

	query := "SELECT " + startupColumns + " FROM startups" + where +
		" ORDER BY created_at, id LIMIT ? OFFSET ?"
	args = append(args, pageSize, f.Page*pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list startups")
	}
	defer rows.Close()

	startups, err := scanStartupRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return startups, total, nil
}

// GetStartups returns the startups for the given IDs in request order.
func (s *SQLiteStore) GetStartups(ctx context.Context, ids []string) ([]model.Startup, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("SELECT %s FROM startups WHERE id IN (%s)",
		startupColumns, strings.Join(placeholders, ", "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get startups")
	}
	defer rows.Close()

	startups, err := scanStartupRows(rows)
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

// TransitionStatus applies target to every ID, all-or-nothing. SQLite
// serializes writers, so the precondition read and the writes inside one
// transaction see a consistent snapshot and overlapping calls cannot both
// win the same entity.
func (s *SQLiteStore) TransitionStatus(ctx context.Context, ids []string, target model.Status, actor string) (int, error) {
	if len(ids) == 0 {
		return 0, eris.New("sqlite: transition: no ids")
	}
	if !target.Terminal() {
		return 0, eris.Errorf("sqlite: transition: invalid target status %q", target)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: transition: begin tx")
	}
	defer tx.Rollback()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	in := strings.Join(placeholders, ", ")

	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf("SELECT id, status FROM startups WHERE id IN (%s)", in), args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: transition: read statuses")
	}

	statuses := make(map[string]model.Status, len(ids))
	for rows.Next() {
		var id string
		var status model.Status
		if err := rows.Scan(&id, &status); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "sqlite: transition: scan status")
		}
		statuses[id] = status
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "sqlite: transition: read statuses")
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

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE startups SET status = ? WHERE id IN (%s)", in),
		append([]any{string(target)}, args...)...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: transition: update status")
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO audit_records (entity_id, prev_status, new_status, actor, outcome)
			VALUES (?, ?, ?, ?, ?)`,
			id, string(model.StatusPending), string(target), actor, model.OutcomeOK,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: transition: audit %s", id)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: transition: commit")
	}

	n, _ := res.RowsAffected()
	return int(n), nil
}

// GetCandidate returns the candidate or nil when it does not exist.
func (s *SQLiteStore) GetCandidate(ctx context.Context, id int64) (*model.Candidate, error) {
	var c model.Candidate
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, website, description, funding, source, article_url, imported, discovered_at
		FROM candidates WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Website, &c.Description, &c.Funding,
		&c.Source, &c.ArticleURL, &c.Imported, &c.DiscoveredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get candidate %d", id)
	}
	return &c, nil
}

// ClaimCandidate atomically flips imported 0→1 via a conditional UPDATE.
func (s *SQLiteStore) ClaimCandidate(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET imported = 1 WHERE id = ? AND imported = 0`, id)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: claim candidate %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: claim candidate rows affected")
	}
	return n == 1, nil
}

// ReleaseCandidate reverts a claim after a failed enrichment.
func (s *SQLiteStore) ReleaseCandidate(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET imported = 0 WHERE id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: release candidate %d", id)
	}
	return nil
}

// CreateStartup inserts a new curated startup.
func (s *SQLiteStore) CreateStartup(ctx context.Context, st *model.Startup) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO startups (id, name, tagline, status, score, candidate_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Tagline, string(st.Status), st.Score, st.CandidateID, st.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: create startup %s", st.Name)
	}
	return nil
}

// BulkInsertCandidates loads discovered candidates, skipping duplicate
// (source, name) pairs via INSERT OR IGNORE.
func (s *SQLiteStore) BulkInsertCandidates(ctx context.Context, candidates []model.Candidate) (int64, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk insert: begin tx")
	}
	defer tx.Rollback()

	var inserted int64
	for _, c := range candidates {
		discoveredAt := c.DiscoveredAt
		if discoveredAt.IsZero() {
			discoveredAt = time.Now().UTC()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO candidates (name, website, description, funding, source, article_url, discovered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.Name, c.Website, c.Description, c.Funding, c.Source, c.ArticleURL, discoveredAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: bulk insert candidate %s", c.Name)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk insert: commit")
	}
	return inserted, nil
}

// AppendAudit appends one immutable audit record.
func (s *SQLiteStore) AppendAudit(ctx context.Context, rec *model.AuditRecord) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_records (entity_id, candidate_id, prev_status, new_status, actor, outcome, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.EntityID, rec.CandidateID, rec.PrevStatus, rec.NewStatus,
		rec.Actor, rec.Outcome, rec.Reason,
	); err != nil {
		return eris.Wrap(err, "sqlite: append audit")
	}
	return nil
}

// ListAudit returns the audit trail for a curated entity, oldest first.
func (s *SQLiteStore) ListAudit(ctx context.Context, entityID string) ([]model.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_records WHERE entity_id = ? ORDER BY id", entityID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

// ListAuditByCandidate returns the audit trail for a source candidate.
func (s *SQLiteStore) ListAuditByCandidate(ctx context.Context, candidateID int64) ([]model.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_records WHERE candidate_id = ? ORDER BY id", candidateID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit by candidate")
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

func scanStartupRows(rows *sql.Rows) ([]model.Startup, error) {
	var startups []model.Startup
	for rows.Next() {
		var st model.Startup
		if err := rows.Scan(
			&st.ID, &st.Name, &st.Tagline, &st.Status,
			&st.Score, &st.CandidateID, &st.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan startup")
		}
		startups = append(startups, st)
	}
	return startups, rows.Err()
}

func scanAuditRows(rows *sql.Rows) ([]model.AuditRecord, error) {
	var records []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		if err := rows.Scan(
			&rec.ID, &rec.EntityID, &rec.CandidateID, &rec.PrevStatus,
			&rec.NewStatus, &rec.Actor, &rec.Outcome, &rec.Reason, &rec.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit record")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
