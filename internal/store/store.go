// Package store persists candidates, startups and the audit trail behind a
// driver-agnostic interface with Postgres and SQLite implementations.
package store

import (
	"context"

	"github.com/scoutbase/curator/internal/model"
)

// DirectoryFilter specifies the predicate and window for a directory page.
type DirectoryFilter struct {
	Status   *model.Status // exact status match; nil = any
	Search   string        // case-insensitive substring on name
	Page     int           // zero-based
	PageSize int
}

// Store defines the persistence interface for the curation service.
type Store interface {
	// Directory reads. ListStartups returns the page rows in stable order
	// (creation order, ties broken by ID) and the total count matching the
	// filter across all pages.
	ListStartups(ctx context.Context, f DirectoryFilter) ([]model.Startup, int, error)
	GetStartups(ctx context.Context, ids []string) ([]model.Startup, error)

	// TransitionStatus applies target to every ID, all-or-nothing, inside a
	// single transaction together with one ok audit record per entity.
	// Any ID that is missing or no longer pending aborts the whole call
	// with *model.NotFoundError and no mutation.
	TransitionStatus(ctx context.Context, ids []string, target model.Status, actor string) (int, error)

	// Import pipeline support. ClaimCandidate is the atomic idempotency
	// claim: it flips imported false→true and reports whether this caller
	// won the flip. ReleaseCandidate reverts a claim after a failed
	// enrichment.
	GetCandidate(ctx context.Context, id int64) (*model.Candidate, error)
	ClaimCandidate(ctx context.Context, id int64) (bool, error)
	ReleaseCandidate(ctx context.Context, id int64) error
	CreateStartup(ctx context.Context, s *model.Startup) error

	// Feed ingestion. Duplicate (source, name) pairs are skipped.
	BulkInsertCandidates(ctx context.Context, candidates []model.Candidate) (int64, error)

	// Audit trail. Records are append-only, never updated or deleted.
	AppendAudit(ctx context.Context, rec *model.AuditRecord) error
	ListAudit(ctx context.Context, entityID string) ([]model.AuditRecord, error)
	ListAuditByCandidate(ctx context.Context, candidateID int64) ([]model.AuditRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
