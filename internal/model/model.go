// Package model defines the domain types shared across the curation service.
package model

import "time"

// Status is the review lifecycle state of a curated startup.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s is a valid target for a bulk transition.
// Only approved and rejected are reachable from pending.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// PrevStatusNone marks audit records for import events, where the entity had
// no prior curated status.
const PrevStatusNone = "none"

// Audit outcome values.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Import failure reasons produced by the pipeline itself. Enrichment failures
// carry the collaborator's error message instead.
const (
	ReasonAlreadyImported = "already_imported"
	ReasonNotFound        = "not_found"
	ReasonCanceled        = "canceled"
)

// Candidate is a startup discovered by an external feed, not yet vetted.
// Only the Imported flag is ever mutated by this service, and only from
// false to true.
type Candidate struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Website      string    `json:"website,omitempty" db:"website"`
	Description  string    `json:"description,omitempty" db:"description"`
	Funding      string    `json:"funding,omitempty" db:"funding"`
	Source       string    `json:"source" db:"source"`
	ArticleURL   string    `json:"article_url,omitempty" db:"article_url"`
	Imported     bool      `json:"imported" db:"imported"`
	DiscoveredAt time.Time `json:"discovered_at" db:"discovered_at"`
}

// Startup is the canonical reviewer-visible record. Created with status
// pending, moved one-way to approved or rejected by a bulk transition.
type Startup struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Tagline     string     `json:"tagline,omitempty" db:"tagline"`
	Status      Status     `json:"status" db:"status"`
	Score       *float64   `json:"score,omitempty" db:"score"`
	CandidateID *int64     `json:"candidate_id,omitempty" db:"candidate_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// AuditRecord is one immutable entry in the curation trail. Every status
// mutation and every import attempt appends exactly one record. Transition
// records carry the startup's EntityID; import records always carry the
// source CandidateID and, when a startup was created, its EntityID too.
type AuditRecord struct {
	ID          int64     `json:"id" db:"id"`
	EntityID    string    `json:"entity_id,omitempty" db:"entity_id"`
	CandidateID *int64    `json:"candidate_id,omitempty" db:"candidate_id"`
	PrevStatus  string    `json:"prev_status" db:"prev_status"`
	NewStatus   string    `json:"new_status" db:"new_status"`
	Actor       string    `json:"actor" db:"actor"`
	Outcome     string    `json:"outcome" db:"outcome"`
	Reason      string    `json:"reason,omitempty" db:"reason"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ImportOutcome is the per-candidate result of an import call. Outcomes are
// returned in input order, one per requested ID.
type ImportOutcome struct {
	CandidateID int64  `json:"candidate_id"`
	OK          bool   `json:"ok"`
	Reason      string `json:"reason,omitempty"`
	StartupID   string `json:"startup_id,omitempty"`
}
