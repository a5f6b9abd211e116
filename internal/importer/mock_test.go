package importer

import (
	"context"
	"errors"
	"sync"

	"github.com/scoutbase/curator/internal/model"
	"github.com/scoutbase/curator/internal/store"
	"github.com/scoutbase/curator/pkg/enrich"
)

// memStore is an in-memory store.Store good enough for pipeline tests. The
// mutex makes the claim check-and-set atomic, so concurrent workers racing on
// the same candidate exercise the real idempotency contract.
type memStore struct {
	mu         sync.Mutex
	candidates map[int64]*model.Candidate
	startups   []*model.Startup
	audits     []*model.AuditRecord

	claimErr  error
	createErr error
	auditErr  error
}

func newMemStore(cands ...model.Candidate) *memStore {
	m := &memStore{candidates: map[int64]*model.Candidate{}}
	for i := range cands {
		c := cands[i]
		m.candidates[c.ID] = &c
	}
	return m
}

func (m *memStore) GetCandidate(_ context.Context, id int64) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ClaimCandidate(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return false, m.claimErr
	}
	c, ok := m.candidates[id]
	if !ok || c.Imported {
		return false, nil
	}
	c.Imported = true
	return true, nil
}

func (m *memStore) ReleaseCandidate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.candidates[id]; ok {
		c.Imported = false
	}
	return nil
}

func (m *memStore) CreateStartup(_ context.Context, s *model.Startup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *s
	m.startups = append(m.startups, &cp)
	return nil
}

func (m *memStore) AppendAudit(_ context.Context, rec *model.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auditErr != nil {
		return m.auditErr
	}
	cp := *rec
	m.audits = append(m.audits, &cp)
	return nil
}

func (m *memStore) imported(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	return ok && c.Imported
}

func (m *memStore) startupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.startups)
}

func (m *memStore) auditsFor(id int64) []*model.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AuditRecord
	for _, a := range m.audits {
		if a.CandidateID != nil && *a.CandidateID == id {
			out = append(out, a)
		}
	}
	return out
}

// Unused by the pipeline.

func (m *memStore) ListStartups(context.Context, store.DirectoryFilter) ([]model.Startup, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (m *memStore) GetStartups(context.Context, []string) ([]model.Startup, error) {
	return nil, errors.New("not implemented")
}

func (m *memStore) TransitionStatus(context.Context, []string, model.Status, string) (int, error) {
	return 0, errors.New("not implemented")
}

func (m *memStore) BulkInsertCandidates(context.Context, []model.Candidate) (int64, error) {
	return 0, errors.New("not implemented")
}

func (m *memStore) ListAudit(context.Context, string) ([]model.AuditRecord, error) {
	return nil, errors.New("not implemented")
}

func (m *memStore) ListAuditByCandidate(context.Context, int64) ([]model.AuditRecord, error) {
	return nil, errors.New("not implemented")
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

// stubEnricher returns canned results keyed by candidate name, or a fixed
// error. enrichFn, when set, takes precedence.
type stubEnricher struct {
	mu       sync.Mutex
	calls    []enrich.Request
	err      error
	enrichFn func(ctx context.Context, req enrich.Request) (*enrich.Result, error)
}

func (s *stubEnricher) Enrich(ctx context.Context, req enrich.Request) (*enrich.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if s.enrichFn != nil {
		return s.enrichFn(ctx, req)
	}
	if s.err != nil {
		return nil, s.err
	}
	score := 0.8
	return &enrich.Result{
		NormalizedName: req.Name,
		Tagline:        "tagline for " + req.Name,
		Score:          &score,
	}, nil
}

func (s *stubEnricher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
