// Package review applies bulk status transitions to pending startups.
package review

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scoutbase/curator/internal/model"
	"github.com/scoutbase/curator/internal/store"
)

// Service executes bulk approve/reject operations. Transitions are
// all-or-nothing: either every requested startup moves and gets an audit
// record, or nothing changes.
type Service struct {
	store store.Store
}

// New creates a review service over the given store.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// PreviewItem summarizes one startup ahead of a bulk transition so callers
// can confirm before committing.
type PreviewItem struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Status   model.Status `json:"status"`
	Eligible bool         `json:"eligible"`
}

// Preview reports, per requested ID, the startup's current state and whether
// a transition would accept it. Read-only; IDs that do not exist come back
// with Eligible false and an empty name.
func (s *Service) Preview(ctx context.Context, ids []string, target model.Status) ([]PreviewItem, error) {
	if len(ids) == 0 {
		return nil, eris.New("review: preview: no ids")
	}
	if !target.Terminal() {
		return nil, eris.Errorf("review: preview: invalid target status %q", target)
	}

	startups, err := s.store.GetStartups(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "review: preview")
	}

	byID := make(map[string]model.Startup, len(startups))
	for _, st := range startups {
		byID[st.ID] = st
	}

	items := make([]PreviewItem, 0, len(ids))
	for _, id := range ids {
		item := PreviewItem{ID: id}
		if st, ok := byID[id]; ok {
			item.Name = st.Name
			item.Status = st.Status
			item.Eligible = st.Status == model.StatusPending
		}
		items = append(items, item)
	}
	return items, nil
}

// Transition moves every ID from pending to target and returns the count of
// startups transitioned. The request fails atomically with
// *model.NotFoundError when any ID is missing or already transitioned: an
// approved startup always means "was pending, then explicitly approved", so
// the service never silently re-writes history.
func (s *Service) Transition(ctx context.Context, ids []string, target model.Status, actor string) (int, error) {
	if len(ids) == 0 {
		return 0, eris.New("review: transition: no ids")
	}
	if !target.Terminal() {
		return 0, eris.Errorf("review: transition: invalid target status %q", target)
	}
	if actor == "" {
		return 0, eris.New("review: transition: actor is required")
	}

	// A repeated ID would pass the pending precondition and then write two
	// audit records for one mutation. Collapse duplicates before the store
	// sees the batch.
	ids = dedupe(ids)

	log := zap.L().With(
		zap.String("target", string(target)),
		zap.String("actor", actor),
		zap.Int("ids", len(ids)),
	)

	count, err := s.store.TransitionStatus(ctx, ids, target, actor)
	if err != nil {
		var nf *model.NotFoundError
		if eris.As(err, &nf) {
			log.Warn("transition rejected", zap.Strings("offending_ids", nf.IDs))
			return 0, err
		}
		return 0, eris.Wrap(err, "review: transition")
	}

	log.Info("transition applied", zap.Int("count", count))
	return count, nil
}

// dedupe returns ids with duplicates removed, first occurrence wins.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
