// Package importer moves discovered candidates into the curated startup set
// through enrichment, one independent item at a time.
package importer

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scoutbase/curator/internal/model"
	"github.com/scoutbase/curator/internal/store"
	"github.com/scoutbase/curator/pkg/enrich"
)

// Pipeline imports candidates by claiming them, invoking the enrichment
// collaborator, and creating pending startups. Items are failure-isolated:
// one candidate's failure never blocks or rolls back another's.
type Pipeline struct {
	store    store.Store
	enricher enrich.Client
	workers  int
}

// New creates an import pipeline. workers bounds concurrent items; 1 gives a
// purely sequential run with identical correctness.
func New(st store.Store, enricher enrich.Client, workers int) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{store: st, enricher: enricher, workers: workers}
}

// Import processes the candidate IDs and returns one outcome per input ID,
// in input order, so callers can compute success and failure counts without
// re-querying. Cancellation stops dispatching new items (their outcomes come
// back failed with reason "canceled"), but an item whose idempotency claim
// already succeeded is always resolved: its remaining writes run on a
// non-cancelable context so no candidate is left claimed without a recorded
// outcome.
func (p *Pipeline) Import(ctx context.Context, ids []int64, actor string) ([]model.ImportOutcome, error) {
	log := zap.L().With(zap.String("actor", actor), zap.Int("ids", len(ids)))
	log.Info("import starting", zap.Int("workers", p.workers))

	outcomes := make([]model.ImportOutcome, len(ids))

	// Plain errgroup, not WithContext: a failed item must not cancel its
	// siblings. Workers report failures through their outcome slot.
	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, id := range ids {
		if ctx.Err() != nil {
			for j := i; j < len(ids); j++ {
				outcomes[j] = model.ImportOutcome{
					CandidateID: ids[j],
					Reason:      model.ReasonCanceled,
				}
			}
			break
		}

		g.Go(func() error {
			// The dispatch loop blocks on a full pool, so cancellation can
			// land between its check and this goroutine starting. An item
			// that has done no work yet reports canceled, not a raw context
			// error.
			if ctx.Err() != nil {
				outcomes[i] = model.ImportOutcome{
					CandidateID: id,
					Reason:      model.ReasonCanceled,
				}
				return nil
			}
			outcomes[i] = p.importOne(ctx, id, actor)
			return nil
		})
	}

	_ = g.Wait()

	ok := 0
	for _, o := range outcomes {
		if o.OK {
			ok++
		}
	}
	log.Info("import complete", zap.Int("ok", ok), zap.Int("failed", len(ids)-ok))

	return outcomes, nil
}

// importOne runs the three per-item steps: idempotency claim, enrichment,
// creation. The claim happens before enrichment is invoked so two workers
// can never both pass the check for the same candidate; it is reverted when
// a later step fails so the candidate stays importable.
func (p *Pipeline) importOne(ctx context.Context, id int64, actor string) model.ImportOutcome {
	log := zap.L().With(zap.Int64("candidate_id", id))
	failed := model.ImportOutcome{CandidateID: id}

	cand, err := p.store.GetCandidate(ctx, id)
	if err != nil {
		log.Error("load candidate failed", zap.Error(err))
		failed.Reason = err.Error()
		p.audit(ctx, id, "", "", model.OutcomeFailed, failed.Reason, actor)
		return failed
	}
	if cand == nil {
		failed.Reason = model.ReasonNotFound
		p.audit(ctx, id, "", "", model.OutcomeFailed, failed.Reason, actor)
		return failed
	}

	claimed, err := p.store.ClaimCandidate(ctx, id)
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		failed.Reason = err.Error()
		p.audit(ctx, id, "", "", model.OutcomeFailed, failed.Reason, actor)
		return failed
	}
	if !claimed {
		failed.Reason = model.ReasonAlreadyImported
		p.audit(ctx, id, "", "", model.OutcomeFailed, failed.Reason, actor)
		return failed
	}

	// The claim is held. Everything after this point must complete or be
	// explicitly reverted, even when ctx is canceled mid-enrichment.
	resolveCtx := context.WithoutCancel(ctx)

	result, err := p.enricher.Enrich(ctx, enrich.Request{
		Name:        cand.Name,
		Website:     cand.Website,
		Description: cand.Description,
		Funding:     cand.Funding,
		ArticleURL:  cand.ArticleURL,
	})
	if err != nil {
		log.Warn("enrichment failed", zap.Error(err))
		p.release(resolveCtx, id, log)
		failed.Reason = err.Error()
		p.audit(resolveCtx, id, "", "", model.OutcomeFailed, failed.Reason, actor)
		return failed
	}

	st := &model.Startup{
		ID:          uuid.New().String(),
		Name:        result.NormalizedName,
		Tagline:     result.Tagline,
		Status:      model.StatusPending,
		Score:       result.Score,
		CandidateID: &cand.ID,
	}
	if err := p.store.CreateStartup(resolveCtx, st); err != nil {
		log.Error("create startup failed", zap.Error(err))
		p.release(resolveCtx, id, log)
		failed.Reason = err.Error()
		p.audit(resolveCtx, id, "", "", model.OutcomeFailed, failed.Reason, actor)
		return failed
	}

	p.audit(resolveCtx, id, st.ID, string(model.StatusPending), model.OutcomeOK, "", actor)
	log.Info("candidate imported", zap.String("startup_id", st.ID))

	return model.ImportOutcome{CandidateID: id, OK: true, StartupID: st.ID}
}

func (p *Pipeline) release(ctx context.Context, id int64, log *zap.Logger) {
	if err := p.store.ReleaseCandidate(ctx, id); err != nil {
		log.Error("release claim failed", zap.Error(err))
	}
}

// audit appends the single record every import attempt owes the trail.
// Append failures are logged, not propagated: the item's outcome has
// already been decided.
func (p *Pipeline) audit(ctx context.Context, candidateID int64, entityID, newStatus, outcome, reason, actor string) {
	rec := &model.AuditRecord{
		EntityID:    entityID,
		CandidateID: &candidateID,
		PrevStatus:  model.PrevStatusNone,
		NewStatus:   newStatus,
		Actor:       actor,
		Outcome:     outcome,
		Reason:      reason,
	}
	if err := p.store.AppendAudit(ctx, rec); err != nil {
		zap.L().Error("append audit failed",
			zap.Int64("candidate_id", candidateID),
			zap.Error(err),
		)
	}
}
