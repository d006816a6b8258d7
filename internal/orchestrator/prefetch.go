package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/inkloom/loom/internal/errors"
	"github.com/inkloom/loom/internal/narrative"
	"github.com/inkloom/loom/internal/pathkey"
	"github.com/inkloom/loom/internal/scheduler"
)

// SegmentRequest names one segment to produce.
type SegmentRequest struct {
	Identity narrative.ContentIdentity
	Context  SegmentContext
}

// Prefetcher speculatively produces segments the player may reach next,
// so a choice lands on already-committed content. Prefetching is best
// effort by definition: scheduler saturation and generation failures are
// logged and swallowed, never surfaced.
type Prefetcher struct {
	orch  *Orchestrator
	limit int
}

// NewPrefetcher creates a prefetcher running at most limit productions
// concurrently. Limits below one are clamped to one.
func NewPrefetcher(orch *Orchestrator, limit int) *Prefetcher {
	if limit < 1 {
		limit = 1
	}
	return &Prefetcher{orch: orch, limit: limit}
}

// Prefetch produces every requested segment, bounded by the prefetcher's
// parallelism. It returns once all attempts finish.
func (p *Prefetcher) Prefetch(ctx context.Context, reqs []SegmentRequest) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for _, req := range reqs {
		req := req
		g.Go(func() error {
			_, err := p.orch.ProduceSegment(ctx, req.Identity, req.Context)
			switch {
			case err == nil:
			case errors.Is(err, scheduler.ErrSaturated):
				// Demand traffic has priority; give up quietly.
				p.orch.log.Debug("prefetch shed on saturation", "identity", req.Identity.String())
			case errors.Is(err, context.Canceled):
			case errors.IsUserFacing(err):
				// A terminal failure here will greet the player on demand
				// too; worth a warning now.
				p.orch.log.Warn("prefetch failed", "identity", req.Identity.String(),
					"severity", errors.SeverityOf(err).String(), "error", err.Error())
			default:
				p.orch.log.Debug("prefetch failed", "identity", req.Identity.String(), "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
}

// NextDecision builds the two speculative requests behind the upcoming
// decision: one per side, each on the branch the decision would create.
// sceneFor maps a branch key to the scene identity that follows it.
func NextDecision(sc SegmentContext, decisionPosition int, sceneFor func(pathkey.Key) narrative.SceneID) []SegmentRequest {
	reqs := make([]SegmentRequest, 0, 2)
	for _, side := range []pathkey.Side{pathkey.SideA, pathkey.SideB} {
		decisions := append(append([]pathkey.Decision(nil), sc.Decisions...), pathkey.Decision{
			Position: decisionPosition,
			Side:     side,
		})
		next := sc
		next.Decisions = decisions
		next.Position = sc.Position + 1
		branch := pathkey.Resolve(decisions, next.Position)
		reqs = append(reqs, SegmentRequest{
			Identity: narrative.ContentIdentity{Scene: sceneFor(branch), Branch: branch},
			Context:  next,
		})
	}
	return reqs
}
