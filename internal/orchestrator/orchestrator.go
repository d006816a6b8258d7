// Package orchestrator wires the generation pipeline together: the
// single-flight cache, the slot scheduler, the external producer, the
// validation gate, the continuity stores, and durable persistence. Its
// single entry point, ProduceSegment, turns a scene request into a
// committed artifact or a terminal error.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/inkloom/loom/internal/continuity"
	"github.com/inkloom/loom/internal/errors"
	"github.com/inkloom/loom/internal/gencache"
	"github.com/inkloom/loom/internal/generate"
	"github.com/inkloom/loom/internal/logging"
	"github.com/inkloom/loom/internal/narrative"
	"github.com/inkloom/loom/internal/pathkey"
	"github.com/inkloom/loom/internal/persist"
	"github.com/inkloom/loom/internal/scheduler"
	"github.com/inkloom/loom/internal/validate"
)

// SegmentContext carries the request-side state for one scene: the
// decision history that names the branch, the scene's position, and the
// most recent choice the scene must act on.
type SegmentContext struct {
	// Decisions is the player's decision history up to this scene.
	Decisions []pathkey.Decision
	// Position is the scene's 1-based position along the storyline.
	Position int
	// Choice describes the most recent branch decision.
	Choice narrative.ChoiceContext
	// Stance is the carried behavioral stance, StanceUnknown when absent.
	Stance narrative.Stance
}

// Options tunes the orchestrator's budgets.
type Options struct {
	// MaxTransient is how many transport failures are retried with an
	// identical request before the scene fails terminally.
	MaxTransient int
	// MaxValidation is how many validation rejections are retried with
	// corrective feedback before the scene fails terminally. The two
	// budgets are independent.
	MaxValidation int
	// MaxActiveThreads caps active threads per branch after each commit.
	MaxActiveThreads int
}

// Orchestrator coordinates segment production end to end. All methods
// are safe for concurrent use.
type Orchestrator struct {
	gen     generate.Generator
	gate    *validate.Gate
	cache   *gencache.Cache
	sched   *scheduler.Scheduler
	threads *continuity.Store
	facts   *continuity.FactLedger
	store   persist.Store
	log     *logging.Logger
	opts    Options
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Generator generate.Generator
	Gate      *validate.Gate
	Cache     *gencache.Cache
	Scheduler *scheduler.Scheduler
	Threads   *continuity.Store
	Facts     *continuity.FactLedger
	Store     persist.Store
	Logger    *logging.Logger
}

// New creates an orchestrator from its collaborators.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}
	if opts.MaxActiveThreads < 1 {
		opts.MaxActiveThreads = 7
	}
	return &Orchestrator{
		gen:     deps.Generator,
		gate:    deps.Gate,
		cache:   deps.Cache,
		sched:   deps.Scheduler,
		threads: deps.Threads,
		facts:   deps.Facts,
		store:   deps.Store,
		log:     deps.Logger,
		opts:    opts,
	}
}

// ProduceSegment returns the artifact for the identity, generating it if
// needed. Concurrent requests for the same identity collapse onto one
// producer call; the rest wait for its outcome. A durable hit
// short-circuits everything, including slot acquisition.
//
// On exhausted retry budgets the scene fails with a TerminalError. No
// placeholder content is ever substituted: the failure is the caller's
// to surface.
func (o *Orchestrator) ProduceSegment(ctx context.Context, id narrative.ContentIdentity, sc SegmentContext) (*narrative.Artifact, error) {
	if want := pathkey.Resolve(sc.Decisions, sc.Position); want != id.Branch {
		return nil, fmt.Errorf("segment %s: %w: decisions resolve to %q", id, errors.ErrBranchMismatch, want)
	}

	log := o.log.WithScene(string(id.Scene)).WithBranch(string(id.Branch))

	if a, err := o.store.Get(ctx, id); err == nil {
		log.Debug("durable hit")
		return a, nil
	} else if !errors.Is(err, persist.ErrNotFound) {
		if ctx.Err() != nil {
			return nil, err
		}
		// A broken store must not block generation; the commit will
		// retry the write.
		log.Warn("durable lookup failed", "error", err.Error())
	}

	for {
		entry, owner := o.cache.Acquire(id)
		if !owner {
			a, err := entry.Wait(ctx)
			if errors.Is(err, gencache.ErrStalePending) {
				log.Warn("pending unit went stale, re-acquiring")
				continue
			}
			return a, err
		}

		log = log.WithEpisode(entry.EpisodeID().String())
		a, err := o.produce(ctx, log, entry, id, sc)
		entry.Settle(a, err)
		return a, err
	}
}

// produce runs the owner path: slot acquisition and the attempt loop.
func (o *Orchestrator) produce(ctx context.Context, log *logging.Logger, entry *gencache.Entry, id narrative.ContentIdentity, sc SegmentContext) (*narrative.Artifact, error) {
	release, err := o.sched.AcquireSlot(ctx)
	if err != nil {
		// Saturation and teardown propagate untouched so callers can
		// distinguish "try later" from a failed generation.
		log.Warn("slot acquisition failed", "error", err.Error())
		return nil, err
	}
	defer release()
	log.Debug("slot acquired")

	pc := generate.PromptContext{
		Identity: id,
		Position: sc.Position,
		Facts:    o.facts.Visible(id.Branch),
		Threads:  o.threads.ActiveVisible(id.Branch),
		Choice:   sc.Choice,
		Stance:   sc.Stance,
	}

	var lastCause error
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		artifact, err := o.attempt(ctx, pc)
		if err != nil {
			lastCause = err
			if generate.IsTransient(err) {
				n := entry.RecordTransient()
				if n > o.opts.MaxTransient {
					return nil, o.terminal(log, entry, id, lastCause)
				}
				log.Warn("transient failure, retrying identical request", "attempt", n, "error", err.Error())
				continue
			}
			if generate.IsContent(err) {
				n := entry.RecordRejection()
				if n > o.opts.MaxValidation {
					return nil, o.terminal(log, entry, id, lastCause)
				}
				log.Warn("unusable payload, regenerating with feedback", "attempt", n, "error", err.Error())
				pc.Feedback = []string{"previous payload was malformed; emit a single well-formed scene object"}
				continue
			}
			// Cancellation or an unclassified failure: no budget applies.
			return nil, err
		}

		verdict := o.gate.Evaluate(validate.Input{
			Artifact:  artifact,
			Position:  sc.Position,
			Choice:    sc.Choice,
			Facts:     pc.Facts,
			Active:    pc.Threads,
			Escalated: o.threads.Escalated(id.Branch),
		})
		if !verdict.Accepted {
			lastCause = errors.NewRejectionError("candidate rejected", nil).
				WithIdentity(id.String()).
				WithFindings(verdict.Feedback())
			n := entry.RecordRejection()
			if n > o.opts.MaxValidation {
				return nil, o.terminal(log, entry, id, lastCause)
			}
			log.Warn("candidate rejected, regenerating with feedback",
				"attempt", n, "hard_issues", len(verdict.Hard))
			pc.Feedback = verdict.Feedback()
			pc.Advisories = verdict.Advisories()
			continue
		}

		artifact.Advisories = verdict.Advisories()
		if err := o.commit(ctx, log, id, sc, artifact); err != nil {
			return nil, err
		}
		return artifact, nil
	}
}

// attempt performs one producer call and parses the payload.
func (o *Orchestrator) attempt(ctx context.Context, pc generate.PromptContext) (*narrative.Artifact, error) {
	payload, err := o.gen.Generate(ctx, pc)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, generate.Content("empty payload", errors.ErrEmptyPayload)
	}
	artifact, err := narrative.ParseArtifact(pc.Identity, payload)
	if err != nil {
		return nil, generate.Content("payload not parsable as a scene", err)
	}
	return artifact, nil
}

// commit makes an accepted artifact real: facts established, threads
// merged and capped, artifact persisted.
func (o *Orchestrator) commit(ctx context.Context, log *logging.Logger, id narrative.ContentIdentity, sc SegmentContext, artifact *narrative.Artifact) error {
	if err := o.facts.Establish(id.Branch, id.Scene, artifact.Facts); err != nil {
		// The gate checks contradictions before commit; reaching this
		// means a racing sibling established a conflicting fact first.
		return errors.NewGenerationError("establishing facts failed", err).WithIdentity(id.String())
	}

	merge := o.threads.Merge(id.Branch, id.Scene, sc.Position, artifact.Raised, artifact.Resolutions)
	evicted := o.threads.Cap(id.Branch, sc.Position, o.opts.MaxActiveThreads)
	o.threads.Archive(id.Branch, sc.Position)
	log.Info("threads merged",
		"raised", merge.Raised, "superseded", merge.Superseded,
		"resolved", merge.Resolved, "ignored", merge.Ignored,
		"capped", len(evicted))

	if err := o.store.Put(ctx, artifact); err != nil {
		return errors.NewGenerationError("persisting artifact failed", err).WithIdentity(id.String())
	}
	log.Info("segment committed", "recovery", artifact.Recovery.String())
	return nil
}

// terminal builds the terminal error for an exhausted scene.
func (o *Orchestrator) terminal(log *logging.Logger, entry *gencache.Entry, id narrative.ContentIdentity, cause error) error {
	transient, rejections := entry.Attempts()
	log.Error("retry budgets exhausted",
		"transient", transient, "rejections", rejections)
	return errors.NewTerminalError("retry budgets exhausted", cause).
		WithIdentity(id.String()).
		WithCounts(transient, rejections)
}
