package orchestrator

import (
	"fmt"

	"github.com/inkloom/loom/internal/config"
	"github.com/inkloom/loom/internal/continuity"
	"github.com/inkloom/loom/internal/errors"
	"github.com/inkloom/loom/internal/gencache"
	"github.com/inkloom/loom/internal/generate"
	"github.com/inkloom/loom/internal/logging"
	"github.com/inkloom/loom/internal/persist"
	"github.com/inkloom/loom/internal/scheduler"
	"github.com/inkloom/loom/internal/validate"
)

// System is a fully assembled generation pipeline. It embeds the
// orchestrator and owns the resources its collaborators hold; Close
// releases them.
type System struct {
	*Orchestrator

	cache *gencache.Cache
	sched *scheduler.Scheduler
	store persist.Store
	log   *logging.Logger
}

// NewFromConfig assembles a pipeline from configuration: the slot
// scheduler, the single-flight cache, the validation gate, the
// continuity stores, a bolt-backed or in-memory artifact store, and
// logging. The generator is the one collaborator configuration cannot
// build. A nil cfg uses the defaults.
func NewFromConfig(cfg *config.Config, gen generate.Generator) (*System, error) {
	if gen == nil {
		return nil, errors.NewValidationError("generator", "is required")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", config.ValidationErrors(errs))
	}

	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		var err error
		log, err = logging.NewLogger(cfg.Logging.Dir, logging.ParseLevel(cfg.Logging.Level))
		if err != nil {
			return nil, fmt.Errorf("building logger: %w", err)
		}
	}

	var store persist.Store = persist.NewMemStore()
	if cfg.Storage.Path != "" {
		bolt, err := persist.OpenBolt(cfg.Storage.Path)
		if err != nil {
			_ = log.Close()
			return nil, fmt.Errorf("opening artifact store: %w", err)
		}
		store = bolt
	}

	cache := gencache.New(gencache.Options{
		PendingTTL:      cfg.Cache.PendingTTL(),
		MaxCommitted:    cfg.Cache.MaxCommitted,
		JanitorInterval: cfg.Cache.JanitorInterval(),
	})
	sched := scheduler.New(cfg.Scheduler.Slots, cfg.Scheduler.QueueBound)

	orch := New(Deps{
		Generator: gen,
		Gate: validate.NewGate(validate.Config{
			Canon:            cfg.Validation.Canon,
			RevelationFloors: cfg.Validation.RevelationFloors,
			MaxProseRunes:    cfg.Validation.MaxProseRunes,
		}),
		Cache:     cache,
		Scheduler: sched,
		Threads: continuity.NewStore(continuity.Options{
			EscalateAfter:    cfg.Threads.EscalateAfter,
			ArchiveRetention: cfg.Threads.ArchiveRetention,
		}),
		Facts:  continuity.NewFactLedger(),
		Store:  store,
		Logger: log,
	}, Options{
		MaxTransient:     cfg.Retry.MaxTransient,
		MaxValidation:    cfg.Retry.MaxValidation,
		MaxActiveThreads: cfg.Threads.MaxActive,
	})

	return &System{
		Orchestrator: orch,
		cache:        cache,
		sched:        sched,
		store:        store,
		log:          log,
	}, nil
}

// Close tears the pipeline down: the scheduler resolves queued waiters,
// the cache janitor stops, and the store and any log file are closed.
func (s *System) Close() error {
	s.sched.Close()
	s.cache.Close()
	err := s.store.Close()
	if lerr := s.log.Close(); err == nil {
		err = lerr
	}
	return err
}
