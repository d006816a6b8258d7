package continuity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/inkloom/loom/internal/narrative"
	"github.com/inkloom/loom/internal/pathkey"
)

// FactLedger records established facts, partitioned by branch key. A fact
// established on one branch is visible only to scenes whose branch key
// extends it; sibling branches never see each other's facts. Only the
// orchestrator writes here, and only for committed artifacts.
type FactLedger struct {
	mu       sync.Mutex
	byBranch map[pathkey.Key]map[string]narrative.Fact // branch -> fact key -> fact
}

// NewFactLedger creates an empty ledger.
func NewFactLedger() *FactLedger {
	return &FactLedger{byBranch: make(map[pathkey.Key]map[string]narrative.Fact)}
}

// Establish records the facts a committed scene declares, stamped with
// the branch and origin scene. Exact duplicates of visible facts are
// skipped. A declared fact that contradicts a visible one is an invariant
// breach (validation must have caught it) and returns an error without
// recording anything.
func (l *FactLedger) Establish(branch pathkey.Key, origin narrative.SceneID, facts []narrative.Fact) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	visible := l.visibleLocked(branch)
	for _, f := range facts {
		if prior, ok := visible[f.Key()]; ok && prior.Value != f.Value {
			return fmt.Errorf("fact %q contradicts established value %q (scene %s): got %q",
				f.Key(), prior.Value, prior.Origin, f.Value)
		}
	}

	for _, f := range facts {
		if prior, ok := visible[f.Key()]; ok && prior.Value == f.Value {
			continue
		}
		f.Branch = branch
		f.Origin = origin
		m, ok := l.byBranch[branch]
		if !ok {
			m = make(map[string]narrative.Fact)
			l.byBranch[branch] = m
		}
		m[f.Key()] = f
	}
	return nil
}

// Visible returns every fact visible from the branch, in stable order.
func (l *FactLedger) Visible(branch pathkey.Key) []narrative.Fact {
	l.mu.Lock()
	defer l.mu.Unlock()

	visible := l.visibleLocked(branch)
	out := make([]narrative.Fact, 0, len(visible))
	for _, f := range visible {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (l *FactLedger) visibleLocked(branch pathkey.Key) map[string]narrative.Fact {
	visible := make(map[string]narrative.Fact)
	for _, prefix := range branch.Prefixes() {
		for k, f := range l.byBranch[prefix] {
			visible[k] = f
		}
	}
	return visible
}
