package continuity

import (
	"sort"
	"sync"

	"github.com/inkloom/loom/internal/narrative"
	"github.com/inkloom/loom/internal/pathkey"
)

// capReason is the system reason recorded on threads closed by the
// active-set cap.
const capReason = "auto-resolved: active thread budget exceeded"

// Options configures a Store. Zero values select the defaults.
type Options struct {
	// EscalateAfter is the acknowledged-without-progress streak at which
	// a thread becomes a hard validation issue. Default 2.
	EscalateAfter int
	// ArchiveRetention is how many scenes an archived thread remains
	// available for callbacks. Default 6.
	ArchiveRetention int
}

const (
	defaultEscalateAfter    = 2
	defaultArchiveRetention = 6
)

// Store owns all narrative threads across the branching tree. All methods
// are safe for concurrent use via an internal mutex; sibling branches may
// commit concurrently without corrupting each other because every write
// lands under the writer's exact branch key.
type Store struct {
	mu sync.Mutex

	// threads holds entries written at each exact branch key. Reads walk
	// the prefix chain, deeper entries shadowing shallower ones.
	threads map[pathkey.Key]map[Fingerprint]*Thread
	// archives holds compact records of terminal threads per branch key.
	archives map[pathkey.Key][]ArchiveRecord

	escalateAfter    int
	archiveRetention int
}

// NewStore creates an empty thread store.
func NewStore(opts Options) *Store {
	if opts.EscalateAfter <= 0 {
		opts.EscalateAfter = defaultEscalateAfter
	}
	if opts.ArchiveRetention <= 0 {
		opts.ArchiveRetention = defaultArchiveRetention
	}
	return &Store{
		threads:          make(map[pathkey.Key]map[Fingerprint]*Thread),
		archives:         make(map[pathkey.Key][]ArchiveRecord),
		escalateAfter:    opts.EscalateAfter,
		archiveRetention: opts.ArchiveRetention,
	}
}

// MergeResult summarizes what one merge changed, for logging.
type MergeResult struct {
	Raised     int // new threads inserted
	Superseded int // active threads updated by a matching claim
	Resolved   int // threads moved to a terminal status
	Ignored    int // claims dropped (sticky terminal identity, no match)
}

// Merge applies a committed artifact's thread claims and resolutions to
// the branch. A claim whose fingerprint matches a visible active thread
// supersedes it (most recent wins); otherwise it is inserted as new. A
// claim against a terminal thread is ignored when it comes from the
// fallback extractor (terminal identity is sticky) and reopens the
// thread as a fresh obligation only when declared structurally. Claims
// without progress bump the thread's acknowledged streak; progress
// resets it.
func (s *Store) Merge(branch pathkey.Key, scene narrative.SceneID, position int, claims []narrative.ThreadClaim, resolutions []narrative.Resolution) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res MergeResult
	effective := s.effectiveLocked(branch)
	archived := s.archivedLocked(branch)

	for _, claim := range claims {
		fp := Normalize(claim)
		existing := effective[fp]

		// Archived threads are terminal too: stickiness holds for the
		// whole retention window.
		if existing == nil {
			if _, wasTerminal := archived[fp]; wasTerminal && claim.Source == narrative.SourceFallback {
				res.Ignored++
				continue
			}
		}

		if existing != nil && existing.Status.IsTerminal() {
			if claim.Source == narrative.SourceFallback {
				res.Ignored++
				continue
			}
			// Structured re-raise: the story has opened the same
			// obligation again. Start a fresh thread shadowing the
			// terminal one.
			existing = nil
		}

		if existing == nil {
			t := &Thread{
				Fingerprint:   fp,
				Type:          claim.Type,
				Description:   claim.Description,
				Entities:      append([]string(nil), claim.Entities...),
				Status:        StatusActive,
				Urgency:       claim.Urgency,
				OriginScene:   scene,
				DeadlineScene: claim.DeadlineScene,
				UpdatedScene:  position,
			}
			s.putLocked(branch, t)
			effective[fp] = t
			res.Raised++
			continue
		}

		// Supersede: copy-on-write at the caller's branch so siblings
		// keep seeing the ancestor's version.
		updated := existing.clone()
		updated.Description = claim.Description
		updated.Urgency = claim.Urgency
		if claim.DeadlineScene > 0 {
			updated.DeadlineScene = claim.DeadlineScene
		}
		if len(claim.Entities) > 0 {
			updated.Entities = append([]string(nil), claim.Entities...)
		}
		if claim.Progress {
			updated.AckStreak = 0
		} else {
			updated.AckStreak++
		}
		updated.UpdatedScene = position
		s.putLocked(branch, &updated)
		effective[fp] = &updated
		res.Superseded++
	}

	for _, resolution := range resolutions {
		target := matchResolution(effective, resolution)
		if target == nil || target.Status.IsTerminal() {
			res.Ignored++
			continue
		}
		closed := target.clone()
		if resolution.Outcome == narrative.OutcomeFailed {
			closed.Status = StatusFailed
		} else {
			closed.Status = StatusResolved
		}
		closed.ResolvedScene = position
		closed.UpdatedScene = position
		closed.AckStreak = 0
		s.putLocked(branch, &closed)
		effective[closed.Fingerprint] = &closed
		res.Resolved++
	}

	return res
}

// Cap bounds the visible active set to maxActive threads. Critical
// threads are always retained; normal threads are preferred over
// background ones; within a class the most recently updated win.
// Overflow threads are never silently dropped: they are auto-resolved
// with a system reason and returned for logging.
func (s *Store) Cap(branch pathkey.Key, position, maxActive int) []Thread {
	if maxActive <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := activeLocked(s.effectiveLocked(branch))
	if len(active) <= maxActive {
		return nil
	}

	// Retention order: urgency descending, then recency descending.
	sort.Slice(active, func(i, j int) bool {
		if active[i].Urgency != active[j].Urgency {
			return active[i].Urgency > active[j].Urgency
		}
		if active[i].UpdatedScene != active[j].UpdatedScene {
			return active[i].UpdatedScene > active[j].UpdatedScene
		}
		return active[i].Fingerprint < active[j].Fingerprint
	})

	var evicted []Thread
	for _, t := range active[maxActive:] {
		if t.Urgency == narrative.UrgencyCritical {
			// Never discard a critical thread, even over budget.
			continue
		}
		closed := t.clone()
		closed.Status = StatusResolved
		closed.SystemReason = capReason
		closed.ResolvedScene = position
		closed.UpdatedScene = position
		s.putLocked(branch, &closed)
		evicted = append(evicted, closed)
	}
	return evicted
}

// Archive moves terminal threads visible from the branch into the compact
// archive and prunes archive records past the retention window. Archived
// threads stop appearing in Visible but remain available to
// CallbackCandidates until retention expires.
func (s *Store) Archive(branch pathkey.Key, position int) []ArchiveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	archived := s.archivedLocked(branch)

	var moved []ArchiveRecord
	for fp, t := range s.effectiveLocked(branch) {
		if !t.Status.IsTerminal() {
			continue
		}
		if _, done := archived[fp]; done {
			continue
		}
		rec := ArchiveRecord{
			Fingerprint:   fp,
			Type:          t.Type,
			Status:        t.Status,
			OriginScene:   t.OriginScene,
			ArchivedScene: position,
		}
		s.archives[branch] = append(s.archives[branch], rec)
		moved = append(moved, rec)
		// The full entry is only deletable at the writer's own key;
		// ancestor entries stay for sibling branches and are hidden
		// here by the archive record.
		if own, ok := s.threads[branch]; ok {
			delete(own, fp)
		}
	}

	// Prune expired records stored at this exact key.
	kept := s.archives[branch][:0]
	for _, rec := range s.archives[branch] {
		if position-rec.ArchivedScene <= s.archiveRetention {
			kept = append(kept, rec)
		}
	}
	s.archives[branch] = kept

	sort.Slice(moved, func(i, j int) bool { return moved[i].Fingerprint < moved[j].Fingerprint })
	return moved
}

// Visible returns every thread visible from the branch, regardless of
// status, shallowest origin first. Archived threads are excluded.
func (s *Store) Visible(branch pathkey.Key) []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	effective := s.effectiveLocked(branch)
	out := make([]Thread, 0, len(effective))
	for _, t := range effective {
		out = append(out, t.clone())
	}
	sortThreads(out)
	return out
}

// ActiveVisible returns the active threads visible from the branch.
func (s *Store) ActiveVisible(branch pathkey.Key) []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := activeLocked(s.effectiveLocked(branch))
	out := make([]Thread, 0, len(active))
	for _, t := range active {
		out = append(out, t.clone())
	}
	sortThreads(out)
	return out
}

// Escalated returns visible active threads that have been acknowledged
// without progress often enough to become a hard validation issue.
func (s *Store) Escalated(branch pathkey.Key) []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Thread
	for _, t := range activeLocked(s.effectiveLocked(branch)) {
		if t.AckStreak >= s.escalateAfter {
			out = append(out, t.clone())
		}
	}
	sortThreads(out)
	return out
}

// Lookup returns the visible thread with the given fingerprint, if any.
func (s *Store) Lookup(branch pathkey.Key, fp Fingerprint) (Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.effectiveLocked(branch)[fp]; ok {
		return t.clone(), true
	}
	return Thread{}, false
}

// CallbackCandidates returns archived threads still within the retention
// window at the given position, for callback construction.
func (s *Store) CallbackCandidates(branch pathkey.Key, position int) []ArchiveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ArchiveRecord
	for _, prefix := range branch.Prefixes() {
		for _, rec := range s.archives[prefix] {
			if position-rec.ArchivedScene <= s.archiveRetention {
				out = append(out, rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}

// effectiveLocked resolves the thread set visible from a branch: the
// prefix chain walked shallowest first, deeper entries shadowing
// shallower, archived fingerprints excluded.
func (s *Store) effectiveLocked(branch pathkey.Key) map[Fingerprint]*Thread {
	archived := s.archivedLocked(branch)
	effective := make(map[Fingerprint]*Thread)
	for _, prefix := range branch.Prefixes() {
		for fp, t := range s.threads[prefix] {
			if _, hidden := archived[fp]; hidden {
				continue
			}
			effective[fp] = t
		}
	}
	return effective
}

func (s *Store) archivedLocked(branch pathkey.Key) map[Fingerprint]ArchiveRecord {
	archived := make(map[Fingerprint]ArchiveRecord)
	for _, prefix := range branch.Prefixes() {
		for _, rec := range s.archives[prefix] {
			archived[rec.Fingerprint] = rec
		}
	}
	return archived
}

func (s *Store) putLocked(branch pathkey.Key, t *Thread) {
	m, ok := s.threads[branch]
	if !ok {
		m = make(map[Fingerprint]*Thread)
		s.threads[branch] = m
	}
	m[t.Fingerprint] = t
}

func activeLocked(effective map[Fingerprint]*Thread) []*Thread {
	var out []*Thread
	for _, t := range effective {
		if t.Status == StatusActive {
			out = append(out, t)
		}
	}
	return out
}

func sortThreads(threads []Thread) {
	sort.Slice(threads, func(i, j int) bool {
		if threads[i].UpdatedScene != threads[j].UpdatedScene {
			return threads[i].UpdatedScene < threads[j].UpdatedScene
		}
		return threads[i].Fingerprint < threads[j].Fingerprint
	})
}

// matchResolution finds the visible thread a resolution closes, picking
// deterministically when several match.
func matchResolution(effective map[Fingerprint]*Thread, res narrative.Resolution) *Thread {
	var match *Thread
	for _, t := range effective {
		if !ResolutionMatches(res, t.Fingerprint) {
			continue
		}
		if match == nil || t.Fingerprint < match.Fingerprint {
			match = t
		}
	}
	return match
}
