// Package narrative defines the shared domain types of the generation
// core: content identities, generated artifacts, established facts, and
// the thread claims a generator declares about open story obligations.
package narrative

import (
	"encoding/json"
	"fmt"

	"github.com/inkloom/loom/internal/pathkey"
)

// SceneID identifies one scene slot in the story graph, e.g. "004B".
type SceneID string

// ContentIdentity identifies one narrative variant: a scene slot plus the
// branch the reader took to reach it. It is the key for deduplication,
// caching, and durable storage.
type ContentIdentity struct {
	Scene  SceneID     `json:"scene"`
	Branch pathkey.Key `json:"branch"`
}

// String returns the canonical cache/storage key, e.g. "004B@AB".
func (id ContentIdentity) String() string {
	return fmt.Sprintf("%s@%s", id.Scene, id.Branch)
}

// Valid reports whether both halves of the identity are set.
func (id ContentIdentity) Valid() bool {
	return id.Scene != "" && id.Branch != ""
}

// Fact is an atomic statement that must never be contradicted once
// established. Facts are scoped to the branch key of the scene that
// established them and are visible only to descendants of that branch.
type Fact struct {
	// Subject is the entity the fact is about, e.g. "Jack".
	Subject string `json:"subject"`
	// Relation names what is asserted, e.g. "partnership_years".
	Relation string `json:"relation"`
	// Value is the asserted value, e.g. "7".
	Value string `json:"value"`
	// Numeric is set when the value is a fixed quantity; numeric facts
	// get the strictest contradiction checking.
	Numeric *float64 `json:"numeric,omitempty"`

	// Branch and Origin are stamped at commit time by the orchestrator.
	Branch pathkey.Key `json:"branch,omitempty"`
	Origin SceneID     `json:"origin,omitempty"`
}

// Key returns the identity under which contradictions are detected: two
// facts with the same key and different values conflict.
func (f Fact) Key() string {
	return f.Subject + "|" + f.Relation
}

// Stance is the coarse classification of recent player behavior, used to
// flavor prompt construction. It is an optional enrichment: the core
// functions with StanceUnknown throughout.
type Stance string

const (
	StanceUnknown    Stance = "unknown"
	StanceCautious   Stance = "cautious"
	StanceAggressive Stance = "aggressive"
	StanceAnalytical Stance = "analytical"
)

// ChoiceContext describes the most recent branch decision, which the next
// scene must visibly act on.
type ChoiceContext struct {
	// Decision is the position/side pair that was chosen.
	Decision pathkey.Decision `json:"decision"`
	// Summary is a short description of what the choice meant.
	Summary string `json:"summary"`
	// Keywords are terms the following scene is expected to engage with.
	Keywords []string `json:"keywords"`
}

// ThreadType categorizes an open story obligation.
type ThreadType string

const (
	ThreadPromise     ThreadType = "promise"
	ThreadAppointment ThreadType = "appointment"
	ThreadThreat      ThreadType = "threat"
	ThreadRevelation  ThreadType = "revelation"
)

// Urgency orders threads for retention when the active set is capped.
type Urgency int

const (
	// UrgencyBackground threads are the first to be auto-resolved when
	// the active set exceeds its bound.
	UrgencyBackground Urgency = iota
	// UrgencyNormal threads are retained in preference to background ones.
	UrgencyNormal
	// UrgencyCritical threads are always retained and must be addressed
	// by their deadline.
	UrgencyCritical
)

// String returns the lowercase name of the urgency level.
func (u Urgency) String() string {
	switch u {
	case UrgencyCritical:
		return "critical"
	case UrgencyNormal:
		return "normal"
	default:
		return "background"
	}
}

// ClaimSource records which extraction path produced a claim. Structured
// claims come from the generator's declared metadata; fallback claims
// come from the keyword extractor and carry lower confidence.
type ClaimSource int

const (
	// SourceStructured marks a claim declared in generator metadata.
	SourceStructured ClaimSource = iota
	// SourceFallback marks a claim recovered by keyword extraction. A
	// fallback claim can never resurrect a resolved thread.
	SourceFallback
)

// ThreadClaim is a generator's declaration that a scene raises or touches
// a narrative thread.
type ThreadClaim struct {
	Type        ThreadType `json:"type"`
	Description string     `json:"description"`
	Entities    []string   `json:"entities,omitempty"`
	Urgency     Urgency    `json:"urgency"`
	// DeadlineScene is the position by which the thread must advance;
	// zero means no deadline.
	DeadlineScene int `json:"deadline_scene,omitempty"`
	// Progress is true when the scene advances the thread rather than
	// merely mentioning it. Repeated mention without progress escalates.
	Progress bool        `json:"progress,omitempty"`
	Source   ClaimSource `json:"-"`
}

// MarshalJSON renders the urgency as its lowercase name.
func (u Urgency) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON accepts either the lowercase name or the numeric level.
func (u *Urgency) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "critical":
			*u = UrgencyCritical
		case "normal":
			*u = UrgencyNormal
		case "background":
			*u = UrgencyBackground
		default:
			return fmt.Errorf("unknown urgency %q", s)
		}
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("urgency must be a name or level: %w", err)
	}
	if n < int(UrgencyBackground) || n > int(UrgencyCritical) {
		return fmt.Errorf("urgency level %d out of range", n)
	}
	*u = Urgency(n)
	return nil
}

// Outcome is the terminal disposition a resolution assigns to a thread.
type Outcome int

const (
	// OutcomeResolved marks a thread as satisfied on-page.
	OutcomeResolved Outcome = iota
	// OutcomeFailed marks a thread as explicitly abandoned in-story.
	OutcomeFailed
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	if o == OutcomeFailed {
		return "failed"
	}
	return "resolved"
}

// MarshalJSON renders the outcome as its lowercase name.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON accepts either the lowercase name or the numeric value.
func (o *Outcome) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "resolved":
			*o = OutcomeResolved
		case "failed":
			*o = OutcomeFailed
		default:
			return fmt.Errorf("unknown outcome %q", s)
		}
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("outcome must be a name or value: %w", err)
	}
	if n != int(OutcomeResolved) && n != int(OutcomeFailed) {
		return fmt.Errorf("outcome value %d out of range", n)
	}
	*o = Outcome(n)
	return nil
}

// Resolution is a generator's declaration that a scene closes a prior
// thread. The description is normalized to locate the thread it closes.
type Resolution struct {
	Description string      `json:"description"`
	Outcome     Outcome     `json:"outcome"`
	Source      ClaimSource `json:"-"`
}
