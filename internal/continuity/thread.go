package continuity

import (
	"github.com/inkloom/loom/internal/narrative"
)

// Status is the lifecycle state of a narrative thread.
type Status int

const (
	// StatusActive means the thread is an open obligation later scenes
	// must respect.
	StatusActive Status = iota
	// StatusResolved means the thread was satisfied on-page, or closed
	// by the engine with a system reason.
	StatusResolved
	// StatusFailed means the story explicitly abandoned the thread.
	StatusFailed
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	default:
		return "active"
	}
}

// IsTerminal reports whether the status is final. Terminal identity is
// sticky: a lower-confidence extraction can never reopen it.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusFailed
}

// Fingerprint is the canonical identity of a thread, unique among active
// threads on any one branch chain regardless of phrasing.
type Fingerprint string

// Thread is one open story obligation tracked by the store.
type Thread struct {
	Fingerprint Fingerprint          `json:"fingerprint"`
	Type        narrative.ThreadType `json:"type"`
	Description string               `json:"description"`
	Entities    []string             `json:"entities,omitempty"`
	Status      Status               `json:"status"`
	Urgency     narrative.Urgency    `json:"urgency"`

	// OriginScene is the scene that first raised the thread.
	OriginScene narrative.SceneID `json:"origin_scene"`
	// DeadlineScene is the position by which a critical thread must be
	// addressed; zero means none.
	DeadlineScene int `json:"deadline_scene,omitempty"`
	// UpdatedScene is the position of the last scene that touched the
	// thread.
	UpdatedScene int `json:"updated_scene"`
	// ResolvedScene is the position at which the thread reached a
	// terminal status.
	ResolvedScene int `json:"resolved_scene,omitempty"`

	// AckStreak counts consecutive merges that mentioned the thread
	// without advancing it. Two or more flags the thread for escalation.
	AckStreak int `json:"ack_streak,omitempty"`

	// SystemReason is set when the engine, not the story, closed the
	// thread (e.g. the active-set cap).
	SystemReason string `json:"system_reason,omitempty"`
}

// clone returns a copy safe to publish outside the store's lock.
func (t *Thread) clone() Thread {
	cp := *t
	cp.Entities = append([]string(nil), t.Entities...)
	return cp
}

// ArchiveRecord is the compact form a terminal thread is retained in for
// callback purposes. It carries identity and minimal metadata, no prose.
type ArchiveRecord struct {
	Fingerprint   Fingerprint          `json:"fingerprint"`
	Type          narrative.ThreadType `json:"type"`
	Status        Status               `json:"status"`
	OriginScene   narrative.SceneID    `json:"origin_scene"`
	ArchivedScene int                  `json:"archived_scene"`
}
