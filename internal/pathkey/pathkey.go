// Package pathkey derives branch identities from ordered binary decisions.
//
// Every path through the story's decision tree is identified by the
// concatenation of the sides chosen at each decision point, in position
// order. The empty path is rendered as "ROOT". All branch-scoped state in
// the engine (facts, threads, cached generations) is keyed by these
// identities, and every component derives them through [Resolve]; a second
// derivation is how branch state bleeds between siblings.
package pathkey

import (
	"fmt"
	"sort"
	"strings"
)

// Side is one branch of a binary decision.
type Side string

const (
	// SideA is the first option at a decision point.
	SideA Side = "A"
	// SideB is the second option at a decision point.
	SideB Side = "B"
)

// Valid reports whether the side is one of the two recognized options.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Decision records which side was chosen at a given scene position.
type Decision struct {
	// Position is the scene position at which the decision was made.
	Position int `json:"position"`
	// Side is the chosen option.
	Side Side `json:"side"`
}

// Key identifies one path through the decision tree. It is the
// concatenation of chosen sides in position order, or [Root] for the
// empty path.
type Key string

// Root is the key of the trunk, before any decision has been made.
const Root Key = "ROOT"

// Resolve returns the branch key for a scene at the given position: the
// concatenation of the chosen sides of every decision whose position is
// strictly before it. The result is independent of input order. If the
// same position appears more than once, the last entry wins.
func Resolve(decisions []Decision, position int) Key {
	chosen := make(map[int]Side)
	for _, d := range decisions {
		if d.Position < position && d.Side.Valid() {
			chosen[d.Position] = d.Side
		}
	}
	if len(chosen) == 0 {
		return Root
	}

	positions := make([]int, 0, len(chosen))
	for p := range chosen {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	var sb strings.Builder
	for _, p := range positions {
		sb.WriteString(string(chosen[p]))
	}
	return Key(sb.String())
}

// Extends reports whether k is on the subtree rooted at prefix. Every key
// extends Root, and a key extends itself. State stored under a key is
// visible exactly to the keys that extend it.
func (k Key) Extends(prefix Key) bool {
	if prefix == Root || prefix == "" {
		return true
	}
	if k == Root {
		return false
	}
	return strings.HasPrefix(string(k), string(prefix))
}

// Depth returns the number of decisions encoded in the key.
func (k Key) Depth() int {
	if k == Root || k == "" {
		return 0
	}
	return len(k)
}

// Prefixes returns every key from Root down to k itself, shallowest
// first. A scene reading branch-scoped state consults exactly these keys.
func (k Key) Prefixes() []Key {
	if k == Root || k == "" {
		return []Key{Root}
	}
	out := make([]Key, 0, len(k)+1)
	out = append(out, Root)
	for i := 1; i <= len(k); i++ {
		out = append(out, k[:i])
	}
	return out
}

// Part is a subchapter within a chapter. The decision point sits at
// PartC; parts A and B are linear.
type Part string

const (
	PartA Part = "A"
	PartB Part = "B"
	PartC Part = "C"
)

// CaseID formats a chapter/part pair as a scene identifier in the
// canonical zero-padded form, e.g. CaseID(4, PartB) == "004B".
func CaseID(chapter int, part Part) string {
	return fmt.Sprintf("%03d%s", chapter, part)
}
