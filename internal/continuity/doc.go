// Package continuity keeps the long-range narrative state of a branching
// story bounded and consistent: open narrative threads (promises,
// appointments, threats, revelations) and established facts.
//
// All state is scoped by branch key. Writes always land under the exact
// branch key of the committing scene; reads walk the chain of prefixes
// from the trunk down to the reader's branch, with deeper entries
// shadowing shallower ones. Sibling branches therefore never observe each
// other's writes, while both inherit everything established before the
// split; the store never mutates an ancestor's entry in place.
//
// Threads are deduplicated by fingerprint: a canonical identity derived
// from the claim's category, action verb, location, named entities, and
// deadline bucket, so differently phrased claims about the same
// real-world obligation collapse into one thread. See [Normalize].
//
// The active set is kept bounded by [Store.Cap]: critical threads are
// always retained, and overflow threads are auto-resolved with a system
// reason rather than silently dropped, so later consistency checks never
// contradict a thread that vanished. Resolved threads move to a compact
// archive with a bounded retention window ([Store.Archive]).
package continuity
