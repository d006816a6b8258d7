// Package generate defines the boundary to the external text producer.
// The orchestrator never talks to a transport directly; it hands a
// PromptContext to a Generator and receives raw payload bytes back.
// Errors crossing this boundary are classified as transient (the same
// request may succeed on retry) or content (the payload itself was bad
// and retrying identically is pointless).
package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/inkloom/loom/internal/continuity"
	"github.com/inkloom/loom/internal/narrative"
)

// PromptContext carries everything the producer needs to generate one
// scene: the identity, the branch-visible state, and any feedback from a
// prior rejected attempt.
type PromptContext struct {
	// Identity names the scene and branch being generated.
	Identity narrative.ContentIdentity
	// Position is the scene's 1-based position along the storyline.
	Position int
	// Facts are the established facts visible on this branch.
	Facts []narrative.Fact
	// Threads are the active threads visible on this branch.
	Threads []continuity.Thread
	// Choice describes the most recent branch decision, which the scene
	// must act on.
	Choice narrative.ChoiceContext
	// Stance carried over from the previous scene on this branch, if any.
	Stance narrative.Stance
	// Feedback lists the hard findings from the previous attempt. Empty
	// on a first attempt.
	Feedback []string
	// Advisories lists soft findings to steer, not block, the attempt.
	Advisories []string
}

// Generator produces one raw scene payload. Implementations are expected
// to be safe for concurrent use; the orchestrator bounds concurrency
// separately.
type Generator interface {
	Generate(ctx context.Context, pc PromptContext) ([]byte, error)
}

// TransientError marks a failure of the transport rather than the
// content: timeouts, resets, throttling. An identical retry is sensible.
type TransientError struct {
	Op    string
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// Transient wraps err as a TransientError for the given operation.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Cause: err}
}

// ContentError marks a payload the producer returned successfully but
// that cannot be used: refusals, empty bodies, unparsable garbage.
// Retrying the identical request wastes a transport attempt; the caller
// should regenerate with feedback instead.
type ContentError struct {
	Reason string
	Cause  error
}

func (e *ContentError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("unusable payload: %s", e.Reason)
	}
	return fmt.Sprintf("unusable payload: %s: %v", e.Reason, e.Cause)
}

func (e *ContentError) Unwrap() error { return e.Cause }

// Content builds a ContentError with an optional cause.
func Content(reason string, cause error) error {
	return &ContentError{Reason: reason, Cause: cause}
}

// IsTransient reports whether err is, or wraps, a transport-level
// failure worth an identical retry. Context cancellation is not
// transient; the caller asked to stop.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransientError
	return errors.As(err, &te)
}

// IsContent reports whether err is, or wraps, an unusable-payload
// failure.
func IsContent(err error) bool {
	var ce *ContentError
	return errors.As(err, &ce)
}
