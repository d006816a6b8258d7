// Package validate decides whether a freshly generated artifact may be
// committed. Findings are partitioned by severity: hard issues force
// rejection and become corrective feedback for the next attempt, soft
// issues are advisory and travel with the artifact.
package validate

import (
	"fmt"

	"github.com/inkloom/loom/internal/continuity"
	"github.com/inkloom/loom/internal/narrative"
)

// Severity classifies a validation finding.
type Severity int

const (
	// SeveritySoft findings are advisory and never block a commit.
	SeveritySoft Severity = iota
	// SeverityHard findings are visible or confusing if shipped and
	// force rejection.
	SeverityHard
)

// String returns "soft" or "hard".
func (s Severity) String() string {
	if s == SeverityHard {
		return "hard"
	}
	return "soft"
}

// Issue is one validation finding.
type Issue struct {
	Severity Severity `json:"severity"`
	// Code identifies the check that fired, e.g. "fact-contradiction".
	Code string `json:"code"`
	// Subject names what the finding is about (a fact key, a thread
	// fingerprint, a misspelled noun).
	Subject string `json:"subject,omitempty"`
	// Detail is the human-readable finding.
	Detail string `json:"detail"`
}

// String renders the issue for feedback prompts and logs.
func (i Issue) String() string {
	if i.Subject != "" {
		return fmt.Sprintf("%s [%s]: %s", i.Code, i.Subject, i.Detail)
	}
	return fmt.Sprintf("%s: %s", i.Code, i.Detail)
}

// Verdict is the outcome of evaluating one artifact.
type Verdict struct {
	Accepted bool
	Hard     []Issue
	Soft     []Issue
}

// Feedback renders the hard issues as corrective feedback lines for a
// regeneration attempt.
func (v Verdict) Feedback() []string {
	out := make([]string, 0, len(v.Hard))
	for _, issue := range v.Hard {
		out = append(out, issue.String())
	}
	return out
}

// Advisories renders the soft issues for attachment to the artifact.
func (v Verdict) Advisories() []string {
	out := make([]string, 0, len(v.Soft))
	for _, issue := range v.Soft {
		out = append(out, issue.String())
	}
	return out
}

// Input carries everything a gate evaluation sees: the candidate and the
// branch-visible state it must not contradict.
type Input struct {
	Artifact *narrative.Artifact
	// Position is the actual position of the scene being produced.
	Position int
	// Choice is the most recent branch decision, which the scene must
	// visibly act on.
	Choice narrative.ChoiceContext
	// Facts are the facts visible from the scene's branch.
	Facts []narrative.Fact
	// Active are the active threads visible from the scene's branch.
	Active []continuity.Thread
	// Escalated are active threads flagged for indefinite deferral.
	Escalated []continuity.Thread
}

// Config sets the story-specific material the checks run against.
type Config struct {
	// Canon lists fixed proper nouns whose spelling is canonical.
	Canon []string
	// RevelationFloors maps a revelation keyword to the earliest scene
	// position at which it may surface.
	RevelationFloors map[string]int
	// MaxProseRunes bounds prose length before a soft pacing finding.
	// Zero disables the check.
	MaxProseRunes int
}

// Gate evaluates candidate artifacts. It is stateless and safe for
// concurrent use.
type Gate struct {
	cfg    Config
	checks []checkFn
}

type checkFn func(*Gate, Input) []Issue

// NewGate creates a gate with the full check suite.
func NewGate(cfg Config) *Gate {
	return &Gate{
		cfg: cfg,
		checks: []checkFn{
			(*Gate).checkPosition,
			(*Gate).checkDecisionHonored,
			(*Gate).checkCanonSpelling,
			(*Gate).checkFactContradictions,
			(*Gate).checkCriticalDeadlines,
			(*Gate).checkEscalatedThreads,
			(*Gate).checkRevelationFloors,
			(*Gate).checkPartialRecovery,
			(*Gate).checkStance,
			(*Gate).checkPacing,
			(*Gate).checkVagueness,
		},
	}
}

// Evaluate runs every check against the candidate and partitions the
// findings by severity. An empty hard set accepts; otherwise the verdict
// rejects with the hard issues as corrective feedback.
func (g *Gate) Evaluate(in Input) Verdict {
	var verdict Verdict
	for _, check := range g.checks {
		for _, issue := range check(g, in) {
			if issue.Severity == SeverityHard {
				verdict.Hard = append(verdict.Hard, issue)
			} else {
				verdict.Soft = append(verdict.Soft, issue)
			}
		}
	}
	verdict.Accepted = len(verdict.Hard) == 0
	return verdict
}
