package validate

import (
	"strings"
	"testing"

	"github.com/inkloom/loom/internal/continuity"
	"github.com/inkloom/loom/internal/narrative"
	"github.com/inkloom/loom/internal/pathkey"
)

func cleanArtifact(prose string, position int) *narrative.Artifact {
	return &narrative.Artifact{
		Identity: narrative.ContentIdentity{Scene: "004B", Branch: pathkey.Key("AB")},
		Prose:    prose,
		Position: position,
		Stance:   narrative.StanceCautious,
		Recovery: narrative.RecoveryClean,
	}
}

func baseInput(a *narrative.Artifact, position int) Input {
	return Input{Artifact: a, Position: position}
}

func hasHard(v Verdict, code string) bool {
	for _, issue := range v.Hard {
		if issue.Code == code {
			return true
		}
	}
	return false
}

func hasSoft(v Verdict, code string) bool {
	for _, issue := range v.Soft {
		if issue.Code == code {
			return true
		}
	}
	return false
}

func TestEvaluateAcceptsCleanArtifact(t *testing.T) {
	g := NewGate(Config{Canon: []string{"Monroe", "Sarah"}})
	v := g.Evaluate(baseInput(cleanArtifact("Monroe watched the harbor.", 4), 4))
	if !v.Accepted {
		t.Fatalf("clean artifact rejected: %+v", v.Hard)
	}
}

func TestPositionMismatchIsHard(t *testing.T) {
	g := NewGate(Config{})
	v := g.Evaluate(baseInput(cleanArtifact("The night dragged on.", 3), 4))
	if v.Accepted || !hasHard(v, "position-mismatch") {
		t.Errorf("verdict = %+v, want position-mismatch rejection", v)
	}
}

func TestDecisionIgnoredIsHard(t *testing.T) {
	g := NewGate(Config{})
	in := baseInput(cleanArtifact("Jack stayed home and read the files.", 4), 4)
	in.Choice = narrative.ChoiceContext{
		Decision: pathkey.Decision{Position: 3, Side: pathkey.SideB},
		Summary:  "confront Monroe at the warehouse",
		Keywords: []string{"warehouse", "Monroe"},
	}
	v := g.Evaluate(in)
	if v.Accepted || !hasHard(v, "decision-ignored") {
		t.Errorf("verdict = %+v, want decision-ignored rejection", v)
	}

	in.Artifact = cleanArtifact("Jack cornered Monroe behind the warehouse.", 4)
	if v := g.Evaluate(in); !v.Accepted {
		t.Errorf("decision honored but rejected: %+v", v.Hard)
	}
}

func TestCanonMisspellingIsHard(t *testing.T) {
	g := NewGate(Config{Canon: []string{"Monroe"}})
	v := g.Evaluate(baseInput(cleanArtifact("Monore lit a cigarette.", 4), 4))
	if v.Accepted || !hasHard(v, "canon-misspelling") {
		t.Errorf("verdict = %+v, want canon-misspelling rejection", v)
	}

	// The exact spelling passes.
	if v := g.Evaluate(baseInput(cleanArtifact("Monroe lit a cigarette.", 4), 4)); !v.Accepted {
		t.Errorf("correct spelling rejected: %+v", v.Hard)
	}
}

func TestDeclaredFactContradictionIsHard(t *testing.T) {
	g := NewGate(Config{})
	seven := 7.0
	in := baseInput(cleanArtifact("They went back a long way.", 4), 4)
	in.Facts = []narrative.Fact{{
		Subject: "Jack", Relation: "partnership_years", Value: "7", Numeric: &seven, Origin: "001A",
	}}
	ten := 10.0
	in.Artifact.Facts = []narrative.Fact{{
		Subject: "Jack", Relation: "partnership_years", Value: "10", Numeric: &ten,
	}}

	v := g.Evaluate(in)
	if v.Accepted {
		t.Fatal("contradiction accepted")
	}
	if !hasHard(v, "fact-contradiction") {
		t.Fatalf("verdict = %+v, want fact-contradiction", v)
	}
	// The issue names the contradicted fact.
	found := false
	for _, issue := range v.Hard {
		if issue.Subject == "Jack|partnership_years" {
			found = true
		}
	}
	if !found {
		t.Errorf("hard issue does not name the fact: %+v", v.Hard)
	}
}

func TestProseNumericContradictionIsHard(t *testing.T) {
	g := NewGate(Config{})
	seven := 7.0
	in := baseInput(cleanArtifact("Jack had been his partner for 10 years, or so he claimed.", 4), 4)
	in.Facts = []narrative.Fact{{
		Subject: "Jack", Relation: "partnership_years", Value: "7", Numeric: &seven, Origin: "001A",
	}}

	v := g.Evaluate(in)
	if v.Accepted || !hasHard(v, "fact-contradiction") {
		t.Errorf("verdict = %+v, want prose numeric contradiction", v)
	}

	// The established number passes.
	in.Artifact = cleanArtifact("Jack had been his partner for 7 years.", 4)
	if v := g.Evaluate(in); !v.Accepted {
		t.Errorf("correct duration rejected: %+v", v.Hard)
	}
}

func TestCriticalDeadlineMissedIsHard(t *testing.T) {
	g := NewGate(Config{})
	claim := narrative.ThreadClaim{
		Type:        narrative.ThreadAppointment,
		Description: "Jack agrees to meet Sarah at the docks at midnight",
		Entities:    []string{"Jack", "Sarah"},
		Urgency:     narrative.UrgencyCritical,
	}
	th := continuity.Thread{
		Fingerprint:   continuity.Normalize(claim),
		Type:          claim.Type,
		Description:   claim.Description,
		Urgency:       narrative.UrgencyCritical,
		Status:        continuity.StatusActive,
		DeadlineScene: 5,
	}

	in := baseInput(cleanArtifact("An unrelated interlude.", 6), 6)
	in.Active = []continuity.Thread{th}
	v := g.Evaluate(in)
	if v.Accepted || !hasHard(v, "deadline-missed") {
		t.Errorf("verdict = %+v, want deadline-missed", v)
	}

	// Resolving the thread clears the finding.
	in.Artifact.Resolutions = []narrative.Resolution{{
		Description: "Jack meets Sarah at the docks at midnight",
		Outcome:     narrative.OutcomeResolved,
	}}
	if v := g.Evaluate(in); !v.Accepted {
		t.Errorf("addressed deadline still rejected: %+v", v.Hard)
	}

	// Before the deadline there is no finding.
	in = baseInput(cleanArtifact("An unrelated interlude.", 4), 4)
	in.Active = []continuity.Thread{th}
	if v := g.Evaluate(in); !v.Accepted {
		t.Errorf("deadline not yet due but rejected: %+v", v.Hard)
	}
}

func TestEscalatedThreadIsHard(t *testing.T) {
	g := NewGate(Config{})
	claim := narrative.ThreadClaim{
		Type:        narrative.ThreadPromise,
		Description: "Monroe promises to deliver the ledger",
		Entities:    []string{"Monroe"},
	}
	th := continuity.Thread{
		Fingerprint: continuity.Normalize(claim),
		Type:        claim.Type,
		Description: claim.Description,
		Status:      continuity.StatusActive,
		AckStreak:   2,
	}

	in := baseInput(cleanArtifact("Another quiet scene.", 5), 5)
	in.Escalated = []continuity.Thread{th}
	v := g.Evaluate(in)
	if v.Accepted || !hasHard(v, "thread-stalled") {
		t.Errorf("verdict = %+v, want thread-stalled", v)
	}

	// Advancing it clears the finding.
	progress := claim
	progress.Progress = true
	in.Artifact.Raised = []narrative.ThreadClaim{progress}
	if v := g.Evaluate(in); !v.Accepted {
		t.Errorf("advanced escalated thread still rejected: %+v", v.Hard)
	}
}

func TestRevelationFloorIsHard(t *testing.T) {
	g := NewGate(Config{RevelationFloors: map[string]int{"the twin": 9}})

	v := g.Evaluate(baseInput(cleanArtifact("Sarah whispered about the twin.", 4), 4))
	if v.Accepted || !hasHard(v, "revelation-early") {
		t.Errorf("verdict = %+v, want revelation-early", v)
	}

	if v := g.Evaluate(baseInput(cleanArtifact("Sarah whispered about the twin.", 9), 9)); !v.Accepted {
		t.Errorf("revelation at floor rejected: %+v", v.Hard)
	}
}

func TestPartialRecoveryWithoutMetadataIsHard(t *testing.T) {
	g := NewGate(Config{})
	a := cleanArtifact("Salvaged prose only.", 4)
	a.Recovery = narrative.RecoveryPartial

	v := g.Evaluate(baseInput(a, 4))
	if v.Accepted || !hasHard(v, "partial-recovery") {
		t.Errorf("verdict = %+v, want partial-recovery", v)
	}

	// Partial recovery with declared metadata passes the strict check.
	a.Raised = []narrative.ThreadClaim{{Type: narrative.ThreadPromise, Description: "deliver the ledger"}}
	if v := g.Evaluate(baseInput(a, 4)); !v.Accepted {
		t.Errorf("partial with metadata rejected: %+v", v.Hard)
	}
}

func TestSoftIssuesDoNotBlock(t *testing.T) {
	g := NewGate(Config{MaxProseRunes: 10})
	a := cleanArtifact("Someone gave something to someone, somehow, somewhere in the dark.", 4)
	a.Stance = narrative.StanceUnknown

	v := g.Evaluate(baseInput(a, 4))
	if !v.Accepted {
		t.Fatalf("soft-only findings blocked commit: %+v", v.Hard)
	}
	for _, code := range []string{"stance-unknown", "overlong", "vague"} {
		if !hasSoft(v, code) {
			t.Errorf("missing soft issue %q in %+v", code, v.Soft)
		}
	}
}

func TestFeedbackNamesIssues(t *testing.T) {
	g := NewGate(Config{})
	v := g.Evaluate(baseInput(cleanArtifact("Text.", 1), 2))
	fb := v.Feedback()
	if len(fb) == 0 || !strings.Contains(fb[0], "position-mismatch") {
		t.Errorf("Feedback() = %v", fb)
	}
}
