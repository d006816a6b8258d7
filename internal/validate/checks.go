package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/inkloom/loom/internal/continuity"
	"github.com/inkloom/loom/internal/narrative"
)

// checkPosition flags an internal position counter that disagrees with
// the scene's actual position.
func (g *Gate) checkPosition(in Input) []Issue {
	if in.Artifact.Position == in.Position {
		return nil
	}
	return []Issue{{
		Severity: SeverityHard,
		Code:     "position-mismatch",
		Detail:   fmt.Sprintf("artifact claims position %d, scene is at position %d", in.Artifact.Position, in.Position),
	}}
}

// checkDecisionHonored flags a scene that fails to act on the single most
// recent branch decision. The decision's keywords stand in for the choice
// content; none of them appearing means the choice was ignored.
func (g *Gate) checkDecisionHonored(in Input) []Issue {
	if len(in.Choice.Keywords) == 0 {
		return nil
	}
	prose := strings.ToLower(in.Artifact.Prose)
	for _, kw := range in.Choice.Keywords {
		if kw != "" && strings.Contains(prose, strings.ToLower(kw)) {
			return nil
		}
	}
	return []Issue{{
		Severity: SeverityHard,
		Code:     "decision-ignored",
		Subject:  string(in.Choice.Decision.Side),
		Detail:   fmt.Sprintf("scene does not act on the chosen option (%s): expected one of %v", in.Choice.Summary, in.Choice.Keywords),
	}}
}

// checkCanonSpelling flags near-miss spellings of fixed proper nouns.
// Only capitalized words are candidates; an edit distance of one against
// a canon noun, without an exact match, is a misspelling.
func (g *Gate) checkCanonSpelling(in Input) []Issue {
	if len(g.cfg.Canon) == 0 {
		return nil
	}

	canonLower := make(map[string]struct{}, len(g.cfg.Canon))
	for _, noun := range g.cfg.Canon {
		canonLower[strings.ToLower(noun)] = struct{}{}
	}

	var issues []Issue
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(in.Artifact.Prose) {
		word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) })
		if len(word) < 4 || !unicode.IsUpper(rune(word[0])) {
			continue
		}
		lower := strings.ToLower(word)
		if _, exact := canonLower[lower]; exact {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		for _, noun := range g.cfg.Canon {
			if editDistance(lower, strings.ToLower(noun)) == 1 {
				seen[lower] = struct{}{}
				issues = append(issues, Issue{
					Severity: SeverityHard,
					Code:     "canon-misspelling",
					Subject:  noun,
					Detail:   fmt.Sprintf("%q appears to misspell %q", word, noun),
				})
				break
			}
		}
	}
	return issues
}

var numberUnitRe = regexp.MustCompile(`(\d+)\s+([a-z]+)`)

// checkFactContradictions flags contradictions of established facts, both
// in the artifact's declared facts and, for numeric facts, in the prose
// itself (e.g. a relationship duration stated with the wrong number).
func (g *Gate) checkFactContradictions(in Input) []Issue {
	var issues []Issue

	established := make(map[string]narrative.Fact, len(in.Facts))
	for _, f := range in.Facts {
		established[f.Key()] = f
	}

	for _, declared := range in.Artifact.Facts {
		prior, ok := established[declared.Key()]
		if !ok || prior.Value == declared.Value {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityHard,
			Code:     "fact-contradiction",
			Subject:  declared.Key(),
			Detail: fmt.Sprintf("declares %s = %q but %q was established in scene %s",
				declared.Key(), declared.Value, prior.Value, prior.Origin),
		})
	}

	issues = append(issues, g.proseNumericContradictions(in, established)...)
	return issues
}

// proseNumericContradictions scans prose for "<number> <unit>" phrases
// that contradict a visible numeric fact about a subject the prose
// mentions. The unit is taken from the tail of the fact's relation, e.g.
// "partnership_years" matches "... nine years ...".
func (g *Gate) proseNumericContradictions(in Input, established map[string]narrative.Fact) []Issue {
	prose := strings.ToLower(in.Artifact.Prose)

	var issues []Issue
	for key, fact := range established {
		if fact.Numeric == nil {
			continue
		}
		unit := relationUnit(fact.Relation)
		if unit == "" || !strings.Contains(prose, strings.ToLower(fact.Subject)) {
			continue
		}
		for _, m := range numberUnitRe.FindAllStringSubmatch(prose, -1) {
			if strings.TrimSuffix(m[2], "s") != strings.TrimSuffix(unit, "s") {
				continue
			}
			n, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if n != *fact.Numeric {
				issues = append(issues, Issue{
					Severity: SeverityHard,
					Code:     "fact-contradiction",
					Subject:  key,
					Detail: fmt.Sprintf("prose states %q but %s is established as %s (scene %s)",
						m[0], key, fact.Value, fact.Origin),
				})
				break
			}
		}
	}
	return issues
}

// relationUnit extracts the unit word from a relation name, e.g.
// "partnership_years" -> "years".
func relationUnit(relation string) string {
	parts := strings.Split(relation, "_")
	return parts[len(parts)-1]
}

// checkCriticalDeadlines flags critical threads past their deadline that
// the candidate neither advances nor resolves.
func (g *Gate) checkCriticalDeadlines(in Input) []Issue {
	var issues []Issue
	for _, th := range in.Active {
		if th.Urgency != narrative.UrgencyCritical || th.DeadlineScene == 0 || in.Position < th.DeadlineScene {
			continue
		}
		if artifactAddresses(in.Artifact, th) {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityHard,
			Code:     "deadline-missed",
			Subject:  string(th.Fingerprint),
			Detail:   fmt.Sprintf("critical thread %q is past its deadline (scene %d) and unaddressed", th.Description, th.DeadlineScene),
		})
	}
	return issues
}

// checkEscalatedThreads flags threads that have been acknowledged without
// progress too many times; indefinite deferral is disallowed.
func (g *Gate) checkEscalatedThreads(in Input) []Issue {
	var issues []Issue
	for _, th := range in.Escalated {
		if artifactAddresses(in.Artifact, th) {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityHard,
			Code:     "thread-stalled",
			Subject:  string(th.Fingerprint),
			Detail:   fmt.Sprintf("thread %q has been acknowledged %d times without progress and must now advance or resolve", th.Description, th.AckStreak),
		})
	}
	return issues
}

// checkRevelationFloors flags revelations surfacing before their designed
// earliest-allowed position.
func (g *Gate) checkRevelationFloors(in Input) []Issue {
	if len(g.cfg.RevelationFloors) == 0 {
		return nil
	}
	prose := strings.ToLower(in.Artifact.Prose)

	var issues []Issue
	for keyword, floor := range g.cfg.RevelationFloors {
		if in.Position >= floor {
			continue
		}
		mentioned := strings.Contains(prose, strings.ToLower(keyword))
		if !mentioned {
			for _, claim := range in.Artifact.Raised {
				if claim.Type == narrative.ThreadRevelation &&
					strings.Contains(strings.ToLower(claim.Description), strings.ToLower(keyword)) {
					mentioned = true
					break
				}
			}
		}
		if mentioned {
			issues = append(issues, Issue{
				Severity: SeverityHard,
				Code:     "revelation-early",
				Subject:  keyword,
				Detail:   fmt.Sprintf("revelation %q may not surface before position %d (scene is at %d)", keyword, floor, in.Position),
			})
		}
	}
	return issues
}

// checkPartialRecovery applies the stricter policy for artifacts salvaged
// from malformed payloads: without declared metadata they cannot be
// trusted to keep the thread ledger consistent.
func (g *Gate) checkPartialRecovery(in Input) []Issue {
	a := in.Artifact
	if a.Recovery != narrative.RecoveryPartial {
		return nil
	}
	if len(a.Raised) == 0 && len(a.Resolutions) == 0 && len(a.Facts) == 0 {
		return []Issue{{
			Severity: SeverityHard,
			Code:     "partial-recovery",
			Detail:   "partially recovered artifact declares no metadata; regenerate with a well-formed payload",
		}}
	}
	return nil
}

func (g *Gate) checkStance(in Input) []Issue {
	if in.Artifact.Stance != narrative.StanceUnknown {
		return nil
	}
	return []Issue{{
		Severity: SeveritySoft,
		Code:     "stance-unknown",
		Detail:   "artifact declares no behavioral stance",
	}}
}

func (g *Gate) checkPacing(in Input) []Issue {
	if g.cfg.MaxProseRunes == 0 || utf8.RuneCountInString(in.Artifact.Prose) <= g.cfg.MaxProseRunes {
		return nil
	}
	return []Issue{{
		Severity: SeveritySoft,
		Code:     "overlong",
		Detail:   fmt.Sprintf("prose exceeds %d runes", g.cfg.MaxProseRunes),
	}}
}

var vagueWords = []string{"someone", "something", "somehow", "somewhere"}

func (g *Gate) checkVagueness(in Input) []Issue {
	prose := strings.ToLower(in.Artifact.Prose)
	count := 0
	for _, w := range vagueWords {
		count += strings.Count(prose, w)
	}
	if count <= 2 {
		return nil
	}
	return []Issue{{
		Severity: SeveritySoft,
		Code:     "vague",
		Detail:   fmt.Sprintf("%d vague references; name entities where established", count),
	}}
}

// artifactAddresses reports whether the candidate advances or resolves
// the given thread.
func artifactAddresses(a *narrative.Artifact, th continuity.Thread) bool {
	for _, claim := range a.Raised {
		if claim.Progress && continuity.Normalize(claim) == th.Fingerprint {
			return true
		}
	}
	for _, res := range a.Resolutions {
		if continuity.ResolutionMatches(res, th.Fingerprint) {
			return true
		}
	}
	return false
}

// editDistance computes the edit distance between two short strings,
// counting an adjacent transposition as a single edit, the most common
// shape of a typo in a proper noun.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	rows := make([][]int, len(ra)+1)
	for i := range rows {
		rows[i] = make([]int, len(rb)+1)
		rows[i][0] = i
	}
	for j := 0; j <= len(rb); j++ {
		rows[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d := min(rows[i-1][j]+1, min(rows[i][j-1]+1, rows[i-1][j-1]+cost))
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d = min(d, rows[i-2][j-2]+1)
			}
			rows[i][j] = d
		}
	}
	return rows[len(ra)][len(rb)]
}
