package continuity

import (
	"sort"
	"strconv"
	"strings"

	"github.com/inkloom/loom/internal/narrative"
)

// verbSynonyms collapses content verbs into one canonical action per
// family. Commitment verbs ("agrees", "promises", "will") are modality,
// not action, and are skipped via the stopword list instead.
var verbSynonyms = map[string]string{
	"meet": "meet", "meets": "meet", "meeting": "meet",
	"see": "meet", "sees": "meet", "rendezvous": "meet",
	"visit": "meet", "visits": "meet",

	"deliver": "deliver", "delivers": "deliver",
	"bring": "deliver", "brings": "deliver", "brought": "deliver",
	"give": "deliver", "gives": "deliver",
	"hand": "deliver", "hands": "deliver",

	"reveal": "reveal", "reveals": "reveal",
	"confess": "reveal", "confesses": "reveal",
	"admit": "reveal", "admits": "reveal",
	"disclose": "reveal", "discloses": "reveal",
	"tell": "reveal", "tells": "reveal", "explain": "reveal", "explains": "reveal",

	"threaten": "threaten", "threatens": "threaten",
	"warn": "threaten", "warns": "threaten",

	"find": "find", "finds": "find",
	"locate": "find", "locates": "find",
	"search": "find", "searches": "find",
	"track": "find", "tracks": "find",

	"protect": "protect", "protects": "protect",
	"guard": "protect", "guards": "protect",

	"pay": "pay", "pays": "pay", "repay": "pay", "repays": "pay",

	"return": "return", "returns": "return",
}

// locationSynonyms collapses place words into one canonical location per
// family.
var locationSynonyms = map[string]string{
	"docks": "docks", "dock": "docks", "pier": "docks", "wharf": "docks",
	"waterfront": "docks", "harbor": "docks", "harbour": "docks", "quay": "docks",

	"warehouse": "warehouse", "depot": "warehouse", "storehouse": "warehouse",

	"station": "station", "precinct": "station",

	"office": "office", "bureau": "office",

	"apartment": "apartment", "flat": "apartment",

	"bar": "bar", "tavern": "bar", "pub": "bar",
}

// timeWords map time-of-day mentions to a coarse bucket.
var timeWords = map[string]string{
	"midnight": "night", "night": "night", "nightfall": "night",
	"dawn": "morning", "morning": "morning", "sunrise": "morning",
	"noon": "day", "midday": "day", "afternoon": "day",
	"evening": "evening", "dusk": "evening", "sunset": "evening",
}

// stopwords are skipped when falling back to the first content token.
// Commitment/modality verbs live here so that "agrees to meet" and
// "will see" normalize to the same action.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "at": {}, "in": {}, "on": {},
	"of": {}, "for": {}, "with": {}, "and": {}, "or": {}, "that": {},
	"this": {}, "by": {}, "from": {}, "into": {}, "up": {}, "out": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"has": {}, "have": {}, "had": {}, "will": {}, "shall": {},
	"would": {}, "must": {}, "going": {}, "about": {}, "not": {},
	"agree": {}, "agrees": {}, "agreed": {},
	"promise": {}, "promises": {}, "promised": {},
	"vow": {}, "vows": {}, "vowed": {},
	"swear": {}, "swears": {}, "swore": {},
	"plan": {}, "plans": {}, "planned": {},
	"intend": {}, "intends": {}, "intended": {},
	"he": {}, "she": {}, "they": {}, "it": {}, "his": {}, "her": {},
	"their": {}, "him": {}, "them": {},
}

// capitalizedBlocklist keeps sentence-leading function words out of
// entity extraction.
var capitalizedBlocklist = map[string]struct{}{
	"The": {}, "A": {}, "An": {}, "I": {}, "He": {}, "She": {},
	"They": {}, "It": {}, "But": {}, "And": {}, "Then": {},
	"When": {}, "If": {}, "After": {}, "Before": {},
}

// deadlineBucketSize groups deadline positions into coarse buckets so
// small disagreements about the exact deadline scene do not split one
// obligation into two fingerprints.
const deadlineBucketSize = 3

// Normalize derives the canonical fingerprint of a thread claim. It is
// deterministic and phrasing-independent: two differently worded claims
// about the same real-world obligation yield the same fingerprint.
//
// The fingerprint is built from the claim's category, canonical action
// verb, canonical location, sorted named entities, and a coarse deadline
// bucket, joined with "|".
func Normalize(claim narrative.ThreadClaim) Fingerprint {
	return Fingerprint(string(claim.Type) + "|" + normalizeBody(claim.Description, claim.Entities, claim.DeadlineScene))
}

// normalizeResolution derives the category-free portion of a fingerprint
// from a resolution, which declares no thread type. Resolutions match a
// thread when this portion matches the thread fingerprint's body.
func normalizeResolution(res narrative.Resolution) string {
	return normalizeBody(res.Description, nil, 0)
}

// ResolutionMatches reports whether a resolution closes the thread with
// the given fingerprint. Resolutions declare no thread type or deadline,
// so the verb, location, and entity components must match while the
// deadline bucket is a wildcard when the resolution carries none.
func ResolutionMatches(res narrative.Resolution, fp Fingerprint) bool {
	body := strings.Split(normalizeResolution(res), "|")
	parts := strings.Split(fp.body(), "|")
	if len(parts) != 4 || len(body) != 4 {
		return false
	}
	if parts[0] != body[0] || parts[1] != body[1] || parts[2] != body[2] {
		return false
	}
	return body[3] == "" || parts[3] == body[3]
}

// body returns the category-free portion of a fingerprint.
func (f Fingerprint) body() string {
	if i := strings.Index(string(f), "|"); i >= 0 {
		return string(f)[i+1:]
	}
	return string(f)
}

func normalizeBody(description string, entities []string, deadline int) string {
	tokens := tokenize(description)
	parts := []string{
		canonicalVerb(tokens),
		canonicalLocation(tokens),
		canonicalEntities(entities, description),
		timeBucket(tokens, deadline),
	}
	return strings.Join(parts, "|")
}

// tokenize lowercases and splits on non-letter runs.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
}

func canonicalVerb(tokens []string) string {
	for _, tok := range tokens {
		if v, ok := verbSynonyms[tok]; ok {
			return v
		}
	}
	// No known content verb: fall back to the first content token,
	// crudely stemmed.
	for _, tok := range tokens {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		if _, isTime := timeWords[tok]; isTime {
			continue
		}
		return stem(tok)
	}
	return ""
}

func canonicalLocation(tokens []string) string {
	for _, tok := range tokens {
		if loc, ok := locationSynonyms[tok]; ok {
			return loc
		}
	}
	return ""
}

func canonicalEntities(entities []string, description string) string {
	names := make(map[string]struct{})
	if len(entities) > 0 {
		for _, e := range entities {
			e = strings.ToLower(strings.TrimSpace(e))
			if e != "" {
				names[e] = struct{}{}
			}
		}
	} else {
		// No declared entities: take capitalized words from the
		// description, minus common sentence-leading function words.
		for _, word := range strings.Fields(description) {
			word = strings.Trim(word, ".,;:!?'\"")
			if len(word) < 2 || word[0] < 'A' || word[0] > 'Z' {
				continue
			}
			if _, blocked := capitalizedBlocklist[word]; blocked {
				continue
			}
			names[strings.ToLower(word)] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func timeBucket(tokens []string, deadline int) string {
	for _, tok := range tokens {
		if bucket, ok := timeWords[tok]; ok {
			return bucket
		}
	}
	if deadline > 0 {
		return "d" + strconv.Itoa((deadline-1)/deadlineBucketSize)
	}
	return ""
}

// stem strips common verb suffixes. It is deliberately crude: the goal
// is a stable bucket, not linguistics.
func stem(tok string) string {
	for _, suffix := range []string{"ing", "ed", "es", "s"} {
		if strings.HasSuffix(tok, suffix) && len(tok)-len(suffix) >= 3 {
			return tok[:len(tok)-len(suffix)]
		}
	}
	return tok
}
