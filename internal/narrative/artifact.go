package narrative

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparsable indicates that no usable content could be recovered from
// a generator payload.
var ErrUnparsable = errors.New("generator payload is unparsable")

// Recovery tags how an artifact was recovered from the generator payload.
// Partially recovered artifacts are held to a stricter validation policy
// than cleanly parsed ones.
type Recovery int

const (
	// RecoveryClean means the payload decoded strictly against the schema.
	RecoveryClean Recovery = iota
	// RecoveryPartial means content was salvaged from a malformed payload.
	RecoveryPartial
)

// String returns "clean" or "partial".
func (r Recovery) String() string {
	if r == RecoveryPartial {
		return "partial"
	}
	return "clean"
}

// Artifact is a generator's candidate for one scene: prose plus the
// metadata the generator declares about it. An artifact is immutable once
// committed; only committed artifacts may touch the fact and thread
// ledgers.
type Artifact struct {
	Identity ContentIdentity `json:"identity"`

	// Prose is the scene text itself.
	Prose string `json:"prose"`
	// Position is the scene position the generator believes it is
	// writing. Disagreement with the actual position is a hard issue.
	Position int `json:"position"`
	// Stance is the generator's claimed read of player behavior.
	Stance Stance `json:"stance,omitempty"`

	// Raised are new or touched narrative threads the scene declares.
	Raised []ThreadClaim `json:"threads,omitempty"`
	// Resolutions close previously raised threads.
	Resolutions []Resolution `json:"resolutions,omitempty"`
	// Facts are statements the scene establishes.
	Facts []Fact `json:"facts,omitempty"`

	// Recovery records how the artifact was parsed.
	Recovery Recovery `json:"recovery,omitempty"`
	// Advisories are soft validation findings attached at commit time.
	// They never block a commit.
	Advisories []string `json:"advisories,omitempty"`
}

// wirePayload is the schema a generator is asked to produce.
type wirePayload struct {
	Prose       string        `json:"prose"`
	Position    int           `json:"position"`
	Stance      Stance        `json:"stance"`
	Threads     []ThreadClaim `json:"threads"`
	Resolutions []Resolution  `json:"resolutions"`
	Facts       []Fact        `json:"facts"`
}

// ParseArtifact decodes a raw generator payload for the given identity.
//
// A payload that decodes strictly against the schema yields a
// RecoveryClean artifact. Malformed payloads go through bounded salvage:
// first the outermost JSON object embedded in the text, then the raw text
// itself as bare prose. Anything salvaged is tagged RecoveryPartial so
// validation can refuse or tighten up accordingly. If no prose can be
// recovered at all, ErrUnparsable is returned.
func ParseArtifact(identity ContentIdentity, raw []byte) (*Artifact, error) {
	if payload, ok := decodeStrict(raw); ok && payload.Prose != "" {
		return payload.artifact(identity, RecoveryClean), nil
	}

	if payload, ok := decodeEmbedded(raw); ok && payload.Prose != "" {
		return payload.artifact(identity, RecoveryPartial), nil
	}

	text := strings.TrimSpace(string(raw))
	if text == "" || strings.HasPrefix(text, "{") {
		return nil, ErrUnparsable
	}
	return &Artifact{
		Identity: identity,
		Prose:    text,
		Stance:   StanceUnknown,
		Recovery: RecoveryPartial,
	}, nil
}

func (p *wirePayload) artifact(identity ContentIdentity, rec Recovery) *Artifact {
	stance := p.Stance
	if stance == "" {
		stance = StanceUnknown
	}
	return &Artifact{
		Identity:    identity,
		Prose:       p.Prose,
		Position:    p.Position,
		Stance:      stance,
		Raised:      p.Threads,
		Resolutions: p.Resolutions,
		Facts:       p.Facts,
		Recovery:    rec,
	}
}

func decodeStrict(raw []byte) (*wirePayload, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var payload wirePayload
	if err := dec.Decode(&payload); err != nil {
		return nil, false
	}
	// Trailing garbage after the object disqualifies a strict parse.
	if dec.More() {
		return nil, false
	}
	return &payload, true
}

// decodeEmbedded extracts the outermost {...} span from a payload that
// has text wrapped around the JSON object and decodes it leniently.
func decodeEmbedded(raw []byte) (*wirePayload, bool) {
	start := bytes.IndexByte(raw, '{')
	end := bytes.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	var payload wirePayload
	if err := json.Unmarshal(raw[start:end+1], &payload); err != nil {
		return nil, false
	}
	return &payload, true
}
