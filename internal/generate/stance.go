package generate

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/inkloom/loom/internal/logging"
	"github.com/inkloom/loom/internal/narrative"
)

// StanceClassifier derives the player's behavioral stance from their
// recent choices so prompts can keep characterization consistent. It is
// strictly an enrichment: any failure degrades to StanceUnknown and the
// pipeline proceeds without it.
type StanceClassifier struct {
	gen Generator
	log *logging.Logger
}

// NewStanceClassifier builds a classifier backed by the given producer.
func NewStanceClassifier(gen Generator, log *logging.Logger) *StanceClassifier {
	if log == nil {
		log = logging.NopLogger()
	}
	return &StanceClassifier{gen: gen, log: log}
}

// Classify asks the producer to label the behavior shown by the recent
// choice summaries. The payload is expected to contain one of the known
// stance words; anything else, and any error at all, yields
// StanceUnknown.
func (s *StanceClassifier) Classify(ctx context.Context, choices []narrative.ChoiceContext) narrative.Stance {
	if s.gen == nil || len(choices) == 0 {
		return narrative.StanceUnknown
	}

	summaries := make([]string, 0, len(choices))
	for _, c := range choices {
		if c.Summary != "" {
			summaries = append(summaries, c.Summary)
		}
	}
	if len(summaries) == 0 {
		return narrative.StanceUnknown
	}

	payload, err := s.gen.Generate(ctx, PromptContext{
		Feedback: summaries,
	})
	if err != nil {
		s.log.Debug("stance classification skipped", "error", err.Error())
		return narrative.StanceUnknown
	}
	return parseStance(payload)
}

// parseStance accepts either a bare stance word or a small JSON object
// with a "stance" field.
func parseStance(payload []byte) narrative.Stance {
	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, "{") {
		var body struct {
			Stance string `json:"stance"`
		}
		if err := json.Unmarshal([]byte(text), &body); err != nil {
			return narrative.StanceUnknown
		}
		text = body.Stance
	}
	switch strings.ToLower(strings.Trim(text, `"`)) {
	case string(narrative.StanceCautious):
		return narrative.StanceCautious
	case string(narrative.StanceAggressive):
		return narrative.StanceAggressive
	case string(narrative.StanceAnalytical):
		return narrative.StanceAnalytical
	default:
		return narrative.StanceUnknown
	}
}
