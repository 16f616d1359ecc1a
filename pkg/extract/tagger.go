// Package extract turns requirement text into C4 entities and relations
// using an entity tagging model and a relation classification model.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/c4designer/pkg/c4"
	"github.com/OFFIS-RIT/c4designer/pkg/inference"
)

// ErrInference marks failures of the underlying model calls.
var ErrInference = errors.New("inference failed")

// Tagger finds typed entity mentions in text.
type Tagger struct {
	classifier inference.TokenClassifier
}

func NewTagger(classifier inference.TokenClassifier) *Tagger {
	return &Tagger{classifier: classifier}
}

// Tag classifies every sentence of text and returns the entities in document
// order with ids ent-0, ent-1, ... Spans with an unknown label or blank text
// are dropped. A span that starts exactly where the previous entity ends and
// has the same type is merged into it. Any classifier failure aborts the call.
func (t *Tagger) Tag(ctx context.Context, text string) ([]c4.Entity, error) {
	entities := []c4.Entity{}

	for _, sent := range SplitSentences(text) {
		spans, err := t.classifier.Classify(ctx, sent.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: tagging sentence at %d: %w", ErrInference, sent.Start, err)
		}

		for _, span := range spans {
			if !c4.IsEntityType(span.Label) {
				continue
			}
			word := strings.TrimSpace(span.Text)
			if word == "" {
				continue
			}
			entities = merge(entities, c4.EntityType(span.Label), word, span.Start+sent.Start, span.End+sent.Start)
		}
	}

	return entities, nil
}

func merge(entities []c4.Entity, typ c4.EntityType, text string, start, end int) []c4.Entity {
	if n := len(entities); n > 0 {
		last := &entities[n-1]
		if last.End == start && last.Type == typ {
			last.Text += " " + text
			last.End = end
			return entities
		}
	}
	return append(entities, c4.Entity{
		ID:    fmt.Sprintf("ent-%d", len(entities)),
		Text:  text,
		Type:  typ,
		Start: start,
		End:   end,
		Level: c4.LevelOf(typ),
	})
}
