package extract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/c4designer/pkg/c4"
	"github.com/OFFIS-RIT/c4designer/pkg/inference"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"
)

// Loader provides both model capabilities. It is called until it succeeds
// once; afterwards the returned classifiers are reused for every request.
type Loader func(ctx context.Context) (inference.TokenClassifier, inference.SequenceClassifier, error)

// NewPipelineParams configures a Pipeline. Threshold, MaxContextTokens and
// Encoding are passed to the Scorer.
type NewPipelineParams struct {
	Loader           Loader
	Threshold        float64
	MaxContextTokens int
	Encoding         string
}

// Pipeline runs tagging, scoring, hierarchy construction, rendering and
// layout. It is safe for concurrent use.
type Pipeline struct {
	params NewPipelineParams

	mu     sync.Mutex
	tagger *Tagger
	scorer *Scorer
}

// ProcessResult is everything derived from one requirements text.
type ProcessResult struct {
	Entities     []c4.Entity   `json:"entities"`
	Relations    []c4.Relation `json:"relations"`
	Hierarchy    *c4.Hierarchy `json:"hierarchy"`
	PlantUMLCode string        `json:"plantuml_code"`
	Nodes        []c4.Node     `json:"nodes"`
	Edges        []c4.Edge     `json:"edges"`
	Notes        []c4.Note     `json:"notes,omitempty"`
}

func NewPipeline(params NewPipelineParams) *Pipeline {
	return &Pipeline{params: params}
}

// load initialises the models on first use. A failed load is not cached.
func (p *Pipeline) load(ctx context.Context) (*Tagger, *Scorer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tagger != nil {
		return p.tagger, p.scorer, nil
	}
	if p.params.Loader == nil {
		return nil, nil, fmt.Errorf("%w: no model loader configured", ErrInference)
	}

	start := time.Now()
	ner, re, err := p.params.Loader(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load models: %w", ErrInference, err)
	}
	scorer, err := NewScorer(NewScorerParams{
		Classifier:       re,
		Threshold:        p.params.Threshold,
		MaxContextTokens: p.params.MaxContextTokens,
		Encoding:         p.params.Encoding,
	})
	if err != nil {
		return nil, nil, err
	}

	p.tagger = NewTagger(ner)
	p.scorer = scorer
	logger.Info("[Pipeline] Models ready", "duration", time.Since(start))
	return p.tagger, p.scorer, nil
}

// Ready reports whether the models have been loaded.
func (p *Pipeline) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tagger != nil
}

// Extract returns the entities and relations found in text.
func (p *Pipeline) Extract(ctx context.Context, text string) ([]c4.Entity, []c4.Relation, error) {
	tagger, scorer, err := p.load(ctx)
	if err != nil {
		return nil, nil, err
	}

	entities, err := tagger.Tag(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	relations, err := scorer.Score(ctx, entities, text)
	if err != nil {
		return nil, nil, err
	}
	return entities, relations, nil
}

// Process runs the full text to diagram conversion.
func (p *Pipeline) Process(ctx context.Context, text string) (*ProcessResult, error) {
	start := time.Now()

	entities, relations, err := p.Extract(ctx, text)
	if err != nil {
		return nil, err
	}

	built := c4.BuildWithNotes(entities, relations)
	nodes, edges := c4.Layout(built.Hierarchy)

	logger.Debug("[Pipeline] Processed text",
		"entities", len(entities),
		"relations", len(relations),
		"notes", len(built.Notes),
		"duration", time.Since(start),
	)

	return &ProcessResult{
		Entities:     entities,
		Relations:    relations,
		Hierarchy:    built.Hierarchy,
		PlantUMLCode: c4.Render(built.Hierarchy),
		Nodes:        nodes,
		Edges:        edges,
		Notes:        built.Notes,
	}, nil
}
