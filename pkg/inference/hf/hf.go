// Package hf talks to a Hugging Face style inference server that hosts the
// entity tagging and relation classification models.
package hf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/OFFIS-RIT/c4designer/pkg/inference"

	"golang.org/x/sync/semaphore"
)

// Client implements inference.TokenClassifier and inference.SequenceClassifier.
type Client struct {
	baseURL  *url.URL
	apiKey   string
	nerModel string
	reModel  string
	labels   map[string]int

	reqLock    *semaphore.Weighted
	httpClient *http.Client
}

// NewClientParams configures a Client.
//
// Labels lists the relation class names in label index order. Responses may
// name classes either by these names or as LABEL_<n>.
type NewClientParams struct {
	BaseURL  string
	APIKey   string
	NERModel string
	REModel  string
	Labels   []string

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

var (
	_ inference.TokenClassifier    = (*Client)(nil)
	_ inference.SequenceClassifier = (*Client)(nil)
)

func NewClient(params NewClientParams) (*Client, error) {
	if params.BaseURL == "" {
		return nil, fmt.Errorf("inference base url is required")
	}
	u, err := url.Parse(strings.TrimSuffix(params.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid inference base url: %w", err)
	}
	if params.NERModel == "" || params.REModel == "" {
		return nil, fmt.Errorf("both entity and relation model names are required")
	}
	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 4
	}
	if params.Timeout <= 0 {
		params.Timeout = 60 * time.Second
	}

	labels := make(map[string]int, len(params.Labels))
	for i, l := range params.Labels {
		labels[l] = i
	}

	return &Client{
		baseURL:    u,
		apiKey:     params.APIKey,
		nerModel:   params.NERModel,
		reModel:    params.REModel,
		labels:     labels,
		reqLock:    semaphore.NewWeighted(params.MaxConcurrentRequests),
		httpClient: &http.Client{Timeout: params.Timeout},
	}, nil
}

type request struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type entityResult struct {
	EntityGroup string  `json:"entity_group"`
	Entity      string  `json:"entity"`
	Word        string  `json:"word"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Score       float64 `json:"score"`
}

type classResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify runs the entity model over text.
func (c *Client) Classify(ctx context.Context, text string) ([]inference.Span, error) {
	body, err := c.post(ctx, c.nerModel, request{
		Inputs:     text,
		Parameters: map[string]any{"aggregation_strategy": "simple"},
	})
	if err != nil {
		return nil, err
	}

	var results []entityResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", c.nerModel, err)
	}

	// The server reports offsets in characters, spans carry byte offsets.
	toByte := runeOffsets(text)
	spans := make([]inference.Span, 0, len(results))
	for _, r := range results {
		label := r.EntityGroup
		if label == "" {
			label = r.Entity
		}
		start, end := toByte(r.Start), toByte(r.End)
		if start < 0 || end < start {
			continue
		}
		word := strings.TrimSpace(text[start:end])
		if word == "" {
			word = strings.TrimSpace(r.Word)
		}
		spans = append(spans, inference.Span{
			Label: stripIOB(label),
			Text:  word,
			Start: start,
			End:   end,
			Score: r.Score,
		})
	}
	return spans, nil
}

// Score runs the relation model and returns the best class. A class outside
// the configured labels, such as a no_relation class, yields LabelIndex -1.
func (c *Client) Score(ctx context.Context, text string) (inference.Prediction, error) {
	body, err := c.post(ctx, c.reModel, request{
		Inputs:     text,
		Parameters: map[string]any{"top_k": nil},
	})
	if err != nil {
		return inference.Prediction{}, err
	}

	results, err := decodeClasses(body)
	if err != nil {
		return inference.Prediction{}, fmt.Errorf("decode %s response: %w", c.reModel, err)
	}
	if len(results) == 0 {
		return inference.Prediction{}, fmt.Errorf("%s returned no classes", c.reModel)
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.Score > best.Score {
			best = r
		}
	}
	idx, ok := c.labelIndex(best.Label)
	if !ok {
		idx = -1
	}
	return inference.Prediction{LabelIndex: idx, Confidence: best.Score}, nil
}

func (c *Client) labelIndex(label string) (int, bool) {
	if i, ok := c.labels[label]; ok {
		return i, true
	}
	if n, ok := strings.CutPrefix(label, "LABEL_"); ok {
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
	}
	return 0, false
}

func (c *Client) post(ctx context.Context, model string, payload request) ([]byte, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL.JoinPath("models", model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", model, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", model, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned %d: %s", model, res.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// decodeClasses accepts both the flat and the batched ([[...]]) shape.
func decodeClasses(body []byte) ([]classResult, error) {
	var flat []classResult
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat, nil
	}
	var nested [][]classResult
	if err := json.Unmarshal(body, &nested); err != nil {
		return nil, err
	}
	if len(nested) == 0 {
		return nil, nil
	}
	return nested[0], nil
}

func stripIOB(label string) string {
	for _, p := range []string{"B-", "I-", "E-", "S-"} {
		if rest, ok := strings.CutPrefix(label, p); ok {
			return rest
		}
	}
	return label
}

// runeOffsets returns a mapping from character offsets in s to byte offsets.
// Offsets past the end map to len(s); negative offsets map to -1.
func runeOffsets(s string) func(int) int {
	idx := make([]int, 0, len(s)+1)
	for i := range s {
		idx = append(idx, i)
	}
	idx = append(idx, len(s))
	return func(n int) int {
		if n < 0 {
			return -1
		}
		if n >= len(idx) {
			return len(s)
		}
		return idx[n]
	}
}
