// Package assistant applies free-form edit requests to a diagram with the
// help of a chat model.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/c4designer/pkg/ai"
	"github.com/OFFIS-RIT/c4designer/pkg/c4"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"
)

const defaultResponse = "Changes applied"

// Diagram is the node and edge list shown in the editor.
type Diagram struct {
	Nodes []c4.Node `json:"nodes"`
	Edges []c4.Edge `json:"edges"`
}

// Changes is a patch against a Diagram. Removals are applied before additions.
type Changes struct {
	AddNodes      []c4.Node `json:"add_nodes"`
	RemoveNodeIDs []string  `json:"remove_node_ids"`
	AddEdges      []c4.Edge `json:"add_edges"`
	RemoveEdgeIDs []string  `json:"remove_edge_ids"`
}

// Response is the result of one assistant turn. Code is passed through
// unchanged.
type Response struct {
	Response string    `json:"response"`
	Nodes    []c4.Node `json:"nodes"`
	Edges    []c4.Edge `json:"edges"`
	Code     string    `json:"code"`
}

// Describe lists the nodes and edges of a diagram for the model prompt.
func Describe(d Diagram) string {
	var b strings.Builder
	b.WriteString("Current diagram elements:\n")
	for _, n := range d.Nodes {
		fmt.Fprintf(&b, "Node %s: %s (%s)\n", n.ID, n.Data.Label, n.Data.EntityType)
	}
	for _, e := range d.Edges {
		fmt.Fprintf(&b, "Edge %s: %s -> %s (%s)\n", e.ID, e.Source, e.Target, e.Label)
	}
	return b.String()
}

// Apply returns a copy of d with the changes applied. Removing a node also
// removes every edge touching it. Added elements without id are named
// node-<n> and edge-<n> where n is the list length at the time they are added.
func Apply(d Diagram, ch Changes) Diagram {
	nodes := make([]c4.Node, 0, len(d.Nodes)+len(ch.AddNodes))
	edges := make([]c4.Edge, 0, len(d.Edges)+len(ch.AddEdges))

	removedNodes := set(ch.RemoveNodeIDs)
	removedEdges := set(ch.RemoveEdgeIDs)

	for _, n := range d.Nodes {
		if _, ok := removedNodes[n.ID]; !ok {
			nodes = append(nodes, n)
		}
	}
	for _, e := range d.Edges {
		if _, ok := removedNodes[e.Source]; ok {
			continue
		}
		if _, ok := removedNodes[e.Target]; ok {
			continue
		}
		if _, ok := removedEdges[e.ID]; ok {
			continue
		}
		edges = append(edges, e)
	}

	for _, n := range ch.AddNodes {
		if n.ID == "" {
			n.ID = fmt.Sprintf("node-%d", len(nodes))
		}
		if n.Type == "" {
			n.Type = c4.NodeType
		}
		nodes = append(nodes, n)
	}
	for _, e := range ch.AddEdges {
		if e.ID == "" {
			e.ID = fmt.Sprintf("edge-%d", len(edges))
		}
		edges = append(edges, e)
	}

	return Diagram{Nodes: nodes, Edges: edges}
}

func set(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// Assistant turns edit requests into diagram changes.
type Assistant struct {
	client ai.ChatClient
	opts   []ai.GenerateOption
}

func New(client ai.ChatClient, opts ...ai.GenerateOption) *Assistant {
	return &Assistant{client: client, opts: opts}
}

// Run asks the model for changes matching action and applies them to d.
func (a *Assistant) Run(ctx context.Context, action string, d Diagram, code string) (*Response, error) {
	opts := append([]ai.GenerateOption{
		ai.WithSystemPrompts(fmt.Sprintf(systemPrompt, Describe(d))),
		ai.WithMaxTokens(2000),
	}, a.opts...)

	var out answer
	err := a.client.GenerateCompletionWithFormat(
		ctx,
		"diagram_changes",
		"Answer to the user and the changes to apply to the diagram",
		fmt.Sprintf(userPrompt, action),
		&out,
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("ai assistant: %w", err)
	}

	changes := out.Changes.toChanges()
	usage := a.client.GetMetrics()
	logger.Debug("[Assistant] Applying changes",
		"model_requests", usage.Requests,
		"model_tokens", usage.TotalTokens,
		"model_duration_ms", usage.DurationMs,
		"add_nodes", len(changes.AddNodes),
		"remove_nodes", len(changes.RemoveNodeIDs),
		"add_edges", len(changes.AddEdges),
		"remove_edges", len(changes.RemoveEdgeIDs),
	)

	updated := Apply(d, changes)
	response := out.Response
	if strings.TrimSpace(response) == "" {
		response = defaultResponse
	}
	return &Response{
		Response: response,
		Nodes:    updated.Nodes,
		Edges:    updated.Edges,
		Code:     code,
	}, nil
}
