package assistant

import "github.com/OFFIS-RIT/c4designer/pkg/c4"

// The answer types mirror Changes without optional fields so the derived
// JSON schema is accepted by strict structured output.

type answer struct {
	Response string        `json:"response"`
	Changes  answerChanges `json:"changes"`
}

type answerChanges struct {
	AddNodes      []answerNode `json:"add_nodes"`
	RemoveNodeIDs []string     `json:"remove_node_ids"`
	AddEdges      []answerEdge `json:"add_edges"`
	RemoveEdgeIDs []string     `json:"remove_edge_ids"`
}

type answerNode struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	EntityType string `json:"entityType"`
	Parent     string `json:"parent"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
}

type answerEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

func (a answerChanges) toChanges() Changes {
	ch := Changes{
		RemoveNodeIDs: a.RemoveNodeIDs,
		RemoveEdgeIDs: a.RemoveEdgeIDs,
	}
	for _, n := range a.AddNodes {
		ch.AddNodes = append(ch.AddNodes, c4.Node{
			ID:       n.ID,
			Type:     c4.NodeType,
			Position: c4.Position{X: n.X, Y: n.Y},
			Data: c4.NodeData{
				Label:      n.Label,
				EntityType: n.EntityType,
				Level:      levelOfNode(n.EntityType),
				Parent:     n.Parent,
			},
		})
	}
	for _, e := range a.AddEdges {
		ch.AddEdges = append(ch.AddEdges, c4.Edge{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Label:  e.Label,
		})
	}
	return ch
}

// levelOfNode maps editor entity types, which include CODE and EXTERNAL, to levels.
func levelOfNode(entityType string) int {
	switch entityType {
	case "CODE":
		return 4
	case "EXTERNAL":
		return 1
	}
	return c4.LevelOf(c4.EntityType(entityType))
}
