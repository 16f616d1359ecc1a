package c4

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/c4designer/pkg/logger"
)

// NodeType is the editor node renderer every layout node uses.
const NodeType = "c4"

// Position is a point on the editor canvas.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NodeData is the payload the editor shows for a node.
type NodeData struct {
	Label      string `json:"label"`
	EntityType string `json:"entityType"`
	Level      int    `json:"level,omitempty"`
	Parent     string `json:"parent,omitempty"`
}

// Node is a positioned diagram element.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge links a parent node to one of its children.
type Edge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Label    string `json:"label,omitempty"`
	Level    int    `json:"level,omitempty"`
	Animated bool   `json:"animated,omitempty"`
}

type grid struct {
	baseX, stepX, y int
}

var levelGrid = [5]grid{
	1: {baseX: 100, stepX: 300, y: 100},
	2: {baseX: 200, stepX: 200, y: 200},
	3: {baseX: 300, stepX: 150, y: 300},
	4: {baseX: 400, stepX: 120, y: 400},
}

func (g grid) at(i int) Position {
	return Position{X: g.baseX + i*g.stepX, Y: g.y}
}

// Layout places every node of the hierarchy on a fixed per-level grid and
// emits one edge per parent/child pair. Orphans of levels 2 to 4 follow the
// attached nodes of their row without a parent or edge. Ids and positions
// depend only on the hierarchy, so repeated calls return identical output.
func Layout(h *Hierarchy) ([]Node, []Edge) {
	nodes := []Node{}
	edges := []Edge{}
	if h == nil {
		return nodes, edges
	}

	placed := map[string]bool{}
	orphan := func(level, idx int, id, name, entityType string) int {
		if placed[id] {
			return idx
		}
		placed[id] = true
		nodes = append(nodes, Node{
			ID:       id,
			Type:     NodeType,
			Position: levelGrid[level].at(idx),
			Data:     NodeData{Label: name, EntityType: entityType, Level: level},
		})
		return idx + 1
	}

	for i, s := range h.Systems {
		nodes = append(nodes, Node{
			ID:       s.ID,
			Type:     NodeType,
			Position: levelGrid[1].at(i),
			Data: NodeData{
				Label:      s.Name,
				EntityType: strings.ToUpper(s.Kind),
				Level:      1,
			},
		})
	}

	idx := 0
	for _, s := range h.Systems {
		for _, c := range s.Containers {
			nodes = append(nodes, Node{
				ID:       c.ID,
				Type:     NodeType,
				Position: levelGrid[2].at(idx),
				Data: NodeData{
					Label:      c.Name,
					EntityType: strings.ToUpper(c.Kind),
					Level:      2,
					Parent:     s.ID,
				},
			})
			edges = append(edges, containmentEdge(s.ID, c.ID, "Contains", 1))
			placed[c.ID] = true
			idx++
		}
	}
	for _, c := range h.Containers {
		idx = orphan(2, idx, c.ID, c.Name, strings.ToUpper(c.Kind))
	}

	idx = 0
	for _, c := range h.Containers {
		for _, cmp := range c.Components {
			nodes = append(nodes, Node{
				ID:       cmp.ID,
				Type:     NodeType,
				Position: levelGrid[3].at(idx),
				Data: NodeData{
					Label:      cmp.Name,
					EntityType: string(EntityComponent),
					Level:      3,
					Parent:     c.ID,
				},
			})
			edges = append(edges, containmentEdge(c.ID, cmp.ID, "Contains", 2))
			placed[cmp.ID] = true
			idx++
		}
	}
	for _, cmp := range h.Components {
		idx = orphan(3, idx, cmp.ID, cmp.Name, string(EntityComponent))
	}

	idx = 0
	for _, cmp := range h.Components {
		for _, code := range cmp.CodeElements {
			nodes = append(nodes, Node{
				ID:       code.ID,
				Type:     NodeType,
				Position: levelGrid[4].at(idx),
				Data: NodeData{
					Label:      code.Name,
					EntityType: "CODE",
					Level:      4,
					Parent:     cmp.ID,
				},
			})
			edges = append(edges, containmentEdge(cmp.ID, code.ID, "Implements", 3))
			placed[code.ID] = true
			idx++
		}
	}
	for _, code := range h.CodeElements {
		idx = orphan(4, idx, code.ID, code.Name, "CODE")
	}

	for _, n := range Validate(nodes, edges) {
		logger.Warn("[Layout] "+n.Message)
	}

	return nodes, edges
}

func containmentEdge(parent, child, label string, level int) Edge {
	return Edge{
		ID:     fmt.Sprintf("edge-%s-%s", parent, child),
		Source: parent,
		Target: child,
		Label:  label,
		Level:  level,
	}
}

// Validate reports edges whose source or target is missing from nodes.
func Validate(nodes []Node, edges []Edge) []Note {
	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = struct{}{}
	}

	var notes []Note
	for _, e := range edges {
		if _, ok := ids[e.Source]; e.Source == "" || !ok {
			notes = append(notes, Note{Message: fmt.Sprintf("edge %s has no source node %q", e.ID, e.Source)})
		}
		if _, ok := ids[e.Target]; e.Target == "" || !ok {
			notes = append(notes, Note{Message: fmt.Sprintf("edge %s has no target node %q", e.ID, e.Target)})
		}
	}
	return notes
}
