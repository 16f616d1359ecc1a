package c4

import (
	"fmt"
	"strings"
)

// System node kinds.
const (
	KindSystem   = "system"
	KindActor    = "actor"
	KindExternal = "external"
)

// Container node kinds.
const (
	KindContainer = "container"
	KindDatabase  = "database"
	KindQueue     = "queue"
)

// Code element kinds.
const (
	KindFunction = "function"
	KindClass    = "class"
)

// SystemNode is a level 1 node: a software system, an actor or an external system.
type SystemNode struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Kind       string           `json:"type"`
	Containers []*ContainerNode `json:"containers"`
}

// ContainerNode is a level 2 node.
type ContainerNode struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Kind       string           `json:"type"`
	Components []*ComponentNode `json:"components"`
}

// ComponentNode is a level 3 node.
type ComponentNode struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	CodeElements []*CodeElementNode `json:"code_elements"`
}

// CodeElementNode is a level 4 node.
type CodeElementNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"type"`
}

// Hierarchy is the C4 tree. Children are attached to their parents and every
// node is also listed once in the flat list of its level; both views share
// the same node pointers.
type Hierarchy struct {
	Systems      []*SystemNode      `json:"systems"`
	Containers   []*ContainerNode   `json:"containers"`
	Components   []*ComponentNode   `json:"components"`
	CodeElements []*CodeElementNode `json:"code_elements"`
}

// NewHierarchy returns an empty hierarchy with non-nil lists.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		Systems:      []*SystemNode{},
		Containers:   []*ContainerNode{},
		Components:   []*ComponentNode{},
		CodeElements: []*CodeElementNode{},
	}
}

// BuildResult carries the hierarchy together with the diagnostics gathered
// while resolving parents.
type BuildResult struct {
	Hierarchy *Hierarchy `json:"hierarchy"`
	Notes     []Note     `json:"notes"`
}

// Build constructs the C4 hierarchy from a flat entity and relation list.
//
// Entities are bucketed by level. A node on level L (2..4) is attached to a
// node on level L-1 through every relation of level L-1 that has the node as
// one endpoint; the other endpoint is looked up in the flat list of level L-1
// and the first node with that id receives the child. Relations are scanned
// in input order, so for a given input the result is deterministic. A node
// that matches several relations is attached under each matching parent.
// Nodes without a parent stay in their flat list only.
func Build(entities []Entity, relations []Relation) *Hierarchy {
	return BuildWithNotes(entities, relations).Hierarchy
}

// BuildWithNotes is Build with diagnostics for dangling relations, skipped
// entities and orphan nodes. The notes never change the tree.
func BuildWithNotes(entities []Entity, relations []Relation) *BuildResult {
	var buckets [5][]Entity
	var notes []Note
	known := make(map[string]struct{}, len(entities))

	for _, e := range entities {
		known[e.ID] = struct{}{}
		if e.Level < 1 || e.Level > 4 {
			notes = append(notes, Note{Message: fmt.Sprintf("entity %s has unsupported level %d", e.ID, e.Level)})
			continue
		}
		buckets[e.Level] = append(buckets[e.Level], e)
	}

	for _, r := range relations {
		_, okS := known[r.Source]
		_, okT := known[r.Target]
		if !okS || !okT {
			notes = append(notes, Note{Message: fmt.Sprintf("relation %s -> %s references an unknown entity", r.Source, r.Target)})
		}
	}

	h := NewHierarchy()

	for _, e := range buckets[1] {
		var kind string
		switch e.Type {
		case EntitySystem:
			kind = KindSystem
		case EntityActor:
			kind = KindActor
		case EntityExternalSystem:
			kind = KindExternal
		default:
			notes = append(notes, Note{Message: fmt.Sprintf("entity %s of type %s is not a system", e.ID, e.Type)})
			continue
		}
		h.Systems = append(h.Systems, &SystemNode{
			ID:         e.ID,
			Name:       e.Text,
			Kind:       kind,
			Containers: []*ContainerNode{},
		})
	}

	for _, e := range buckets[2] {
		container := &ContainerNode{
			ID:         e.ID,
			Name:       e.Text,
			Kind:       strings.ToLower(string(e.Type)),
			Components: []*ComponentNode{},
		}
		attached := false
		for _, other := range parentIDs(e.ID, 1, relations) {
			if s := findSystem(h.Systems, other); s != nil {
				s.Containers = append(s.Containers, container)
				attached = true
			}
		}
		if !attached {
			notes = append(notes, orphanNote(e))
		}
		h.Containers = append(h.Containers, container)
	}

	for _, e := range buckets[3] {
		component := &ComponentNode{
			ID:           e.ID,
			Name:         e.Text,
			CodeElements: []*CodeElementNode{},
		}
		attached := false
		for _, other := range parentIDs(e.ID, 2, relations) {
			if c := findContainer(h.Containers, other); c != nil {
				c.Components = append(c.Components, component)
				attached = true
			}
		}
		if !attached {
			notes = append(notes, orphanNote(e))
		}
		h.Components = append(h.Components, component)
	}

	for _, e := range buckets[4] {
		code := &CodeElementNode{
			ID:   e.ID,
			Name: e.Text,
			Kind: codeKind(e.Text),
		}
		attached := false
		for _, other := range parentIDs(e.ID, 3, relations) {
			if c := findComponent(h.Components, other); c != nil {
				c.CodeElements = append(c.CodeElements, code)
				attached = true
			}
		}
		if !attached {
			notes = append(notes, orphanNote(e))
		}
		h.CodeElements = append(h.CodeElements, code)
	}

	return &BuildResult{Hierarchy: h, Notes: notes}
}

// parentIDs returns, in relation order, the opposite endpoint of every
// relation of the given level that touches id.
func parentIDs(id string, level int, relations []Relation) []string {
	var out []string
	for _, r := range relations {
		if r.Level != level {
			continue
		}
		switch id {
		case r.Source:
			out = append(out, r.Target)
		case r.Target:
			out = append(out, r.Source)
		}
	}
	return out
}

func findSystem(nodes []*SystemNode, id string) *SystemNode {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func findContainer(nodes []*ContainerNode, id string) *ContainerNode {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func findComponent(nodes []*ComponentNode, id string) *ComponentNode {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func codeKind(name string) string {
	if strings.Contains(strings.ToLower(name), "function") {
		return KindFunction
	}
	return KindClass
}

func orphanNote(e Entity) Note {
	return Note{Message: fmt.Sprintf("entity %s (%s) has no parent on level %d", e.ID, e.Text, e.Level-1)}
}
