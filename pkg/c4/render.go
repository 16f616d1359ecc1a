package c4

import (
	"fmt"
	"strings"
)

const (
	includeContext   = "!include https://raw.githubusercontent.com/plantuml-stdlib/C4-PlantUML/master/C4_Context.puml"
	includeContainer = "!include https://raw.githubusercontent.com/plantuml-stdlib/C4-PlantUML/master/C4_Container.puml"
	includeComponent = "!include https://raw.githubusercontent.com/plantuml-stdlib/C4-PlantUML/master/C4_Component.puml"

	boundarySuffix = "_boundary"

	relUses       = "Uses"
	relImplements = "Implements"
)

// Render serialises a hierarchy into C4-PlantUML markup.
//
// The output is built in fixed passes: preamble, level 1 declarations,
// one boundary per system with containers, one per container with
// components, one per component with code elements, the containment
// relations and the closing marker. Empty parents emit no boundary.
func Render(h *Hierarchy) string {
	if h == nil {
		h = NewHierarchy()
	}

	var b strings.Builder
	renderPreamble(&b)
	renderSystems(&b, h)
	renderContainers(&b, h)
	renderComponents(&b, h)
	renderCodeElements(&b, h)
	renderRelations(&b, h)
	b.WriteString("@enduml")
	return b.String()
}

func renderPreamble(b *strings.Builder) {
	b.WriteString("@startuml\n")
	b.WriteString(includeContext + "\n")
	b.WriteString(includeContainer + "\n")
	b.WriteString(includeComponent + "\n\n")
}

func renderSystems(b *strings.Builder, h *Hierarchy) {
	for _, s := range h.Systems {
		macro := "System"
		switch s.Kind {
		case KindActor:
			macro = "Person"
		case KindExternal:
			macro = "System_Ext"
		}
		writeDecl(b, "", macro, s.ID, s.Name, "")
	}
	b.WriteString("\n")
}

func renderContainers(b *strings.Builder, h *Hierarchy) {
	for _, s := range h.Systems {
		if len(s.Containers) == 0 {
			continue
		}
		openBoundary(b, "System_Boundary", s.ID, s.Name+" Boundary")
		for _, c := range s.Containers {
			macro := "Container"
			switch c.Kind {
			case KindDatabase:
				macro = "ContainerDb"
			case KindQueue:
				macro = "Queue"
			}
			writeDecl(b, "  ", macro, c.ID, c.Name, "")
		}
		b.WriteString("}\n\n")
	}
}

func renderComponents(b *strings.Builder, h *Hierarchy) {
	for _, c := range h.Containers {
		if len(c.Components) == 0 {
			continue
		}
		openBoundary(b, "Container_Boundary", c.ID, c.Name+" Components")
		for _, cmp := range c.Components {
			writeDecl(b, "  ", "Component", cmp.ID, cmp.Name, "")
		}
		b.WriteString("}\n\n")
	}
}

func renderCodeElements(b *strings.Builder, h *Hierarchy) {
	for _, cmp := range h.Components {
		if len(cmp.CodeElements) == 0 {
			continue
		}
		openBoundary(b, "Component_Boundary", cmp.ID, cmp.Name+" Code")
		for _, code := range cmp.CodeElements {
			writeDecl(b, "  ", "Component", code.ID, code.Name, code.Kind)
		}
		b.WriteString("}\n\n")
	}
}

func renderRelations(b *strings.Builder, h *Hierarchy) {
	b.WriteString("' Relations\n")
	for _, s := range h.Systems {
		for _, c := range s.Containers {
			writeRel(b, s.ID, c.ID, relUses)
		}
	}
	for _, c := range h.Containers {
		for _, cmp := range c.Components {
			writeRel(b, c.ID, cmp.ID, relUses)
		}
	}
	for _, cmp := range h.Components {
		for _, code := range cmp.CodeElements {
			writeRel(b, cmp.ID, code.ID, relImplements)
		}
	}
}

func openBoundary(b *strings.Builder, macro, id, label string) {
	fmt.Fprintf(b, "%s(%s%s, \"%s\") {\n", macro, id, boundarySuffix, quote(label))
}

func writeDecl(b *strings.Builder, indent, macro, id, name, descr string) {
	fmt.Fprintf(b, "%s%s(%s, \"%s\", \"%s\")\n", indent, macro, id, quote(name), quote(descr))
}

func writeRel(b *strings.Builder, from, to, label string) {
	fmt.Fprintf(b, "Rel(%s, %s, \"%s\")\n", from, to, label)
}

// quote keeps a value inside a PlantUML string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
