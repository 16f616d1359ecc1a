package c4

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		h    *Hierarchy
	}{
		{"sample", sampleHierarchy()},
		{"empty", NewHierarchy()},
		{
			"chain",
			Build(
				[]Entity{
					ent("ent-0", "Online Shop", EntitySystem),
					ent("ent-1", "Web App", EntityContainer),
					ent("ent-2", "Cart Service", EntityComponent),
				},
				[]Relation{rel("ent-0", "ent-1", 1), rel("ent-1", "ent-2", 2)},
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(Render(tt.h))
			if len(res.Notes) != 0 {
				t.Errorf("unexpected notes: %v", res.Notes)
			}
			if !reflect.DeepEqual(res.Hierarchy, tt.h) {
				t.Errorf("round trip changed the hierarchy\n got %+v\nwant %+v", res.Hierarchy, tt.h)
			}
		})
	}
}

func TestParseRenderedEntitiesAndRelations(t *testing.T) {
	res := Parse(Render(sampleHierarchy()))

	types := map[string]EntityType{}
	for _, e := range res.Entities {
		types[e.ID] = e.Type
	}
	want := map[string]EntityType{
		"ent-0": EntityActor,
		"ent-1": EntitySystem,
		"ent-2": EntityExternalSystem,
		"ent-3": EntityContainer,
		"ent-4": EntityDatabase,
		"ent-5": EntityQueue,
		"ent-6": EntityComponent,
		"ent-7": EntityVerb,
		"ent-8": EntityVerb,
	}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("types = %v, want %v", types, want)
	}
	if len(res.Entities) != len(want) {
		t.Errorf("boundaries created extra entities: %d", len(res.Entities))
	}
	if len(res.Relations) != 6 {
		t.Errorf("got %d relations, want 6", len(res.Relations))
	}
	for _, r := range res.Relations {
		if r.Confidence != 1 {
			t.Errorf("parsed relation confidence %v", r.Confidence)
		}
	}
}

const handWritten = `@startuml
!include <C4/C4_Container>
LAYOUT_WITH_LEGEND()
title Shop

Person(customer, "Customer", "buys things")
System_Boundary(shop, "Shop") {
  Container(web, "Web App", "Go", $tags="ui")
  ContainerDb(db, "Orders DB")
}
System_Ext(psp, "Payment Provider")

/' a block
comment '/
Rel(customer, web, "Uses", "HTTPS")
Rel_R(web, db, "stores in")
BiRel(web, psp, "communicates with")
@enduml`

func TestParseHandWrittenBoundaries(t *testing.T) {
	res := Parse(handWritten)

	if len(res.Notes) != 0 {
		t.Fatalf("unexpected notes: %v", res.Notes)
	}

	byID := map[string]Entity{}
	for _, e := range res.Entities {
		byID[e.ID] = e
	}
	shop, ok := byID["shop"]
	if !ok || shop.Type != EntitySystem || shop.Text != "Shop" {
		t.Fatalf("boundary did not become a system: %+v", shop)
	}
	if byID["web"].Parent != "shop" || byID["db"].Parent != "shop" {
		t.Errorf("members lost their boundary: %+v %+v", byID["web"], byID["db"])
	}
	if byID["psp"].Parent != "" {
		t.Errorf("psp is outside the boundary, parent %q", byID["psp"].Parent)
	}

	types := map[[2]string]RelationType{}
	for _, r := range res.Relations {
		types[[2]string{r.Source, r.Target}] = r.Type
	}
	want := map[[2]string]RelationType{
		{"customer", "web"}: RelationUses,
		{"web", "db"}:       RelationStoresIn,
		{"web", "psp"}:      RelationCommunicatesWith,
	}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("relations = %v, want %v", types, want)
	}

	for _, r := range res.Relations {
		if r.Source == "customer" && r.Level != 1 {
			t.Errorf("customer -> web level = %d, want 1", r.Level)
		}
	}

	// Without inferred containment the boundary does not attach members.
	if len(res.Hierarchy.Systems) != 3 {
		t.Fatalf("systems = %d, want 3", len(res.Hierarchy.Systems))
	}
	for _, s := range res.Hierarchy.Systems {
		if s.ID == "shop" && len(s.Containers) != 0 {
			t.Errorf("shop has containers without inference")
		}
	}
}

func TestParseInferContainment(t *testing.T) {
	res := ParseWithOptions(handWritten, ParseOptions{InferContainment: true})

	var shop *SystemNode
	for _, s := range res.Hierarchy.Systems {
		if s.ID == "shop" {
			shop = s
		}
	}
	if shop == nil {
		t.Fatalf("shop system missing")
	}
	var got []string
	for _, c := range shop.Containers {
		got = append(got, c.ID)
	}
	if !reflect.DeepEqual(got, []string{"web", "db"}) {
		t.Errorf("shop containers = %v, want [web db]", got)
	}

	var inferred int
	for _, r := range res.Relations {
		if r.Type == RelationContains {
			inferred++
		}
	}
	if inferred != 2 {
		t.Errorf("inferred %d containment relations, want 2", inferred)
	}
}

func TestParseInferContainmentRespectsExistingRelation(t *testing.T) {
	markup := `System_Boundary(shop, "Shop") {
  Container(web, "Web")
}
Rel(web, shop, "depends on")`

	res := ParseWithOptions(markup, ParseOptions{InferContainment: true})
	if len(res.Relations) != 1 {
		t.Fatalf("relations = %+v, want only the declared one", res.Relations)
	}
	if res.Relations[0].Type != RelationDependsOn {
		t.Errorf("type = %s", res.Relations[0].Type)
	}
}

func TestParseComponentBoundaryMembersAreCode(t *testing.T) {
	markup := `Container_Boundary(api, "API") {
  Component(orders, "Orders")
  Component_Boundary(orders_boundary, "Orders Code") {
    Component(place, "place order function", "function")
  }
}`
	res := Parse(markup)

	byID := map[string]Entity{}
	for _, e := range res.Entities {
		byID[e.ID] = e
	}
	if byID["api"].Type != EntityContainer {
		t.Errorf("api type = %s", byID["api"].Type)
	}
	if byID["orders"].Type != EntityComponent {
		t.Errorf("orders type = %s", byID["orders"].Type)
	}
	if byID["place"].Type != EntityVerb || byID["place"].Level != 4 {
		t.Errorf("place = %+v, want level 4 code element", byID["place"])
	}
	if byID["place"].Parent != "orders" {
		t.Errorf("alias boundary not resolved to orders, got %q", byID["place"].Parent)
	}
	if _, ok := byID["orders_boundary"]; ok {
		t.Errorf("alias boundary created its own entity")
	}
}

func TestParseMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		notes  int
	}{
		{"unknown macro", `Frobnicate(x, "y")`, 1},
		{"missing identifier", `Container(, "Web")`, 1},
		{"relation with one endpoint", `System(a, "A")` + "\n" + `Rel(a)`, 1},
		{"undeclared endpoint", `System(a, "A")` + "\n" + `Rel(a, ghost, "Uses")`, 1},
		{"duplicate declaration", `System(a, "A")` + "\n" + `System(a, "Again")`, 1},
		{"unbalanced closing brace", `System(a, "A")` + "\n}", 1},
		{"unclosed boundary", `System_Boundary(s, "S") {` + "\n" + `Container(c, "C")`, 1},
		{"unterminated string", `System(a, "A)`, 1},
		{"free text", `this is not plantuml`, 1},
		{"styling only", "skinparam monochrome true\nSHOW_LEGEND()\nUpdateElementStyle(x)", 0},
		{"comments", "' line comment\n/' one line '/\n/'\nblock\n'/", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.markup)
			if len(res.Notes) != tt.notes {
				t.Errorf("notes = %v, want %d", res.Notes, tt.notes)
			}
			if res.Hierarchy == nil {
				t.Errorf("hierarchy is nil")
			}
		})
	}
}

func TestParseNotesCarryLineNumbers(t *testing.T) {
	res := Parse("System(a, \"A\")\n\nRel(a, b, \"Uses\")")
	if len(res.Notes) != 1 || res.Notes[0].Line != 3 {
		t.Errorf("notes = %v, want one note on line 3", res.Notes)
	}
}

func TestParseOffsets(t *testing.T) {
	markup := "@startuml\n  System(a, \"A\")\n@enduml"
	res := Parse(markup)
	if len(res.Entities) != 1 {
		t.Fatalf("entities = %+v", res.Entities)
	}
	e := res.Entities[0]
	if got := markup[e.Start:e.End]; strings.TrimSpace(got) != `System(a, "A")` {
		t.Errorf("offsets select %q", got)
	}
}

func TestParseDescriptionFallsBackToID(t *testing.T) {
	res := Parse(`Container(web)`)
	if len(res.Entities) != 1 || res.Entities[0].Text != "web" {
		t.Errorf("entities = %+v", res.Entities)
	}
}
