package c4

// EntityType is the label assigned to an extracted or declared architecture
// element. The set is closed and spelled exactly as the tagging model emits it.
type EntityType string

const (
	EntitySystem         EntityType = "SYSTEM"
	EntityContainer      EntityType = "CONTAINER"
	EntityComponent      EntityType = "COMPONENT"
	EntityActor          EntityType = "ACTOR"
	EntityExternalSystem EntityType = "EXTERNAL_SYSTEM"
	EntityDatabase       EntityType = "DATABASE"
	EntityQueue          EntityType = "QUEUE"
	EntityVerb           EntityType = "VERB"
)

// EntityTypes lists every recognised entity type.
var EntityTypes = []EntityType{
	EntitySystem,
	EntityContainer,
	EntityComponent,
	EntityActor,
	EntityExternalSystem,
	EntityDatabase,
	EntityQueue,
	EntityVerb,
}

// RelationType is the label of a relation between two entities.
type RelationType string

const (
	RelationUses             RelationType = "uses"
	RelationContains         RelationType = "contains"
	RelationStoresIn         RelationType = "stores_in"
	RelationProduces         RelationType = "produces"
	RelationRetrievesFrom    RelationType = "retrieves_from"
	RelationTriggers         RelationType = "triggers"
	RelationMonitors         RelationType = "monitors"
	RelationDeliversTo       RelationType = "delivers_to"
	RelationDependsOn        RelationType = "depends_on"
	RelationCommunicatesWith RelationType = "communicates_with"
	RelationInteractsWith    RelationType = "interacts_with"
)

// RelationTypes is ordered by the relation classifier's label index.
var RelationTypes = []RelationType{
	RelationUses,
	RelationContains,
	RelationStoresIn,
	RelationProduces,
	RelationRetrievesFrom,
	RelationTriggers,
	RelationMonitors,
	RelationDeliversTo,
	RelationDependsOn,
	RelationCommunicatesWith,
	RelationInteractsWith,
}

var levels = map[EntityType]int{
	EntitySystem:         1,
	EntityExternalSystem: 1,
	EntityActor:          1,
	EntityContainer:      2,
	EntityDatabase:       2,
	EntityQueue:          2,
	EntityComponent:      3,
	EntityVerb:           4,
}

// LevelOf returns the C4 level of an entity type. Unknown types are level 1.
func LevelOf(t EntityType) int {
	if l, ok := levels[t]; ok {
		return l
	}
	return 1
}

// IsEntityType reports whether s names a recognised entity type.
func IsEntityType(s string) bool {
	_, ok := levels[EntityType(s)]
	return ok
}

// RelationTypeAt maps a classifier label index to its relation type.
func RelationTypeAt(idx int) (RelationType, bool) {
	if idx < 0 || idx >= len(RelationTypes) {
		return "", false
	}
	return RelationTypes[idx], true
}

// IsRelationType reports whether s names a recognised relation type.
func IsRelationType(s string) bool {
	for _, r := range RelationTypes {
		if string(r) == s {
			return true
		}
	}
	return false
}

// Entity is a typed, offset-located mention of an architecture element.
// Parent is only filled by the markup parser and is informational.
type Entity struct {
	ID     string     `json:"id"`
	Text   string     `json:"text"`
	Type   EntityType `json:"type"`
	Start  int        `json:"start"`
	End    int        `json:"end"`
	Level  int        `json:"level"`
	Parent string     `json:"parent,omitempty"`
}

// Relation is a directed, typed link between two entities. Level is the
// smaller level of its two endpoints.
type Relation struct {
	Source     string       `json:"source"`
	Target     string       `json:"target"`
	Type       RelationType `json:"type"`
	Confidence float64      `json:"confidence"`
	Level      int          `json:"level"`
}

// RelationLevel returns the level a relation between a and b carries.
func RelationLevel(a, b int) int {
	return min(a, b)
}

// Note is a non-fatal diagnostic produced while building or parsing.
// Line is 1-based and zero when the note is not tied to a markup line.
type Note struct {
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}
