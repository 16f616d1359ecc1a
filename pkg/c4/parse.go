package c4

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/c4designer/pkg/logger"
)

type boundaryKind int

const (
	boundaryGroup boundaryKind = iota
	boundarySystem
	boundaryContainer
	boundaryComponent
)

func (k boundaryKind) entityType() (EntityType, bool) {
	switch k {
	case boundarySystem:
		return EntitySystem, true
	case boundaryContainer:
		return EntityContainer, true
	case boundaryComponent:
		return EntityComponent, true
	}
	return "", false
}

type frame struct {
	id       string
	label    string
	kind     boundaryKind
	line     int
	start    int
	end      int
	parent   *frame
	children []*frame

	// resolved is the entity id the boundary stands for, empty for
	// grouping-only boundaries.
	resolved string
	// entity is set when the boundary itself declares a new entity.
	entity *Entity
}

type rawRelation struct {
	source string
	target string
	label  string
	line   int
}

// slot keeps declarations and boundaries in markup order so boundary
// entities are emitted where they were opened.
type slot struct {
	entity  *Entity
	frame   *frame
	parentF *frame
}

// ParseOptions tunes Parse.
type ParseOptions struct {
	// InferContainment adds a "contains" relation between a boundary entity
	// and each member declared inside it one level below, unless the markup
	// already relates the two.
	InferContainment bool
}

// ParseResult is the flat entity and relation list recognised in a markup
// document, the hierarchy built from it and every skipped line.
type ParseResult struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
	Hierarchy *Hierarchy `json:"hierarchy"`
	Notes     []Note     `json:"notes"`
}

// Parse reads C4-PlantUML markup back into entities and relations and builds
// the hierarchy from them. Tree attachment is decided by Build through the
// relations only; the boundary an element is declared in is recorded as its
// Parent but does not attach it. Malformed lines are skipped and reported.
func Parse(markup string) *ParseResult {
	return ParseWithOptions(markup, ParseOptions{})
}

// ParseWithOptions is Parse with options.
func ParseWithOptions(markup string, opts ParseOptions) *ParseResult {
	p := &parser{declared: map[string]*Entity{}}
	p.run(markup)
	res := p.finish(opts)

	for _, n := range res.Notes {
		logger.Debug("[Parser] "+n.Message, "line", n.Line)
	}
	return res
}

type parser struct {
	stack     []*frame
	roots     []*frame
	slots     []slot
	relations []rawRelation
	declared  map[string]*Entity
	notes     []Note
}

func (p *parser) note(line int, format string, args ...any) {
	p.notes = append(p.notes, Note{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (p *parser) top() *frame {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

func (p *parser) run(markup string) {
	offset := 0
	inBlockComment := false

	lines := strings.Split(markup, "\n")
	for i, raw := range lines {
		lineNo := i + 1
		start := offset
		offset += len(raw) + 1
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))

		if inBlockComment {
			if strings.Contains(line, "'/") {
				inBlockComment = false
			}
			continue
		}
		if strings.HasPrefix(line, "/'") {
			if !strings.Contains(line[2:], "'/") {
				inBlockComment = true
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "'") || strings.HasPrefix(line, "@") || strings.HasPrefix(line, "!") {
			continue
		}

		if line == "}" {
			p.closeBoundary(lineNo)
			continue
		}

		macro, args, opensBlock, ok := splitMacro(line)
		if !ok {
			if isStyling(line) {
				continue
			}
			p.note(lineNo, "unrecognised statement %q", line)
			continue
		}

		if opensBlock {
			if kind, ok := boundaryOf(macro); ok {
				p.openBoundary(lineNo, start, start+len(raw), kind, args)
				continue
			}
			p.note(lineNo, "unsupported block %s", macro)
			continue
		}

		if isRelationMacro(macro) {
			p.relation(lineNo, args)
			continue
		}

		typ, ok := declarationType(macro)
		if !ok {
			if isStyling(macro) {
				continue
			}
			p.note(lineNo, "unrecognised macro %s", macro)
			continue
		}
		if typ == EntityComponent {
			if f := p.top(); f != nil && f.kind == boundaryComponent {
				typ = EntityVerb
			}
		}
		p.declare(lineNo, start, start+len(raw), typ, args)
	}

	for len(p.stack) > 0 {
		f := p.top()
		p.note(f.line, "boundary %s is never closed", f.id)
		p.closeBoundary(f.line)
	}
}

func (p *parser) openBoundary(line, start, end int, kind boundaryKind, args []string) {
	if len(args) == 0 || !isIdentifier(args[0]) {
		p.note(line, "boundary without identifier")
		// Push anyway so the matching brace stays balanced.
		args = []string{fmt.Sprintf("boundary-%d", line)}
		kind = boundaryGroup
	}
	f := &frame{
		id:     args[0],
		label:  argOr(args, 1, args[0]),
		kind:   kind,
		line:   line,
		start:  start,
		end:    end,
		parent: p.top(),
	}
	p.slots = append(p.slots, slot{frame: f, parentF: f.parent})
	p.stack = append(p.stack, f)
}

func (p *parser) closeBoundary(line int) {
	if len(p.stack) == 0 {
		p.note(line, "unbalanced closing brace")
		return
	}
	f := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	if parent := p.top(); parent != nil {
		parent.children = append(parent.children, f)
		return
	}
	p.roots = append(p.roots, f)
}

func (p *parser) declare(line, start, end int, typ EntityType, args []string) {
	if len(args) == 0 || !isIdentifier(args[0]) {
		p.note(line, "declaration without identifier")
		return
	}
	id := args[0]
	if _, dup := p.declared[id]; dup {
		p.note(line, "duplicate declaration of %s", id)
		return
	}
	e := &Entity{
		ID:    id,
		Text:  argOr(args, 1, id),
		Type:  typ,
		Start: start,
		End:   end,
		Level: LevelOf(typ),
	}
	p.declared[id] = e
	p.slots = append(p.slots, slot{entity: e, parentF: p.top()})
}

func (p *parser) relation(line int, args []string) {
	if len(args) < 2 || args[0] == "" || args[1] == "" {
		p.note(line, "relation without source or target")
		return
	}
	p.relations = append(p.relations, rawRelation{
		source: args[0],
		target: args[1],
		label:  argOr(args, 2, string(RelationUses)),
		line:   line,
	})
}

func (p *parser) finish(opts ParseOptions) *ParseResult {
	// Boundaries first, so members can point at them regardless of order.
	for _, s := range p.slots {
		if s.frame == nil {
			continue
		}
		p.resolveBoundary(s.frame)
	}

	entities := make([]Entity, 0, len(p.slots))
	levelOf := map[string]int{}
	for _, s := range p.slots {
		var e *Entity
		if s.frame != nil {
			e = s.frame.entity
		} else {
			e = s.entity
		}
		if e == nil {
			continue
		}
		e.Parent = enclosingEntity(s.parentF)
		entities = append(entities, *e)
		levelOf[e.ID] = e.Level
	}

	alias := map[string]string{}
	for _, s := range p.slots {
		if s.frame != nil && s.frame.resolved != "" {
			alias[s.frame.id] = s.frame.resolved
		}
	}
	resolve := func(id string) (string, bool) {
		if _, ok := levelOf[id]; ok {
			return id, true
		}
		if target, ok := alias[id]; ok {
			return target, true
		}
		return "", false
	}

	relations := make([]Relation, 0, len(p.relations))
	related := map[[2]string]struct{}{}
	for _, r := range p.relations {
		src, okS := resolve(r.source)
		tgt, okT := resolve(r.target)
		if !okS || !okT {
			p.note(r.line, "relation %s -> %s references an undeclared element", r.source, r.target)
			continue
		}
		relations = append(relations, Relation{
			Source:     src,
			Target:     tgt,
			Type:       relationTypeOf(r.label),
			Confidence: 1,
			Level:      RelationLevel(levelOf[src], levelOf[tgt]),
		})
		related[[2]string{src, tgt}] = struct{}{}
		related[[2]string{tgt, src}] = struct{}{}
	}

	if opts.InferContainment {
		for _, e := range entities {
			if e.Parent == "" {
				continue
			}
			pl, ok := levelOf[e.Parent]
			if !ok || pl != e.Level-1 {
				continue
			}
			if _, ok := related[[2]string{e.Parent, e.ID}]; ok {
				continue
			}
			relations = append(relations, Relation{
				Source:     e.Parent,
				Target:     e.ID,
				Type:       RelationContains,
				Confidence: 1,
				Level:      pl,
			})
			related[[2]string{e.Parent, e.ID}] = struct{}{}
			related[[2]string{e.ID, e.Parent}] = struct{}{}
		}
	}

	return &ParseResult{
		Entities:  entities,
		Relations: relations,
		Hierarchy: Build(entities, relations),
		Notes:     p.notes,
	}
}

func (p *parser) resolveBoundary(f *frame) {
	if target, ok := strings.CutSuffix(f.id, boundarySuffix); ok {
		if _, declared := p.declared[target]; declared {
			f.resolved = target
			return
		}
	}
	if _, declared := p.declared[f.id]; declared {
		f.resolved = f.id
		return
	}
	typ, ok := f.kind.entityType()
	if !ok {
		return
	}
	e := &Entity{
		ID:    f.id,
		Text:  f.label,
		Type:  typ,
		Start: f.start,
		End:   f.end,
		Level: LevelOf(typ),
	}
	p.declared[f.id] = e
	f.entity = e
	f.resolved = f.id
}

// enclosingEntity walks up from f to the first boundary that stands for an entity.
func enclosingEntity(f *frame) string {
	for ; f != nil; f = f.parent {
		if f.resolved != "" {
			return f.resolved
		}
	}
	return ""
}

func relationTypeOf(label string) RelationType {
	norm := strings.ToLower(strings.Join(strings.Fields(label), "_"))
	if IsRelationType(norm) {
		return RelationType(norm)
	}
	return RelationUses
}

func boundaryOf(macro string) (boundaryKind, bool) {
	switch macro {
	case "System_Boundary":
		return boundarySystem, true
	case "Container_Boundary":
		return boundaryContainer, true
	case "Component_Boundary":
		return boundaryComponent, true
	case "Enterprise_Boundary", "Boundary":
		return boundaryGroup, true
	}
	return 0, false
}

func declarationType(macro string) (EntityType, bool) {
	base := strings.TrimSuffix(macro, "_Ext")
	external := base != macro

	switch base {
	case "Person":
		return EntityActor, true
	case "System", "SystemDb", "SystemQueue":
		if external {
			return EntityExternalSystem, true
		}
		return EntitySystem, true
	case "Container":
		return EntityContainer, true
	case "ContainerDb":
		return EntityDatabase, true
	case "ContainerQueue", "Queue":
		return EntityQueue, true
	case "Component", "ComponentDb", "ComponentQueue":
		return EntityComponent, true
	}
	return "", false
}

func isRelationMacro(macro string) bool {
	m, _ := strings.CutPrefix(macro, "Bi")
	return m == "Rel" || strings.HasPrefix(m, "Rel_")
}

var stylingPrefixes = []string{"LAYOUT_", "SHOW_", "HIDE_", "Update", "Add", "skinparam", "title", "Lay_"}

func isStyling(s string) bool {
	for _, prefix := range stylingPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// splitMacro splits `Name(arg, "arg", ...)` with an optional trailing `{`.
func splitMacro(line string) (string, []string, bool, bool) {
	opensBlock := false
	if rest, ok := strings.CutSuffix(line, "{"); ok {
		opensBlock = true
		line = strings.TrimSpace(rest)
	}

	open := strings.IndexByte(line, '(')
	if open <= 0 || !strings.HasSuffix(line, ")") {
		return "", nil, false, false
	}
	macro := strings.TrimSpace(line[:open])
	if !isIdentifier(macro) {
		return "", nil, false, false
	}
	args, ok := splitArgs(line[open+1 : len(line)-1])
	if !ok {
		return "", nil, false, false
	}
	return macro, args, opensBlock, true
}

// splitArgs splits a macro argument list on commas outside of string
// literals and unquotes each argument. Named arguments ($tags="x") are dropped.
func splitArgs(s string) ([]string, bool) {
	var args []string
	var cur strings.Builder
	inQuote := false

	flush := func() {
		arg := strings.TrimSpace(cur.String())
		cur.Reset()
		if strings.HasPrefix(arg, "$") {
			return
		}
		if len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"' {
			arg = arg[1 : len(arg)-1]
		}
		args = append(args, arg)
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ',' && !inQuote:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	if inQuote {
		return nil, false
	}
	if strings.TrimSpace(cur.String()) != "" || len(args) > 0 {
		flush()
	}
	return args, true
}

func argOr(args []string, i int, fallback string) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return fallback
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}
