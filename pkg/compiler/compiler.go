// Package compiler turns a schema graph into its JSON Schema document. The
// transform is a pure function of the graph value, so results are cached by
// graph value.
package compiler

import (
	"fmt"
	"sync"

	"github.com/formgraph/formgraph/pkg/graph"
	"github.com/formgraph/formgraph/pkg/model"
	"github.com/formgraph/formgraph/pkg/predicate"
	"github.com/formgraph/formgraph/pkg/schema"
)

// Compiler caches compiled documents by graph value. Graph values are never
// mutated in place, so an entry stays valid for as long as its value is
// alive. The revision counter is NOT a usable key: two successors of the
// same value share a revision, and an imported graph restarts at 1.
type Compiler struct {
	mu    sync.Mutex
	cache map[*graph.SchemaGraph]*schema.Schema
}

// New creates a Compiler with an empty cache.
func New() *Compiler {
	return &Compiler{cache: make(map[*graph.SchemaGraph]*schema.Schema)}
}

// Compile returns the JSON Schema for the graph, from cache when possible.
func (c *Compiler) Compile(g *graph.SchemaGraph) (*schema.Schema, error) {
	c.mu.Lock()
	if cached, ok := c.cache[g]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	compiled, err := Compile(g)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[g] = compiled
	c.mu.Unlock()
	return compiled, nil
}

// Evict drops the entry for a superseded graph value so the cache does not
// pin replaced graphs.
func (c *Compiler) Evict(old *graph.SchemaGraph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, old)
}

// Compile is the uncached transform: it compiles the root subtree, then emits
// under "definitions" exactly the definition names reached by some ref.
func Compile(g *graph.SchemaGraph) (*schema.Schema, error) {
	root, err := compileNode(g, g.Root())
	if err != nil {
		return nil, err
	}

	referenced, err := collectRefTargets(g)
	if err != nil {
		return nil, err
	}
	if len(referenced) > 0 {
		root.Definitions = make(map[string]*schema.Schema, len(referenced))
		for name := range referenced {
			defID, ok := g.Definition(name)
			if !ok {
				return nil, &model.CompileError{Reason: fmt.Sprintf("unresolved definition %q", name)}
			}
			defNode := g.Node(defID)
			if defNode == nil {
				return nil, &model.CompileError{NodeID: defID, Reason: fmt.Sprintf("definition %q targets a missing node", name)}
			}
			compiled, err := compileNode(g, defNode)
			if err != nil {
				return nil, err
			}
			root.Definitions[name] = compiled
		}
	}
	return root, nil
}

// compileNode dispatches on the node's type tag.
func compileNode(g *graph.SchemaGraph, n *model.SchemaNode) (*schema.Schema, error) {
	switch n.Type {
	case model.NodeString:
		s := base(n)
		s.Type = "string"
		s.MinLength = n.MinLength
		s.MaxLength = n.MaxLength
		s.Pattern = n.Pattern
		s.Format = n.Format
		return s, nil

	case model.NodeNumber:
		s := base(n)
		s.Type = "number"
		s.Minimum = n.Minimum
		s.Maximum = n.Maximum
		s.MultipleOf = n.MultipleOf
		s.ExclusiveMinimum = n.ExclusiveMinimum
		s.ExclusiveMaximum = n.ExclusiveMaximum
		return s, nil

	case model.NodeBoolean:
		s := base(n)
		s.Type = "boolean"
		return s, nil

	case model.NodeEnum:
		s := base(n)
		s.Type = "string"
		s.Enum = n.Enum
		s.EnumNames = n.EnumNames
		return s, nil

	case model.NodeObject, model.NodeDefinition:
		return compileObject(g, n)

	case model.NodeArray:
		s := base(n)
		s.Type = "array"
		if items := g.Children(n.ID, model.EdgeChild); len(items) > 0 {
			compiled, err := compileNode(g, items[0])
			if err != nil {
				return nil, err
			}
			s.Items = compiled
		}
		s.MinItems = n.MinItems
		s.MaxItems = n.MaxItems
		s.UniqueItems = n.UniqueItems
		s.AdditionalItems = n.AdditionalItems
		return s, nil

	case model.NodeRef:
		if _, ok := g.Definition(n.RefTarget); !ok {
			return nil, &model.CompileError{NodeID: n.ID, Reason: fmt.Sprintf("unresolved ref %q", n.RefTarget)}
		}
		return &schema.Schema{
			Ref:         "#/definitions/" + n.RefTarget,
			Title:       n.Title,
			Description: n.Description,
		}, nil

	case model.NodeConditionalGroup, model.NodeIfBlock:
		// compiled standalone (e.g. as a definition) the group keeps its
		// combinator wrapper
		keyword, entries, err := compileGroup(g, n)
		if err != nil {
			return nil, err
		}
		s := &schema.Schema{}
		setCombinator(s, keyword, entries)
		return s, nil

	default:
		return nil, &model.CompileError{NodeID: n.ID, Reason: fmt.Sprintf("unknown node type %q", n.Type)}
	}
}

// compileObject assembles properties from child edges in order and folds
// conditional-group children onto the object per the combinator rules.
func compileObject(g *graph.SchemaGraph, n *model.SchemaNode) (*schema.Schema, error) {
	s := base(n)
	s.Type = "object"
	s.MinProperties = n.MinProperties
	s.MaxProperties = n.MaxProperties
	s.AdditionalProperties = n.AdditionalProperties
	s.Properties = map[string]*schema.Schema{}

	var groups []foldedGroup

	for _, child := range g.Children(n.ID, model.EdgeChild) {
		if child.IsConditional() {
			keyword, entries, err := compileGroup(g, child)
			if err != nil {
				return nil, err
			}
			groups = append(groups, foldedGroup{keyword: keyword, entries: entries})
			continue
		}
		compiled, err := compileNode(g, child)
		if err != nil {
			return nil, err
		}
		s.Properties[child.Key] = compiled
		s.PropertyOrder = append(s.PropertyOrder, child.Key)
		if child.Required {
			s.Required = append(s.Required, child.Key)
		}
	}
	if len(s.Properties) == 0 {
		s.Properties = nil
		s.PropertyOrder = nil
	}

	switch {
	case len(groups) == 0:
		// nothing to fold

	case sameKeyword(groups):
		// one group, or several sharing a combinator: splice the
		// concatenated condition arrays directly onto the object
		var entries []*schema.Schema
		for _, grp := range groups {
			entries = append(entries, grp.entries...)
		}
		setCombinator(s, groups[0].keyword, entries)

	default:
		// mixed combinators: each group becomes one allOf entry
		for _, grp := range groups {
			wrapper := &schema.Schema{}
			setCombinator(wrapper, grp.keyword, grp.entries)
			s.AllOf = append(s.AllOf, wrapper)
		}
	}
	return s, nil
}

type foldedGroup struct {
	keyword string
	entries []*schema.Schema
}

func sameKeyword(groups []foldedGroup) bool {
	for _, grp := range groups[1:] {
		if grp.keyword != groups[0].keyword {
			return false
		}
	}
	return true
}

// compileGroup compiles a conditional group (or legacy if-block) into its
// combinator keyword and the ordered {if,then[,else]} entries.
//
// When every condition resolves to the identical then branch (and identical
// or absent else), the group compiles into a single entry whose if combines
// all conditions; otherwise each condition compiles independently. Strict
// combinators (anyOf/oneOf) synthesize else:{not:{}} for entries lacking an
// explicit else so either-or semantics hold.
func compileGroup(g *graph.SchemaGraph, n *model.SchemaNode) (string, []*schema.Schema, error) {
	keyword := string(n.Combinator)
	if keyword == "" {
		keyword = string(model.CombinatorAllOf)
	}
	strict := keyword == string(model.CombinatorAnyOf) || keyword == string(model.CombinatorOneOf)

	// branch targets attached by then/else edges win over legacy ids
	edgeThen := g.Children(n.ID, model.EdgeThen)
	edgeElse := g.Children(n.ID, model.EdgeElse)

	ifs := make([]*schema.Schema, 0, len(n.Conditions))
	thenIDs := make([][]string, 0, len(n.Conditions))
	elseIDs := make([][]string, 0, len(n.Conditions))
	for _, cond := range n.Conditions {
		compiled, err := predicate.Compile(cond.If)
		if err != nil {
			return "", nil, &model.CompileError{NodeID: n.ID, Reason: err.Error()}
		}
		ifs = append(ifs, compiled)
		thenIDs = append(thenIDs, branchTargets(edgeThen, cond.Then))
		elseIDs = append(elseIDs, branchTargets(edgeElse, cond.Else))
	}
	if len(ifs) == 0 {
		return keyword, nil, nil
	}

	if sharedBranches(thenIDs) && sharedBranches(elseIDs) {
		entry := &schema.Schema{If: predicate.CombineAll(ifs)}
		if err := attachBranches(g, entry, thenIDs[0], elseIDs[0], strict); err != nil {
			return "", nil, err
		}
		return keyword, []*schema.Schema{entry}, nil
	}

	entries := make([]*schema.Schema, 0, len(ifs))
	for i, ifSchema := range ifs {
		entry := &schema.Schema{If: ifSchema}
		if err := attachBranches(g, entry, thenIDs[i], elseIDs[i], strict); err != nil {
			return "", nil, err
		}
		entries = append(entries, entry)
	}
	return keyword, entries, nil
}

// branchTargets picks edge-attached branch nodes when present, falling back
// to the condition's legacy node id.
func branchTargets(edgeNodes []*model.SchemaNode, legacyID string) []string {
	if len(edgeNodes) > 0 {
		ids := make([]string, len(edgeNodes))
		for i, node := range edgeNodes {
			ids[i] = node.ID
		}
		return ids
	}
	if legacyID != "" {
		return []string{legacyID}
	}
	return nil
}

// sharedBranches reports whether every condition resolves to the same branch
// node list.
func sharedBranches(perCondition [][]string) bool {
	first := perCondition[0]
	for _, ids := range perCondition[1:] {
		if len(ids) != len(first) {
			return false
		}
		for i := range ids {
			if ids[i] != first[i] {
				return false
			}
		}
	}
	return true
}

func attachBranches(g *graph.SchemaGraph, entry *schema.Schema, thenIDs, elseIDs []string, strict bool) error {
	if len(thenIDs) > 0 {
		compiled, err := compileBranch(g, thenIDs)
		if err != nil {
			return err
		}
		entry.Then = compiled
	}
	switch {
	case len(elseIDs) > 0:
		compiled, err := compileBranch(g, elseIDs)
		if err != nil {
			return err
		}
		entry.Else = compiled
	case strict:
		entry.Else = schema.NotAnything()
	}
	return nil
}

// compileBranch compiles the nodes sharing a branch edge bucket and wraps
// them as a property addition: downstream consumers merge the branch onto
// the surrounding object instead of replacing it.
func compileBranch(g *graph.SchemaGraph, ids []string) (*schema.Schema, error) {
	wrapped := &schema.Schema{Type: "object", Properties: map[string]*schema.Schema{}}
	for _, id := range ids {
		node := g.Node(id)
		if node == nil {
			return nil, &model.CompileError{NodeID: id, Reason: "branch target missing"}
		}
		compiled, err := compileNode(g, node)
		if err != nil {
			return nil, err
		}
		wrapped.Properties[node.Key] = compiled
		wrapped.PropertyOrder = append(wrapped.PropertyOrder, node.Key)
		if node.Required {
			wrapped.Required = append(wrapped.Required, node.Key)
		}
	}
	return wrapped, nil
}

// collectRefTargets walks the whole graph, including every condition's
// then/else and the definitions reachable through refs, and returns the
// definition names actually referenced.
func collectRefTargets(g *graph.SchemaGraph) (map[string]bool, error) {
	referenced := map[string]bool{}
	seen := map[string]bool{}

	var walk func(id string) error
	walk = func(id string) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		n := g.Node(id)
		if n == nil {
			return nil
		}
		if n.Type == model.NodeRef {
			defID, ok := g.Definition(n.RefTarget)
			if !ok {
				return &model.CompileError{NodeID: n.ID, Reason: fmt.Sprintf("unresolved ref %q", n.RefTarget)}
			}
			if !referenced[n.RefTarget] {
				referenced[n.RefTarget] = true
				if err := walk(defID); err != nil {
					return err
				}
			}
		}
		for _, t := range []model.EdgeType{model.EdgeChild, model.EdgeThen, model.EdgeElse} {
			for _, child := range g.Children(id, t) {
				if err := walk(child.ID); err != nil {
					return err
				}
			}
		}
		// legacy per-condition branch ids are reachable too
		for _, cond := range n.Conditions {
			if cond.Then != "" {
				if err := walk(cond.Then); err != nil {
					return err
				}
			}
			if cond.Else != "" {
				if err := walk(cond.Else); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(model.RootID); err != nil {
		return nil, err
	}
	return referenced, nil
}

// setCombinator assigns entries under the given combinator keyword.
func setCombinator(s *schema.Schema, keyword string, entries []*schema.Schema) {
	switch keyword {
	case string(model.CombinatorAnyOf):
		s.AnyOf = entries
	case string(model.CombinatorOneOf):
		s.OneOf = entries
	default:
		s.AllOf = entries
	}
}

// base carries the metadata keywords every variant shares.
func base(n *model.SchemaNode) *schema.Schema {
	return &schema.Schema{
		Title:       n.Title,
		Description: n.Description,
		Default:     n.Default,
	}
}
