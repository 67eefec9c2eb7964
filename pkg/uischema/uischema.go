// Package uischema derives widget and ordering metadata from a schema graph.
// Ordering is re-synchronized against the compiled JSON Schema so the two
// documents never disagree about which properties exist at a level.
package uischema

import (
	"sort"

	"github.com/formgraph/formgraph/pkg/graph"
	"github.com/formgraph/formgraph/pkg/model"
	"github.com/formgraph/formgraph/pkg/schema"
)

// UISchema is the plain JSON-compatible metadata document: nested objects per
// property path carrying ui:widget, ui:options, ui:order, ui:collapsible and
// ui:collapsed keys.
type UISchema = map[string]any

// OrderWildcard is appended to every ui:order list so properties unknown to
// the order still render.
const OrderWildcard = "*"

// Generate walks the graph, assigns widgets, then re-derives every level's
// ui:order directly from the compiled schema, overwriting anything the graph
// walk produced. Branch fields get their own subtrees but never appear in
// their parent's order.
func Generate(g *graph.SchemaGraph, compiled *schema.Schema) UISchema {
	ui := generateNode(g, g.Root())
	if ui == nil {
		ui = UISchema{}
	}
	syncOrder(ui, compiled)
	return ui
}

// generateNode mirrors the object/array/conditional structure of the graph.
func generateNode(g *graph.SchemaGraph, n *model.SchemaNode) UISchema {
	ui := UISchema{}

	if w := widgetFor(n); w != "" {
		ui["ui:widget"] = w
	}
	if len(n.UIOptions) > 0 {
		opts := make(map[string]any, len(n.UIOptions))
		for k, v := range n.UIOptions {
			opts[k] = v
		}
		if collapsible, ok := opts["collapsible"]; ok {
			ui["ui:collapsible"] = collapsible
			delete(opts, "collapsible")
		}
		if collapsed, ok := opts["collapsed"]; ok {
			ui["ui:collapsed"] = collapsed
			delete(opts, "collapsed")
		}
		if len(opts) > 0 {
			ui["ui:options"] = opts
		}
	}

	switch n.Type {
	case model.NodeObject, model.NodeDefinition:
		for _, child := range g.Children(n.ID, model.EdgeChild) {
			if child.IsConditional() {
				mergeBranchFields(g, ui, child)
				continue
			}
			if sub := generateNode(g, child); len(sub) > 0 {
				ui[child.Key] = sub
			}
		}
	case model.NodeArray:
		if items := g.Children(n.ID, model.EdgeChild); len(items) > 0 {
			if sub := generateNode(g, items[0]); len(sub) > 0 {
				ui["items"] = sub
			}
		}
	case model.NodeConditionalGroup, model.NodeIfBlock:
		mergeBranchFields(g, ui, n)
	}

	return ui
}

// mergeBranchFields adds the conditional group's then/else fields to the
// surrounding object's UI map. They are keyed like ordinary siblings so
// conditionally shown fields still get widgets, but order synchronization
// keeps them out of ui:order.
func mergeBranchFields(g *graph.SchemaGraph, ui UISchema, group *model.SchemaNode) {
	seen := map[string]bool{}
	addNode := func(n *model.SchemaNode) {
		if n == nil || seen[n.ID] {
			return
		}
		seen[n.ID] = true
		if sub := generateNode(g, n); len(sub) > 0 {
			ui[n.Key] = sub
		}
	}

	for _, t := range []model.EdgeType{model.EdgeThen, model.EdgeElse} {
		for _, n := range g.Children(group.ID, t) {
			addNode(n)
		}
	}
	for _, cond := range group.Conditions {
		addNode(g.Node(cond.Then))
		addNode(g.Node(cond.Else))
	}
}

// syncOrder re-derives ui:order from the compiled schema at every object
// level: the order is exactly the compiled property keys plus the trailing
// wildcard. It then recurses through properties, items, and the branch
// schemas hiding inside combinator entries.
func syncOrder(ui UISchema, compiled *schema.Schema) {
	if ui == nil || compiled == nil {
		return
	}

	if compiled.Properties != nil {
		order := make([]string, 0, len(compiled.PropertyOrder)+1)
		order = append(order, orderedKeys(compiled)...)
		order = append(order, OrderWildcard)
		ui["ui:order"] = order
	} else {
		delete(ui, "ui:order")
	}

	for key, sub := range childSchemas(compiled) {
		if nested, ok := ui[key].(UISchema); ok {
			syncOrder(nested, sub)
		}
	}
	if compiled.Items != nil {
		if nested, ok := ui["items"].(UISchema); ok {
			syncOrder(nested, compiled.Items)
		}
	}
}

// orderedKeys returns the compiled property keys honoring PropertyOrder.
func orderedKeys(s *schema.Schema) []string {
	seen := make(map[string]bool, len(s.Properties))
	keys := make([]string, 0, len(s.Properties))
	for _, k := range s.PropertyOrder {
		if _, ok := s.Properties[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range s.Properties {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// childSchemas flattens a level's reachable sub-schemas: direct properties
// plus every then/else branch wrapper inside its combinator entries.
func childSchemas(s *schema.Schema) map[string]*schema.Schema {
	out := make(map[string]*schema.Schema, len(s.Properties))
	for k, v := range s.Properties {
		out[k] = v
	}

	var fromEntries func(entries []*schema.Schema)
	fromEntries = func(entries []*schema.Schema) {
		for _, entry := range entries {
			if entry == nil {
				continue
			}
			for _, branch := range []*schema.Schema{entry.Then, entry.Else} {
				if branch == nil {
					continue
				}
				for k, v := range branch.Properties {
					if _, exists := out[k]; !exists {
						out[k] = v
					}
				}
			}
			// mixed-combinator folding nests wrappers one level down
			if _, nested := entry.CombinatorEntries(); nested != nil {
				fromEntries(nested)
			}
		}
	}
	for _, entries := range [][]*schema.Schema{s.AllOf, s.AnyOf, s.OneOf} {
		fromEntries(entries)
	}
	return out
}

// widgetFor applies explicit assignment first, then the default registry.
func widgetFor(n *model.SchemaNode) string {
	if n.Widget != "" {
		return n.Widget
	}
	return defaultRegistry.Lookup(n)
}
