package uischema

import (
	"github.com/formgraph/formgraph/pkg/model"
)

// Rule maps a node shape to a default widget. The first matching rule wins.
type Rule struct {
	Name   string
	Match  func(n *model.SchemaNode) bool
	Widget string
}

// Registry resolves default widgets by node type and shape.
type Registry struct {
	rules []Rule
}

// NewRegistry returns a registry preloaded with the built-in defaults.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(Rule{
		Name: "yes-no enum",
		Match: func(n *model.SchemaNode) bool {
			return n.Type == model.NodeEnum && isYesNo(n.Enum)
		},
		Widget: "yesNo",
	})
	r.Register(Rule{
		Name: "enum select",
		Match: func(n *model.SchemaNode) bool {
			return n.Type == model.NodeEnum
		},
		Widget: "select",
	})
	r.Register(Rule{
		Name: "date format",
		Match: func(n *model.SchemaNode) bool {
			return n.Type == model.NodeString && (n.Format == "date" || n.Format == "date-time")
		},
		Widget: "date",
	})
	r.Register(Rule{
		Name: "boolean checkbox",
		Match: func(n *model.SchemaNode) bool {
			return n.Type == model.NodeBoolean
		},
		Widget: "checkbox",
	})
	return r
}

// Register appends a rule. Later registrations have lower priority.
func (r *Registry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Lookup returns the default widget for a node, or "".
func (r *Registry) Lookup(n *model.SchemaNode) string {
	for _, rule := range r.rules {
		if rule.Match(n) {
			return rule.Widget
		}
	}
	return ""
}

var defaultRegistry = NewRegistry()

// isYesNo reports whether the enum's value set is exactly {"yes","no"}.
func isYesNo(values []any) bool {
	if len(values) != 2 {
		return false
	}
	var yes, no bool
	for _, v := range values {
		switch v {
		case "yes":
			yes = true
		case "no":
			no = true
		}
	}
	return yes && no
}
