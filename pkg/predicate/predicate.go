// Package predicate compiles (field, operator, value) predicates into JSON
// Schema condition fragments, the shared building block of conditional
// groups.
package predicate

import (
	"fmt"
	"regexp"

	"github.com/formgraph/formgraph/pkg/model"
	"github.com/formgraph/formgraph/pkg/schema"
)

// fragment builders per operator
var operatorTable = map[model.Operator]func(value any) *schema.Schema{
	model.OpEquals: func(v any) *schema.Schema {
		return &schema.Schema{Const: &v}
	},
	model.OpNotEquals: func(v any) *schema.Schema {
		return &schema.Schema{Not: &schema.Schema{Const: &v}}
	},
	model.OpGreaterThan: func(v any) *schema.Schema {
		return &schema.Schema{Type: "number", ExclusiveMinimum: toNumber(v)}
	},
	model.OpLessThan: func(v any) *schema.Schema {
		return &schema.Schema{Type: "number", ExclusiveMaximum: toNumber(v)}
	},
	model.OpGreaterEqual: func(v any) *schema.Schema {
		return &schema.Schema{Type: "number", Minimum: toNumber(v)}
	},
	model.OpLessEqual: func(v any) *schema.Schema {
		return &schema.Schema{Type: "number", Maximum: toNumber(v)}
	},
	model.OpContains: func(v any) *schema.Schema {
		return &schema.Schema{Type: "string", Pattern: ".*" + escape(v) + ".*"}
	},
	model.OpStartsWith: func(v any) *schema.Schema {
		return &schema.Schema{Type: "string", Pattern: "^" + escape(v) + ".*"}
	},
	model.OpEndsWith: func(v any) *schema.Schema {
		return &schema.Schema{Type: "string", Pattern: ".*" + escape(v) + "$"}
	},
	model.OpEmpty: func(any) *schema.Schema {
		return &schema.Schema{OneOf: []*schema.Schema{
			{Type: "string", MaxLength: schema.Ptr(0)},
			{Type: "null"},
		}}
	},
	model.OpNotEmpty: func(any) *schema.Schema {
		return &schema.Schema{AllOf: []*schema.Schema{
			{Type: "string"},
			{MinLength: schema.Ptr(1)},
		}}
	},
}

// Compile maps a predicate to its condition schema:
// {properties:{<field>:<fragment>}, required:[<field>]}.
func Compile(p model.Predicate) (*schema.Schema, error) {
	build, ok := operatorTable[p.Operator]
	if !ok {
		return nil, fmt.Errorf("unknown predicate operator %q", p.Operator)
	}
	switch p.Operator {
	case model.OpGreaterThan, model.OpLessThan, model.OpGreaterEqual, model.OpLessEqual:
		if toNumber(p.Value) == nil {
			return nil, fmt.Errorf("operator %q needs a numeric value, got %T", p.Operator, p.Value)
		}
	}
	return &schema.Schema{
		Properties:    map[string]*schema.Schema{p.Field: build(p.Value)},
		PropertyOrder: []string{p.Field},
		Required:      []string{p.Field},
	}, nil
}

// CombineAll merges several compiled conditions into one condition whose
// properties and required sets are the union, preserving field order. Used
// when a group's conditions share one branch and compile to a single if.
func CombineAll(conditions []*schema.Schema) *schema.Schema {
	combined := &schema.Schema{Properties: map[string]*schema.Schema{}}
	seenRequired := map[string]bool{}
	for _, c := range conditions {
		for _, field := range c.PropertyOrder {
			frag, ok := c.Properties[field]
			if !ok {
				continue
			}
			if prev, exists := combined.Properties[field]; exists {
				// two predicates on one field: conjoin under allOf
				combined.Properties[field] = &schema.Schema{AllOf: []*schema.Schema{prev, frag}}
				continue
			}
			combined.Properties[field] = frag
			combined.PropertyOrder = append(combined.PropertyOrder, field)
		}
		for _, field := range c.Required {
			if !seenRequired[field] {
				seenRequired[field] = true
				combined.Required = append(combined.Required, field)
			}
		}
	}
	return combined
}

func toNumber(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	}
	return nil
}

func escape(v any) string {
	return regexp.QuoteMeta(fmt.Sprint(v))
}
