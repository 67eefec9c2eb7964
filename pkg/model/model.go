package model

// RootID is the fixed id of the root object node. The root is created with
// every new graph and can never be removed.
const RootID = "root"

// NodeType identifies the variant of a SchemaNode
type NodeType string

const (
	NodeString           NodeType = "string"
	NodeNumber           NodeType = "number"
	NodeBoolean          NodeType = "boolean"
	NodeEnum             NodeType = "enum"
	NodeObject           NodeType = "object"
	NodeArray            NodeType = "array"
	NodeConditionalGroup NodeType = "conditional-group"
	NodeIfBlock          NodeType = "if-block" // legacy single-condition block
	NodeDefinition       NodeType = "definition"
	NodeRef              NodeType = "ref"
)

// EdgeType identifies the relationship an edge encodes
type EdgeType string

const (
	EdgeChild EdgeType = "child" // structural containment (object/array membership)
	EdgeThen  EdgeType = "then"  // conditional branch taken when the condition holds
	EdgeElse  EdgeType = "else"  // conditional branch taken otherwise
)

// Combinator selects how a conditional group's conditions compose
type Combinator string

const (
	CombinatorAllOf Combinator = "allOf"
	CombinatorAnyOf Combinator = "anyOf"
	CombinatorOneOf Combinator = "oneOf"
)

// Operator is a predicate comparison operator
type Operator string

const (
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "not_equals"
	OpGreaterThan  Operator = "greater_than"
	OpLessThan     Operator = "less_than"
	OpGreaterEqual Operator = "greater_equal"
	OpLessEqual    Operator = "less_equal"
	OpContains     Operator = "contains"
	OpStartsWith   Operator = "starts_with"
	OpEndsWith     Operator = "ends_with"
	OpEmpty        Operator = "empty"
	OpNotEmpty     Operator = "not_empty"
)

// Predicate tests one field of the form data against a value
type Predicate struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Condition is one entry of a conditional group. Then/Else carry legacy
// per-condition branch node ids; then/else edges on the group node take
// precedence when both are present.
type Condition struct {
	If   Predicate `json:"if"`
	Then string    `json:"then,omitempty"`
	Else string    `json:"else,omitempty"`
}

// SchemaNode is one field/container/conditional-group/definition/reference
// unit of a form definition. Variant-specific fields are only meaningful for
// the matching Type; optional numeric keywords are pointers so absence is
// distinguishable from zero.
type SchemaNode struct {
	ID          string   `json:"id"`
	Type        NodeType `json:"type"`
	Key         string   `json:"key"`   // machine name, unique among same-bucket siblings
	Title       string   `json:"title"` // human-readable label
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Default     any      `json:"default,omitempty"`

	// string
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Format    string `json:"format,omitempty"`

	// number
	Minimum          *float64 `json:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty"`
	MultipleOf       *float64 `json:"multipleOf,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty"`

	// enum
	Enum      []any    `json:"enum,omitempty"`
	EnumNames []string `json:"enumNames,omitempty"`

	// object
	MinProperties        *int  `json:"minProperties,omitempty"`
	MaxProperties        *int  `json:"maxProperties,omitempty"`
	AdditionalProperties *bool `json:"additionalProperties,omitempty"`

	// array
	MinItems        *int  `json:"minItems,omitempty"`
	MaxItems        *int  `json:"maxItems,omitempty"`
	UniqueItems     bool  `json:"uniqueItems,omitempty"`
	AdditionalItems *bool `json:"additionalItems,omitempty"`

	// conditional group / legacy if-block
	Combinator Combinator  `json:"combinator,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`

	// ref
	RefTarget      string `json:"refTarget,omitempty"`
	ResolvedNodeID string `json:"resolvedNodeId,omitempty"`

	// presentation hints consumed by the UI-schema generator
	Widget    string         `json:"widget,omitempty"`
	UIOptions map[string]any `json:"uiOptions,omitempty"`
}

// Clone returns a copy of the node with its own slices and maps, so a patch
// applied to the copy never shows through a previously returned graph value.
func (n *SchemaNode) Clone() *SchemaNode {
	c := *n
	c.MinLength = clonePtr(n.MinLength)
	c.MaxLength = clonePtr(n.MaxLength)
	c.Minimum = clonePtr(n.Minimum)
	c.Maximum = clonePtr(n.Maximum)
	c.MultipleOf = clonePtr(n.MultipleOf)
	c.ExclusiveMinimum = clonePtr(n.ExclusiveMinimum)
	c.ExclusiveMaximum = clonePtr(n.ExclusiveMaximum)
	c.MinProperties = clonePtr(n.MinProperties)
	c.MaxProperties = clonePtr(n.MaxProperties)
	c.AdditionalProperties = clonePtr(n.AdditionalProperties)
	c.MinItems = clonePtr(n.MinItems)
	c.MaxItems = clonePtr(n.MaxItems)
	c.AdditionalItems = clonePtr(n.AdditionalItems)
	if n.Enum != nil {
		c.Enum = append([]any(nil), n.Enum...)
	}
	if n.EnumNames != nil {
		c.EnumNames = append([]string(nil), n.EnumNames...)
	}
	if n.Conditions != nil {
		c.Conditions = append([]Condition(nil), n.Conditions...)
	}
	if n.UIOptions != nil {
		opts := make(map[string]any, len(n.UIOptions))
		for k, v := range n.UIOptions {
			opts[k] = v
		}
		c.UIOptions = opts
	}
	return &c
}

// IsConditional reports whether the node may source then/else edges
func (n *SchemaNode) IsConditional() bool {
	return n.Type == NodeConditionalGroup || n.Type == NodeIfBlock
}

// Edge connects two nodes. Order sequences siblings within the
// (SourceID, Type) bucket.
type Edge struct {
	ID       string   `json:"id"`
	SourceID string   `json:"sourceId"`
	TargetID string   `json:"targetId"`
	Type     EdgeType `json:"type"`
	Order    int      `json:"order"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
