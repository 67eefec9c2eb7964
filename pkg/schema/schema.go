// Package schema models the JSON Schema subset exchanged by the editor core:
// the keywords the compiler emits and the importer understands, nothing more.
package schema

// Schema is one JSON Schema object of the supported subset. Optional numeric
// keywords are pointers so absence is distinguishable from zero. Nil slices
// and maps are absent; empty ones are present.
type Schema struct {
	Ref string `json:"$ref,omitempty"`

	Type        string `json:"type,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`

	// Const is *any because a JSON null is a valid constant.
	Const *any     `json:"const,omitempty"`
	Enum  []any    `json:"enum,omitempty"`
	// EnumNames is the non-standard display-label companion of Enum. Its
	// length is not validated against Enum.
	EnumNames []string `json:"enumNames,omitempty"`

	// strings
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Format    string `json:"format,omitempty"`

	// numbers
	Minimum          *float64 `json:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty"`
	MultipleOf       *float64 `json:"multipleOf,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty"`

	// objects
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	MinProperties        *int               `json:"minProperties,omitempty"`
	MaxProperties        *int               `json:"maxProperties,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`

	// arrays
	Items           *Schema `json:"items,omitempty"`
	MinItems        *int    `json:"minItems,omitempty"`
	MaxItems        *int    `json:"maxItems,omitempty"`
	UniqueItems     bool    `json:"uniqueItems,omitempty"`
	AdditionalItems *bool   `json:"additionalItems,omitempty"`

	// composition
	AllOf []*Schema `json:"allOf,omitempty"`
	AnyOf []*Schema `json:"anyOf,omitempty"`
	OneOf []*Schema `json:"oneOf,omitempty"`
	Not   *Schema   `json:"not,omitempty"`

	// conditionals
	If   *Schema `json:"if,omitempty"`
	Then *Schema `json:"then,omitempty"`
	Else *Schema `json:"else,omitempty"`

	Definitions map[string]*Schema `json:"definitions,omitempty"`

	// PropertyOrder records the declared ordering of Properties. MarshalJSON
	// emits properties in this order; UnmarshalJSON recovers it from the
	// document. Keys absent from the slice are emitted last, sorted.
	PropertyOrder []string `json:"-"`

	// Unknown lists keywords seen during unmarshal that are outside the
	// supported subset. The importer logs and skips them.
	Unknown []string `json:"-"`
}

// Ptr returns a pointer to v, a convenience for the optional keyword fields.
func Ptr[T any](v T) *T { return &v }

// NotAnything is the schema that rejects every instance, used as the
// synthetic else branch of strict combinators.
func NotAnything() *Schema { return &Schema{Not: &Schema{}} }

// IsEmpty reports whether no keyword is set.
func (s *Schema) IsEmpty() bool {
	if s == nil {
		return true
	}
	return s.Ref == "" && s.Type == "" && s.Title == "" && s.Description == "" &&
		s.Default == nil && s.Const == nil && s.Enum == nil && s.EnumNames == nil &&
		s.MinLength == nil && s.MaxLength == nil && s.Pattern == "" && s.Format == "" &&
		s.Minimum == nil && s.Maximum == nil && s.MultipleOf == nil &&
		s.ExclusiveMinimum == nil && s.ExclusiveMaximum == nil &&
		s.Properties == nil && s.Required == nil && s.MinProperties == nil &&
		s.MaxProperties == nil && s.AdditionalProperties == nil &&
		s.Items == nil && s.MinItems == nil && s.MaxItems == nil &&
		!s.UniqueItems && s.AdditionalItems == nil &&
		s.AllOf == nil && s.AnyOf == nil && s.OneOf == nil && s.Not == nil &&
		s.If == nil && s.Then == nil && s.Else == nil && s.Definitions == nil
}

// CombinatorEntries returns the populated combinator keyword and its entries,
// or "" when none is set.
func (s *Schema) CombinatorEntries() (string, []*Schema) {
	switch {
	case s.AllOf != nil:
		return "allOf", s.AllOf
	case s.AnyOf != nil:
		return "anyOf", s.AnyOf
	case s.OneOf != nil:
		return "oneOf", s.OneOf
	}
	return "", nil
}
