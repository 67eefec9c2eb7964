package schema

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// schemaWithoutMethods doesn't implement json.{Unm,M}arshaler, breaking the
// recursion when (un)marshalling through the methods below.
type schemaWithoutMethods Schema

// MarshalJSON emits the schema with properties in PropertyOrder. The value
// receiver makes Schema itself implement json.Marshaler so map values and
// non-addressable fields encode the same way.
func (s Schema) MarshalJSON() ([]byte, error) {
	ms := struct {
		Properties json.Marshaler `json:"properties,omitempty"`
		*schemaWithoutMethods
	}{
		schemaWithoutMethods: (*schemaWithoutMethods)(&s),
	}
	if s.Properties != nil {
		ms.Properties = orderedProperties{props: s.Properties, order: s.PropertyOrder}
	}
	return json.Marshal(&ms)
}

// orderedProperties marshals the properties map in a caller-supplied order,
// with keys missing from the order appended alphabetically.
type orderedProperties struct {
	props map[string]*Schema
	order []string
}

func (op orderedProperties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	writeEntry := func(key string, val *Schema) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		keyBytes, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(valBytes)
		return nil
	}

	written := make(map[string]bool, len(op.props))
	for _, name := range op.order {
		if prop, ok := op.props[name]; ok && !written[name] {
			if err := writeEntry(name, prop); err != nil {
				return nil, err
			}
			written[name] = true
		}
	}

	var remaining []string
	for name := range op.props {
		if !written[name] {
			remaining = append(remaining, name)
		}
	}
	sort.Strings(remaining)
	for _, name := range remaining {
		if err := writeEntry(name, op.props[name]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the supported keyword subset and additionally
// recovers the declared property order and the names of any unsupported
// keywords, which the importer reports and skips.
func (s *Schema) UnmarshalJSON(data []byte) error {
	// A bare JSON boolean is a valid schema: true accepts everything,
	// false rejects everything.
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*s = Schema{}
		} else {
			*s = *NotAnything()
		}
		return nil
	}

	var raw schemaWithoutMethods
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Schema(raw)

	order, unknown, err := scanKeys(data)
	if err != nil {
		return err
	}
	s.PropertyOrder = order
	s.Unknown = unknown
	return nil
}

// supportedKeywords is the keyword subset the editor core round-trips.
var supportedKeywords = map[string]bool{
	"$ref": true, "type": true, "title": true, "description": true,
	"default": true, "const": true, "enum": true, "enumNames": true,
	"minLength": true, "maxLength": true, "pattern": true, "format": true,
	"minimum": true, "maximum": true, "multipleOf": true,
	"exclusiveMinimum": true, "exclusiveMaximum": true,
	"properties": true, "required": true, "minProperties": true,
	"maxProperties": true, "additionalProperties": true,
	"items": true, "minItems": true, "maxItems": true,
	"uniqueItems": true, "additionalItems": true,
	"allOf": true, "anyOf": true, "oneOf": true, "not": true,
	"if": true, "then": true, "else": true, "definitions": true,
}

// scanKeys walks the top-level tokens of a schema object, returning the
// declared order of its "properties" keys and any unsupported keywords.
func scanKeys(data []byte) (order, unknown []string, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("schema is not a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v in schema object", tok)
		}
		if !supportedKeywords[key] {
			unknown = append(unknown, key)
		}
		if key != "properties" {
			if err := skipValue(dec); err != nil {
				return nil, nil, err
			}
			continue
		}

		// descend one level into properties and record its keys in order
		tok, err = dec.Token()
		if err != nil {
			return nil, nil, err
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			// properties holding a non-object is malformed; leave it to the
			// struct decode above to have reported it
			continue
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, nil, err
			}
			if name, ok := tok.(string); ok {
				order = append(order, name)
			}
			if err := skipValue(dec); err != nil {
				return nil, nil, err
			}
		}
		if _, err := dec.Token(); err != nil { // closing '}'
			return nil, nil, err
		}
	}
	return order, unknown, nil
}

// skipValue consumes one JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || (d != '{' && d != '[') {
		return nil // scalar
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
