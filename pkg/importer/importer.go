// Package importer reconstructs a schema graph from a JSON Schema document.
// The round trip through the compiler is best-effort: semantically equivalent
// for the supported subset, not byte-identical in node ids or keys.
package importer

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/formgraph/formgraph/pkg/graph"
	"github.com/formgraph/formgraph/pkg/model"
	"github.com/formgraph/formgraph/pkg/schema"
)

// Mode selects how an import combines with the existing document.
type Mode string

const (
	// ModeReplace discards the current graph and builds a fresh one.
	ModeReplace Mode = "replace"
	// ModeMerge is accepted but currently behaves exactly like ModeReplace.
	// Merge semantics are an unresolved design gap; callers are warned.
	ModeMerge Mode = "merge"
)

// Result carries the imported graph and the fragments that were skipped
// because they fall outside the supported subset.
type Result struct {
	Graph   *graph.SchemaGraph
	Skipped []string // human-readable "<path>: <reason>" notes
}

// Parse decodes a JSON Schema document.
func Parse(data []byte) (*schema.Schema, error) {
	doc := &schema.Schema{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, &model.ImportError{Reason: err.Error()}
	}
	return doc, nil
}

// Import builds a graph from a parsed document. Definitions are imported
// first so refs among them resolve; refs to names that are still unknown
// after the full pass are a terminal dangling-reference error.
func Import(doc *schema.Schema, mode Mode) (*Result, error) {
	_ = mode // merge is a stub: both modes rebuild from scratch

	im := &importer{g: graph.New()}

	// definitions first, in stable name order, each detached by name
	names := make([]string, 0, len(doc.Definitions))
	for name := range doc.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := "/definitions/" + name
		id, ok, err := im.importNode(doc.Definitions[name], name, model.RootID, model.EdgeChild, path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		g, err := im.g.SaveAsDefinition(name, id, true)
		if err != nil {
			return nil, &model.ImportError{Path: path, Reason: err.Error()}
		}
		im.g = g
	}

	// root object: metadata and keywords merge onto the fixed root node
	if err := im.applyRoot(doc); err != nil {
		return nil, err
	}
	if err := im.importObjectMembers(doc, model.RootID, ""); err != nil {
		return nil, err
	}

	// deferred $ref resolution
	for _, pending := range im.refs {
		defID, ok := im.g.Definition(pending.target)
		if !ok {
			return nil, &model.ImportError{Path: pending.path, Reason: fmt.Sprintf("dangling reference %q", pending.target)}
		}
		g, err := im.g.UpdateNode(pending.nodeID, map[string]any{"resolvedNodeId": defID})
		if err != nil {
			return nil, &model.ImportError{Path: pending.path, Reason: err.Error()}
		}
		im.g = g
	}

	return &Result{Graph: im.g, Skipped: im.skipped}, nil
}

type pendingRef struct {
	nodeID string
	target string
	path   string
}

type importer struct {
	g       *graph.SchemaGraph
	refs    []pendingRef
	skipped []string
}

func (im *importer) skip(path, reason string) {
	if path == "" {
		path = "/"
	}
	im.skipped = append(im.skipped, path+": "+reason)
}

func (im *importer) noteUnknown(s *schema.Schema, path string) {
	for _, kw := range s.Unknown {
		im.skip(path, "unsupported keyword "+kw)
	}
}

// applyRoot copies root-level metadata onto the fixed root node.
func (im *importer) applyRoot(doc *schema.Schema) error {
	patch := map[string]any{}
	if doc.Title != "" {
		patch["title"] = doc.Title
	}
	if doc.Description != "" {
		patch["description"] = doc.Description
	}
	if doc.MinProperties != nil {
		patch["minProperties"] = *doc.MinProperties
	}
	if doc.MaxProperties != nil {
		patch["maxProperties"] = *doc.MaxProperties
	}
	if doc.AdditionalProperties != nil {
		patch["additionalProperties"] = *doc.AdditionalProperties
	}
	im.noteUnknown(doc, "")
	if len(patch) == 0 {
		return nil
	}
	g, err := im.g.UpdateNode(model.RootID, patch)
	if err != nil {
		return &model.ImportError{Reason: err.Error()}
	}
	im.g = g
	return nil
}

// importNode imports one subschema as a node attached under parentID. The
// bool result is false when the fragment was skipped as unsupported.
func (im *importer) importNode(s *schema.Schema, key, parentID string, edgeType model.EdgeType, path string) (string, bool, error) {
	if s == nil {
		return "", false, nil
	}
	im.noteUnknown(s, path)

	if s.Ref != "" {
		return im.importRef(s, key, parentID, edgeType, path)
	}

	node := &model.SchemaNode{
		Key:         key,
		Title:       s.Title,
		Description: s.Description,
		Default:     s.Default,
	}
	if node.Title == "" {
		node.Title = key
	}

	switch {
	case s.Enum != nil && (s.Type == "" || s.Type == "string"):
		node.Type = model.NodeEnum
		node.Enum = s.Enum
		node.EnumNames = s.EnumNames

	case s.Type == "object" || (s.Type == "" && s.Properties != nil):
		node.Type = model.NodeObject
		node.MinProperties = s.MinProperties
		node.MaxProperties = s.MaxProperties
		node.AdditionalProperties = s.AdditionalProperties

	case s.Type == "array":
		node.Type = model.NodeArray
		node.MinItems = s.MinItems
		node.MaxItems = s.MaxItems
		node.UniqueItems = s.UniqueItems
		node.AdditionalItems = s.AdditionalItems

	case s.Type == "string":
		node.Type = model.NodeString
		node.MinLength = s.MinLength
		node.MaxLength = s.MaxLength
		node.Pattern = s.Pattern
		node.Format = s.Format

	case s.Type == "number" || s.Type == "integer":
		node.Type = model.NodeNumber
		node.Minimum = s.Minimum
		node.Maximum = s.Maximum
		node.MultipleOf = s.MultipleOf
		node.ExclusiveMinimum = s.ExclusiveMinimum
		node.ExclusiveMaximum = s.ExclusiveMaximum

	case s.Type == "boolean":
		node.Type = model.NodeBoolean

	default:
		im.skip(path, fmt.Sprintf("unsupported schema shape (type %q)", s.Type))
		return "", false, nil
	}
	if s.Enum != nil && node.Type != model.NodeEnum {
		im.skip(path, fmt.Sprintf("enum on non-string type %q", s.Type))
	}

	g, id, err := im.g.AddNode(node, parentID, edgeType)
	if err != nil {
		return "", false, &model.ImportError{Path: path, Reason: err.Error()}
	}
	im.g = g

	switch node.Type {
	case model.NodeObject:
		if err := im.importObjectMembers(s, id, path); err != nil {
			return "", false, err
		}
	case model.NodeArray:
		if s.Items != nil {
			if _, _, err := im.importNode(s.Items, "items", id, model.EdgeChild, path+"/items"); err != nil {
				return "", false, err
			}
		}
	}
	return id, true, nil
}

func (im *importer) importRef(s *schema.Schema, key, parentID string, edgeType model.EdgeType, path string) (string, bool, error) {
	const prefix = "#/definitions/"
	if len(s.Ref) <= len(prefix) || s.Ref[:len(prefix)] != prefix {
		im.skip(path, fmt.Sprintf("unsupported $ref target %q", s.Ref))
		return "", false, nil
	}
	target := s.Ref[len(prefix):]

	node := &model.SchemaNode{
		Type:        model.NodeRef,
		Key:         key,
		Title:       s.Title,
		Description: s.Description,
		RefTarget:   target,
	}
	if node.Title == "" {
		node.Title = target
	}
	g, id, err := im.g.AddNode(node, parentID, edgeType)
	if err != nil {
		return "", false, &model.ImportError{Path: path, Reason: err.Error()}
	}
	im.g = g
	im.refs = append(im.refs, pendingRef{nodeID: id, target: target, path: path})
	return id, true, nil
}

// importObjectMembers imports an object's properties in declared order, marks
// required ones, and recovers conditional groups from the combinator arrays.
func (im *importer) importObjectMembers(s *schema.Schema, parentID, path string) error {
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}

	for _, name := range propertyKeys(s) {
		childPath := path + "/properties/" + name
		id, ok, err := im.importNode(s.Properties[name], name, parentID, model.EdgeChild, childPath)
		if err != nil {
			return err
		}
		if ok && required[name] {
			g, err := im.g.UpdateNode(id, map[string]any{"required": true})
			if err != nil {
				return &model.ImportError{Path: childPath, Reason: err.Error()}
			}
			im.g = g
		}
	}

	for _, comb := range []struct {
		keyword string
		entries []*schema.Schema
	}{
		{"allOf", s.AllOf},
		{"anyOf", s.AnyOf},
		{"oneOf", s.OneOf},
	} {
		if len(comb.entries) == 0 {
			continue
		}
		if err := im.importCombinator(comb.keyword, comb.entries, parentID, path+"/"+comb.keyword); err != nil {
			return err
		}
	}
	return nil
}

// propertyKeys returns the property names in declared order, with any names
// missing from the recovered order appended alphabetically.
func propertyKeys(s *schema.Schema) []string {
	seen := make(map[string]bool, len(s.Properties))
	keys := make([]string, 0, len(s.Properties))
	for _, name := range s.PropertyOrder {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			seen[name] = true
			keys = append(keys, name)
		}
	}
	var rest []string
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
