package importer

import (
	"fmt"
	"strings"

	"github.com/formgraph/formgraph/pkg/model"
	"github.com/formgraph/formgraph/pkg/schema"
)

// importCombinator recovers one conditional-group node from the if-shaped
// entries of a combinator array. Entries that are themselves combinator
// wrappers (the compiler's mixed-combinator folding) recurse; anything else
// is skipped.
func (im *importer) importCombinator(keyword string, entries []*schema.Schema, parentID, path string) error {
	var ifEntries []*schema.Schema
	for i, entry := range entries {
		entryPath := fmt.Sprintf("%s/%d", path, i)
		if entry == nil {
			continue
		}
		if entry.If != nil {
			ifEntries = append(ifEntries, entry)
			continue
		}
		if nested, nestedEntries := entry.CombinatorEntries(); nested != "" {
			if err := im.importCombinator(nested, nestedEntries, parentID, entryPath+"/"+nested); err != nil {
				return err
			}
			continue
		}
		im.skip(entryPath, "combinator entry without if/then shape")
	}
	if len(ifEntries) == 0 {
		return nil
	}

	group := &model.SchemaNode{
		Type:       model.NodeConditionalGroup,
		Combinator: model.Combinator(keyword),
		Key:        keyword,
		Title:      "Conditions",
	}
	g, groupID, err := im.g.AddNode(group, parentID, model.EdgeChild)
	if err != nil {
		return &model.ImportError{Path: path, Reason: err.Error()}
	}
	im.g = g

	shared := len(ifEntries) == 1
	var conditions []model.Condition
	for i, entry := range ifEntries {
		entryPath := fmt.Sprintf("%s/%d", path, i)

		preds := recoverPredicates(entry.If)
		if len(preds) == 0 {
			im.skip(entryPath+"/if", "unrecognized condition shape")
			continue
		}

		var thenID, elseID string
		if entry.Then != nil {
			id, err := im.importBranch(entry.Then, groupID, model.EdgeThen, shared, entryPath+"/then")
			if err != nil {
				return err
			}
			thenID = id
		}
		if entry.Else != nil && !isNotAnything(entry.Else) {
			id, err := im.importBranch(entry.Else, groupID, model.EdgeElse, shared, entryPath+"/else")
			if err != nil {
				return err
			}
			elseID = id
		}

		// one condition per recovered predicate; a combined if produced by
		// branch de-duplication fans back out into its original conditions
		for _, p := range preds {
			cond := model.Condition{If: p}
			if !shared {
				cond.Then = thenID
				cond.Else = elseID
			}
			conditions = append(conditions, cond)
		}
	}

	g, err = im.g.UpdateNode(groupID, map[string]any{"conditions": conditions})
	if err != nil {
		return &model.ImportError{Path: path, Reason: err.Error()}
	}
	im.g = g
	return nil
}

// importBranch imports a then/else subschema. Compiled branches arrive as a
// property-addition wrapper ({type:"object",properties:{…}}); each wrapped
// property becomes its own branch node. For a shared (single-entry) group
// the nodes attach via then/else edges; otherwise they park under the group
// with child edges and the returned id is recorded on the condition.
func (im *importer) importBranch(s *schema.Schema, groupID string, edgeType model.EdgeType, shared bool, path string) (string, error) {
	attachType := edgeType
	if !shared {
		attachType = model.EdgeChild
	}

	if s.Type == "object" && s.Properties != nil && s.Title == "" {
		required := make(map[string]bool, len(s.Required))
		for _, name := range s.Required {
			required[name] = true
		}
		if !shared && len(s.Properties) > 1 {
			// a multi-field branch on a per-condition group keeps its wrapper
			// as one object node so a single id can reference it
			id, _, err := im.importNode(s, "branch", groupID, attachType, path)
			return id, err
		}
		var lastID string
		for _, name := range propertyKeys(s) {
			id, ok, err := im.importNode(s.Properties[name], name, groupID, attachType, path+"/properties/"+name)
			if err != nil {
				return "", err
			}
			if !ok {
				continue
			}
			if required[name] {
				g, err := im.g.UpdateNode(id, map[string]any{"required": true})
				if err != nil {
					return "", &model.ImportError{Path: path, Reason: err.Error()}
				}
				im.g = g
			}
			lastID = id
		}
		return lastID, nil
	}

	id, _, err := im.importNode(s, string(edgeType), groupID, attachType, path)
	return id, err
}

// recoverPredicates inverts the predicate compiler: each field of the
// condition's properties yields one predicate, and a same-field allOf
// conjunction yields one per clause.
func recoverPredicates(ifSchema *schema.Schema) []model.Predicate {
	if ifSchema == nil || ifSchema.Properties == nil {
		return nil
	}
	var preds []model.Predicate
	for _, field := range orderedFields(ifSchema) {
		frag := ifSchema.Properties[field]
		if frag == nil {
			continue
		}
		// Repeated predicates on one field arrive conjoined under allOf, but
		// a lone not_empty fragment is an allOf wrapper itself and must stay
		// intact.
		clauses := []*schema.Schema{frag}
		if frag.AllOf != nil && frag.Const == nil && frag.Type == "" && frag.Not == nil &&
			!isNotEmptyPredicate(frag) {
			clauses = frag.AllOf
		}
		for _, clause := range clauses {
			if p, ok := fragmentToPredicate(field, clause); ok {
				preds = append(preds, p)
			}
		}
	}
	return preds
}

func orderedFields(s *schema.Schema) []string {
	if len(s.PropertyOrder) > 0 {
		return s.PropertyOrder
	}
	fields := make([]string, 0, len(s.Properties))
	for f := range s.Properties {
		fields = append(fields, f)
	}
	return fields
}

func fragmentToPredicate(field string, frag *schema.Schema) (model.Predicate, bool) {
	p := model.Predicate{Field: field}

	switch {
	case frag.Const != nil:
		p.Operator = model.OpEquals
		p.Value = *frag.Const

	case frag.Not != nil && frag.Not.Const != nil:
		p.Operator = model.OpNotEquals
		p.Value = *frag.Not.Const

	case frag.Type == "number" && frag.ExclusiveMinimum != nil:
		p.Operator = model.OpGreaterThan
		p.Value = *frag.ExclusiveMinimum

	case frag.Type == "number" && frag.ExclusiveMaximum != nil:
		p.Operator = model.OpLessThan
		p.Value = *frag.ExclusiveMaximum

	case frag.Type == "number" && frag.Minimum != nil:
		p.Operator = model.OpGreaterEqual
		p.Value = *frag.Minimum

	case frag.Type == "number" && frag.Maximum != nil:
		p.Operator = model.OpLessEqual
		p.Value = *frag.Maximum

	case frag.Type == "string" && frag.Pattern != "":
		op, value, ok := patternToOperator(frag.Pattern)
		if !ok {
			return model.Predicate{}, false
		}
		p.Operator = op
		p.Value = value

	case isEmptyPredicate(frag):
		p.Operator = model.OpEmpty

	case isNotEmptyPredicate(frag):
		p.Operator = model.OpNotEmpty

	default:
		return model.Predicate{}, false
	}
	return p, true
}

func patternToOperator(pattern string) (model.Operator, string, bool) {
	switch {
	case strings.HasPrefix(pattern, "^") && strings.HasSuffix(pattern, ".*"):
		return model.OpStartsWith, unescapeRegexp(pattern[1 : len(pattern)-2]), true
	case strings.HasPrefix(pattern, ".*") && strings.HasSuffix(pattern, "$"):
		return model.OpEndsWith, unescapeRegexp(pattern[2 : len(pattern)-1]), true
	case strings.HasPrefix(pattern, ".*") && strings.HasSuffix(pattern, ".*"):
		return model.OpContains, unescapeRegexp(pattern[2 : len(pattern)-2]), true
	}
	return "", "", false
}

// unescapeRegexp undoes regexp.QuoteMeta.
func unescapeRegexp(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

func isEmptyPredicate(frag *schema.Schema) bool {
	if len(frag.OneOf) != 2 {
		return false
	}
	str, null := frag.OneOf[0], frag.OneOf[1]
	return str.Type == "string" && str.MaxLength != nil && *str.MaxLength == 0 && null.Type == "null"
}

func isNotEmptyPredicate(frag *schema.Schema) bool {
	if len(frag.AllOf) != 2 {
		return false
	}
	str, minLen := frag.AllOf[0], frag.AllOf[1]
	return str.Type == "string" && minLen.MinLength != nil && *minLen.MinLength == 1
}

func isNotAnything(s *schema.Schema) bool {
	return s != nil && s.Not != nil && s.Not.IsEmpty() &&
		s.If == nil && s.Then == nil && s.Else == nil &&
		s.Type == "" && s.Properties == nil && s.Const == nil
}
