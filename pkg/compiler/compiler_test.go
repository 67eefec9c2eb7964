package compiler

import (
	"testing"

	"github.com/formgraph/formgraph/pkg/graph"
	"github.com/formgraph/formgraph/pkg/model"
	"github.com/formgraph/formgraph/pkg/schema"
)

func mustAdd(t *testing.T, g *graph.SchemaGraph, n *model.SchemaNode, parentID string, edgeType model.EdgeType) (*graph.SchemaGraph, string) {
	t.Helper()
	g2, id, err := g.AddNode(n, parentID, edgeType)
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	return g2, id
}

func mustUpdate(t *testing.T, g *graph.SchemaGraph, id string, patch map[string]any) *graph.SchemaGraph {
	t.Helper()
	g2, err := g.UpdateNode(id, patch)
	if err != nil {
		t.Fatalf("UpdateNode failed: %v", err)
	}
	return g2
}

func TestCompile_PersonExample(t *testing.T) {
	g := graph.New()
	g = mustUpdate(t, g, model.RootID, map[string]any{"title": "Person"})
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Title: "Name", Key: "name", Required: true, MinLength: schemaPtr(1)}, "", "")
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeNumber, Title: "Age", Key: "age", Minimum: floatPtr(0)}, "", "")

	compiled, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if compiled.Type != "object" || compiled.Title != "Person" {
		t.Errorf("Expected titled object root, got type=%q title=%q", compiled.Type, compiled.Title)
	}
	if len(compiled.Properties) != 2 {
		t.Fatalf("Expected 2 properties, got %d", len(compiled.Properties))
	}
	if compiled.PropertyOrder[0] != "name" || compiled.PropertyOrder[1] != "age" {
		t.Errorf("Expected property order [name age], got %v", compiled.PropertyOrder)
	}
	if len(compiled.Required) != 1 || compiled.Required[0] != "name" {
		t.Errorf("Expected required [name], got %v", compiled.Required)
	}

	name := compiled.Properties["name"]
	if name.Type != "string" || name.MinLength == nil || *name.MinLength != 1 {
		t.Errorf("Unexpected name schema: %+v", name)
	}
	age := compiled.Properties["age"]
	if age.Type != "number" || age.Minimum == nil || *age.Minimum != 0 {
		t.Errorf("Unexpected age schema: %+v", age)
	}
}

func TestCompile_EnumAndArray(t *testing.T) {
	g := graph.New()
	g, _ = mustAdd(t, g, &model.SchemaNode{
		Type: model.NodeEnum, Title: "Color", Key: "color",
		Enum: []any{"red", "green"}, EnumNames: []string{"Red", "Green"},
	}, "", "")
	g, arrID := mustAdd(t, g, &model.SchemaNode{Type: model.NodeArray, Title: "Tags", Key: "tags", MinItems: schemaPtr(1)}, "", "")
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Title: "Tag", Key: "items"}, arrID, "")

	compiled, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	color := compiled.Properties["color"]
	if color.Type != "string" || len(color.Enum) != 2 || len(color.EnumNames) != 2 {
		t.Errorf("Unexpected enum schema: %+v", color)
	}

	tags := compiled.Properties["tags"]
	if tags.Type != "array" || tags.Items == nil || tags.Items.Type != "string" {
		t.Errorf("Unexpected array schema: %+v", tags)
	}
	if tags.MinItems == nil || *tags.MinItems != 1 {
		t.Errorf("Expected minItems 1, got %v", tags.MinItems)
	}
}

func TestCompile_ConditionalGroupSplicesOntoObject(t *testing.T) {
	g := graph.New()
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeEnum, Title: "Employed", Key: "employed", Enum: []any{"yes", "no"}}, "", "")
	g, groupID := mustAdd(t, g, &model.SchemaNode{Type: model.NodeConditionalGroup, Key: "group"}, "", "")
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Title: "Employer", Key: "employer", Required: true}, groupID, model.EdgeThen)
	g = mustUpdate(t, g, groupID, map[string]any{
		"conditions": []model.Condition{
			{If: model.Predicate{Field: "employed", Operator: model.OpEquals, Value: "yes"}},
		},
	})

	compiled, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	// the group itself is not a property
	if _, ok := compiled.Properties["group"]; ok {
		t.Error("Expected conditional group to fold onto the object, not become a property")
	}
	if len(compiled.AllOf) != 1 {
		t.Fatalf("Expected 1 allOf entry, got %d", len(compiled.AllOf))
	}

	entry := compiled.AllOf[0]
	if entry.If == nil || entry.Then == nil {
		t.Fatalf("Expected if/then entry, got %+v", entry)
	}
	frag := entry.If.Properties["employed"]
	if frag == nil || frag.Const == nil || *frag.Const != "yes" {
		t.Errorf("Unexpected condition fragment: %+v", frag)
	}
	branch := entry.Then.Properties["employer"]
	if branch == nil || branch.Type != "string" {
		t.Errorf("Expected employer in then branch, got %+v", entry.Then)
	}
	if len(entry.Then.Required) != 1 || entry.Then.Required[0] != "employer" {
		t.Errorf("Expected employer required in branch, got %v", entry.Then.Required)
	}
	if entry.Else != nil {
		t.Errorf("Expected no synthetic else on allOf, got %+v", entry.Else)
	}
}

func TestCompile_SharedBranchDeduplication(t *testing.T) {
	g := graph.New()
	g, groupID := mustAdd(t, g, &model.SchemaNode{Type: model.NodeConditionalGroup, Key: "group"}, "", "")
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Title: "Details", Key: "details"}, groupID, model.EdgeThen)
	g = mustUpdate(t, g, groupID, map[string]any{
		"conditions": []model.Condition{
			{If: model.Predicate{Field: "country", Operator: model.OpEquals, Value: "SE"}},
			{If: model.Predicate{Field: "age", Operator: model.OpGreaterEqual, Value: 18}},
			{If: model.Predicate{Field: "consent", Operator: model.OpEquals, Value: true}},
		},
	})

	compiled, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	// three conditions sharing one branch compact into a single entry
	if len(compiled.AllOf) != 1 {
		t.Fatalf("Expected a single de-duplicated entry, got %d", len(compiled.AllOf))
	}
	entry := compiled.AllOf[0]
	if len(entry.If.Properties) != 3 {
		t.Errorf("Expected combined if over 3 fields, got %v", entry.If.PropertyOrder)
	}
	if len(entry.If.Required) != 3 {
		t.Errorf("Expected all 3 fields required in the combined if, got %v", entry.If.Required)
	}
	if entry.Then == nil || entry.Then.Properties["details"] == nil {
		t.Errorf("Expected the shared then branch, got %+v", entry.Then)
	}
}

func TestCompile_LegacyPerConditionBranches(t *testing.T) {
	g := graph.New()
	g, groupID := mustAdd(t, g, &model.SchemaNode{Type: model.NodeConditionalGroup, Key: "group"}, "", "")
	g, aID := mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Title: "A Details", Key: "a_details"}, groupID, model.EdgeChild)
	g, bID := mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Title: "B Details", Key: "b_details"}, groupID, model.EdgeChild)
	g = mustUpdate(t, g, groupID, map[string]any{
		"conditions": []model.Condition{
			{If: model.Predicate{Field: "kind", Operator: model.OpEquals, Value: "a"}, Then: aID},
			{If: model.Predicate{Field: "kind", Operator: model.OpEquals, Value: "b"}, Then: bID},
		},
	})

	compiled, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if len(compiled.AllOf) != 2 {
		t.Fatalf("Expected one entry per condition, got %d", len(compiled.AllOf))
	}
	if compiled.AllOf[0].Then.Properties["a_details"] == nil {
		t.Errorf("Expected first entry to carry a_details, got %+v", compiled.AllOf[0].Then)
	}
	if compiled.AllOf[1].Then.Properties["b_details"] == nil {
		t.Errorf("Expected second entry to carry b_details, got %+v", compiled.AllOf[1].Then)
	}
}

func TestCompile_StrictCombinatorSynthesizesElse(t *testing.T) {
	g := graph.New()
	g, groupID := mustAdd(t, g, &model.SchemaNode{Type: model.NodeConditionalGroup, Key: "group", Combinator: model.CombinatorOneOf}, "", "")
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Title: "Details", Key: "details"}, groupID, model.EdgeThen)
	g = mustUpdate(t, g, groupID, map[string]any{
		"conditions": []model.Condition{
			{If: model.Predicate{Field: "mode", Operator: model.OpEquals, Value: "x"}},
		},
	})

	compiled, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if len(compiled.OneOf) != 1 {
		t.Fatalf("Expected the group under oneOf, got %+v", compiled)
	}
	entry := compiled.OneOf[0]
	if entry.Else == nil || entry.Else.Not == nil || !entry.Else.Not.IsEmpty() {
		t.Errorf("Expected synthetic else not:{}, got %+v", entry.Else)
	}
}

func TestCompile_MixedCombinatorsWrapEachGroup(t *testing.T) {
	g := graph.New()

	g, g1 := mustAdd(t, g, &model.SchemaNode{Type: model.NodeConditionalGroup, Key: "g1", Combinator: model.CombinatorAllOf}, "", "")
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Key: "x", Title: "X"}, g1, model.EdgeThen)
	g = mustUpdate(t, g, g1, map[string]any{
		"conditions": []model.Condition{{If: model.Predicate{Field: "a", Operator: model.OpEquals, Value: 1}}},
	})

	g, g2 := mustAdd(t, g, &model.SchemaNode{Type: model.NodeConditionalGroup, Key: "g2", Combinator: model.CombinatorAnyOf}, "", "")
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Key: "y", Title: "Y"}, g2, model.EdgeThen)
	g = mustUpdate(t, g, g2, map[string]any{
		"conditions": []model.Condition{{If: model.Predicate{Field: "b", Operator: model.OpEquals, Value: 2}}},
	})

	compiled, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	// mixed keywords: each group becomes a wrapper entry under allOf
	if len(compiled.AllOf) != 2 {
		t.Fatalf("Expected 2 wrapper entries, got %d", len(compiled.AllOf))
	}
	if compiled.AllOf[0].AllOf == nil {
		t.Errorf("Expected first wrapper to hold the allOf group, got %+v", compiled.AllOf[0])
	}
	if compiled.AllOf[1].AnyOf == nil {
		t.Errorf("Expected second wrapper to hold the anyOf group, got %+v", compiled.AllOf[1])
	}
}

func TestCompile_SameKeywordGroupsConcatenate(t *testing.T) {
	g := graph.New()

	for i, field := range []string{"a", "b"} {
		var groupID string
		g, groupID = mustAdd(t, g, &model.SchemaNode{Type: model.NodeConditionalGroup, Key: "grp"}, "", "")
		g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Key: field + "_details", Title: "Details"}, groupID, model.EdgeThen)
		g = mustUpdate(t, g, groupID, map[string]any{
			"conditions": []model.Condition{{If: model.Predicate{Field: field, Operator: model.OpEquals, Value: i}}},
		})
	}

	compiled, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	// both groups default to allOf, so their entries are spliced together
	if len(compiled.AllOf) != 2 {
		t.Fatalf("Expected 2 spliced entries, got %d", len(compiled.AllOf))
	}
	for _, entry := range compiled.AllOf {
		if entry.If == nil {
			t.Errorf("Expected spliced if/then entries, got %+v", entry)
		}
	}
}

func TestCompile_DefinitionsOnlyWhenReferenced(t *testing.T) {
	g := graph.New()

	g, addrID := mustAdd(t, g, &model.SchemaNode{Type: model.NodeObject, Title: "Address", Key: "address"}, "", "")
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Title: "Street", Key: "street"}, addrID, "")
	var err error
	g, err = g.SaveAsDefinition("address", addrID, true)
	if err != nil {
		t.Fatalf("SaveAsDefinition failed: %v", err)
	}

	// no refs yet: definitions stay out of the document
	compiled, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if compiled.Definitions != nil {
		t.Errorf("Expected no definitions without refs, got %v", compiled.Definitions)
	}

	g, _, err = g.CreateRefToDefinition("address", model.RootID, "home")
	if err != nil {
		t.Fatalf("CreateRefToDefinition failed: %v", err)
	}

	compiled, err = Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	ref := compiled.Properties["home"]
	if ref == nil || ref.Ref != "#/definitions/address" {
		t.Fatalf("Expected $ref property, got %+v", ref)
	}
	def := compiled.Definitions["address"]
	if def == nil || def.Properties["street"] == nil {
		t.Errorf("Expected the referenced definition to be emitted, got %+v", def)
	}
}

func TestCompile_UnresolvedRefFails(t *testing.T) {
	g := graph.New()
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeRef, Key: "broken", Title: "Broken", RefTarget: "missing"}, "", "")

	_, err := Compile(g)
	if err == nil {
		t.Fatal("Expected compile error for unresolved ref")
	}
	if _, ok := err.(*model.CompileError); !ok {
		t.Errorf("Expected CompileError, got %T", err)
	}
}

func TestCompiler_CachesByGraphValue(t *testing.T) {
	g := graph.New()
	g, _ = mustAdd(t, g, &model.SchemaNode{Type: model.NodeString, Title: "Name", Key: "name"}, "", "")

	c := New()
	first, err := c.Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	second, err := c.Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if first != second {
		t.Error("Expected the cached document for an unchanged graph value")
	}

	g2, _ := mustAdd(t, g, &model.SchemaNode{Type: model.NodeNumber, Title: "Age", Key: "age"}, "", "")
	third, err := c.Compile(g2)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if third == first {
		t.Error("Expected a fresh document for a new graph value")
	}
	if len(third.Properties) != 2 {
		t.Errorf("Expected the new graph value to compile both properties, got %d", len(third.Properties))
	}
}

func TestCompiler_SiblingSuccessorsDoNotCollide(t *testing.T) {
	// two independent mutations of the same base value share a revision
	// counter; the cache must still keep their documents apart
	base := graph.New()
	gA, _ := mustAdd(t, base, &model.SchemaNode{Type: model.NodeString, Title: "Alpha", Key: "alpha"}, "", "")
	gB, _ := mustAdd(t, base, &model.SchemaNode{Type: model.NodeString, Title: "Beta", Key: "beta"}, "", "")
	if gA.Revision() != gB.Revision() {
		t.Fatalf("Expected sibling successors to share a revision, got %d and %d", gA.Revision(), gB.Revision())
	}

	c := New()
	docA, err := c.Compile(gA)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	docB, err := c.Compile(gB)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if _, ok := docA.Properties["alpha"]; !ok {
		t.Errorf("Expected alpha in the first document, got %v", docA.PropertyOrder)
	}
	if _, ok := docB.Properties["beta"]; !ok {
		t.Errorf("Expected beta in the second document, got %v", docB.PropertyOrder)
	}
	if _, ok := docB.Properties["alpha"]; ok {
		t.Error("Second document leaked the first graph's property")
	}
}

func schemaPtr(v int) *int { return schema.Ptr(v) }
func floatPtr(v float64) *float64 { return schema.Ptr(v) }
