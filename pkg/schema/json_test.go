package schema

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestMarshal_PropertyOrder(t *testing.T) {
	s := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"age":   {Type: "number"},
			"name":  {Type: "string"},
			"email": {Type: "string"},
		},
		PropertyOrder: []string{"name", "age", "email"},
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	out := string(data)
	nameIdx := strings.Index(out, `"name"`)
	ageIdx := strings.Index(out, `"age"`)
	emailIdx := strings.Index(out, `"email"`)
	if nameIdx == -1 || ageIdx == -1 || emailIdx == -1 {
		t.Fatalf("Expected all properties in output, got %s", out)
	}
	if !(nameIdx < ageIdx && ageIdx < emailIdx) {
		t.Errorf("Expected declared order name < age < email, got %s", out)
	}
}

func TestMarshal_UnorderedKeysAppendedSorted(t *testing.T) {
	s := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"zeta":  {Type: "string"},
			"alpha": {Type: "string"},
			"first": {Type: "string"},
		},
		PropertyOrder: []string{"first"},
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	out := string(data)
	firstIdx := strings.Index(out, `"first"`)
	alphaIdx := strings.Index(out, `"alpha"`)
	zetaIdx := strings.Index(out, `"zeta"`)
	if !(firstIdx < alphaIdx && alphaIdx < zetaIdx) {
		t.Errorf("Expected ordered key first, then alpha/zeta sorted, got %s", out)
	}
}

func TestUnmarshal_RecoversPropertyOrder(t *testing.T) {
	doc := `{
		"type": "object",
		"properties": {
			"zebra": {"type": "string"},
			"apple": {"type": "number"},
			"mango": {"type": "boolean"}
		}
	}`

	var s Schema
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	expected := []string{"zebra", "apple", "mango"}
	if len(s.PropertyOrder) != len(expected) {
		t.Fatalf("Expected %d ordered keys, got %v", len(expected), s.PropertyOrder)
	}
	for i, name := range expected {
		if s.PropertyOrder[i] != name {
			t.Errorf("Position %d: expected %q, got %q", i, name, s.PropertyOrder[i])
		}
	}
}

func TestUnmarshal_CollectsUnknownKeywords(t *testing.T) {
	doc := `{
		"type": "string",
		"contentEncoding": "base64",
		"x-vendor": true
	}`

	var s Schema
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if len(s.Unknown) != 2 {
		t.Fatalf("Expected 2 unknown keywords, got %v", s.Unknown)
	}
	found := map[string]bool{}
	for _, kw := range s.Unknown {
		found[kw] = true
	}
	if !found["contentEncoding"] || !found["x-vendor"] {
		t.Errorf("Expected contentEncoding and x-vendor reported, got %v", s.Unknown)
	}
}

func TestUnmarshal_BareBooleanSchemas(t *testing.T) {
	var accept Schema
	if err := json.Unmarshal([]byte(`true`), &accept); err != nil {
		t.Fatalf("Unmarshal true failed: %v", err)
	}
	if !accept.IsEmpty() {
		t.Error("Expected true to decode as the empty schema")
	}

	var reject Schema
	if err := json.Unmarshal([]byte(`false`), &reject); err != nil {
		t.Fatalf("Unmarshal false failed: %v", err)
	}
	if reject.Not == nil || !reject.Not.IsEmpty() {
		t.Error("Expected false to decode as not:{}")
	}
}

func TestRoundTrip_KeepsOrder(t *testing.T) {
	doc := `{"type":"object","properties":{"c":{"type":"string"},"a":{"type":"string"},"b":{"type":"string"}}}`

	var s Schema
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	data, err := json.Marshal(&s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	out := string(data)
	cIdx := strings.Index(out, `"c"`)
	aIdx := strings.Index(out, `"a"`)
	bIdx := strings.Index(out, `"b"`)
	if !(cIdx < aIdx && aIdx < bIdx) {
		t.Errorf("Expected declared order c < a < b to survive the round trip, got %s", out)
	}
}

func TestNotAnything(t *testing.T) {
	data, err := json.Marshal(NotAnything())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"not":{}}` {
		t.Errorf("Expected {\"not\":{}}, got %s", data)
	}
}
