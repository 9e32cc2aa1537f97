package json

import "testing"

func TestNormalizeStruct(t *testing.T) {
	type inner struct {
		Name string `json:"name"`
	}
	out, err := Normalize(struct {
		Function inner `json:"function"`
		Count    int   `json:"count"`
	}{Function: inner{Name: "transfer"}, Count: 2})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", out)
	}
	fn, _ := m["function"].(map[string]any)
	if fn["name"] != "transfer" || m["count"] != float64(2) {
		t.Fatalf("unexpected normalized value: %#v", m)
	}
}

func TestStringify(t *testing.T) {
	s, err := Stringify(map[string]any{"ok": true})
	if err != nil || s != `{"ok":true}` {
		t.Fatalf("stringify = %q, %v", s, err)
	}
}
