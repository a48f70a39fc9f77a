package donut

import (
	"encoding/json"
	"testing"
)

func TestStatSet_UnmarshalJSON_object_keeps_order(t *testing.T) {
	var s StatSet
	if err := json.Unmarshal([]byte(`{"revenue": 500, "population": 1500, "growth": 0}`), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := []string{"revenue", "population", "growth"}
	if len(s) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(s))
	}
	for i, cat := range want {
		if s[i].Category != cat {
			t.Errorf("entry %d: got %q want %q", i, s[i].Category, cat)
		}
	}
	if s[1].Value != 1500 {
		t.Errorf("population: got %v", s[1].Value)
	}
}

func TestStatSet_UnmarshalJSON_array(t *testing.T) {
	var s StatSet
	if err := json.Unmarshal([]byte(`[{"category":"a","value":1},{"category":"b","value":2.5}]`), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(s) != 2 || s[0].Category != "a" || s[1].Value != 2.5 {
		t.Errorf("unexpected stat set %v", s)
	}
}

func TestStatSet_UnmarshalJSON_rejects_non_numeric(t *testing.T) {
	var s StatSet
	if err := json.Unmarshal([]byte(`{"a": "lots"}`), &s); err == nil {
		t.Error("expected error for string value")
	}
	if err := json.Unmarshal([]byte(`"a"`), &s); err == nil {
		t.Error("expected error for bare string")
	}
}

func TestStatSet_MarshalJSON_keeps_order(t *testing.T) {
	s := StatSet{{Category: "z", Value: 1}, {Category: "a", Value: 2}}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"z":1,"a":2}` {
		t.Errorf("got %s", b)
	}
}

func TestStatSet_Total(t *testing.T) {
	s := StatSet{{Category: "a", Value: 1.5}, {Category: "b", Value: 2.5}}
	if s.Total() != 4 {
		t.Errorf("Total: got %v want 4", s.Total())
	}
}
