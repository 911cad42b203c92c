package export

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestColumns(t *testing.T) {
	rows := []map[string]any{
		{"slug": "a", "zeta": 1.0},
		{"id": "1", "alpha": true},
	}
	got := Columns(rows, []string{"id", "slug", "missing"})
	want := []string{"id", "slug", "alpha", "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Columns = %v, want %v", got, want)
	}
}

func TestCSV(t *testing.T) {
	rows := []map[string]any{
		{"id": "1", "question": `Will "BTC" hit 100k, or not?`, "volume": 1234.5},
		{"id": "2", "question": "line\nbreak", "is_open": true},
		{"id": "3", "volume": nil},
	}
	b, err := CSV(rows, []string{"id", "question", "volume"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := strings.Join([]string{
		"id,question,volume,is_open",
		`1,"Will ""BTC"" hit 100k, or not?",1234.5,`,
		"2,\"line\nbreak\",,true",
		"3,,,",
		"",
	}, "\n")
	if string(b) != want {
		t.Errorf("CSV =\n%s\nwant\n%s", b, want)
	}
}

func TestCSVEmpty(t *testing.T) {
	b, err := CSV(nil, nil)
	if err != nil || len(b) != 0 {
		t.Errorf("got %q, %v", b, err)
	}
}

func TestEncodeJSON(t *testing.T) {
	b, err := Encode(FormatJSON, []map[string]any{{"t": 1.0, "p": 0.5}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(b), "\n  {") {
		t.Errorf("not indented: %s", b)
	}
	var back []map[string]float64
	if err := json.Unmarshal(b, &back); err != nil || back[0]["p"] != 0.5 {
		t.Errorf("decode = %v, %v", back, err)
	}

	empty, _ := Encode(FormatJSON, nil, nil)
	if string(empty) != "[]" {
		t.Errorf("empty = %s", empty)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCSV, "csv": FormatCSV, "json": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("xml should be rejected")
	}
}
