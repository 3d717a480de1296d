package jsonutil

import "testing"

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fences", `[1,2]`, `[1,2]`},
		{"json fence", "```json\n[1,2]\n```", "[1,2]"},
		{"bare fence", "```\n[1,2]\n```", "[1,2]"},
		{"leading whitespace", "  ```json\n[1]\n```  ", "[1]"},
		{"too short", "```", "```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdownFences(tt.input); got != tt.want {
				t.Errorf("StripMarkdownFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractArray(t *testing.T) {
	got, err := ExtractArray("Here is the result:\n[{\"theme\":\"x\"}]\nThanks!")
	if err != nil {
		t.Fatalf("ExtractArray returned error: %v", err)
	}
	if got != `[{"theme":"x"}]` {
		t.Errorf("ExtractArray = %q", got)
	}
}

func TestExtractArrayErrors(t *testing.T) {
	if _, err := ExtractArray("no json here"); err == nil {
		t.Error("expected error for text without array")
	}
	if _, err := ExtractArray("] backwards ["); err == nil {
		t.Error("expected error when ] precedes [")
	}
}

func TestParseArray(t *testing.T) {
	type item struct {
		Theme string   `json:"theme"`
		Files []string `json:"files"`
	}

	raw := "```json\nSure!\n[{\"theme\":\"Visual Harmony\",\"files\":[\"a.jpg\",\"b.jpg\"]}]\n```"
	items, err := ParseArray[item](raw)
	if err != nil {
		t.Fatalf("ParseArray returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Theme != "Visual Harmony" || len(items[0].Files) != 2 {
		t.Errorf("unexpected item: %+v", items[0])
	}
}

func TestParseArrayInvalidJSON(t *testing.T) {
	if _, err := ParseArray[struct{}]("[{not json}]"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
