package categories

import "testing"

func TestTitleize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "steak", expected: "Steak"},
		{input: "easter_eggs", expected: "Easter Eggs"},
		{input: "FUTBOL", expected: "Futbol"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Titleize(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	if got := Lookup("mate").Emoji; got != "🧉" {
		t.Errorf("Expected mate emoji, got %s", got)
	}
	if got := Lookup("pizza").ID; got != "steak" {
		t.Errorf("Expected unknown category to resolve to steak, got %s", got)
	}
	if Valid("pizza") {
		t.Error("Expected pizza to be invalid")
	}
	if CatchAll() != "easter_eggs" {
		t.Errorf("Expected easter_eggs catch-all, got %s", CatchAll())
	}
}

func TestAllKeepsFileOrder(t *testing.T) {
	all := All()
	if len(all) != 6 {
		t.Fatalf("Expected 6 categories, got %d", len(all))
	}
	if all[0].ID != "steak" || all[5].ID != "easter_eggs" {
		t.Errorf("Unexpected order: first=%s last=%s", all[0].ID, all[5].ID)
	}
	for _, c := range all {
		if !Valid(c.Next) {
			t.Errorf("Category %s links to unknown next category %q", c.ID, c.Next)
		}
	}
}

func TestParseRejectsMissingDefault(t *testing.T) {
	_, err := Parse([]byte("default: pizza\ncategories:\n  - id: steak\n"))
	if err == nil {
		t.Error("Expected error for undefined default category")
	}
}
