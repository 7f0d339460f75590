package records

import (
	"testing"
	"time"

	"github.com/proofofsteak/steakboard/internal/normalize"
)

var fixedNow = time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)

func newTestTransformer() *Transformer {
	return &Transformer{Now: func() time.Time { return fixedNow }}
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestTransformFullRecord(t *testing.T) {
	raw := Raw{
		ID:              42,
		OriginalURL:     "https://img/original.jpg",
		LeaderboardURL:  "https://img/leaderboard.jpg",
		AnalysisURL:     "https://img/analysis.jpg",
		Name:            "Vacío at La Cabrera",
		Location:        "Palermo",
		CallerAddress:   "0x1234567890abcdef1234567890abcdef12345678",
		ConsensusOutput: `{"category":"steak","has_match":true,"score":912,"reasoning":"Perfect crust 🔥"}`,
		Score:           floatPtr(900),
		Rank:            1,
	}

	got := newTestTransformer().Transform(raw)

	if got.Image != "https://img/leaderboard.jpg" {
		t.Errorf("Expected leaderboard image, got %s", got.Image)
	}
	if got.OriginalImage != "https://img/original.jpg" {
		t.Errorf("Expected original image, got %s", got.OriginalImage)
	}
	if got.Votes != 912 || got.Score != 912 {
		t.Errorf("Expected consensus score 912 to win, got votes=%v score=%v", got.Votes, got.Score)
	}
	if got.SubmittedBy != "0x1234...5678" {
		t.Errorf("Expected truncated address, got %s", got.SubmittedBy)
	}
	if got.Description != "Perfect crust 🔥" {
		t.Errorf("Expected reasoning, got %s", got.Description)
	}
	if got.Category != "steak" || got.Rank != 1 {
		t.Errorf("Unexpected category/rank: %s/%d", got.Category, got.Rank)
	}
	if !got.Timestamp.Equal(fixedNow) {
		t.Errorf("Expected transform-time timestamp, got %v", got.Timestamp)
	}
	if got.Raw.ID != 42 || got.Consensus["has_match"] != true {
		t.Errorf("Expected raw record and consensus to be retained")
	}
}

func TestTransformNeverFails(t *testing.T) {
	tests := []struct {
		name      string
		consensus string
	}{
		{name: "absent", consensus: ""},
		{name: "whitespace", consensus: "   "},
		{name: "invalid json", consensus: "{not json"},
		{name: "json array", consensus: "[1,2,3]"},
		{name: "json null", consensus: "null"},
		{name: "json string", consensus: `"steak"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestTransformer().Transform(Raw{ConsensusOutput: tt.consensus})

			if got.Name != "Steak Entry" {
				t.Errorf("Expected name Steak Entry, got %q", got.Name)
			}
			if got.Location != "Location not provided" {
				t.Errorf("Expected location fallback, got %q", got.Location)
			}
			if got.Votes != 0 {
				t.Errorf("Expected 0 votes, got %v", got.Votes)
			}
			if got.SubmittedBy != "Unknown" {
				t.Errorf("Expected Unknown submitter, got %q", got.SubmittedBy)
			}
			if got.Description != "No reasoning provided" {
				t.Errorf("Expected reasoning fallback, got %q", got.Description)
			}
			if got.Image != DefaultPlaceholder {
				t.Errorf("Expected placeholder image, got %q", got.Image)
			}
			if got.Consensus == nil || len(got.Consensus) != 0 {
				t.Errorf("Expected empty consensus map, got %v", got.Consensus)
			}
		})
	}
}

func TestTransformFallbackChains(t *testing.T) {
	tests := []struct {
		name          string
		raw           Raw
		expectedName  string
		expectedImage string
		expectedVotes float64
	}{
		{
			name:          "category from consensus titleized",
			raw:           Raw{ConsensusOutput: `{"category":"easter_eggs"}`},
			expectedName:  "Easter Eggs Entry",
			expectedImage: DefaultPlaceholder,
		},
		{
			name:          "explicit category wins over consensus",
			raw:           Raw{Category: "mate", ConsensusOutput: `{"category":"steak"}`},
			expectedName:  "Mate Entry",
			expectedImage: DefaultPlaceholder,
		},
		{
			name:          "record score when consensus has none",
			raw:           Raw{Score: floatPtr(450), AnalysisURL: "https://img/a.jpg"},
			expectedName:  "Steak Entry",
			expectedImage: "https://img/a.jpg",
			expectedVotes: 450,
		},
		{
			name:          "legacy url for old records",
			raw:           Raw{LegacyURL: "https://img/legacy.jpg"},
			expectedName:  "Steak Entry",
			expectedImage: "https://img/legacy.jpg",
		},
		{
			name:          "null consensus score falls back",
			raw:           Raw{ConsensusOutput: `{"score":null}`, Score: floatPtr(12)},
			expectedName:  "Steak Entry",
			expectedImage: DefaultPlaceholder,
			expectedVotes: 12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestTransformer().Transform(tt.raw)
			if got.Name != tt.expectedName {
				t.Errorf("Expected name %q, got %q", tt.expectedName, got.Name)
			}
			if got.Image != tt.expectedImage {
				t.Errorf("Expected image %q, got %q", tt.expectedImage, got.Image)
			}
			if got.Votes != tt.expectedVotes {
				t.Errorf("Expected votes %v, got %v", tt.expectedVotes, got.Votes)
			}
		})
	}
}

func TestMalformedConsensusWithoutScore(t *testing.T) {
	got := newTestTransformer().Transform(Raw{ConsensusOutput: "{not json"})
	if got.Description != "No reasoning provided" || got.Votes != 0 {
		t.Errorf("Expected fallbacks, got description=%q votes=%v", got.Description, got.Votes)
	}
}

func TestTruncateAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "", expected: "Unknown"},
		{input: "0xabc", expected: "0xabc"},
		{input: "0x12345678", expected: "0x12345678"},
		{input: "0x12345678901", expected: "0x1234...8901"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := TruncateAddress(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFromObject(t *testing.T) {
	obj := normalize.NewObject()
	obj.Set("id", 7.0)
	obj.Set("name", "Entraña")
	obj.Set("score", "640")
	obj.Set("rank", 3.0)
	obj.Set("caller_address", "0xabcdef0123456789abcdef0123456789abcdef01")
	obj.Set("consensus_output", `{"score":640}`)

	raw := FromObject(obj)
	if raw.ID != 7 || raw.Rank != 3 {
		t.Errorf("Expected id=7 rank=3, got id=%d rank=%d", raw.ID, raw.Rank)
	}
	if raw.Score == nil || *raw.Score != 640 {
		t.Errorf("Expected numeric-string score 640, got %v", raw.Score)
	}
	if raw.Name != "Entraña" {
		t.Errorf("Expected name, got %s", raw.Name)
	}

	if empty := FromObject(nil); empty.ID != 0 || empty.Score != nil {
		t.Errorf("Expected zero Raw for nil object, got %+v", empty)
	}
}
