package records

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/proofofsteak/steakboard/internal/categories"
	"github.com/proofofsteak/steakboard/internal/normalize"
)

const (
	DefaultPlaceholder  = "/placeholder.svg"
	defaultCategory     = "steak"
	noLocation          = "Location not provided"
	noReasoning         = "No reasoning provided"
	unknownSubmitter    = "Unknown"
	addressPrefixLength = 6
	addressSuffixLength = 4
)

// Raw is one analysis record as stored by the contract.
type Raw struct {
	ID              int      `json:"id"`
	Category        string   `json:"category,omitempty"`
	OriginalURL     string   `json:"original_url,omitempty"`
	LeaderboardURL  string   `json:"leaderboard_url,omitempty"`
	AnalysisURL     string   `json:"analysis_url,omitempty"`
	LegacyURL       string   `json:"url,omitempty"`
	Name            string   `json:"name,omitempty"`
	Location        string   `json:"location,omitempty"`
	Defense         string   `json:"defense,omitempty"`
	CallerAddress   string   `json:"caller_address,omitempty"`
	ConsensusOutput string   `json:"consensus_output,omitempty"`
	Score           *float64 `json:"score,omitempty"`
	Rank            int      `json:"rank,omitempty"`
}

// FromObject reads a normalized ledger record. Missing or mistyped fields
// are left at their zero values.
func FromObject(obj *normalize.Object) Raw {
	if obj == nil {
		return Raw{}
	}

	raw := Raw{
		Category:        obj.String("category"),
		OriginalURL:     obj.String("original_url"),
		LeaderboardURL:  obj.String("leaderboard_url"),
		AnalysisURL:     obj.String("analysis_url"),
		LegacyURL:       obj.String("url"),
		Name:            obj.String("name"),
		Location:        obj.String("location"),
		Defense:         obj.String("defense"),
		CallerAddress:   obj.String("caller_address"),
		ConsensusOutput: obj.String("consensus_output"),
	}
	if id, ok := obj.Int("id"); ok {
		raw.ID = id
	}
	if rank, ok := obj.Int("rank"); ok {
		raw.Rank = rank
	}
	if score, ok := obj.Number("score"); ok {
		raw.Score = &score
	}
	return raw
}

// Display is the view model rendered by leaderboards and detail pages.
//
// Timestamp is the time the record was transformed, not when it was
// submitted: the contract stores no creation time.
type Display struct {
	ID            int            `json:"id"`
	Category      string         `json:"category"`
	Image         string         `json:"image"`
	OriginalImage string         `json:"originalImage"`
	Name          string         `json:"name"`
	Location      string         `json:"location"`
	Votes         float64        `json:"votes"`
	Score         float64        `json:"score"`
	SubmittedBy   string         `json:"submittedBy"`
	Description   string         `json:"description"`
	Rank          int            `json:"rank,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Raw           Raw            `json:"raw"`
	Consensus     map[string]any `json:"consensus"`
}

// Transformer maps raw records to display records.
type Transformer struct {
	Now         func() time.Time
	Placeholder string
}

func NewTransformer() *Transformer {
	return &Transformer{Now: time.Now, Placeholder: DefaultPlaceholder}
}

// Transform never fails; every field has a fallback.
func (t *Transformer) Transform(raw Raw) Display {
	consensus := ParseConsensus(raw.ConsensusOutput)

	category := firstNonEmpty(raw.Category, stringField(consensus, "category"), defaultCategory)

	name := raw.Name
	if strings.TrimSpace(name) == "" {
		name = categories.Titleize(category) + " Entry"
	}

	placeholder := t.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	image := firstNonEmpty(raw.LeaderboardURL, raw.AnalysisURL, raw.OriginalURL, raw.LegacyURL, placeholder)
	original := firstNonEmpty(raw.OriginalURL, raw.LegacyURL, image)

	score := 0.0
	if v, ok := consensus["score"]; ok && v != nil {
		if f, ok := normalize.Float(v); ok {
			score = f
		} else if raw.Score != nil {
			score = *raw.Score
		}
	} else if raw.Score != nil {
		score = *raw.Score
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}

	return Display{
		ID:            raw.ID,
		Category:      category,
		Image:         image,
		OriginalImage: original,
		Name:          name,
		Location:      firstNonEmpty(raw.Location, noLocation),
		Votes:         score,
		Score:         score,
		SubmittedBy:   TruncateAddress(raw.CallerAddress),
		Description:   firstNonEmpty(stringField(consensus, "reasoning"), noReasoning),
		Rank:          raw.Rank,
		Timestamp:     now(),
		Raw:           raw,
		Consensus:     consensus,
	}
}

// TransformAll transforms records in order.
func (t *Transformer) TransformAll(raws []Raw) []Display {
	out := make([]Display, 0, len(raws))
	for _, r := range raws {
		out = append(out, t.Transform(r))
	}
	return out
}

// ParseConsensus decodes the JSON consensus output. Anything that is not a
// JSON object yields an empty map.
func ParseConsensus(output string) map[string]any {
	out := map[string]any{}
	if strings.TrimSpace(output) == "" {
		return out
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(output), &parsed); err != nil || parsed == nil {
		return out
	}
	return parsed
}

// TruncateAddress shortens a wallet address to 0x1234...abcd for display.
func TruncateAddress(addr string) string {
	if addr == "" {
		return unknownSubmitter
	}
	if len(addr) <= addressPrefixLength+addressSuffixLength {
		return addr
	}
	return addr[:addressPrefixLength] + "..." + addr[len(addr)-addressSuffixLength:]
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
