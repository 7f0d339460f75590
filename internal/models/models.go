package models

import "time"

// PendingSubmission is a write the ledger has accepted for processing but
// whose consensus outcome is not known yet.
type PendingSubmission struct {
	Handle       string     `json:"handle"`
	SubmissionID string     `json:"submission_id"`
	Identity     string     `json:"identity"`
	Submission   Submission `json:"submission"`
	Status       string     `json:"status"`
	Accepted     *bool      `json:"accepted,omitempty"`
	Error        string     `json:"error,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// Resolved reports whether the poller reached a final answer.
func (p *PendingSubmission) Resolved() bool {
	return p.Accepted != nil
}

// Submission holds the fields sent to the analyzer contract.
type Submission struct {
	OriginalURL    string `json:"original_url"`
	LeaderboardURL string `json:"leaderboard_url"`
	AnalysisURL    string `json:"analysis_url"`
	Defense        string `json:"defense"`
	Name           string `json:"name"`
	Location       string `json:"location"`
}

// UploadedImage represents an image stored by the upload backend
type UploadedImage struct {
	PublicID       string            `json:"public_id"`
	OriginalURL    string            `json:"original_url"`
	LeaderboardURL string            `json:"leaderboard_url"`
	PreviewURL     string            `json:"preview_url"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	Format         string            `json:"format"`
	Bytes          int               `json:"bytes"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}
