package models

import "time"

// Category name used for the performance portion of summaries.
const PerformanceCategory = "performance"

// FinalComputedScore is the summarized score of a team in one category.
type FinalComputedScore struct {
	TournamentID      int      `json:"tournament_id" db:"tournament_id"`
	Category          string   `json:"category" db:"category"`
	TeamNumber        int      `json:"team_number" db:"team_number"`
	RawScore          *float64 `json:"raw_score,omitempty" db:"raw_score"`
	StandardizedScore *float64 `json:"standardized_score,omitempty" db:"standardized_score"`
	ScoreGroup        string   `json:"score_group" db:"score_group"`
}

type OverallScore struct {
	TournamentID int     `json:"tournament_id" db:"tournament_id"`
	TeamNumber   int     `json:"team_number" db:"team_number"`
	OverallScore float64 `json:"overall_score" db:"overall_score"`
}

// TournamentSummary is everything Summarize writes for one tournament.
type TournamentSummary struct {
	TournamentID int                  `json:"tournament_id"`
	ComputedAt   time.Time            `json:"computed_at"`
	Scores       []FinalComputedScore `json:"scores"`
	Overall      []OverallScore       `json:"overall"`
}
