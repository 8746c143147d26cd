package models

// PlayoffBracket describes one single-elimination bracket of a tournament.
type PlayoffBracket struct {
	TournamentID   int    `json:"tournament_id" db:"tournament_id"`
	Name           string `json:"bracket_name" db:"bracket_name"`
	FirstRunNumber int    `json:"first_run_number" db:"first_run_number"`
	FirstRoundSize int    `json:"first_round_size" db:"first_round_size"` // power of two, padded with byes
	ThirdPlace     bool   `json:"third_place" db:"third_place"`
}

// BracketSlot is one line of one round of a bracket. The round is identified
// by the performance run number it is played in.
type BracketSlot struct {
	Bracket       string  `json:"bracket_name" db:"bracket_name"`
	TournamentID  int     `json:"tournament_id" db:"tournament_id"`
	RunNumber     int     `json:"run_number" db:"run_number"`
	LineNumber    int     `json:"line_number" db:"line_number"`
	TeamNumber    int     `json:"team_number" db:"team_number"` // TeamNull when empty
	Printed       bool    `json:"printed" db:"printed"`
	AssignedTable *string `json:"assigned_table,omitempty" db:"assigned_table"`
}

func (s BracketSlot) IsEmpty() bool {
	return s.TeamNumber == TeamNull
}
