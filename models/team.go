package models

// Reserved team numbers. They are never assigned to a real team.
const (
	TeamBye  = -1 // opponent slot filled by a bye
	TeamNull = -2 // empty slot, stored as NULL
	TeamTie  = -3 // unresolved tie, a human has to pick the winner
)

// IsInternalTeam reports whether teamNumber is one of the reserved sentinels.
func IsInternalTeam(teamNumber int) bool {
	return teamNumber == TeamBye || teamNumber == TeamNull || teamNumber == TeamTie
}

type Team struct {
	TeamNumber   int     `json:"team_number" db:"team_number"`
	Name         string  `json:"team_name" db:"team_name"`
	Organization *string `json:"organization,omitempty" db:"organization"`
}

// TournamentTeam is a team's registration in one tournament.
type TournamentTeam struct {
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	TeamNumber   int    `json:"team_number" db:"team_number"`
	AwardGroup   string `json:"award_group" db:"award_group"`
	JudgingGroup string `json:"judging_group" db:"judging_group"`

	Team *Team `json:"team,omitempty" db:"-"`
}
