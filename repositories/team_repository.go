package repositories

import (
	"context"
	"database/sql"

	"github.com/Dosada05/playoff-scoring/models"
)

// Judge is a judge registered for a subjective category.
type Judge struct {
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	Category     string `json:"category" db:"category"`
	JudgeID      string `json:"judge_id" db:"judge_id"`
	JudgingGroup string `json:"judging_group" db:"judging_group"`
}

type TeamRepository interface {
	ListTournamentTeams(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.TournamentTeam, error)
	ListJudges(ctx context.Context, exec SQLExecutor, tournamentID int) ([]Judge, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) ListTournamentTeams(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.TournamentTeam, error) {
	query := `
		SELECT tt.tournament_id, tt.team_number, tt.award_group, tt.judging_group,
		       t.team_number, t.team_name, t.organization
		FROM tournament_teams tt
		JOIN teams t ON t.team_number = tt.team_number
		WHERE tt.tournament_id = $1
		ORDER BY tt.team_number`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var teams []models.TournamentTeam
	for rows.Next() {
		var (
			tt  models.TournamentTeam
			t   models.Team
			org sql.NullString
		)
		if err := rows.Scan(&tt.TournamentID, &tt.TeamNumber, &tt.AwardGroup, &tt.JudgingGroup,
			&t.TeamNumber, &t.Name, &org); err != nil {
			return nil, err
		}
		if org.Valid {
			o := org.String
			t.Organization = &o
		}
		tt.Team = &t
		teams = append(teams, tt)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}
	return teams, nil
}

func (r *postgresTeamRepository) ListJudges(ctx context.Context, exec SQLExecutor, tournamentID int) ([]Judge, error) {
	query := `
		SELECT tournament_id, category, judge_id, judging_group
		FROM judges
		WHERE tournament_id = $1
		ORDER BY category, judge_id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var judges []Judge
	for rows.Next() {
		var j Judge
		if err := rows.Scan(&j.TournamentID, &j.Category, &j.JudgeID, &j.JudgingGroup); err != nil {
			return nil, err
		}
		judges = append(judges, j)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}
	return judges, nil
}
