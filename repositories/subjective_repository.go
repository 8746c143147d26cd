package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/playoff-scoring/models"
)

var ErrSubjectiveScoreNotFound = errors.New("subjective score not found")

type SubjectiveRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, score *models.SubjectiveScore) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.SubjectiveScore, error)
	UpdateComputedTotal(ctx context.Context, exec SQLExecutor, score models.SubjectiveScore, total *float64) error
}

type postgresSubjectiveRepository struct {
	db *sql.DB
}

func NewPostgresSubjectiveRepository(db *sql.DB) SubjectiveRepository {
	return &postgresSubjectiveRepository{db: db}
}

func (r *postgresSubjectiveRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSubjectiveRepository) Upsert(ctx context.Context, exec SQLExecutor, s *models.SubjectiveScore) error {
	query := `
		INSERT INTO subjective_scores (tournament_id, category, team_number, judge_id, raw_values, computed_total, no_show)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tournament_id, category, team_number, judge_id) DO UPDATE
		SET raw_values = EXCLUDED.raw_values,
		    computed_total = EXCLUDED.computed_total,
		    no_show = EXCLUDED.no_show`
	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		s.TournamentID, s.Category, s.TeamNumber, s.JudgeID, s.Raw, nullFloat(s.ComputedTotal), s.NoShow)
	return classifyError(err)
}

func (r *postgresSubjectiveRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.SubjectiveScore, error) {
	query := `
		SELECT tournament_id, category, team_number, judge_id, raw_values, computed_total, no_show
		FROM subjective_scores
		WHERE tournament_id = $1
		ORDER BY category, team_number, judge_id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var scores []models.SubjectiveScore
	for rows.Next() {
		var (
			s     models.SubjectiveScore
			total sql.NullFloat64
		)
		if err := rows.Scan(&s.TournamentID, &s.Category, &s.TeamNumber, &s.JudgeID, &s.Raw, &total, &s.NoShow); err != nil {
			return nil, err
		}
		s.ComputedTotal = floatPtr(total)
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}
	return scores, nil
}

func (r *postgresSubjectiveRepository) UpdateComputedTotal(ctx context.Context, exec SQLExecutor, s models.SubjectiveScore, total *float64) error {
	query := `UPDATE subjective_scores SET computed_total = $5
		WHERE tournament_id = $1 AND category = $2 AND team_number = $3 AND judge_id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, s.TournamentID, s.Category, s.TeamNumber, s.JudgeID, nullFloat(total))
	if err != nil {
		return classifyError(err)
	}
	return checkAffectedRows(result, ErrSubjectiveScoreNotFound)
}
