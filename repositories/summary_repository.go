package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/playoff-scoring/models"
)

// SummaryRepository stores the derived tables final_computed_scores and
// overall_scores.
type SummaryRepository interface {
	// Replace rewrites both tables for the summary's tournament. Call it inside a transaction.
	Replace(ctx context.Context, exec SQLExecutor, summary *models.TournamentSummary) error
	ListFinalScores(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.FinalComputedScore, error)
	ListOverallScores(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.OverallScore, error)
}

type postgresSummaryRepository struct {
	db *sql.DB
}

func NewPostgresSummaryRepository(db *sql.DB) SummaryRepository {
	return &postgresSummaryRepository{db: db}
}

func (r *postgresSummaryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSummaryRepository) Replace(ctx context.Context, exec SQLExecutor, summary *models.TournamentSummary) error {
	executor := r.getExecutor(exec)
	id := summary.TournamentID

	if _, err := executor.ExecContext(ctx, `DELETE FROM final_computed_scores WHERE tournament_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear final computed scores: %w", classifyError(err))
	}
	if _, err := executor.ExecContext(ctx, `DELETE FROM overall_scores WHERE tournament_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear overall scores: %w", classifyError(err))
	}

	for _, s := range summary.Scores {
		_, err := executor.ExecContext(ctx, `
			INSERT INTO final_computed_scores (tournament_id, category, team_number, raw_score, standardized_score, score_group)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, s.Category, s.TeamNumber, nullFloat(s.RawScore), nullFloat(s.StandardizedScore), s.ScoreGroup)
		if err != nil {
			return fmt.Errorf("failed to insert final score for team %d in %s: %w", s.TeamNumber, s.Category, classifyError(err))
		}
	}
	for _, o := range summary.Overall {
		_, err := executor.ExecContext(ctx, `
			INSERT INTO overall_scores (tournament_id, team_number, overall_score) VALUES ($1, $2, $3)`,
			id, o.TeamNumber, o.OverallScore)
		if err != nil {
			return fmt.Errorf("failed to insert overall score for team %d: %w", o.TeamNumber, classifyError(err))
		}
	}
	return nil
}

func (r *postgresSummaryRepository) ListFinalScores(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.FinalComputedScore, error) {
	query := `
		SELECT tournament_id, category, team_number, raw_score, standardized_score, score_group
		FROM final_computed_scores
		WHERE tournament_id = $1
		ORDER BY category, team_number`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var scores []models.FinalComputedScore
	for rows.Next() {
		var (
			s             models.FinalComputedScore
			raw, standard sql.NullFloat64
		)
		if err := rows.Scan(&s.TournamentID, &s.Category, &s.TeamNumber, &raw, &standard, &s.ScoreGroup); err != nil {
			return nil, err
		}
		s.RawScore = floatPtr(raw)
		s.StandardizedScore = floatPtr(standard)
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}
	return scores, nil
}

func (r *postgresSummaryRepository) ListOverallScores(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.OverallScore, error) {
	query := `
		SELECT tournament_id, team_number, overall_score
		FROM overall_scores
		WHERE tournament_id = $1
		ORDER BY team_number`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var scores []models.OverallScore
	for rows.Next() {
		var o models.OverallScore
		if err := rows.Scan(&o.TournamentID, &o.TeamNumber, &o.OverallScore); err != nil {
			return nil, err
		}
		scores = append(scores, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}
	return scores, nil
}
