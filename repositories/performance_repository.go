package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/playoff-scoring/models"
)

var (
	ErrPerformanceScoreNotFound = errors.New("performance score not found")
	ErrPerformanceScoreConflict = errors.New("performance score already exists for this team and run")
)

type PerformanceRepository interface {
	Insert(ctx context.Context, exec SQLExecutor, score *models.PerformanceScore) error
	// Update returns the number of rows changed, zero when the row does not exist.
	Update(ctx context.Context, exec SQLExecutor, score *models.PerformanceScore) (int64, error)
	// Upsert writes the score in one statement and reports whether a new row was inserted.
	Upsert(ctx context.Context, exec SQLExecutor, score *models.PerformanceScore) (bool, error)
	Get(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int) (*models.PerformanceScore, error)
	GetComputedTotal(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int) (*float64, error)
	Exists(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int) (bool, error)
	Delete(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.PerformanceScore, error)
	UpdateComputedTotal(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int, total *float64) error
}

type postgresPerformanceRepository struct {
	db *sql.DB
}

func NewPostgresPerformanceRepository(db *sql.DB) PerformanceRepository {
	return &postgresPerformanceRepository{db: db}
}

func (r *postgresPerformanceRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const performanceColumns = `tournament_id, team_number, run_number, raw_values, computed_total, no_show, bye, verified, ts`

func (r *postgresPerformanceRepository) Insert(ctx context.Context, exec SQLExecutor, s *models.PerformanceScore) error {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	query := `INSERT INTO performance (` + performanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		s.TournamentID, s.TeamNumber, s.RunNumber, s.Raw, nullFloat(s.ComputedTotal),
		s.NoShow, s.Bye, s.Verified, s.Timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPerformanceScoreConflict
		}
		return classifyError(err)
	}
	return nil
}

func (r *postgresPerformanceRepository) Update(ctx context.Context, exec SQLExecutor, s *models.PerformanceScore) (int64, error) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	query := `
		UPDATE performance
		SET raw_values = $4, computed_total = $5, no_show = $6, bye = $7, verified = $8, ts = $9
		WHERE tournament_id = $1 AND team_number = $2 AND run_number = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		s.TournamentID, s.TeamNumber, s.RunNumber, s.Raw, nullFloat(s.ComputedTotal),
		s.NoShow, s.Bye, s.Verified, s.Timestamp,
	)
	if err != nil {
		return 0, classifyError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}

func (r *postgresPerformanceRepository) Upsert(ctx context.Context, exec SQLExecutor, s *models.PerformanceScore) (bool, error) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	// xmax is zero only for a freshly inserted tuple.
	query := `
		INSERT INTO performance (` + performanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tournament_id, team_number, run_number) DO UPDATE
		SET raw_values = EXCLUDED.raw_values,
		    computed_total = EXCLUDED.computed_total,
		    no_show = EXCLUDED.no_show,
		    bye = EXCLUDED.bye,
		    verified = EXCLUDED.verified,
		    ts = EXCLUDED.ts
		RETURNING (xmax = 0)`
	var inserted bool
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		s.TournamentID, s.TeamNumber, s.RunNumber, s.Raw, nullFloat(s.ComputedTotal),
		s.NoShow, s.Bye, s.Verified, s.Timestamp,
	).Scan(&inserted)
	if err != nil {
		return false, classifyError(err)
	}
	return inserted, nil
}

func (r *postgresPerformanceRepository) scanScore(row rowScanner) (*models.PerformanceScore, error) {
	var (
		s     models.PerformanceScore
		total sql.NullFloat64
	)
	err := row.Scan(&s.TournamentID, &s.TeamNumber, &s.RunNumber, &s.Raw, &total,
		&s.NoShow, &s.Bye, &s.Verified, &s.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPerformanceScoreNotFound
		}
		return nil, classifyError(err)
	}
	s.ComputedTotal = floatPtr(total)
	return &s, nil
}

func (r *postgresPerformanceRepository) Get(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int) (*models.PerformanceScore, error) {
	query := `SELECT ` + performanceColumns + ` FROM performance
		WHERE tournament_id = $1 AND team_number = $2 AND run_number = $3`
	return r.scanScore(r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, teamNumber, runNumber))
}

func (r *postgresPerformanceRepository) GetComputedTotal(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int) (*float64, error) {
	query := `SELECT computed_total FROM performance
		WHERE tournament_id = $1 AND team_number = $2 AND run_number = $3`
	var total sql.NullFloat64
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, teamNumber, runNumber).Scan(&total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classifyError(err)
	}
	return floatPtr(total), nil
}

func (r *postgresPerformanceRepository) Exists(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM performance
		WHERE tournament_id = $1 AND team_number = $2 AND run_number = $3)`
	var exists bool
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, teamNumber, runNumber).Scan(&exists); err != nil {
		return false, classifyError(err)
	}
	return exists, nil
}

func (r *postgresPerformanceRepository) Delete(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int) error {
	query := `DELETE FROM performance WHERE tournament_id = $1 AND team_number = $2 AND run_number = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, tournamentID, teamNumber, runNumber)
	if err != nil {
		return classifyError(err)
	}
	return checkAffectedRows(result, ErrPerformanceScoreNotFound)
}

func (r *postgresPerformanceRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.PerformanceScore, error) {
	query := `SELECT ` + performanceColumns + ` FROM performance
		WHERE tournament_id = $1
		ORDER BY team_number, run_number`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var scores []models.PerformanceScore
	for rows.Next() {
		s, err := r.scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}
	return scores, nil
}

func (r *postgresPerformanceRepository) UpdateComputedTotal(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int, total *float64) error {
	query := `UPDATE performance SET computed_total = $4
		WHERE tournament_id = $1 AND team_number = $2 AND run_number = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, tournamentID, teamNumber, runNumber, nullFloat(total))
	if err != nil {
		return classifyError(err)
	}
	return checkAffectedRows(result, ErrPerformanceScoreNotFound)
}
