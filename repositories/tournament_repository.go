package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/Dosada05/playoff-scoring/models"
)

var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrInvalidParameter   = errors.New("invalid tournament parameter value")
)

// globalParametersTournamentID holds parameter defaults shared by all tournaments.
const globalParametersTournamentID = -1

type TournamentRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// GetParameters reads the tournament's parameters, falling back to the
	// global defaults row and then to the built-in defaults.
	GetParameters(ctx context.Context, exec SQLExecutor, id int) (models.TournamentParameters, error)
	SetPerformanceSeedingModified(ctx context.Context, exec SQLExecutor, id int, modified bool) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `
		SELECT tournament_id, name, next_tournament_id, performance_seeding_modified
		FROM tournaments
		WHERE tournament_id = $1`
	var (
		t    models.Tournament
		next sql.NullInt64
	)
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &next, &t.PerformanceSeedingModified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, classifyError(err)
	}
	if next.Valid {
		n := int(next.Int64)
		t.NextTournamentID = &n
	}
	return &t, nil
}

func (r *postgresTournamentRepository) GetParameters(ctx context.Context, exec SQLExecutor, id int) (models.TournamentParameters, error) {
	params := models.DefaultTournamentParameters()

	// Global rows sort first so tournament rows override them.
	query := `
		SELECT param_name, param_value
		FROM tournament_parameters
		WHERE tournament_id = $1 OR tournament_id = $2
		ORDER BY (tournament_id = $1)`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, id, globalParametersTournamentID)
	if err != nil {
		return params, classifyError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return params, err
		}
		if err := applyParameter(&params, name, value); err != nil {
			return params, err
		}
	}
	if err := rows.Err(); err != nil {
		return params, classifyError(err)
	}
	return params, nil
}

func applyParameter(p *models.TournamentParameters, name, value string) error {
	switch name {
	case models.ParamSeedingRounds:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s=%q", ErrInvalidParameter, name, value)
		}
		p.SeedingRounds = n
	case models.ParamStandardizedMean, models.ParamStandardizedSigma:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidParameter, name, value)
		}
		if name == models.ParamStandardizedMean {
			p.StandardizedMean = f
		} else {
			p.StandardizedSigma = f
		}
	}
	return nil
}

func (r *postgresTournamentRepository) SetPerformanceSeedingModified(ctx context.Context, exec SQLExecutor, id int, modified bool) error {
	query := `UPDATE tournaments SET performance_seeding_modified = $2 WHERE tournament_id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id, modified)
	if err != nil {
		return classifyError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
