package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/playoff-scoring/models"
)

var (
	ErrTeamNotInBracket = errors.New("team not found in any playoff bracket for this run")
	ErrSlotNotFound     = errors.New("playoff bracket slot not found")
	ErrBracketNotFound  = errors.New("playoff bracket not found")
	ErrTeamInTwoSlots   = errors.New("team appears more than once in a playoff round")
)

// PlayoffRepository is the store of bracket slots (playoff_data) and bracket
// metadata (playoff_brackets).
type PlayoffRepository interface {
	// FindSlotForTeam returns the bracket and line the team plays on in run.
	FindSlotForTeam(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int) (string, int, error)
	SlotAt(ctx context.Context, exec SQLExecutor, tournamentID int, bracket string, runNumber, lineNumber int) (*models.BracketSlot, error)
	// TeamAt returns the team on the slot, models.TeamNull for an empty one.
	TeamAt(ctx context.Context, exec SQLExecutor, tournamentID int, bracket string, runNumber, lineNumber int) (int, error)
	// SetTeam assigns team to the slot and clears its printed flag. models.TeamNull empties it.
	SetTeam(ctx context.Context, exec SQLExecutor, tournamentID int, bracket string, runNumber, lineNumber, team int) error
	ListBracket(ctx context.Context, exec SQLExecutor, tournamentID int, bracket string) ([]models.BracketSlot, error)
	GetBracket(ctx context.Context, exec SQLExecutor, tournamentID int, bracket string) (*models.PlayoffBracket, error)
	ListBrackets(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.PlayoffBracket, error)
}

type postgresPlayoffRepository struct {
	db *sql.DB
}

func NewPostgresPlayoffRepository(db *sql.DB) PlayoffRepository {
	return &postgresPlayoffRepository{db: db}
}

func (r *postgresPlayoffRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPlayoffRepository) FindSlotForTeam(ctx context.Context, exec SQLExecutor, tournamentID, teamNumber, runNumber int) (string, int, error) {
	query := `
		SELECT bracket_name, line_number
		FROM playoff_data
		WHERE tournament_id = $1 AND run_number = $2 AND team_number = $3`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID, runNumber, teamNumber)
	if err != nil {
		return "", 0, classifyError(err)
	}
	defer rows.Close()

	var (
		bracket string
		line    int
		found   int
	)
	for rows.Next() {
		if err := rows.Scan(&bracket, &line); err != nil {
			return "", 0, err
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return "", 0, classifyError(err)
	}

	switch found {
	case 0:
		return "", 0, fmt.Errorf("%w: team %d, run %d", ErrTeamNotInBracket, teamNumber, runNumber)
	case 1:
		return bracket, line, nil
	}
	return "", 0, fmt.Errorf("%w: team %d, run %d", ErrTeamInTwoSlots, teamNumber, runNumber)
}

const slotColumns = `bracket_name, tournament_id, run_number, line_number, team_number, printed, assigned_table`

func scanSlot(row rowScanner) (*models.BracketSlot, error) {
	var (
		s     models.BracketSlot
		team  sql.NullInt64
		table sql.NullString
	)
	if err := row.Scan(&s.Bracket, &s.TournamentID, &s.RunNumber, &s.LineNumber, &team, &s.Printed, &table); err != nil {
		return nil, err
	}
	s.TeamNumber = teamFromNull(team)
	if table.Valid {
		t := table.String
		s.AssignedTable = &t
	}
	return &s, nil
}

func (r *postgresPlayoffRepository) SlotAt(ctx context.Context, exec SQLExecutor, tournamentID int, bracket string, runNumber, lineNumber int) (*models.BracketSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM playoff_data
		WHERE bracket_name = $1 AND tournament_id = $2 AND run_number = $3 AND line_number = $4`
	slot, err := scanSlot(r.getExecutor(exec).QueryRowContext(ctx, query, bracket, tournamentID, runNumber, lineNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: bracket %q run %d line %d", ErrSlotNotFound, bracket, runNumber, lineNumber)
		}
		return nil, classifyError(err)
	}
	return slot, nil
}

func (r *postgresPlayoffRepository) TeamAt(ctx context.Context, exec SQLExecutor, tournamentID int, bracket string, runNumber, lineNumber int) (int, error) {
	slot, err := r.SlotAt(ctx, exec, tournamentID, bracket, runNumber, lineNumber)
	if err != nil {
		return models.TeamNull, err
	}
	return slot.TeamNumber, nil
}

func (r *postgresPlayoffRepository) SetTeam(ctx context.Context, exec SQLExecutor, tournamentID int, bracket string, runNumber, lineNumber, team int) error {
	query := `
		UPDATE playoff_data SET team_number = $5, printed = FALSE
		WHERE bracket_name = $1 AND tournament_id = $2 AND run_number = $3 AND line_number = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, bracket, tournamentID, runNumber, lineNumber, teamToNull(team))
	if err != nil {
		return classifyError(err)
	}
	return checkAffectedRows(result, fmt.Errorf("%w: bracket %q run %d line %d", ErrSlotNotFound, bracket, runNumber, lineNumber))
}

func (r *postgresPlayoffRepository) ListBracket(ctx context.Context, exec SQLExecutor, tournamentID int, bracket string) ([]models.BracketSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM playoff_data
		WHERE tournament_id = $1 AND bracket_name = $2
		ORDER BY run_number, line_number`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID, bracket)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var slots []models.BracketSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}
	return slots, nil
}

const bracketColumns = `tournament_id, bracket_name, first_run_number, first_round_size, third_place`

func (r *postgresPlayoffRepository) GetBracket(ctx context.Context, exec SQLExecutor, tournamentID int, bracket string) (*models.PlayoffBracket, error) {
	query := `SELECT ` + bracketColumns + ` FROM playoff_brackets WHERE tournament_id = $1 AND bracket_name = $2`
	var b models.PlayoffBracket
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, bracket).
		Scan(&b.TournamentID, &b.Name, &b.FirstRunNumber, &b.FirstRoundSize, &b.ThirdPlace)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrBracketNotFound, bracket)
		}
		return nil, classifyError(err)
	}
	return &b, nil
}

func (r *postgresPlayoffRepository) ListBrackets(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.PlayoffBracket, error) {
	query := `SELECT ` + bracketColumns + ` FROM playoff_brackets WHERE tournament_id = $1 ORDER BY bracket_name`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var brackets []models.PlayoffBracket
	for rows.Next() {
		var b models.PlayoffBracket
		if err := rows.Scan(&b.TournamentID, &b.Name, &b.FirstRunNumber, &b.FirstRoundSize, &b.ThirdPlace); err != nil {
			return nil, err
		}
		brackets = append(brackets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}
	return brackets, nil
}
