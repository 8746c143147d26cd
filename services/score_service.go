package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/playoff-scoring/brackets"
	"github.com/Dosada05/playoff-scoring/challenge"
	"github.com/Dosada05/playoff-scoring/metrics"
	"github.com/Dosada05/playoff-scoring/models"
	"github.com/Dosada05/playoff-scoring/repositories"
	"github.com/Dosada05/playoff-scoring/scoring"
)

type PerformanceScoreInput struct {
	TournamentID int             `json:"-"`
	TeamNumber   int             `json:"-"`
	RunNumber    int             `json:"-"`
	Raw          models.RawScore `json:"raw"`
	NoShow       bool            `json:"no_show"`
	Bye          bool            `json:"bye"`
	Verified     bool            `json:"verified"`
}

type ScoreService interface {
	InsertOrUpdatePerformanceScore(ctx context.Context, input PerformanceScoreInput) (*models.PerformanceScore, error)
	DeletePerformanceScore(ctx context.Context, tournamentID, teamNumber, runNumber int) error
	GetPerformanceScore(ctx context.Context, tournamentID, teamNumber, runNumber int) (*models.PerformanceScore, error)
}

type scoreService struct {
	tx          repositories.Transactor
	performance repositories.PerformanceRepository
	tournaments repositories.TournamentRepository
	engine      *PlayoffEngine
	challenge   *challenge.Description
	notifier    brackets.Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewScoreService(
	tx repositories.Transactor,
	performance repositories.PerformanceRepository,
	tournaments repositories.TournamentRepository,
	engine *PlayoffEngine,
	desc *challenge.Description,
	notifier brackets.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) ScoreService {
	if notifier == nil {
		notifier = brackets.NopNotifier{}
	}
	return &scoreService{
		tx:          tx,
		performance: performance,
		tournaments: tournaments,
		engine:      engine,
		challenge:   desc,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
	}
}

func validateScoreKey(tournamentID, teamNumber, runNumber int) error {
	switch {
	case tournamentID <= 0:
		return fmt.Errorf("%w: tournament id must be positive", ErrValidationFailed)
	case teamNumber <= 0:
		return fmt.Errorf("%w: team number must be positive", ErrValidationFailed)
	case runNumber <= 0:
		return fmt.Errorf("%w: run number must be positive", ErrValidationFailed)
	}
	return nil
}

// InsertOrUpdatePerformanceScore evaluates and stores a score, then updates
// the bracket it decides. Store write and bracket update share one
// serializable transaction; notifications go out after it committed.
func (s *scoreService) InsertOrUpdatePerformanceScore(ctx context.Context, input PerformanceScoreInput) (*models.PerformanceScore, error) {
	if err := validateScoreKey(input.TournamentID, input.TeamNumber, input.RunNumber); err != nil {
		return nil, err
	}

	result, err := scoring.Evaluate(&s.challenge.Performance, input.Raw, input.NoShow)
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidRawScore) {
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		return nil, fmt.Errorf("failed to evaluate score: %w", err)
	}

	score := &models.PerformanceScore{
		TournamentID:  input.TournamentID,
		TeamNumber:    input.TeamNumber,
		RunNumber:     input.RunNumber,
		Raw:           input.Raw.Clone(),
		ComputedTotal: result.TotalPtr(),
		NoShow:        input.NoShow,
		Bye:           input.Bye,
		Verified:      input.Verified,
		Timestamp:     time.Now().UTC(),
	}

	var (
		notes    []brackets.Notification
		inserted bool
	)
	err = s.tx.WithinTx(ctx, repositories.Serializable, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if _, err := s.tournaments.GetByID(ctx, exec, input.TournamentID); err != nil {
			return err
		}
		params, err := s.tournaments.GetParameters(ctx, exec, input.TournamentID)
		if err != nil {
			return fmt.Errorf("failed to load tournament parameters: %w", err)
		}
		if inserted, err = s.performance.Upsert(ctx, exec, score); err != nil {
			return fmt.Errorf("failed to store performance score: %w", err)
		}
		notes, err = s.engine.OnScoreWritten(ctx, exec, params, ScoreEvent{
			TournamentID: input.TournamentID,
			TeamNumber:   input.TeamNumber,
			RunNumber:    input.RunNumber,
		})
		return err
	})
	s.metrics.ScoreWrite("upsert", resultLabel(err))
	if err != nil {
		s.logFailure(ctx, "performance score write rejected", err, input.TournamentID, input.TeamNumber, input.RunNumber)
		return nil, err
	}

	s.logger.InfoContext(ctx, "performance score stored",
		slog.Int("tournament_id", input.TournamentID),
		slog.Int("team_number", input.TeamNumber),
		slog.Int("run_number", input.RunNumber),
		slog.Bool("inserted", inserted),
		slog.Bool("verified", input.Verified),
	)
	brackets.Dispatch(ctx, s.notifier, notes)
	return score, nil
}

func (s *scoreService) DeletePerformanceScore(ctx context.Context, tournamentID, teamNumber, runNumber int) error {
	if err := validateScoreKey(tournamentID, teamNumber, runNumber); err != nil {
		return err
	}

	var notes []brackets.Notification
	err := s.tx.WithinTx(ctx, repositories.Serializable, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if _, err := s.tournaments.GetByID(ctx, exec, tournamentID); err != nil {
			return err
		}
		params, err := s.tournaments.GetParameters(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to load tournament parameters: %w", err)
		}
		if _, err := s.performance.Get(ctx, exec, tournamentID, teamNumber, runNumber); err != nil {
			return err
		}
		plan, err := s.engine.OnScoreDeleting(ctx, exec, params, tournamentID, teamNumber, runNumber)
		if err != nil {
			return err
		}
		if err := s.performance.Delete(ctx, exec, tournamentID, teamNumber, runNumber); err != nil {
			return fmt.Errorf("failed to delete performance score: %w", err)
		}
		notes, err = s.engine.OnScoreDeleted(ctx, exec, plan)
		return err
	})
	s.metrics.ScoreWrite("delete", resultLabel(err))
	if err != nil {
		s.logFailure(ctx, "performance score delete rejected", err, tournamentID, teamNumber, runNumber)
		return err
	}

	s.logger.InfoContext(ctx, "performance score deleted",
		slog.Int("tournament_id", tournamentID),
		slog.Int("team_number", teamNumber),
		slog.Int("run_number", runNumber),
	)
	brackets.Dispatch(ctx, s.notifier, notes)
	return nil
}

func (s *scoreService) GetPerformanceScore(ctx context.Context, tournamentID, teamNumber, runNumber int) (*models.PerformanceScore, error) {
	if err := validateScoreKey(tournamentID, teamNumber, runNumber); err != nil {
		return nil, err
	}
	return s.performance.Get(ctx, nil, tournamentID, teamNumber, runNumber)
}

func (s *scoreService) logFailure(ctx context.Context, msg string, err error, tournamentID, teamNumber, runNumber int) {
	level := slog.LevelWarn
	if !IsUserError(err) && !errors.Is(err, ErrSerializationFailure) && !errors.Is(err, ErrTournamentNotFound) && !errors.Is(err, ErrPerformanceScoreNotFound) {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, msg,
		slog.Int("tournament_id", tournamentID),
		slog.Int("team_number", teamNumber),
		slog.Int("run_number", runNumber),
		slog.Bool("structural", IsInternal(err)),
		slog.Any("error", err),
	)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDownstreamScoresExist):
		return "conflict"
	case errors.Is(err, ErrSerializationFailure):
		return "serialization_failure"
	case IsUserError(err), errors.Is(err, ErrTournamentNotFound), errors.Is(err, ErrPerformanceScoreNotFound):
		return "rejected"
	}
	return "error"
}
