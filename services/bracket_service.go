package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/playoff-scoring/brackets"
	"github.com/Dosada05/playoff-scoring/models"
	"github.com/Dosada05/playoff-scoring/repositories"
)

// SlotView is a bracket slot with the score its team made in that run.
type SlotView struct {
	models.BracketSlot
	Score    *float64 `json:"score,omitempty"`
	NoShow   bool     `json:"no_show"`
	Verified bool     `json:"verified"`
	Scored   bool     `json:"scored"`
}

type BracketView struct {
	models.PlayoffBracket
	NumRounds int        `json:"num_rounds"`
	FinalRun  int        `json:"final_run"`
	ResultRun int        `json:"result_run"`
	Slots     []SlotView `json:"slots"`
}

type BracketService interface {
	GetBracket(ctx context.Context, tournamentID int, bracket string) (*BracketView, error)
	ListBrackets(ctx context.Context, tournamentID int) ([]models.PlayoffBracket, error)
}

type bracketService struct {
	playoff     repositories.PlayoffRepository
	performance repositories.PerformanceRepository
	logger      *slog.Logger
}

func NewBracketService(
	playoff repositories.PlayoffRepository,
	performance repositories.PerformanceRepository,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		playoff:     playoff,
		performance: performance,
		logger:      logger,
	}
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID int, bracket string) (*BracketView, error) {
	if tournamentID <= 0 {
		return nil, fmt.Errorf("%w: tournament id must be positive", ErrValidationFailed)
	}
	if strings.TrimSpace(bracket) == "" {
		return nil, fmt.Errorf("%w: bracket name is required", ErrValidationFailed)
	}

	var (
		meta   *models.PlayoffBracket
		slots  []models.BracketSlot
		scores []models.PerformanceScore
	)
	g, gCtx := errgroup.WithContext(ctx)

	// 1. Метаданные сетки
	g.Go(func() error {
		var err error
		meta, err = s.playoff.GetBracket(gCtx, nil, tournamentID, bracket)
		return err
	})

	// 2. Слоты
	g.Go(func() error {
		var err error
		slots, err = s.playoff.ListBracket(gCtx, nil, tournamentID, bracket)
		if err != nil {
			return fmt.Errorf("failed to list slots of bracket %q: %w", bracket, err)
		}
		return nil
	})

	// 3. Результаты заездов
	g.Go(func() error {
		var err error
		scores, err = s.performance.ListByTournament(gCtx, nil, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list performance scores: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	layout, err := brackets.NewLayout(*meta)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored bracket has an invalid layout",
			slog.Int("tournament_id", tournamentID),
			slog.String("bracket", bracket),
			slog.Any("error", err),
		)
		return nil, err
	}

	type key struct{ team, run int }
	byKey := make(map[key]models.PerformanceScore, len(scores))
	for _, sc := range scores {
		byKey[key{sc.TeamNumber, sc.RunNumber}] = sc
	}

	view := &BracketView{
		PlayoffBracket: *meta,
		NumRounds:      layout.NumRounds(),
		FinalRun:       layout.FinalRun(),
		ResultRun:      layout.ResultRun(),
		Slots:          make([]SlotView, 0, len(slots)),
	}
	for _, slot := range slots {
		sv := SlotView{BracketSlot: slot}
		if !models.IsInternalTeam(slot.TeamNumber) {
			if sc, ok := byKey[key{slot.TeamNumber, slot.RunNumber}]; ok {
				sv.Scored = true
				sv.Score = sc.ComputedTotal
				sv.NoShow = sc.NoShow
				sv.Verified = sc.Verified
			}
		}
		view.Slots = append(view.Slots, sv)
	}
	return view, nil
}

func (s *bracketService) ListBrackets(ctx context.Context, tournamentID int) ([]models.PlayoffBracket, error) {
	if tournamentID <= 0 {
		return nil, fmt.Errorf("%w: tournament id must be positive", ErrValidationFailed)
	}
	list, err := s.playoff.ListBrackets(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list brackets of tournament %d: %w", tournamentID, err)
	}
	if list == nil {
		list = []models.PlayoffBracket{}
	}
	return list, nil
}
