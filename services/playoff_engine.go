package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/playoff-scoring/brackets"
	"github.com/Dosada05/playoff-scoring/challenge"
	"github.com/Dosada05/playoff-scoring/metrics"
	"github.com/Dosada05/playoff-scoring/models"
	"github.com/Dosada05/playoff-scoring/repositories"
	"github.com/Dosada05/playoff-scoring/scoring"
)

// PlayoffEngine keeps brackets consistent with the playoff scores. Every
// method runs on the caller's transaction, so the downstream guard and the
// writes it protects commit or roll back together.
type PlayoffEngine struct {
	performance repositories.PerformanceRepository
	playoff     repositories.PlayoffRepository
	tournaments repositories.TournamentRepository
	challenge   *challenge.Description
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewPlayoffEngine(
	performance repositories.PerformanceRepository,
	playoff repositories.PlayoffRepository,
	tournaments repositories.TournamentRepository,
	desc *challenge.Description,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PlayoffEngine {
	return &PlayoffEngine{
		performance: performance,
		playoff:     playoff,
		tournaments: tournaments,
		challenge:   desc,
		metrics:     m,
		logger:      logger,
	}
}

// ScoreEvent identifies a performance score that was just written.
type ScoreEvent struct {
	TournamentID int
	TeamNumber   int
	RunNumber    int
}

// MatchSide is one team of a head-to-head match and its score in the match run.
type MatchSide struct {
	Team        int
	Entered     bool
	Verified    bool
	NoShow      bool
	Total       *float64
	Tiebreakers []float64
}

// PickWinner decides a match. It never guesses: a pair still equal after all
// tiebreakers yields models.TeamTie, and a match that cannot be decided yet
// yields models.TeamNull.
func PickWinner(a, b MatchSide, tiebreakers []challenge.Tiebreaker, criterion challenge.WinnerCriterion) int {
	switch {
	case a.Team == models.TeamBye:
		return b.Team
	case b.Team == models.TeamBye:
		return a.Team
	case models.IsInternalTeam(a.Team) || models.IsInternalTeam(b.Team):
		return models.TeamNull
	case !a.Entered || !b.Entered:
		return models.TeamNull
	case a.NoShow && b.NoShow:
		return models.TeamTie
	case a.NoShow:
		return b.Team
	case b.NoShow:
		return a.Team
	case a.Total == nil || b.Total == nil:
		return models.TeamNull
	}

	if !scoring.Equal(*a.Total, *b.Total, scoring.PerformanceTolerance) {
		if criterion.Better(*a.Total, *b.Total) {
			return a.Team
		}
		return b.Team
	}
	for i, tb := range tiebreakers {
		if i >= len(a.Tiebreakers) || i >= len(b.Tiebreakers) {
			break
		}
		va, vb := a.Tiebreakers[i], b.Tiebreakers[i]
		if scoring.Equal(va, vb, scoring.PerformanceTolerance) {
			continue
		}
		if tb.Winner.Better(va, vb) {
			return a.Team
		}
		return b.Team
	}
	return models.TeamTie
}

// matchSlot is the bracket position of a team's playoff score.
type matchSlot struct {
	tournamentID int
	bracket      string
	layout       brackets.Layout
	run          int
	line         int
	table        *string
}

func (e *PlayoffEngine) locate(ctx context.Context, exec repositories.SQLExecutor, tournamentID, team, run int) (*matchSlot, error) {
	name, line, err := e.playoff.FindSlotForTeam(ctx, exec, tournamentID, team, run)
	if err != nil {
		return nil, fmt.Errorf("failed to locate team %d in run %d: %w", team, run, err)
	}
	meta, err := e.playoff.GetBracket(ctx, exec, tournamentID, name)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil, fmt.Errorf("%w: slot in undefined bracket %q", ErrMalformedRound, name)
		}
		return nil, fmt.Errorf("failed to load bracket %q: %w", name, err)
	}
	layout, err := brackets.NewLayout(*meta)
	if err != nil {
		return nil, err
	}
	if err := layout.ValidateMatchSlot(run, line); err != nil {
		return nil, fmt.Errorf("bracket %q, team %d: %w", name, team, err)
	}
	slot, err := e.playoff.SlotAt(ctx, exec, tournamentID, name, run, line)
	if err != nil {
		return nil, err
	}
	return &matchSlot{
		tournamentID: tournamentID,
		bracket:      name,
		layout:       layout,
		run:          run,
		line:         line,
		table:        slot.AssignedTable,
	}, nil
}

func (e *PlayoffEngine) loadSide(ctx context.Context, exec repositories.SQLExecutor, tournamentID, team, run int) (MatchSide, error) {
	side := MatchSide{Team: team}
	score, err := e.performance.Get(ctx, exec, tournamentID, team, run)
	if err != nil {
		if errors.Is(err, repositories.ErrPerformanceScoreNotFound) {
			return side, nil
		}
		return side, fmt.Errorf("failed to load score of team %d run %d: %w", team, run, err)
	}
	side.Entered = true
	side.Verified = score.Verified
	side.NoShow = score.NoShow
	side.Total = score.ComputedTotal

	if !score.NoShow && len(e.challenge.Performance.Tiebreakers) > 0 {
		res, err := scoring.Evaluate(&e.challenge.Performance, score.Raw, false)
		if err != nil {
			return side, fmt.Errorf("failed to evaluate tiebreakers of team %d run %d: %w", team, run, err)
		}
		side.Tiebreakers = res.Tiebreakers
	}
	return side, nil
}

// guardDownstream rejects the mutation when either team already has a score
// in the next run, that is when the next match was already played.
func (e *PlayoffEngine) guardDownstream(ctx context.Context, exec repositories.SQLExecutor, tournamentID, run int, teams ...int) error {
	for _, team := range teams {
		if models.IsInternalTeam(team) {
			continue
		}
		played, err := e.performance.Exists(ctx, exec, tournamentID, team, run+1)
		if err != nil {
			return fmt.Errorf("failed to check run %d of team %d: %w", run+1, team, err)
		}
		if played {
			e.metrics.DownstreamConflict()
			e.metrics.Propagation(metrics.OutcomeRejected)
			return fmt.Errorf("%w (team %d has a score in run %d)", ErrDownstreamScoresExist, team, run+1)
		}
	}
	return nil
}

// OnScoreWritten runs after a performance score was inserted or updated and
// returns the notifications to send once the transaction committed.
func (e *PlayoffEngine) OnScoreWritten(ctx context.Context, exec repositories.SQLExecutor, params models.TournamentParameters, ev ScoreEvent) ([]brackets.Notification, error) {
	if ev.RunNumber <= params.SeedingRounds {
		if err := e.tournaments.SetPerformanceSeedingModified(ctx, exec, ev.TournamentID, true); err != nil {
			return nil, fmt.Errorf("failed to mark seeding scores modified: %w", err)
		}
		return nil, nil
	}

	m, err := e.locate(ctx, exec, ev.TournamentID, ev.TeamNumber, ev.RunNumber)
	if err != nil {
		return nil, err
	}
	self, err := e.loadSide(ctx, exec, ev.TournamentID, ev.TeamNumber, ev.RunNumber)
	if err != nil {
		return nil, err
	}

	notes := []brackets.Notification{{ScoreEntered: &brackets.ScoreEntered{
		TournamentID: ev.TournamentID,
		Bracket:      m.bracket,
		TeamNumber:   ev.TeamNumber,
		RunNumber:    ev.RunNumber,
		LineNumber:   m.line,
		Score:        self.Total,
		NoShow:       self.NoShow,
		Verified:     self.Verified,
		Table:        m.table,
	}}}

	// Неподтверждённые результаты видны на табло, но сетку не двигают.
	if !self.Verified {
		return notes, nil
	}

	siblingTeam, err := e.playoff.TeamAt(ctx, exec, ev.TournamentID, m.bracket, m.run, brackets.SiblingLine(m.line))
	if err != nil {
		return nil, err
	}
	if siblingTeam == models.TeamNull {
		return notes, nil
	}

	opponent := MatchSide{Team: siblingTeam}
	if !models.IsInternalTeam(siblingTeam) {
		if opponent, err = e.loadSide(ctx, exec, ev.TournamentID, siblingTeam, m.run); err != nil {
			return nil, err
		}
	}

	winner := models.TeamNull
	if models.IsInternalTeam(siblingTeam) || (opponent.Entered && opponent.Verified) {
		winner = PickWinner(opponent, self, e.challenge.Performance.Tiebreakers, e.challenge.WinnerCriterion)
	}
	loser := winner
	switch winner {
	case self.Team:
		loser = siblingTeam
	case siblingTeam:
		loser = self.Team
	}

	updates, err := e.propagate(ctx, exec, m, winner, loser, self.Team, siblingTeam)
	if err != nil {
		return nil, err
	}

	sides := map[int]MatchSide{self.Team: self, siblingTeam: opponent}
	for _, u := range updates {
		if side, ok := sides[u.TeamNumber]; ok && !models.IsInternalTeam(u.TeamNumber) {
			u.Score = side.Total
			u.NoShow = side.NoShow
			u.Verified = side.Verified
		}
		notes = append(notes, brackets.Notification{BracketUpdate: u})
	}

	switch winner {
	case models.TeamTie:
		e.metrics.Propagation(metrics.OutcomeTie)
	case models.TeamNull:
		e.metrics.Propagation(metrics.OutcomeUnresolved)
	default:
		e.metrics.Propagation(metrics.OutcomeAdvanced)
	}
	e.logger.Debug("bracket match evaluated",
		slog.Int("tournament_id", ev.TournamentID),
		slog.String("bracket", m.bracket),
		slog.Int("run_number", m.run),
		slog.Int("line_number", m.line),
		slog.Int("winner", winner),
	)
	return notes, nil
}

// propagate writes winner to the next run and, after a semifinal, loser to the
// third-place match. When either slot would change, the guard runs first.
func (e *PlayoffEngine) propagate(ctx context.Context, exec repositories.SQLExecutor, m *matchSlot, winner, loser int, teams ...int) ([]*brackets.BracketUpdate, error) {
	type target struct {
		line int
		team int
	}
	targets := []target{{line: brackets.WinnerLine(m.line), team: winner}}
	if m.layout.IsSemifinal(m.run) {
		targets = append(targets, target{line: brackets.ThirdPlaceLine(m.line), team: loser})
	}

	nextRun := m.run + 1
	slots := make([]*models.BracketSlot, len(targets))
	changed := false
	for i, t := range targets {
		slot, err := e.playoff.SlotAt(ctx, exec, m.tournamentID, m.bracket, nextRun, t.line)
		if err != nil {
			return nil, err
		}
		slots[i] = slot
		if slot.TeamNumber != t.team {
			changed = true
		}
	}

	if changed {
		if err := e.guardDownstream(ctx, exec, m.tournamentID, m.run, teams...); err != nil {
			return nil, err
		}
	}

	updates := make([]*brackets.BracketUpdate, 0, len(targets))
	for i, t := range targets {
		if slots[i].TeamNumber != t.team {
			if err := e.playoff.SetTeam(ctx, exec, m.tournamentID, m.bracket, nextRun, t.line, t.team); err != nil {
				return nil, err
			}
		}
		updates = append(updates, &brackets.BracketUpdate{
			TournamentID: m.tournamentID,
			Bracket:      m.bracket,
			LineNumber:   t.line,
			RunNumber:    nextRun,
			TeamNumber:   t.team,
			Table:        slots[i].AssignedTable,
		})
	}
	return updates, nil
}

// DeletePlan is what OnScoreDeleting found, consumed by OnScoreDeleted.
type DeletePlan struct {
	TournamentID int
	TeamNumber   int
	RunNumber    int

	seeding     bool
	match       *matchSlot
	siblingTeam int
}

// OnScoreDeleting runs before a performance score is deleted and rejects the
// delete when the next match of either team was already played.
func (e *PlayoffEngine) OnScoreDeleting(ctx context.Context, exec repositories.SQLExecutor, params models.TournamentParameters, tournamentID, team, run int) (*DeletePlan, error) {
	plan := &DeletePlan{TournamentID: tournamentID, TeamNumber: team, RunNumber: run}
	if run <= params.SeedingRounds {
		plan.seeding = true
		return plan, nil
	}

	m, err := e.locate(ctx, exec, tournamentID, team, run)
	if err != nil {
		return nil, err
	}
	siblingTeam, err := e.playoff.TeamAt(ctx, exec, tournamentID, m.bracket, run, brackets.SiblingLine(m.line))
	if err != nil {
		return nil, err
	}
	if err := e.guardDownstream(ctx, exec, tournamentID, run, team, siblingTeam); err != nil {
		return nil, err
	}
	plan.match = m
	plan.siblingTeam = siblingTeam
	return plan, nil
}

// OnScoreDeleted empties the slots the deleted score decided. A team that
// advanced on a bye keeps its place.
func (e *PlayoffEngine) OnScoreDeleted(ctx context.Context, exec repositories.SQLExecutor, plan *DeletePlan) ([]brackets.Notification, error) {
	if plan.seeding {
		if err := e.tournaments.SetPerformanceSeedingModified(ctx, exec, plan.TournamentID, true); err != nil {
			return nil, fmt.Errorf("failed to mark seeding scores modified: %w", err)
		}
		return nil, nil
	}

	m := plan.match
	notes := []brackets.Notification{{BracketUpdate: &brackets.BracketUpdate{
		TournamentID: plan.TournamentID,
		Bracket:      m.bracket,
		LineNumber:   m.line,
		RunNumber:    m.run,
		TeamNumber:   plan.TeamNumber,
		Table:        m.table,
	}}}
	if plan.siblingTeam == models.TeamBye {
		return notes, nil
	}

	// The guard already ran in OnScoreDeleting.
	updates, err := e.propagate(ctx, exec, m, models.TeamNull, models.TeamNull)
	if err != nil {
		return nil, err
	}
	for _, u := range updates {
		notes = append(notes, brackets.Notification{BracketUpdate: u})
	}
	e.metrics.Propagation(metrics.OutcomeCleared)
	return notes, nil
}
