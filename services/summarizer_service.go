package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/playoff-scoring/challenge"
	"github.com/Dosada05/playoff-scoring/metrics"
	"github.com/Dosada05/playoff-scoring/models"
	"github.com/Dosada05/playoff-scoring/repositories"
	"github.com/Dosada05/playoff-scoring/scoring"
	"github.com/Dosada05/playoff-scoring/storage"
)

// SummaryArchiver keeps a copy of every computed summary outside the database.
type SummaryArchiver interface {
	Archive(ctx context.Context, summary *models.TournamentSummary) (*storage.UploadResult, error)
}

type RecomputeReport struct {
	TournamentID    int `json:"tournament_id"`
	PerformanceRows int `json:"performance_rows"`
	SubjectiveRows  int `json:"subjective_rows"`
	// Subjective rows of categories the challenge does not define.
	SkippedSubjective int `json:"skipped_subjective"`
}

type SummarizerService interface {
	// RecomputeAll re-evaluates every stored score sheet of the tournament.
	// It is idempotent and never touches the brackets.
	RecomputeAll(ctx context.Context, tournamentID int) (*RecomputeReport, error)
	// Summarize rewrites the standardized category scores and overall scores.
	Summarize(ctx context.Context, tournamentID int) (*models.TournamentSummary, error)
}

type summarizerService struct {
	tx          repositories.Transactor
	performance repositories.PerformanceRepository
	subjective  repositories.SubjectiveRepository
	summaries   repositories.SummaryRepository
	teams       repositories.TeamRepository
	tournaments repositories.TournamentRepository
	challenge   *challenge.Description
	archive     SummaryArchiver
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

func NewSummarizerService(
	tx repositories.Transactor,
	performance repositories.PerformanceRepository,
	subjective repositories.SubjectiveRepository,
	summaries repositories.SummaryRepository,
	teams repositories.TeamRepository,
	tournaments repositories.TournamentRepository,
	desc *challenge.Description,
	archive SummaryArchiver,
	m *metrics.Metrics,
	logger *slog.Logger,
) SummarizerService {
	return &summarizerService{
		tx:          tx,
		performance: performance,
		subjective:  subjective,
		summaries:   summaries,
		teams:       teams,
		tournaments: tournaments,
		challenge:   desc,
		archive:     archive,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *summarizerService) RecomputeAll(ctx context.Context, tournamentID int) (*RecomputeReport, error) {
	if tournamentID <= 0 {
		return nil, fmt.Errorf("%w: tournament id must be positive", ErrValidationFailed)
	}
	defer s.metrics.ObserveStage("recompute", time.Now())

	if _, err := s.tournaments.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, err
	}

	report := &RecomputeReport{TournamentID: tournamentID}
	g, gctx := errgroup.WithContext(ctx)

	// Таблицы независимы, каждая пересчитывается в своей транзакции.
	g.Go(func() error {
		return s.tx.WithinTx(gctx, repositories.Serializable, func(ctx context.Context, exec repositories.SQLExecutor) error {
			rows, err := s.performance.ListByTournament(ctx, exec, tournamentID)
			if err != nil {
				return fmt.Errorf("failed to list performance scores: %w", err)
			}
			for _, row := range rows {
				res, err := scoring.Evaluate(&s.challenge.Performance, row.Raw, row.NoShow)
				if err != nil {
					return fmt.Errorf("team %d run %d: %w", row.TeamNumber, row.RunNumber, err)
				}
				if err := s.performance.UpdateComputedTotal(ctx, exec, tournamentID, row.TeamNumber, row.RunNumber, res.TotalPtr()); err != nil {
					return err
				}
			}
			report.PerformanceRows = len(rows)
			return nil
		})
	})

	g.Go(func() error {
		return s.tx.WithinTx(gctx, repositories.Serializable, func(ctx context.Context, exec repositories.SQLExecutor) error {
			rows, err := s.subjective.ListByTournament(ctx, exec, tournamentID)
			if err != nil {
				return fmt.Errorf("failed to list subjective scores: %w", err)
			}
			for _, row := range rows {
				cat, ok := s.challenge.SubjectiveCategory(row.Category)
				if !ok {
					report.SkippedSubjective++
					continue
				}
				res, err := scoring.Evaluate(cat, row.Raw, row.NoShow)
				if err != nil {
					return fmt.Errorf("team %d category %s judge %s: %w", row.TeamNumber, row.Category, row.JudgeID, err)
				}
				if err := s.subjective.UpdateComputedTotal(ctx, exec, row, res.TotalPtr()); err != nil {
					return err
				}
				report.SubjectiveRows++
			}
			return nil
		})
	})

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "score recomputation failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return nil, err
	}
	if report.SkippedSubjective > 0 {
		s.logger.WarnContext(ctx, "subjective scores of unknown categories skipped",
			slog.Int("tournament_id", tournamentID),
			slog.Int("skipped", report.SkippedSubjective),
		)
	}
	s.logger.InfoContext(ctx, "scores recomputed",
		slog.Int("tournament_id", tournamentID),
		slog.Int("performance_rows", report.PerformanceRows),
		slog.Int("subjective_rows", report.SubjectiveRows),
	)
	return report, nil
}

func (s *summarizerService) Summarize(ctx context.Context, tournamentID int) (*models.TournamentSummary, error) {
	if tournamentID <= 0 {
		return nil, fmt.Errorf("%w: tournament id must be positive", ErrValidationFailed)
	}
	defer s.metrics.ObserveStage("summarize", time.Now())

	var summary *models.TournamentSummary
	err := s.tx.WithinTx(ctx, repositories.Serializable, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if _, err := s.tournaments.GetByID(ctx, exec, tournamentID); err != nil {
			return err
		}
		params, err := s.tournaments.GetParameters(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to load tournament parameters: %w", err)
		}
		teams, err := s.teams.ListTournamentTeams(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list tournament teams: %w", err)
		}
		judges, err := s.teams.ListJudges(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list judges: %w", err)
		}
		perf, err := s.performance.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list performance scores: %w", err)
		}
		subj, err := s.subjective.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list subjective scores: %w", err)
		}

		summary = buildSummary(s.challenge, params, tournamentID, teams, judges, perf, subj)
		summary.ComputedAt = s.now().UTC()

		if err := s.summaries.Replace(ctx, exec, summary); err != nil {
			return fmt.Errorf("failed to store summary: %w", err)
		}
		return s.tournaments.SetPerformanceSeedingModified(ctx, exec, tournamentID, false)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "summarize failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament summarized",
		slog.Int("tournament_id", tournamentID),
		slog.Int("category_scores", len(summary.Scores)),
		slog.Int("teams", len(summary.Overall)),
	)

	if s.archive != nil {
		res, err := s.archive.Archive(ctx, summary)
		if err != nil {
			s.logger.WarnContext(ctx, "summary archive upload failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		} else {
			s.logger.InfoContext(ctx, "summary archived", slog.Int("tournament_id", tournamentID), slog.String("key", res.Key))
		}
	}
	return summary, nil
}

// teamScore is one team's raw score in a category before standardization.
type teamScore struct {
	team  int
	raw   *float64
	group string
}

// buildSummary is the pure part of Summarize.
func buildSummary(
	desc *challenge.Description,
	params models.TournamentParameters,
	tournamentID int,
	teams []models.TournamentTeam,
	judges []repositories.Judge,
	perf []models.PerformanceScore,
	subj []models.SubjectiveScore,
) *models.TournamentSummary {
	summary := &models.TournamentSummary{
		TournamentID: tournamentID,
		Scores:       []models.FinalComputedScore{},
		Overall:      []models.OverallScore{},
	}

	sortedTeams := append([]models.TournamentTeam(nil), teams...)
	sort.Slice(sortedTeams, func(i, j int) bool { return sortedTeams[i].TeamNumber < sortedTeams[j].TeamNumber })

	overall := make(map[int]float64, len(sortedTeams))
	addCategory := func(category string, weight float64, scores []teamScore, invert bool) {
		standardized := standardizeGroups(scores, params.StandardizedMean, params.StandardizedSigma, invert)
		for i, ts := range scores {
			summary.Scores = append(summary.Scores, models.FinalComputedScore{
				TournamentID:      tournamentID,
				Category:          category,
				TeamNumber:        ts.team,
				RawScore:          ts.raw,
				StandardizedScore: standardized[i],
				ScoreGroup:        ts.group,
			})
			if standardized[i] != nil {
				overall[ts.team] += weight * *standardized[i]
			}
		}
	}

	runs := make(map[int][]*float64)
	for _, p := range perf {
		if p.RunNumber > params.SeedingRounds {
			continue
		}
		runs[p.TeamNumber] = append(runs[p.TeamNumber], p.ComputedTotal)
	}
	performance := make([]teamScore, 0, len(sortedTeams))
	for _, t := range sortedTeams {
		performance = append(performance, teamScore{
			team:  t.TeamNumber,
			raw:   scoring.BestScore(runs[t.TeamNumber], desc.WinnerCriterion),
			group: models.PerformanceCategory,
		})
	}
	addCategory(models.PerformanceCategory, desc.Performance.Weight, performance, desc.WinnerCriterion == challenge.LowestWins)

	for _, cat := range desc.Subjective {
		addCategory(cat.Name, cat.Weight, subjectiveScores(cat.Name, sortedTeams, judges, subj), false)
	}

	for _, t := range sortedTeams {
		summary.Overall = append(summary.Overall, models.OverallScore{
			TournamentID: tournamentID,
			TeamNumber:   t.TeamNumber,
			OverallScore: overall[t.TeamNumber],
		})
	}
	return summary
}

// subjectiveScores averages each team's judge sheets in one category. Teams
// judged by the same judges within a judging group share a score group. When
// the category has registered judges, sheets of anyone else are ignored.
func subjectiveScores(category string, teams []models.TournamentTeam, judges []repositories.Judge, sheets []models.SubjectiveScore) []teamScore {
	registered := make(map[string]bool)
	for _, j := range judges {
		if j.Category == category {
			registered[j.JudgeID] = true
		}
	}

	byTeam := make(map[int][]models.SubjectiveScore)
	for _, sheet := range sheets {
		if sheet.Category != category {
			continue
		}
		if len(registered) > 0 && !registered[sheet.JudgeID] {
			continue
		}
		byTeam[sheet.TeamNumber] = append(byTeam[sheet.TeamNumber], sheet)
	}

	out := make([]teamScore, 0, len(teams))
	for _, t := range teams {
		var (
			sum      float64
			n        int
			judgeIDs []string
		)
		for _, sheet := range byTeam[t.TeamNumber] {
			judgeIDs = append(judgeIDs, sheet.JudgeID)
			if sheet.NoShow || sheet.ComputedTotal == nil {
				continue
			}
			sum += *sheet.ComputedTotal
			n++
		}
		sort.Strings(judgeIDs)

		ts := teamScore{team: t.TeamNumber, group: t.JudgingGroup + "|" + strings.Join(judgeIDs, ",")}
		if n > 0 {
			avg := sum / float64(n)
			ts.raw = &avg
		}
		out = append(out, ts)
	}
	return out
}

// standardizeGroups standardizes raw scores within their score groups. With
// invert set a lower raw score gets the higher standardized score.
func standardizeGroups(scores []teamScore, targetMean, targetSigma float64, invert bool) []*float64 {
	groups := make(map[string][]float64)
	for _, ts := range scores {
		if ts.raw != nil {
			groups[ts.group] = append(groups[ts.group], *ts.raw)
		}
	}
	type stats struct{ mean, sigma float64 }
	byGroup := make(map[string]stats, len(groups))
	for name, values := range groups {
		mean, sigma := scoring.MeanSigma(values)
		byGroup[name] = stats{mean: mean, sigma: sigma}
	}

	out := make([]*float64, len(scores))
	for i, ts := range scores {
		if ts.raw == nil {
			continue
		}
		st := byGroup[ts.group]
		v := scoring.Standardize(*ts.raw, st.mean, st.sigma, targetMean, targetSigma)
		if invert {
			v = 2*targetMean - v
		}
		out[i] = &v
	}
	return out
}
