package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/playoff-scoring/challenge"
	"github.com/Dosada05/playoff-scoring/models"
	"github.com/Dosada05/playoff-scoring/repositories"
	"github.com/Dosada05/playoff-scoring/scoring"
)

// CategoryRanking is the ranking of one category within one award group and,
// for subjective categories, one judging group.
type CategoryRanking struct {
	Category     string           `json:"category"`
	AwardGroup   string           `json:"award_group"`
	JudgingGroup string           `json:"judging_group,omitempty"`
	Rankings     []scoring.Ranked `json:"rankings"`
}

type TeamRankings struct {
	TournamentID int               `json:"tournament_id"`
	Performance  []CategoryRanking `json:"performance"`
	Subjective   []CategoryRanking `json:"subjective"`
	Overall      []CategoryRanking `json:"overall"`
}

type RankingService interface {
	GetTeamRankings(ctx context.Context, tournamentID int) (*TeamRankings, error)
	// GetPlayoffSeedingOrder orders the teams of awardGroup (all teams when
	// empty) by their seeding runs.
	GetPlayoffSeedingOrder(ctx context.Context, tournamentID int, awardGroup string, opts scoring.SeedingOptions) (*scoring.SeedingResult, error)
}

type rankingService struct {
	performance repositories.PerformanceRepository
	summaries   repositories.SummaryRepository
	teams       repositories.TeamRepository
	tournaments repositories.TournamentRepository
	challenge   *challenge.Description
	logger      *slog.Logger
}

func NewRankingService(
	performance repositories.PerformanceRepository,
	summaries repositories.SummaryRepository,
	teams repositories.TeamRepository,
	tournaments repositories.TournamentRepository,
	desc *challenge.Description,
	logger *slog.Logger,
) RankingService {
	return &rankingService{
		performance: performance,
		summaries:   summaries,
		teams:       teams,
		tournaments: tournaments,
		challenge:   desc,
		logger:      logger,
	}
}

type rankingData struct {
	params  models.TournamentParameters
	teams   []models.TournamentTeam
	perf    []models.PerformanceScore
	final   []models.FinalComputedScore
	overall []models.OverallScore
}

func (s *rankingService) load(ctx context.Context, tournamentID int, withSummary bool) (*rankingData, error) {
	if tournamentID <= 0 {
		return nil, fmt.Errorf("%w: tournament id must be positive", ErrValidationFailed)
	}
	if _, err := s.tournaments.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, err
	}

	data := &rankingData{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data.params, err = s.tournaments.GetParameters(gctx, nil, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		data.teams, err = s.teams.ListTournamentTeams(gctx, nil, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		data.perf, err = s.performance.ListByTournament(gctx, nil, tournamentID)
		return err
	})
	if withSummary {
		g.Go(func() error {
			var err error
			data.final, err = s.summaries.ListFinalScores(gctx, nil, tournamentID)
			return err
		})
		g.Go(func() error {
			var err error
			data.overall, err = s.summaries.ListOverallScores(gctx, nil, tournamentID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load ranking data for tournament %d: %w", tournamentID, err)
	}
	return data, nil
}

// seedingRuns collects each team's evaluated seeding totals.
func seedingRuns(perf []models.PerformanceScore, seedingRounds int) map[int][]*float64 {
	runs := make(map[int][]*float64)
	for _, p := range perf {
		if p.RunNumber <= seedingRounds {
			runs[p.TeamNumber] = append(runs[p.TeamNumber], p.ComputedTotal)
		}
	}
	return runs
}

func sortedKeys(m map[string][]scoring.Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *rankingService) GetTeamRankings(ctx context.Context, tournamentID int) (*TeamRankings, error) {
	data, err := s.load(ctx, tournamentID, true)
	if err != nil {
		return nil, err
	}

	awardGroup := make(map[int]string, len(data.teams))
	judgingGroup := make(map[int]string, len(data.teams))
	for _, t := range data.teams {
		awardGroup[t.TeamNumber] = t.AwardGroup
		judgingGroup[t.TeamNumber] = t.JudgingGroup
	}

	out := &TeamRankings{
		TournamentID: tournamentID,
		Performance:  []CategoryRanking{},
		Subjective:   []CategoryRanking{},
		Overall:      []CategoryRanking{},
	}

	runs := seedingRuns(data.perf, data.params.SeedingRounds)
	perfEntries := make(map[string][]scoring.Entry)
	for _, t := range data.teams {
		perfEntries[t.AwardGroup] = append(perfEntries[t.AwardGroup], scoring.Entry{
			Team:  t.TeamNumber,
			Score: scoring.BestScore(runs[t.TeamNumber], s.challenge.WinnerCriterion),
		})
	}
	order := scoring.OrderFor(s.challenge.WinnerCriterion)
	for _, ag := range sortedKeys(perfEntries) {
		out.Performance = append(out.Performance, CategoryRanking{
			Category:   models.PerformanceCategory,
			AwardGroup: ag,
			Rankings:   scoring.Rank(perfEntries[ag], order, scoring.PerformanceTolerance),
		})
	}

	for _, cat := range s.challenge.Subjective {
		type key struct{ award, judging string }
		entries := make(map[key][]scoring.Entry)
		for _, fs := range data.final {
			if fs.Category != cat.Name {
				continue
			}
			ag, ok := awardGroup[fs.TeamNumber]
			if !ok {
				continue
			}
			k := key{award: ag, judging: judgingGroup[fs.TeamNumber]}
			entries[k] = append(entries[k], scoring.Entry{Team: fs.TeamNumber, Score: fs.RawScore})
		}
		keys := make([]key, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].award != keys[j].award {
				return keys[i].award < keys[j].award
			}
			return keys[i].judging < keys[j].judging
		})
		for _, k := range keys {
			out.Subjective = append(out.Subjective, CategoryRanking{
				Category:     cat.Name,
				AwardGroup:   k.award,
				JudgingGroup: k.judging,
				Rankings:     scoring.Rank(entries[k], scoring.Descending, scoring.CategoryTolerance),
			})
		}
	}

	overallEntries := make(map[string][]scoring.Entry)
	for _, o := range data.overall {
		ag, ok := awardGroup[o.TeamNumber]
		if !ok {
			continue
		}
		score := o.OverallScore
		overallEntries[ag] = append(overallEntries[ag], scoring.Entry{Team: o.TeamNumber, Score: &score})
	}
	for _, ag := range sortedKeys(overallEntries) {
		out.Overall = append(out.Overall, CategoryRanking{
			Category:   "overall",
			AwardGroup: ag,
			Rankings:   scoring.Rank(overallEntries[ag], scoring.Descending, scoring.CategoryTolerance),
		})
	}
	return out, nil
}

func (s *rankingService) GetPlayoffSeedingOrder(ctx context.Context, tournamentID int, awardGroup string, opts scoring.SeedingOptions) (*scoring.SeedingResult, error) {
	data, err := s.load(ctx, tournamentID, false)
	if err != nil {
		return nil, err
	}
	opts.Criterion = s.challenge.WinnerCriterion

	runs := seedingRuns(data.perf, data.params.SeedingRounds)
	teams := make([]scoring.SeedingRuns, 0, len(data.teams))
	for _, t := range data.teams {
		if awardGroup != "" && t.AwardGroup != awardGroup {
			continue
		}
		teams = append(teams, scoring.SeedingRuns{Team: t.TeamNumber, Totals: runs[t.TeamNumber]})
	}
	if awardGroup != "" && len(teams) == 0 {
		return nil, fmt.Errorf("%w: award group %q has no teams", ErrValidationFailed, awardGroup)
	}

	result := scoring.SeedingOrder(teams, opts)
	s.logger.DebugContext(ctx, "playoff seeding order computed",
		slog.Int("tournament_id", tournamentID),
		slog.String("award_group", awardGroup),
		slog.String("tie_break", string(result.TieBreak)),
		slog.Int("teams", len(result.Order)),
	)
	return &result, nil
}
