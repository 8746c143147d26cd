package services

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/playoff-scoring/brackets"
	"github.com/Dosada05/playoff-scoring/challenge"
	"github.com/Dosada05/playoff-scoring/metrics"
	"github.com/Dosada05/playoff-scoring/models"
)

const testTournament = 1

func testChallenge(t *testing.T) *challenge.Description {
	t.Helper()
	d, err := challenge.Parse([]byte(`
title: Robot Game
winner_criterion: highest
performance:
  minimum_score: 0
  goals:
    - {name: points, kind: numeric, min: 0, max: 1000, multiplier: 1}
    - {name: precision, kind: numeric, min: 0, max: 6, multiplier: 1}
  tiebreakers:
    - {goal: precision}
subjective:
  - name: design
    weight: 1
    goals:
      - {name: mechanical, kind: numeric, min: 0, max: 10, multiplier: 2}
  - name: teamwork
    weight: 0.5
    goals:
      - {name: spirit, kind: numeric, min: 0, max: 10, multiplier: 1}
`))
	require.NoError(t, err)
	return d
}

func sheet(points, precision float64) models.RawScore {
	return models.RawScore{Values: map[string]float64{"points": points, "precision": precision}}
}

type fixture struct {
	r        *repos
	desc     *challenge.Description
	notifier *recordingNotifier
	svc      ScoreService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := newRepos()
	r.store.addTournament(models.Tournament{ID: testTournament, Name: "Regional"}, models.TournamentParameters{
		SeedingRounds:     3,
		StandardizedMean:  100,
		StandardizedSigma: 20,
	})
	desc := testChallenge(t)
	m := metrics.New(prometheus.NewRegistry())
	engine := NewPlayoffEngine(r.performance, r.playoff, r.tournaments, desc, m, discardLogger())
	notifier := &recordingNotifier{}
	return &fixture{
		r:        r,
		desc:     desc,
		notifier: notifier,
		svc:      NewScoreService(r.tx, r.performance, r.tournaments, engine, desc, notifier, m, discardLogger()),
	}
}

func (f *fixture) write(team, run int, raw models.RawScore, noShow, verified bool) error {
	_, err := f.svc.InsertOrUpdatePerformanceScore(context.Background(), PerformanceScoreInput{
		TournamentID: testTournament,
		TeamNumber:   team,
		RunNumber:    run,
		Raw:          raw,
		NoShow:       noShow,
		Verified:     verified,
	})
	return err
}

// enter stores a verified score and fails the test on error.
func (f *fixture) enter(t *testing.T, team, run int, points float64) {
	t.Helper()
	require.NoError(t, f.write(team, run, sheet(points, 0), false, true))
}

func (f *fixture) slot(run, line int) int {
	return f.r.store.slot(testTournament, "A", run, line)
}

// fourTeams is bracket A: teams 11-14 start in run 4, the final is run 5 and
// the champion lands in run 6.
func (f *fixture) fourTeams(first ...int) {
	if len(first) == 0 {
		first = []int{11, 12, 13, 14}
	}
	f.r.store.addBracket(models.PlayoffBracket{
		TournamentID:   testTournament,
		Name:           "A",
		FirstRunNumber: 4,
		FirstRoundSize: 4,
	}, first...)
}

func TestFourTeamPropagation(t *testing.T) {
	f := newFixture(t)
	f.fourTeams()

	f.enter(t, 11, 4, 300)
	assert.Equal(t, models.TeamNull, f.slot(5, 1), "opponent has not played yet")
	f.enter(t, 12, 4, 200)
	f.enter(t, 13, 4, 250)
	f.enter(t, 14, 4, 100)

	assert.Equal(t, 11, f.slot(5, 1))
	assert.Equal(t, 13, f.slot(5, 2))

	f.enter(t, 11, 5, 150)
	f.enter(t, 13, 5, 180)
	assert.Equal(t, 13, f.slot(6, 1))
}

func TestPropagationNotifications(t *testing.T) {
	f := newFixture(t)
	f.fourTeams()

	f.enter(t, 11, 4, 300)
	f.enter(t, 12, 4, 200)

	require.Len(t, f.notifier.entered, 2)
	assert.Equal(t, 12, f.notifier.entered[1].TeamNumber)
	assert.Equal(t, 2, f.notifier.entered[1].LineNumber)
	assert.Equal(t, "A", f.notifier.entered[1].Bracket)

	var advanced []brackets.BracketUpdate
	for _, u := range f.notifier.updates {
		if u.RunNumber == 5 {
			advanced = append(advanced, u)
		}
	}
	require.NotEmpty(t, advanced)
	last := advanced[len(advanced)-1]
	assert.Equal(t, 11, last.TeamNumber)
	assert.Equal(t, 1, last.LineNumber)
	require.NotNil(t, last.Score)
	assert.InDelta(t, 300.0, *last.Score, 1e-9)
}

func TestRescoreFlipsWinner(t *testing.T) {
	f := newFixture(t)
	f.fourTeams()

	f.enter(t, 11, 4, 300)
	f.enter(t, 12, 4, 200)
	require.Equal(t, 11, f.slot(5, 1))

	f.enter(t, 11, 4, 150)
	assert.Equal(t, 12, f.slot(5, 1))
}

func TestDownstreamGuardRejectsAndLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	f.fourTeams()
	ctx := context.Background()

	f.enter(t, 11, 4, 300)
	f.enter(t, 12, 4, 200)
	f.enter(t, 11, 5, 150)

	scoresBefore, err := f.r.performance.ListByTournament(ctx, nil, testTournament)
	require.NoError(t, err)
	slotsBefore, err := f.r.playoff.ListBracket(ctx, nil, testTournament, "A")
	require.NoError(t, err)

	err = f.write(12, 4, sheet(400, 0), false, true)
	require.ErrorIs(t, err, ErrDownstreamScoresExist)
	assert.True(t, IsUserError(err))

	err = f.svc.DeletePerformanceScore(ctx, testTournament, 12, 4)
	require.ErrorIs(t, err, ErrDownstreamScoresExist)

	scoresAfter, err := f.r.performance.ListByTournament(ctx, nil, testTournament)
	require.NoError(t, err)
	slotsAfter, err := f.r.playoff.ListBracket(ctx, nil, testTournament, "A")
	require.NoError(t, err)

	if diff := cmp.Diff(scoresBefore, scoresAfter); diff != "" {
		t.Errorf("scores changed after rejected write (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(slotsBefore, slotsAfter); diff != "" {
		t.Errorf("bracket changed after rejected write (-before +after):\n%s", diff)
	}
}

func TestEditThatKeepsWinnerIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.fourTeams()

	f.enter(t, 11, 4, 300)
	f.enter(t, 12, 4, 200)
	f.enter(t, 11, 5, 150)

	require.NoError(t, f.write(12, 4, sheet(250, 0), false, true))
	assert.Equal(t, 11, f.slot(5, 1))

	score, err := f.svc.GetPerformanceScore(context.Background(), testTournament, 12, 4)
	require.NoError(t, err)
	require.NotNil(t, score.ComputedTotal)
	assert.InDelta(t, 250.0, *score.ComputedTotal, 1e-9)
}

func TestDeleteEmptiesDownstreamSlot(t *testing.T) {
	f := newFixture(t)
	f.fourTeams()
	ctx := context.Background()

	f.enter(t, 11, 4, 300)
	f.enter(t, 12, 4, 200)
	require.Equal(t, 11, f.slot(5, 1))

	require.NoError(t, f.svc.DeletePerformanceScore(ctx, testTournament, 12, 4))
	assert.Equal(t, models.TeamNull, f.slot(5, 1))
	assert.Equal(t, 12, f.slot(4, 2), "the team keeps its own slot")

	_, err := f.svc.GetPerformanceScore(ctx, testTournament, 12, 4)
	require.ErrorIs(t, err, ErrPerformanceScoreNotFound)

	err = f.svc.DeletePerformanceScore(ctx, testTournament, 12, 4)
	require.ErrorIs(t, err, ErrPerformanceScoreNotFound)
}

func TestEightTeamThirdPlace(t *testing.T) {
	f := newFixture(t)
	f.r.store.addBracket(models.PlayoffBracket{
		TournamentID:   testTournament,
		Name:           "A",
		FirstRunNumber: 4,
		FirstRoundSize: 8,
		ThirdPlace:     true,
	}, 1, 2, 3, 4, 5, 6, 7, 8)

	// The higher team number always wins.
	for team := 1; team <= 8; team++ {
		f.enter(t, team, 4, float64(team*10))
	}
	assert.Equal(t, []int{2, 4, 6, 8}, []int{f.slot(5, 1), f.slot(5, 2), f.slot(5, 3), f.slot(5, 4)})

	for _, team := range []int{2, 4, 6, 8} {
		f.enter(t, team, 5, float64(team*10))
	}
	assert.Equal(t, 4, f.slot(6, 1))
	assert.Equal(t, 8, f.slot(6, 2))
	assert.Equal(t, 2, f.slot(6, 3), "loser of the first semifinal plays for third place")
	assert.Equal(t, 6, f.slot(6, 4), "loser of the second semifinal plays for third place")

	for _, team := range []int{4, 8, 2, 6} {
		f.enter(t, team, 6, float64(team*10))
	}
	assert.Equal(t, 8, f.slot(7, 1), "champion")
	assert.Equal(t, 6, f.slot(7, 2), "third place")
}

func TestNoShow(t *testing.T) {
	t.Run("one side", func(t *testing.T) {
		f := newFixture(t)
		f.fourTeams()
		require.NoError(t, f.write(11, 4, models.RawScore{}, true, true))
		f.enter(t, 12, 4, 0)
		assert.Equal(t, 12, f.slot(5, 1), "a zero still beats a no-show")

		score, err := f.svc.GetPerformanceScore(context.Background(), testTournament, 11, 4)
		require.NoError(t, err)
		assert.Nil(t, score.ComputedTotal)
	})
	t.Run("both sides", func(t *testing.T) {
		f := newFixture(t)
		f.fourTeams()
		require.NoError(t, f.write(11, 4, models.RawScore{}, true, true))
		require.NoError(t, f.write(12, 4, models.RawScore{}, true, true))
		assert.Equal(t, models.TeamTie, f.slot(5, 1))
	})
}

func TestUnverifiedScoreDoesNotPropagate(t *testing.T) {
	f := newFixture(t)
	f.fourTeams()

	f.enter(t, 11, 4, 300)
	require.NoError(t, f.write(12, 4, sheet(200, 0), false, false))
	assert.Equal(t, models.TeamNull, f.slot(5, 1))
	require.Len(t, f.notifier.entered, 2, "unverified scores still reach the displays")
	assert.False(t, f.notifier.entered[1].Verified)

	require.NoError(t, f.write(12, 4, sheet(200, 0), false, true))
	assert.Equal(t, 11, f.slot(5, 1))
}

func TestByeAdvancesAndSurvivesDelete(t *testing.T) {
	f := newFixture(t)
	f.fourTeams(11, models.TeamBye, 13, 14)
	ctx := context.Background()

	f.enter(t, 11, 4, 0)
	assert.Equal(t, 11, f.slot(5, 1))

	require.NoError(t, f.svc.DeletePerformanceScore(ctx, testTournament, 11, 4))
	assert.Equal(t, 11, f.slot(5, 1), "a team that advanced on a bye keeps its place")
}

func TestTiesAndTiebreakers(t *testing.T) {
	t.Run("tie broken by precision", func(t *testing.T) {
		f := newFixture(t)
		f.fourTeams()
		require.NoError(t, f.write(11, 4, sheet(100, 2), false, true))
		require.NoError(t, f.write(12, 4, sheet(101, 1), false, true))
		assert.Equal(t, 11, f.slot(5, 1))
	})
	t.Run("unbroken tie", func(t *testing.T) {
		f := newFixture(t)
		f.fourTeams()
		require.NoError(t, f.write(11, 4, sheet(100, 1), false, true))
		require.NoError(t, f.write(12, 4, sheet(100, 1), false, true))
		assert.Equal(t, models.TeamTie, f.slot(5, 1))
	})
}

func TestSeedingRunMarksTournamentModified(t *testing.T) {
	f := newFixture(t)
	f.fourTeams()

	f.enter(t, 11, 2, 120)
	assert.True(t, f.r.store.tournament(testTournament).PerformanceSeedingModified)
	assert.Empty(t, f.notifier.entered)
	assert.Empty(t, f.notifier.updates)

	f.r.store.addTournament(models.Tournament{ID: testTournament}, models.TournamentParameters{SeedingRounds: 3})
	require.NoError(t, f.svc.DeletePerformanceScore(context.Background(), testTournament, 11, 2))
	assert.True(t, f.r.store.tournament(testTournament).PerformanceSeedingModified)
}

func TestStructuralErrorsRollBack(t *testing.T) {
	f := newFixture(t)
	f.fourTeams()
	ctx := context.Background()

	err := f.write(99, 4, sheet(10, 0), false, true)
	require.ErrorIs(t, err, ErrTeamNotInBracket)
	assert.True(t, IsInternal(err))
	_, err = f.svc.GetPerformanceScore(ctx, testTournament, 99, 4)
	require.ErrorIs(t, err, ErrPerformanceScoreNotFound, "the score write rolled back with the bracket update")

	// A team sitting in the result column has no match to play.
	f.r.store.setSlot(testTournament, "A", 6, 1, 13)
	err = f.write(13, 6, sheet(10, 0), false, true)
	require.ErrorIs(t, err, ErrMalformedRound)
}

func TestScoreValidation(t *testing.T) {
	f := newFixture(t)
	f.fourTeams()

	tests := []struct {
		name  string
		input PerformanceScoreInput
		want  error
	}{
		{"zero team", PerformanceScoreInput{TournamentID: testTournament, TeamNumber: 0, RunNumber: 4}, ErrValidationFailed},
		{"zero run", PerformanceScoreInput{TournamentID: testTournament, TeamNumber: 11, RunNumber: 0}, ErrValidationFailed},
		{"zero tournament", PerformanceScoreInput{TournamentID: 0, TeamNumber: 11, RunNumber: 4}, ErrValidationFailed},
		{"unknown tournament", PerformanceScoreInput{TournamentID: 7, TeamNumber: 11, RunNumber: 4}, ErrTournamentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.InsertOrUpdatePerformanceScore(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, f.r.store.commits)
}

func TestPickWinner(t *testing.T) {
	total := func(v float64) *float64 { return &v }
	played := func(team int, score float64, tiebreakers ...float64) MatchSide {
		return MatchSide{Team: team, Entered: true, Verified: true, Total: total(score), Tiebreakers: tiebreakers}
	}
	tbs := []challenge.Tiebreaker{{Goal: "precision", Winner: challenge.HighestWins}, {Goal: "time", Winner: challenge.LowestWins}}

	tests := []struct {
		name      string
		a, b      MatchSide
		criterion challenge.WinnerCriterion
		want      int
	}{
		{"higher wins", played(1, 10), played(2, 5), challenge.HighestWins, 1},
		{"lower wins", played(1, 10), played(2, 5), challenge.LowestWins, 2},
		{"bye on a", MatchSide{Team: models.TeamBye}, MatchSide{Team: 2}, challenge.HighestWins, 2},
		{"bye on b", played(1, 0), MatchSide{Team: models.TeamBye}, challenge.HighestWins, 1},
		{"tie sentinel", MatchSide{Team: models.TeamTie}, played(2, 5), challenge.HighestWins, models.TeamNull},
		{"not entered", played(1, 10), MatchSide{Team: 2}, challenge.HighestWins, models.TeamNull},
		{"no-show loses", MatchSide{Team: 1, Entered: true, NoShow: true}, played(2, 0), challenge.HighestWins, 2},
		{"both no-show", MatchSide{Team: 1, Entered: true, NoShow: true}, MatchSide{Team: 2, Entered: true, NoShow: true}, challenge.HighestWins, models.TeamTie},
		{"missing total", MatchSide{Team: 1, Entered: true}, played(2, 0), challenge.HighestWins, models.TeamNull},
		{"within tolerance", played(1, 10.0000001), played(2, 10), challenge.HighestWins, models.TeamTie},
		{"first tiebreaker", played(1, 10, 3, 50), played(2, 10, 2, 40), challenge.HighestWins, 1},
		{"second tiebreaker", played(1, 10, 3, 50), played(2, 10, 3, 40), challenge.HighestWins, 2},
		{"all tiebreakers equal", played(1, 10, 3, 40), played(2, 10, 3, 40), challenge.HighestWins, models.TeamTie},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PickWinner(tt.a, tt.b, tbs, tt.criterion))
		})
	}
}
