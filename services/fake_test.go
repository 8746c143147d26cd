package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/Dosada05/playoff-scoring/brackets"
	"github.com/Dosada05/playoff-scoring/models"
	"github.com/Dosada05/playoff-scoring/repositories"
	"github.com/Dosada05/playoff-scoring/storage"
)

var (
	_ repositories.PerformanceRepository = (*fakePerformance)(nil)
	_ repositories.SubjectiveRepository  = (*fakeSubjective)(nil)
	_ repositories.PlayoffRepository     = (*fakePlayoff)(nil)
	_ repositories.TournamentRepository  = (*fakeTournaments)(nil)
	_ repositories.TeamRepository        = (*fakeTeams)(nil)
	_ repositories.SummaryRepository     = (*fakeSummaries)(nil)
	_ repositories.Transactor            = (*fakeTransactor)(nil)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type perfKey struct{ tournament, team, run int }

type slotKey struct {
	tournament int
	bracket    string
	run, line  int
}

type bracketKey struct {
	tournament int
	bracket    string
}

type subjKey struct {
	tournament int
	category   string
	team       int
	judge      string
}

// storeData is everything the fake store holds. It is copied whole for
// transaction snapshots.
type storeData struct {
	tournaments map[int]models.Tournament
	params      map[int]models.TournamentParameters
	perf        map[perfKey]models.PerformanceScore
	subj        map[subjKey]models.SubjectiveScore
	brackets    map[bracketKey]models.PlayoffBracket
	slots       map[slotKey]models.BracketSlot
	teams       []models.TournamentTeam
	judges      []repositories.Judge
	final       map[int][]models.FinalComputedScore
	overall     map[int][]models.OverallScore
}

func (d storeData) clone() storeData {
	out := storeData{
		tournaments: make(map[int]models.Tournament, len(d.tournaments)),
		params:      make(map[int]models.TournamentParameters, len(d.params)),
		perf:        make(map[perfKey]models.PerformanceScore, len(d.perf)),
		subj:        make(map[subjKey]models.SubjectiveScore, len(d.subj)),
		brackets:    make(map[bracketKey]models.PlayoffBracket, len(d.brackets)),
		slots:       make(map[slotKey]models.BracketSlot, len(d.slots)),
		teams:       append([]models.TournamentTeam(nil), d.teams...),
		judges:      append([]repositories.Judge(nil), d.judges...),
		final:       make(map[int][]models.FinalComputedScore, len(d.final)),
		overall:     make(map[int][]models.OverallScore, len(d.overall)),
	}
	for k, v := range d.tournaments {
		out.tournaments[k] = v
	}
	for k, v := range d.params {
		out.params[k] = v
	}
	for k, v := range d.perf {
		out.perf[k] = v
	}
	for k, v := range d.subj {
		out.subj[k] = v
	}
	for k, v := range d.brackets {
		out.brackets[k] = v
	}
	for k, v := range d.slots {
		out.slots[k] = v
	}
	for k, v := range d.final {
		out.final[k] = append([]models.FinalComputedScore(nil), v...)
	}
	for k, v := range d.overall {
		out.overall[k] = append([]models.OverallScore(nil), v...)
	}
	return out
}

// fakeStore is an in-memory relational store. txMu serializes transactions,
// mu guards the data for every single call.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data storeData

	commits   int
	rollbacks int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: storeData{}.clone()}
}

func (s *fakeStore) snapshot() storeData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.clone()
}

func (s *fakeStore) restore(d storeData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = d
}

func (s *fakeStore) addTournament(t models.Tournament, params models.TournamentParameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.tournaments[t.ID] = t
	s.data.params[t.ID] = params
}

func (s *fakeStore) addTeam(t models.TournamentTeam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.teams = append(s.data.teams, t)
}

// addBracket creates every slot of the bracket empty and places the first
// round teams on lines 1..n.
func (s *fakeStore) addBracket(b models.PlayoffBracket, firstRound ...int) {
	layout, err := brackets.NewLayout(b)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.brackets[bracketKey{b.TournamentID, b.Name}] = b
	for _, rl := range layout.Slots() {
		s.data.slots[slotKey{b.TournamentID, b.Name, rl[0], rl[1]}] = models.BracketSlot{
			Bracket:      b.Name,
			TournamentID: b.TournamentID,
			RunNumber:    rl[0],
			LineNumber:   rl[1],
			TeamNumber:   models.TeamNull,
		}
	}
	for i, team := range firstRound {
		k := slotKey{b.TournamentID, b.Name, b.FirstRunNumber, i + 1}
		slot := s.data.slots[k]
		slot.TeamNumber = team
		s.data.slots[k] = slot
	}
}

func (s *fakeStore) setSlot(tournamentID int, bracket string, run, line, team int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := slotKey{tournamentID, bracket, run, line}
	slot := s.data.slots[k]
	slot.TeamNumber = team
	s.data.slots[k] = slot
}

func (s *fakeStore) slot(tournamentID int, bracket string, run, line int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.data.slots[slotKey{tournamentID, bracket, run, line}]
	if !ok {
		panic(fmt.Sprintf("no slot %s run %d line %d", bracket, run, line))
	}
	return slot.TeamNumber
}

func (s *fakeStore) putScore(score models.PerformanceScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.perf[perfKey{score.TournamentID, score.TeamNumber, score.RunNumber}] = score
}

func (s *fakeStore) putSubjective(score models.SubjectiveScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.subj[subjKey{score.TournamentID, score.Category, score.TeamNumber, score.JudgeID}] = score
}

func (s *fakeStore) addJudge(j repositories.Judge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.judges = append(s.data.judges, j)
}

func (s *fakeStore) tournament(id int) models.Tournament {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.tournaments[id]
}

// fakeTransactor runs one transaction at a time and puts the snapshot back
// when fn fails.
type fakeTransactor struct {
	store *fakeStore
}

func (t *fakeTransactor) WithinTx(ctx context.Context, _ *sql.TxOptions, fn repositories.TxFunc) error {
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()

	before := t.store.snapshot()
	if err := fn(ctx, nil); err != nil {
		t.store.restore(before)
		t.store.mu.Lock()
		t.store.rollbacks++
		t.store.mu.Unlock()
		return err
	}
	t.store.mu.Lock()
	t.store.commits++
	t.store.mu.Unlock()
	return nil
}

type fakePerformance struct{ s *fakeStore }

func (f *fakePerformance) Insert(_ context.Context, _ repositories.SQLExecutor, score *models.PerformanceScore) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	k := perfKey{score.TournamentID, score.TeamNumber, score.RunNumber}
	if _, ok := f.s.data.perf[k]; ok {
		return repositories.ErrPerformanceScoreConflict
	}
	f.s.data.perf[k] = *score
	return nil
}

func (f *fakePerformance) Update(_ context.Context, _ repositories.SQLExecutor, score *models.PerformanceScore) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	k := perfKey{score.TournamentID, score.TeamNumber, score.RunNumber}
	if _, ok := f.s.data.perf[k]; !ok {
		return 0, nil
	}
	f.s.data.perf[k] = *score
	return 1, nil
}

func (f *fakePerformance) Upsert(_ context.Context, _ repositories.SQLExecutor, score *models.PerformanceScore) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	k := perfKey{score.TournamentID, score.TeamNumber, score.RunNumber}
	_, existed := f.s.data.perf[k]
	f.s.data.perf[k] = *score
	return !existed, nil
}

func (f *fakePerformance) Get(_ context.Context, _ repositories.SQLExecutor, tournamentID, teamNumber, runNumber int) (*models.PerformanceScore, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	score, ok := f.s.data.perf[perfKey{tournamentID, teamNumber, runNumber}]
	if !ok {
		return nil, repositories.ErrPerformanceScoreNotFound
	}
	return &score, nil
}

func (f *fakePerformance) GetComputedTotal(ctx context.Context, exec repositories.SQLExecutor, tournamentID, teamNumber, runNumber int) (*float64, error) {
	score, err := f.Get(ctx, exec, tournamentID, teamNumber, runNumber)
	if err != nil {
		return nil, nil
	}
	return score.ComputedTotal, nil
}

func (f *fakePerformance) Exists(_ context.Context, _ repositories.SQLExecutor, tournamentID, teamNumber, runNumber int) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	_, ok := f.s.data.perf[perfKey{tournamentID, teamNumber, runNumber}]
	return ok, nil
}

func (f *fakePerformance) Delete(_ context.Context, _ repositories.SQLExecutor, tournamentID, teamNumber, runNumber int) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	k := perfKey{tournamentID, teamNumber, runNumber}
	if _, ok := f.s.data.perf[k]; !ok {
		return repositories.ErrPerformanceScoreNotFound
	}
	delete(f.s.data.perf, k)
	return nil
}

func (f *fakePerformance) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]models.PerformanceScore, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.PerformanceScore
	for k, v := range f.s.data.perf {
		if k.tournament == tournamentID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TeamNumber != out[j].TeamNumber {
			return out[i].TeamNumber < out[j].TeamNumber
		}
		return out[i].RunNumber < out[j].RunNumber
	})
	return out, nil
}

func (f *fakePerformance) UpdateComputedTotal(_ context.Context, _ repositories.SQLExecutor, tournamentID, teamNumber, runNumber int, total *float64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	k := perfKey{tournamentID, teamNumber, runNumber}
	score, ok := f.s.data.perf[k]
	if !ok {
		return repositories.ErrPerformanceScoreNotFound
	}
	score.ComputedTotal = total
	f.s.data.perf[k] = score
	return nil
}

type fakeSubjective struct{ s *fakeStore }

func (f *fakeSubjective) Upsert(_ context.Context, _ repositories.SQLExecutor, score *models.SubjectiveScore) error {
	f.s.putSubjective(*score)
	return nil
}

func (f *fakeSubjective) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]models.SubjectiveScore, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.SubjectiveScore
	for k, v := range f.s.data.subj {
		if k.tournament == tournamentID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].TeamNumber != out[j].TeamNumber {
			return out[i].TeamNumber < out[j].TeamNumber
		}
		return out[i].JudgeID < out[j].JudgeID
	})
	return out, nil
}

func (f *fakeSubjective) UpdateComputedTotal(_ context.Context, _ repositories.SQLExecutor, score models.SubjectiveScore, total *float64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	k := subjKey{score.TournamentID, score.Category, score.TeamNumber, score.JudgeID}
	stored, ok := f.s.data.subj[k]
	if !ok {
		return repositories.ErrSubjectiveScoreNotFound
	}
	stored.ComputedTotal = total
	f.s.data.subj[k] = stored
	return nil
}

type fakePlayoff struct{ s *fakeStore }

func (f *fakePlayoff) FindSlotForTeam(_ context.Context, _ repositories.SQLExecutor, tournamentID, teamNumber, runNumber int) (string, int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var found []models.BracketSlot
	for k, v := range f.s.data.slots {
		if k.tournament == tournamentID && k.run == runNumber && v.TeamNumber == teamNumber {
			found = append(found, v)
		}
	}
	switch len(found) {
	case 0:
		return "", 0, fmt.Errorf("%w: team %d, run %d", repositories.ErrTeamNotInBracket, teamNumber, runNumber)
	case 1:
		return found[0].Bracket, found[0].LineNumber, nil
	}
	return "", 0, fmt.Errorf("%w: team %d, run %d", repositories.ErrTeamInTwoSlots, teamNumber, runNumber)
}

func (f *fakePlayoff) SlotAt(_ context.Context, _ repositories.SQLExecutor, tournamentID int, bracket string, runNumber, lineNumber int) (*models.BracketSlot, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	slot, ok := f.s.data.slots[slotKey{tournamentID, bracket, runNumber, lineNumber}]
	if !ok {
		return nil, fmt.Errorf("%w: bracket %q run %d line %d", repositories.ErrSlotNotFound, bracket, runNumber, lineNumber)
	}
	return &slot, nil
}

func (f *fakePlayoff) TeamAt(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, bracket string, runNumber, lineNumber int) (int, error) {
	slot, err := f.SlotAt(ctx, exec, tournamentID, bracket, runNumber, lineNumber)
	if err != nil {
		return models.TeamNull, err
	}
	return slot.TeamNumber, nil
}

func (f *fakePlayoff) SetTeam(_ context.Context, _ repositories.SQLExecutor, tournamentID int, bracket string, runNumber, lineNumber, team int) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	k := slotKey{tournamentID, bracket, runNumber, lineNumber}
	slot, ok := f.s.data.slots[k]
	if !ok {
		return fmt.Errorf("%w: bracket %q run %d line %d", repositories.ErrSlotNotFound, bracket, runNumber, lineNumber)
	}
	slot.TeamNumber = team
	slot.Printed = false
	f.s.data.slots[k] = slot
	return nil
}

func (f *fakePlayoff) ListBracket(_ context.Context, _ repositories.SQLExecutor, tournamentID int, bracket string) ([]models.BracketSlot, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.BracketSlot
	for k, v := range f.s.data.slots {
		if k.tournament == tournamentID && k.bracket == bracket {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RunNumber != out[j].RunNumber {
			return out[i].RunNumber < out[j].RunNumber
		}
		return out[i].LineNumber < out[j].LineNumber
	})
	return out, nil
}

func (f *fakePlayoff) GetBracket(_ context.Context, _ repositories.SQLExecutor, tournamentID int, bracket string) (*models.PlayoffBracket, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	b, ok := f.s.data.brackets[bracketKey{tournamentID, bracket}]
	if !ok {
		return nil, fmt.Errorf("%w: %q", repositories.ErrBracketNotFound, bracket)
	}
	return &b, nil
}

func (f *fakePlayoff) ListBrackets(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]models.PlayoffBracket, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.PlayoffBracket
	for k, v := range f.s.data.brackets {
		if k.tournament == tournamentID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeTournaments struct{ s *fakeStore }

func (f *fakeTournaments) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	t, ok := f.s.data.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return &t, nil
}

func (f *fakeTournaments) GetParameters(_ context.Context, _ repositories.SQLExecutor, id int) (models.TournamentParameters, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if p, ok := f.s.data.params[id]; ok {
		return p, nil
	}
	return models.DefaultTournamentParameters(), nil
}

func (f *fakeTournaments) SetPerformanceSeedingModified(_ context.Context, _ repositories.SQLExecutor, id int, modified bool) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	t, ok := f.s.data.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.PerformanceSeedingModified = modified
	f.s.data.tournaments[id] = t
	return nil
}

type fakeTeams struct{ s *fakeStore }

func (f *fakeTeams) ListTournamentTeams(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]models.TournamentTeam, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.TournamentTeam
	for _, t := range f.s.data.teams {
		if t.TournamentID == tournamentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTeams) ListJudges(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]repositories.Judge, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []repositories.Judge
	for _, j := range f.s.data.judges {
		if j.TournamentID == tournamentID {
			out = append(out, j)
		}
	}
	return out, nil
}

type fakeSummaries struct{ s *fakeStore }

func (f *fakeSummaries) Replace(_ context.Context, _ repositories.SQLExecutor, summary *models.TournamentSummary) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.data.final[summary.TournamentID] = append([]models.FinalComputedScore(nil), summary.Scores...)
	f.s.data.overall[summary.TournamentID] = append([]models.OverallScore(nil), summary.Overall...)
	return nil
}

func (f *fakeSummaries) ListFinalScores(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]models.FinalComputedScore, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return append([]models.FinalComputedScore(nil), f.s.data.final[tournamentID]...), nil
}

func (f *fakeSummaries) ListOverallScores(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]models.OverallScore, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return append([]models.OverallScore(nil), f.s.data.overall[tournamentID]...), nil
}

// recordingNotifier keeps every notification it was handed.
type recordingNotifier struct {
	mu      sync.Mutex
	entered []brackets.ScoreEntered
	updates []brackets.BracketUpdate
}

func (r *recordingNotifier) NotifyScoreEntered(_ context.Context, msg brackets.ScoreEntered) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entered = append(r.entered, msg)
}

func (r *recordingNotifier) NotifyBracketUpdate(_ context.Context, msg brackets.BracketUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, msg)
}

type fakeArchive struct {
	err      error
	archived []*models.TournamentSummary
}

func (f *fakeArchive) Archive(_ context.Context, summary *models.TournamentSummary) (*storage.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.archived = append(f.archived, summary)
	return &storage.UploadResult{Key: storage.SummaryKey(summary.TournamentID, summary.ComputedAt)}, nil
}

// repos bundles the fakes over one store.
type repos struct {
	store       *fakeStore
	tx          *fakeTransactor
	performance *fakePerformance
	subjective  *fakeSubjective
	playoff     *fakePlayoff
	tournaments *fakeTournaments
	teams       *fakeTeams
	summaries   *fakeSummaries
}

func newRepos() *repos {
	store := newFakeStore()
	return &repos{
		store:       store,
		tx:          &fakeTransactor{store: store},
		performance: &fakePerformance{s: store},
		subjective:  &fakeSubjective{s: store},
		playoff:     &fakePlayoff{s: store},
		tournaments: &fakeTournaments{s: store},
		teams:       &fakeTeams{s: store},
		summaries:   &fakeSummaries{s: store},
	}
}
