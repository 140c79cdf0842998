package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jonboulle/clockwork"

	"pickme-game-service/internal/domain"
	"pickme-game-service/internal/engine"
)

func TestStartGameRejectsInvalidBracketSizes(t *testing.T) {
	eng := engine.NewBracketEngine(&fakeWorldcupReporter{})
	for _, count := range []int{0, 1, 3, 6} {
		if err := eng.StartGame(domain.Worldcup{ID: "wc-1"}, eightCandidates()[:count]); !errors.Is(err, domain.ErrInvalidBracketSize) {
			t.Fatalf("expected rejection for %d candidates, got %v", count, err)
		}
	}
	if err := eng.StartGame(domain.Worldcup{ID: "wc-1"}, eightCandidates()); err != nil {
		t.Fatalf("expected 8 candidates accepted: %v", err)
	}
}

func TestBracketCollapsesEightToChampion(t *testing.T) {
	eng := engine.NewBracketEngine(&fakeWorldcupReporter{})
	if err := eng.StartGame(domain.Worldcup{ID: "wc-1"}, eightCandidates()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if eng.RoundName() != "8강" {
		t.Fatalf("expected 8강, got %s", eng.RoundName())
	}

	// Quarterfinals: always pick the left side.
	for i := 0; i < 4; i++ {
		match, ok := eng.CurrentMatch()
		if !ok {
			t.Fatalf("expected match %d", i+1)
		}
		result, err := eng.SelectCandidate(match.Left.ID)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if result.Finished {
			t.Fatalf("finished too early after quarterfinal %d", i+1)
		}
	}
	if eng.RoundName() != "4강" {
		t.Fatalf("expected 4강 after collapse, got %s", eng.RoundName())
	}

	// Semifinals.
	for i := 0; i < 2; i++ {
		match, _ := eng.CurrentMatch()
		if _, err := eng.SelectCandidate(match.Left.ID); err != nil {
			t.Fatalf("semifinal select: %v", err)
		}
	}
	if eng.RoundName() != "결승" {
		t.Fatalf("expected 결승, got %s", eng.RoundName())
	}
	top4 := eng.Top4()
	if len(top4) != 4 {
		t.Fatalf("expected top-4 snapshot at the semifinal round, got %d", len(top4))
	}

	// Final.
	match, _ := eng.CurrentMatch()
	result, err := eng.SelectCandidate(match.Left.ID)
	if err != nil {
		t.Fatalf("final select: %v", err)
	}
	if !result.Finished || result.Winner.ID != "c1" {
		t.Fatalf("expected c1 as champion, got %+v", result)
	}
	if _, ok := eng.CurrentMatch(); ok {
		t.Fatalf("expected no match after termination")
	}

	selections := eng.Selections()
	if len(selections) != 7 {
		t.Fatalf("expected N-1=7 selections, got %d", len(selections))
	}
	rounds := map[string]int{}
	for _, s := range selections {
		rounds[s.Round]++
	}
	if rounds["8강"] != 4 || rounds["4강"] != 2 || rounds["결승"] != 1 {
		t.Fatalf("unexpected round labels %v", rounds)
	}
}

func TestSelectionRecordsMatchSides(t *testing.T) {
	eng := engine.NewBracketEngine(&fakeWorldcupReporter{})
	if err := eng.StartGame(domain.Worldcup{ID: "wc-1"}, eightCandidates()); err != nil {
		t.Fatalf("start: %v", err)
	}
	match, _ := eng.CurrentMatch()
	if _, err := eng.SelectCandidate(match.Right.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	selection := eng.Selections()[0]
	if selection.LeftID != "c1" || selection.RightID != "c2" || selection.SelectedID != "c2" {
		t.Fatalf("unexpected selection %+v", selection)
	}

	if _, err := eng.SelectCandidate("c1"); !errors.Is(err, domain.ErrCandidateNotInMatch) {
		t.Fatalf("expected not-in-match error for eliminated candidate, got %v", err)
	}
}

func TestProgressOnFreshAndAdvancedRound(t *testing.T) {
	eng := engine.NewBracketEngine(&fakeWorldcupReporter{})
	if err := eng.StartGame(domain.Worldcup{ID: "wc-1"}, eightCandidates()); err != nil {
		t.Fatalf("start: %v", err)
	}

	progress := eng.Progress()
	if progress.Current != 1 || progress.Total != 4 || progress.Percentage != 25 {
		t.Fatalf("unexpected fresh progress %+v", progress)
	}

	match, _ := eng.CurrentMatch()
	if _, err := eng.SelectCandidate(match.Left.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	progress = eng.Progress()
	if progress.Current != 2 || progress.Total != 4 || progress.Percentage != 50 {
		t.Fatalf("unexpected progress after one selection %+v", progress)
	}
}

func TestProgressTotalNeverZero(t *testing.T) {
	eng := engine.NewBracketEngine(&fakeWorldcupReporter{})
	if err := eng.StartGame(domain.Worldcup{ID: "wc-1"}, eightCandidates()[:2]); err != nil {
		t.Fatalf("start: %v", err)
	}
	match, _ := eng.CurrentMatch()
	if _, err := eng.SelectCandidate(match.Left.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	// Only the champion remains; total clamps to 1.
	progress := eng.Progress()
	if progress.Total != 1 {
		t.Fatalf("expected clamped total 1, got %+v", progress)
	}
}

func TestSaveResultOrderingAndPayload(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reporter := &fakeWorldcupReporter{}
	eng := engine.NewBracketEngine(reporter, engine.WithBracketClock(clock))
	playBracket(t, eng, eightCandidates())

	outcome := eng.SaveResult(context.Background())
	if !outcome.Success || outcome.Err != nil {
		t.Fatalf("expected success, got %+v", outcome)
	}

	// Winner patch first, then one appearance patch per original entrant.
	if len(reporter.statCalls) != 9 {
		t.Fatalf("expected 1 winner + 8 appearance updates, got %d", len(reporter.statCalls))
	}
	first := reporter.statCalls[0]
	if first.candidateID != "c1" || first.stats.WinCount == nil || *first.stats.WinCount != 1 ||
		first.stats.FinalCount == nil || *first.stats.FinalCount != 1 || first.stats.AppearCount != nil {
		t.Fatalf("unexpected winner patch %+v", first)
	}
	for i, call := range reporter.statCalls[1:] {
		wantID := fmt.Sprintf("c%d", i+1)
		if call.candidateID != wantID {
			t.Fatalf("appearance updates out of order: got %s at %d", call.candidateID, i)
		}
		if call.stats.AppearCount == nil || *call.stats.AppearCount != 1 || call.stats.WinCount != nil {
			t.Fatalf("unexpected appearance patch %+v", call)
		}
	}

	if len(reporter.results) != 1 {
		t.Fatalf("expected 1 result record, got %d", len(reporter.results))
	}
	result := reporter.results[0]
	if result.WorldcupID != "wc-1" || result.WinnerID != "c1" || result.StartRound != 8 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Top4) != 4 || len(result.Selections) != 7 {
		t.Fatalf("unexpected result history %+v", result)
	}
	if !result.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("expected clock timestamp, got %v", result.CreatedAt)
	}
}

func TestSaveResultAbortsOnFirstFailure(t *testing.T) {
	boom := errors.New("store down")
	reporter := &fakeWorldcupReporter{failAfter: 3, err: boom}
	eng := engine.NewBracketEngine(reporter)
	playBracket(t, eng, eightCandidates())

	outcome := eng.SaveResult(context.Background())
	if outcome.Success || !errors.Is(outcome.Err, boom) {
		t.Fatalf("expected failure, got %+v", outcome)
	}
	if len(reporter.statCalls) != 3 {
		t.Fatalf("expected sequence stopped at call 3, got %d", len(reporter.statCalls))
	}
	if len(reporter.results) != 0 {
		t.Fatalf("expected no result record after aborted stats")
	}
	// The in-memory outcome is still inspectable.
	if winner, ok := eng.Winner(); !ok || winner.ID != "c1" {
		t.Fatalf("expected winner retained, got %+v ok=%v", winner, ok)
	}
}

func TestSaveResultRequiresWinner(t *testing.T) {
	eng := engine.NewBracketEngine(&fakeWorldcupReporter{})
	if err := eng.StartGame(domain.Worldcup{ID: "wc-1"}, eightCandidates()); err != nil {
		t.Fatalf("start: %v", err)
	}
	outcome := eng.SaveResult(context.Background())
	if outcome.Success || !errors.Is(outcome.Err, domain.ErrNotFinished) {
		t.Fatalf("expected not-finished error, got %+v", outcome)
	}
}

func TestBracketResetBeforeStart(t *testing.T) {
	eng := engine.NewBracketEngine(&fakeWorldcupReporter{})
	eng.Reset()
	if _, ok := eng.CurrentMatch(); ok {
		t.Fatalf("expected no match on fresh engine")
	}
	if _, err := eng.SelectCandidate("c1"); !errors.Is(err, domain.ErrNoCurrentMatch) {
		t.Fatalf("expected no-current-match error, got %v", err)
	}
}

// helpers

func eightCandidates() []domain.Candidate {
	candidates := make([]domain.Candidate, 0, 8)
	for i := 1; i <= 8; i++ {
		candidates = append(candidates, domain.Candidate{
			ID:         fmt.Sprintf("c%d", i),
			WorldcupID: "wc-1",
			Name:       fmt.Sprintf("candidate %d", i),
		})
	}
	return candidates
}

// playBracket always picks the left side until the bracket terminates.
func playBracket(t *testing.T, eng *engine.BracketEngine, candidates []domain.Candidate) {
	t.Helper()
	if err := eng.StartGame(domain.Worldcup{ID: "wc-1"}, candidates); err != nil {
		t.Fatalf("start: %v", err)
	}
	for {
		match, ok := eng.CurrentMatch()
		if !ok {
			t.Fatalf("ran out of matches before termination")
		}
		result, err := eng.SelectCandidate(match.Left.ID)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if result.Finished {
			return
		}
	}
}

type candidateStatCall struct {
	candidateID string
	stats       domain.CandidateStats
}

type fakeWorldcupReporter struct {
	statCalls []candidateStatCall
	results   []domain.WorldcupResult
	failAfter int // fail the Nth stat call (1-based); 0 disables
	err       error
}

func (f *fakeWorldcupReporter) UpdateCandidateStats(_ context.Context, candidateID string, stats domain.CandidateStats) error {
	f.statCalls = append(f.statCalls, candidateStatCall{candidateID: candidateID, stats: stats})
	if f.failAfter > 0 && len(f.statCalls) == f.failAfter {
		return f.err
	}
	return nil
}

func (f *fakeWorldcupReporter) SaveWorldcupResult(_ context.Context, result domain.WorldcupResult) error {
	f.results = append(f.results, result)
	return nil
}
