package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"pickme-game-service/internal/domain"
)

// Match is one pairwise comparison inside the current round.
type Match struct {
	Left  domain.Candidate `json:"left"`
	Right domain.Candidate `json:"right"`
}

// SelectResult reports whether a selection finished the tournament.
type SelectResult struct {
	Finished bool             `json:"finished"`
	Winner   domain.Candidate `json:"winner,omitempty"`
}

// Progress is the 1-based position within the current round.
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// BracketEngine drives one player through a single-elimination tournament:
// pairs are consumed two at a time, winners seed the next round, and the
// session terminates when one candidate remains. Every round transition
// produces fresh slices, so recorded rounds are never mutated after the fact.
type BracketEngine struct {
	clock    clockwork.Clock
	reporter WorldcupReporter

	mu           sync.Mutex
	worldcup     *domain.Worldcup
	candidates   []domain.Candidate
	currentRound []domain.Candidate
	nextRound    []domain.Candidate
	roundName    string
	startRound   int
	matchIndex   int
	selections   []domain.Selection
	top4         []domain.Candidate
	winner       *domain.Candidate
}

// BracketOption customizes engine construction.
type BracketOption func(*BracketEngine)

// WithBracketClock replaces the real clock used for result timestamps.
func WithBracketClock(clock clockwork.Clock) BracketOption {
	return func(e *BracketEngine) { e.clock = clock }
}

func NewBracketEngine(reporter WorldcupReporter, opts ...BracketOption) *BracketEngine {
	e := &BracketEngine{
		clock:    clockwork.NewRealClock(),
		reporter: reporter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartGame seeds a new tournament. The candidate count must be a power of
// two (and at least 2) so the bracket collapses to a single champion; other
// counts are rejected outright.
func (e *BracketEngine) StartGame(worldcup domain.Worldcup, candidates []domain.Candidate) error {
	if !isPowerOfTwo(len(candidates)) {
		return domain.ErrInvalidBracketSize
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	w := worldcup
	e.worldcup = &w
	e.candidates = append([]domain.Candidate(nil), candidates...)
	e.currentRound = append([]domain.Candidate(nil), candidates...)
	e.startRound = len(candidates)
	e.roundName = roundLabel(len(candidates))
	return nil
}

// CurrentMatch returns the pair at the match cursor. The second return is
// false once the round is exhausted or no game is running.
func (e *BracketEngine) CurrentMatch() (Match, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentMatchLocked()
}

func (e *BracketEngine) currentMatchLocked() (Match, bool) {
	if e.matchIndex >= len(e.currentRound)-1 {
		return Match{}, false
	}
	return Match{
		Left:  e.currentRound[e.matchIndex],
		Right: e.currentRound[e.matchIndex+1],
	}, true
}

// SelectCandidate records the winner of the current match and advances the
// cursor by two. When the round's pairs are consumed it collapses into the
// accumulated winners; a four-entrant round is snapshotted as the
// tournament's top 4 before being superseded. The result reports termination
// once a single candidate remains.
func (e *BracketEngine) SelectCandidate(candidateID string) (SelectResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	match, ok := e.currentMatchLocked()
	if !ok {
		return SelectResult{}, domain.ErrNoCurrentMatch
	}
	var chosen domain.Candidate
	switch candidateID {
	case match.Left.ID:
		chosen = match.Left
	case match.Right.ID:
		chosen = match.Right
	default:
		return SelectResult{}, domain.ErrCandidateNotInMatch
	}

	e.selections = append(e.selections, domain.Selection{
		LeftID:     match.Left.ID,
		RightID:    match.Right.ID,
		SelectedID: chosen.ID,
		Round:      e.roundName,
	})
	e.nextRound = append(e.nextRound, chosen)
	e.matchIndex += 2

	if e.matchIndex >= len(e.currentRound) {
		if len(e.currentRound) == 4 {
			e.top4 = append([]domain.Candidate(nil), e.currentRound...)
		}
		e.currentRound = append([]domain.Candidate(nil), e.nextRound...)
		e.nextRound = nil
		e.matchIndex = 0

		if len(e.currentRound) == 1 {
			winner := e.currentRound[0]
			e.winner = &winner
			return SelectResult{Finished: true, Winner: winner}, nil
		}
		e.roundName = roundLabel(len(e.currentRound))
	}
	return SelectResult{}, nil
}

// Progress reports the 1-based match position within the current round. The
// total is clamped to 1 so a finished bracket (champion only) never divides
// by zero.
func (e *BracketEngine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := len(e.currentRound) / 2
	if total < 1 {
		total = 1
	}
	current := e.matchIndex/2 + 1
	return Progress{
		Current:    current,
		Total:      total,
		Percentage: float64(current) / float64(total) * 100,
	}
}

// RoundName returns the label of the round in progress (64강 ... 결승).
func (e *BracketEngine) RoundName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roundName
}

// Selections returns the ordered selection history.
func (e *BracketEngine) Selections() []domain.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Selection(nil), e.selections...)
}

// Top4 returns the semifinal entrants captured when the four-candidate round
// completed, or nil for brackets smaller than 4.
func (e *BracketEngine) Top4() []domain.Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Candidate(nil), e.top4...)
}

// SaveResult submits the tournament outcome: a win/final stat bump for the
// champion, an appearance bump for every original entrant, then the result
// record itself. Calls run sequentially and the first failure aborts the
// remainder; increments already applied stay applied.
func (e *BracketEngine) SaveResult(ctx context.Context) SaveOutcome {
	e.mu.Lock()
	if e.worldcup == nil {
		e.mu.Unlock()
		return SaveOutcome{Err: domain.ErrWorldcupNotFound}
	}
	if e.winner == nil {
		e.mu.Unlock()
		return SaveOutcome{Err: domain.ErrNotFinished}
	}
	winner := *e.winner
	candidates := append([]domain.Candidate(nil), e.candidates...)
	result := domain.WorldcupResult{
		WorldcupID: e.worldcup.ID,
		WinnerID:   winner.ID,
		Top4:       candidateIDs(e.top4),
		Selections: append([]domain.Selection(nil), e.selections...),
		StartRound: e.startRound,
		CreatedAt:  e.clock.Now(),
	}
	e.mu.Unlock()

	winnerStats := domain.CandidateStats{
		WinCount:   domain.IntPtr(winner.WinCount + 1),
		FinalCount: domain.IntPtr(winner.FinalCount + 1),
	}
	if err := e.reporter.UpdateCandidateStats(ctx, winner.ID, winnerStats); err != nil {
		return SaveOutcome{Err: err}
	}
	for _, candidate := range candidates {
		stats := domain.CandidateStats{AppearCount: domain.IntPtr(candidate.AppearCount + 1)}
		if err := e.reporter.UpdateCandidateStats(ctx, candidate.ID, stats); err != nil {
			return SaveOutcome{Err: err}
		}
	}
	if err := e.reporter.SaveWorldcupResult(ctx, result); err != nil {
		return SaveOutcome{Err: err}
	}
	return SaveOutcome{Success: true}
}

// Winner returns the champion once the bracket has collapsed.
func (e *BracketEngine) Winner() (domain.Candidate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.winner == nil {
		return domain.Candidate{}, false
	}
	return *e.winner, true
}

// Reset clears all session state. Safe before the first game.
func (e *BracketEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *BracketEngine) resetLocked() {
	e.worldcup = nil
	e.candidates = nil
	e.currentRound = nil
	e.nextRound = nil
	e.roundName = ""
	e.startRound = 0
	e.matchIndex = 0
	e.selections = nil
	e.top4 = nil
	e.winner = nil
}

func candidateIDs(candidates []domain.Candidate) []string {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	return ids
}

func roundLabel(count int) string {
	if count == 2 {
		return "결승"
	}
	return fmt.Sprintf("%d강", count)
}

func isPowerOfTwo(n int) bool {
	return n >= 2 && n&(n-1) == 0
}
