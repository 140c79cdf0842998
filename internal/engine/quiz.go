package engine

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/jonboulle/clockwork"

	"pickme-game-service/internal/domain"
)

const defaultQuestionTime = 10

// AnonymousNickname is stored when a result is saved without a signed-in player.
const AnonymousNickname = "익명"

// Player identifies who is playing a session. Zero value means anonymous.
type Player struct {
	UserID   string
	Nickname string
}

// AnswerResult is the immediate outcome of checking one answer.
type AnswerResult struct {
	Correct bool `json:"correct"`
	Awarded int  `json:"score"`
}

// QuizEngine drives a single player through one timed short-answer quiz:
// question progression, per-question countdowns, answer evaluation, scoring
// and tiering. One engine owns one session at a time; all state is mutated
// through its methods only. An injected clockwork.Clock makes the countdowns
// deterministic under test.
type QuizEngine struct {
	clock        clockwork.Clock
	reporter     QuizReporter
	scoring      Scoring
	passAllowed  bool
	sessionLimit int
	defaultTime  int

	mu                sync.Mutex
	quiz              *domain.Quiz
	questions         []domain.Question
	index             int
	answers           []domain.AnswerRecord
	score             int
	tier              string
	active            bool
	resolved          bool
	timedOut          bool
	questionRemaining int
	sessionRemaining  int

	questionGen  uint64
	sessionGen   uint64
	stopQuestion chan struct{}
	stopSession  chan struct{}
}

// QuizOption customizes engine construction.
type QuizOption func(*QuizEngine)

// WithClock replaces the real clock, for deterministic timers in tests.
func WithClock(clock clockwork.Clock) QuizOption {
	return func(e *QuizEngine) { e.clock = clock }
}

// WithScoring swaps the scoring scheme.
func WithScoring(s Scoring) QuizOption {
	return func(e *QuizEngine) { e.scoring = s }
}

// WithPass enables the optional pass capability (re-enqueue the current
// question at the end of the list instead of resolving it).
func WithPass() QuizOption {
	return func(e *QuizEngine) { e.passAllowed = true }
}

// WithSessionLimit arms an overall session countdown (seconds) that runs
// alongside the per-question timers and ends the game when it expires.
func WithSessionLimit(seconds int) QuizOption {
	return func(e *QuizEngine) { e.sessionLimit = seconds }
}

// WithQuestionTime overrides the fallback countdown used for questions that
// carry no time limit of their own.
func WithQuestionTime(seconds int) QuizOption {
	return func(e *QuizEngine) {
		if seconds > 0 {
			e.defaultTime = seconds
		}
	}
}

func NewQuizEngine(reporter QuizReporter, opts ...QuizOption) *QuizEngine {
	e := &QuizEngine{
		clock:       clockwork.NewRealClock(),
		reporter:    reporter,
		scoring:     FlatScoring(),
		defaultTime: defaultQuestionTime,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartGame resets all session state and begins a new play-through. The first
// question's countdown is armed immediately when the list is non-empty. Any
// timers left over from a previous session are cancelled first so a stale
// tick can never fire into the new session.
func (e *QuizEngine) StartGame(quiz domain.Quiz, questions []domain.Question) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	q := quiz
	e.quiz = &q
	e.questions = append([]domain.Question(nil), questions...)
	e.active = true
	if len(e.questions) > 0 {
		e.armQuestionTimerLocked()
	}
	if e.sessionLimit > 0 {
		e.armSessionTimerLocked()
	}
}

// CurrentQuestion returns the question at the cursor. The second return is
// false once the session ran past the last question or never had one.
func (e *QuizEngine) CurrentQuestion() (domain.Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLocked()
}

func (e *QuizEngine) currentLocked() (domain.Question, bool) {
	if e.index < len(e.questions) {
		return e.questions[e.index], true
	}
	return domain.Question{}, false
}

// CheckAnswer normalizes the supplied answer against the canonical one and
// records the outcome. It stops the question countdown so the timeout path
// cannot double-record, and it does not advance the cursor.
func (e *QuizEngine) CheckAnswer(userAnswer string) (AnswerResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return AnswerResult{}, domain.ErrSessionNotActive
	}
	question, ok := e.currentLocked()
	if !ok {
		return AnswerResult{}, domain.ErrNoCurrentQuestion
	}
	if e.resolved {
		return AnswerResult{}, domain.ErrQuestionResolved
	}
	e.stopQuestionTimerLocked()

	correct := normalizeAnswer(userAnswer) == normalizeAnswer(question.Answer)
	awarded := 0
	if correct {
		awarded = e.scoring.AwardFor(e.questionRemaining)
		e.score += awarded
	}
	e.answers = append(e.answers, domain.AnswerRecord{
		QuestionID:     question.ID,
		QuestionNumber: question.QuestionNumber,
		UserAnswer:     userAnswer,
		CorrectAnswer:  question.Answer,
		Correct:        correct,
		TimeSpent:      e.questionTime(question) - e.questionRemaining,
		Score:          awarded,
	})
	e.resolved = true
	return AnswerResult{Correct: correct, Awarded: awarded}, nil
}

// Skip resolves the current question as skipped with zero score. It is called
// by the host explicitly, or internally when the question countdown expires.
func (e *QuizEngine) Skip() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return domain.ErrSessionNotActive
	}
	if _, ok := e.currentLocked(); !ok {
		return domain.ErrNoCurrentQuestion
	}
	if e.resolved {
		return domain.ErrQuestionResolved
	}
	e.stopQuestionTimerLocked()
	e.recordSkipLocked()
	return nil
}

func (e *QuizEngine) recordSkipLocked() {
	question, ok := e.currentLocked()
	if !ok || e.resolved {
		return
	}
	e.answers = append(e.answers, domain.AnswerRecord{
		QuestionID:     question.ID,
		QuestionNumber: question.QuestionNumber,
		CorrectAnswer:  question.Answer,
		Skipped:        true,
		TimeSpent:      e.questionTime(question),
	})
	e.resolved = true
}

// PassCurrent re-enqueues the current question at the end of the pending list
// and advances to the next one. It records a zero-score "passed" entry so the
// history still mirrors every resolution in order.
func (e *QuizEngine) PassCurrent() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.passAllowed {
		return domain.ErrPassNotAllowed
	}
	if !e.active {
		return domain.ErrSessionNotActive
	}
	question, ok := e.currentLocked()
	if !ok {
		return domain.ErrNoCurrentQuestion
	}
	if e.resolved {
		return domain.ErrQuestionResolved
	}
	e.answers = append(e.answers, domain.AnswerRecord{
		QuestionID:     question.ID,
		QuestionNumber: question.QuestionNumber,
		CorrectAnswer:  question.Answer,
		Passed:         true,
		TimeSpent:      e.questionTime(question) - e.questionRemaining,
	})
	e.questions = append(e.questions, question)
	e.index++
	e.resolved = false
	e.timedOut = false
	e.armQuestionTimerLocked()
	return nil
}

// NextQuestion advances the cursor. It reports true exactly when the cursor
// has run past the last question, at which point the session is terminal.
func (e *QuizEngine) NextQuestion() (finished bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index++
	e.resolved = false
	e.timedOut = false
	if e.index >= len(e.questions) {
		e.endGameLocked()
		return true
	}
	e.armQuestionTimerLocked()
	return false
}

// EndGame stops all timers and fixes the tier from the final score. Calling
// it again before a reset is a no-op.
func (e *QuizEngine) EndGame() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.endGameLocked()
}

func (e *QuizEngine) endGameLocked() {
	if !e.active && e.tier != "" {
		return
	}
	e.active = false
	e.stopTimersLocked()
	e.tier = e.scoring.TierFor(e.score)
}

// SaveResult assembles the result payload and submits it, followed by one
// stat update per answered (non-skipped, non-passed) history entry. Calls run
// sequentially; the first failure aborts the rest and is reported in the
// outcome. Already-submitted stat updates are not rolled back, and the
// in-memory score and tier stay inspectable either way.
func (e *QuizEngine) SaveResult(ctx context.Context, player Player) SaveOutcome {
	e.mu.Lock()
	if e.quiz == nil {
		e.mu.Unlock()
		return SaveOutcome{Err: domain.ErrQuizNotFound}
	}
	nickname := player.Nickname
	if nickname == "" {
		nickname = AnonymousNickname
	}
	result := domain.QuizResult{
		QuizID:         e.quiz.ID,
		UserID:         player.UserID,
		Nickname:       nickname,
		Score:          e.score,
		CorrectCount:   e.correctCountLocked(),
		TotalQuestions: len(e.questions),
		RemainingTime:  e.sessionRemaining,
		Tier:           e.tier,
		CompletedAt:    e.clock.Now(),
	}
	answers := append([]domain.AnswerRecord(nil), e.answers...)
	byID := make(map[string]domain.Question, len(e.questions))
	for _, q := range e.questions {
		byID[q.ID] = q
	}
	score, tier := e.score, e.tier
	e.mu.Unlock()

	if err := e.reporter.SaveQuizResult(ctx, result); err != nil {
		return SaveOutcome{Err: err}
	}
	for _, answer := range answers {
		if answer.Skipped || answer.Passed {
			continue
		}
		question, ok := byID[answer.QuestionID]
		if !ok {
			continue
		}
		stats := domain.QuestionStats{
			CorrectCount: question.CorrectCount,
			TotalCount:   question.TotalCount + 1,
		}
		if answer.Correct {
			stats.CorrectCount++
		}
		if err := e.reporter.UpdateQuestionStats(ctx, question.ID, stats); err != nil {
			return SaveOutcome{Err: err}
		}
	}
	return SaveOutcome{Success: true, Score: score, Tier: tier}
}

// Reset returns the engine to its initial state and cancels any timers. Safe
// to call at any time, including before a session ever started.
func (e *QuizEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *QuizEngine) resetLocked() {
	e.stopTimersLocked()
	e.quiz = nil
	e.questions = nil
	e.index = 0
	e.answers = nil
	e.score = 0
	e.tier = ""
	e.active = false
	e.resolved = false
	e.timedOut = false
	e.questionRemaining = 0
	e.sessionRemaining = 0
}

// Accessors; all take a snapshot under the session lock.

func (e *QuizEngine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *QuizEngine) Score() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

func (e *QuizEngine) Tier() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tier
}

// Answers returns the resolution history in insertion order.
func (e *QuizEngine) Answers() []domain.AnswerRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.AnswerRecord(nil), e.answers...)
}

func (e *QuizEngine) CorrectCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.correctCountLocked()
}

func (e *QuizEngine) correctCountLocked() int {
	count := 0
	for _, a := range e.answers {
		if a.Correct {
			count++
		}
	}
	return count
}

func (e *QuizEngine) TotalQuestions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.questions)
}

func (e *QuizEngine) QuestionRemaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.questionRemaining
}

func (e *QuizEngine) SessionRemaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionRemaining
}

// TimedOut reports whether the last resolution came from the timeout path.
// The host acknowledges it with ClearTimedOut after showing feedback.
func (e *QuizEngine) TimedOut() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timedOut
}

func (e *QuizEngine) ClearTimedOut() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timedOut = false
}

// Timer plumbing. Each armed countdown carries a generation number; any tick
// whose generation no longer matches is stale and ignored, which closes the
// race between a manual answer and a timeout tick already in flight.

func (e *QuizEngine) armQuestionTimerLocked() {
	e.stopQuestionTimerLocked()
	question, ok := e.currentLocked()
	if !ok {
		return
	}
	e.questionRemaining = e.questionTime(question)
	stop := make(chan struct{})
	e.stopQuestion = stop
	gen := e.questionGen
	// The ticker is created here, not in the goroutine, so the countdown is
	// registered with the clock before StartGame/NextQuestion return.
	ticker := e.clock.NewTicker(time.Second)
	go e.runTicker(ticker, stop, func() bool { return e.questionTick(gen) })
}

func (e *QuizEngine) armSessionTimerLocked() {
	e.stopSessionTimerLocked()
	e.sessionRemaining = e.sessionLimit
	stop := make(chan struct{})
	e.stopSession = stop
	gen := e.sessionGen
	ticker := e.clock.NewTicker(time.Second)
	go e.runTicker(ticker, stop, func() bool { return e.sessionTick(gen) })
}

func (e *QuizEngine) stopQuestionTimerLocked() {
	e.questionGen++
	if e.stopQuestion != nil {
		close(e.stopQuestion)
		e.stopQuestion = nil
	}
}

func (e *QuizEngine) stopSessionTimerLocked() {
	e.sessionGen++
	if e.stopSession != nil {
		close(e.stopSession)
		e.stopSession = nil
	}
}

func (e *QuizEngine) stopTimersLocked() {
	e.stopQuestionTimerLocked()
	e.stopSessionTimerLocked()
}

// runTicker drives one countdown at one tick per second until the tick
// callback reports done or the stop channel closes. A panic in the callback
// must not kill the scheduler silently; it terminates the session instead.
func (e *QuizEngine) runTicker(ticker clockwork.Ticker, stop <-chan struct{}, tick func() bool) {
	defer func() {
		if r := recover(); r != nil {
			e.EndGame()
		}
	}()
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			if !tick() {
				return
			}
		case <-stop:
			return
		}
	}
}

func (e *QuizEngine) questionTick(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || gen != e.questionGen {
		return false
	}
	if e.questionRemaining > 0 {
		e.questionRemaining--
		return true
	}
	// The countdown already sat at zero, so this tick is the timeout: resolve
	// the question as skipped exactly once and retire the timer.
	e.questionGen++
	e.recordSkipLocked()
	e.timedOut = true
	return false
}

func (e *QuizEngine) sessionTick(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || gen != e.sessionGen {
		return false
	}
	if e.sessionRemaining > 0 {
		e.sessionRemaining--
		return true
	}
	e.endGameLocked()
	return false
}

func (e *QuizEngine) questionTime(q domain.Question) int {
	if q.TimeLimit > 0 {
		return q.TimeLimit
	}
	return e.defaultTime
}

// normalizeAnswer strips surrounding and internal whitespace and case-folds,
// so " Seo Ul " and "seoul" compare equal.
func normalizeAnswer(answer string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(answer) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
