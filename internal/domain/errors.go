package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrWorldcupNotFound indicates the worldcup content could not be loaded.
	ErrWorldcupNotFound = errors.New("worldcup not found")
	// ErrSessionNotActive is returned when an advance operation runs outside an active session.
	ErrSessionNotActive = errors.New("game session not active")
	// ErrNoCurrentQuestion is returned when the question cursor is out of bounds.
	ErrNoCurrentQuestion = errors.New("no current question")
	// ErrNoCurrentMatch is returned when the bracket round is exhausted.
	ErrNoCurrentMatch = errors.New("no current match")
	// ErrCandidateNotInMatch is returned when a selection names neither side of the current match.
	ErrCandidateNotInMatch = errors.New("candidate is not part of the current match")
	// ErrInvalidBracketSize is returned when the candidate count cannot collapse to a single winner.
	ErrInvalidBracketSize = errors.New("candidate count must be a power of two (at least 2)")
	// ErrQuestionResolved is returned when the current question already has a history entry.
	ErrQuestionResolved = errors.New("current question already resolved")
	// ErrPassNotAllowed is returned when the pass capability is disabled for the session.
	ErrPassNotAllowed = errors.New("passing is not enabled for this session")
	// ErrNotFinished is returned when a result is saved before the bracket produced a winner.
	ErrNotFinished = errors.New("game has not finished")
)
