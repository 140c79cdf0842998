package engine

import (
	"context"

	"pickme-game-service/internal/domain"
)

// QuizReporter is the backend collaborator a quiz session reports results to.
// Implementations live in internal/backend (mapping store) and
// internal/infra/memory (tests, demo mode).
type QuizReporter interface {
	SaveQuizResult(ctx context.Context, result domain.QuizResult) error
	UpdateQuestionStats(ctx context.Context, questionID string, stats domain.QuestionStats) error
}

// WorldcupReporter is the backend collaborator a bracket session reports to.
type WorldcupReporter interface {
	SaveWorldcupResult(ctx context.Context, result domain.WorldcupResult) error
	UpdateCandidateStats(ctx context.Context, candidateID string, stats domain.CandidateStats) error
}

// SaveOutcome is the structured result of a save attempt. Submission failures
// are carried in Err rather than propagated, so a host can still present the
// in-memory outcome when persistence fails. Stat updates already applied
// before a failure are not rolled back.
type SaveOutcome struct {
	Success bool   `json:"success"`
	Score   int    `json:"score,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Err     error  `json:"-"`
}
