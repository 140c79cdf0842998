package domain

import "time"

// Quiz is the descriptor of a short-answer quiz as served by the mapping store.
type Quiz struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Question is one timed short-answer question. TimeLimit is in seconds and
// defaults to 10 when zero. CorrectCount/TotalCount are cumulative stats owned
// by the backend; the engine reads them to compute replacement values.
type Question struct {
	ID             string `json:"id"`
	QuizID         string `json:"quizId"`
	QuestionNumber int    `json:"questionNumber"`
	Prompt         string `json:"prompt"`
	Answer         string `json:"answer"`
	TimeLimit      int    `json:"timeLimit"`
	CorrectCount   int    `json:"correctCount"`
	TotalCount     int    `json:"totalCount"`
}

// Worldcup is the descriptor of a single-elimination bracket game.
type Worldcup struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Candidate is one bracket entrant with its cumulative stats.
type Candidate struct {
	ID          string `json:"id"`
	WorldcupID  string `json:"worldcupId"`
	Name        string `json:"name"`
	ImageURL    string `json:"imageUrl"`
	WinCount    int    `json:"winCount"`
	FinalCount  int    `json:"finalCount"`
	AppearCount int    `json:"appearCount"`
}

// AnswerRecord is one resolved question in a quiz session. Exactly one of
// the normal answered path, Skipped, or Passed applies per record.
type AnswerRecord struct {
	QuestionID     string `json:"questionId"`
	QuestionNumber int    `json:"questionNumber"`
	UserAnswer     string `json:"userAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
	Correct        bool   `json:"isCorrect"`
	Skipped        bool   `json:"skipped,omitempty"`
	Passed         bool   `json:"passed,omitempty"`
	TimeSpent      int    `json:"timeSpent"`
	Score          int    `json:"score"`
}

// Selection is one recorded match decision in a bracket session.
type Selection struct {
	LeftID     string `json:"leftId"`
	RightID    string `json:"rightId"`
	SelectedID string `json:"selectedId"`
	Round      string `json:"round"`
}

// QuizResult is the record submitted to the mapping store when a quiz session
// finishes. UserID is empty for anonymous players.
type QuizResult struct {
	QuizID         string    `json:"quizId"`
	UserID         string    `json:"userId,omitempty"`
	Nickname       string    `json:"nickname"`
	Score          int       `json:"score"`
	CorrectCount   int       `json:"correctCount"`
	TotalQuestions int       `json:"totalQuestions"`
	RemainingTime  int       `json:"remainingTime"`
	Tier           string    `json:"tier"`
	CompletedAt    time.Time `json:"completedAt"`
}

// WorldcupResult is the record submitted when a bracket session finishes.
type WorldcupResult struct {
	WorldcupID string      `json:"worldcupId"`
	WinnerID   string      `json:"winnerId"`
	Top4       []string    `json:"top4"`
	Selections []Selection `json:"selections"`
	StartRound int         `json:"startRound"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// QuestionStats carries full replacement counter values for one question
// (the caller computes the increments, the store just persists them).
type QuestionStats struct {
	CorrectCount int `json:"correctCount"`
	TotalCount   int `json:"totalCount"`
}

// CandidateStats is a partial replacement patch for one candidate's
// counters; nil fields are left untouched by the store.
type CandidateStats struct {
	WinCount    *int `json:"winCount,omitempty"`
	FinalCount  *int `json:"finalCount,omitempty"`
	AppearCount *int `json:"appearCount,omitempty"`
}

// IntPtr is a convenience for building CandidateStats patches.
func IntPtr(v int) *int { return &v }
