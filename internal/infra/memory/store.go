package memory

import (
	"context"
	"sort"
	"sync"

	"pickme-game-service/internal/domain"
)

// Store is an in-memory rendition of the mapping store. The server falls back
// to it when no backend URL is configured, and tests use it as a recording
// collaborator. Stat updates are full replacements, like the real store.
type Store struct {
	mu              sync.RWMutex
	quizzes         map[string]domain.Quiz
	questions       map[string][]domain.Question // by quiz id
	worldcups       map[string]domain.Worldcup
	candidates      map[string][]domain.Candidate // by worldcup id
	quizResults     []domain.QuizResult
	worldcupResults []domain.WorldcupResult
}

func NewStore() *Store {
	return &Store{
		quizzes:    make(map[string]domain.Quiz),
		questions:  make(map[string][]domain.Question),
		worldcups:  make(map[string]domain.Worldcup),
		candidates: make(map[string][]domain.Candidate),
	}
}

// SeedQuiz registers a quiz and its questions.
func (s *Store) SeedQuiz(quiz domain.Quiz, questions []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = quiz
	s.questions[quiz.ID] = append([]domain.Question(nil), questions...)
}

// SeedWorldcup registers a worldcup and its candidates.
func (s *Store) SeedWorldcup(worldcup domain.Worldcup, candidates []domain.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worldcups[worldcup.ID] = worldcup
	s.candidates[worldcup.ID] = append([]domain.Candidate(nil), candidates...)
}

func (s *Store) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *Store) GetQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	questions, ok := s.questions[quizID]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	ordered := append([]domain.Question(nil), questions...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].QuestionNumber < ordered[j].QuestionNumber
	})
	return ordered, nil
}

func (s *Store) GetWorldcup(_ context.Context, worldcupID string) (domain.Worldcup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	worldcup, ok := s.worldcups[worldcupID]
	if !ok {
		return domain.Worldcup{}, domain.ErrWorldcupNotFound
	}
	return worldcup, nil
}

func (s *Store) GetCandidates(_ context.Context, worldcupID string) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates, ok := s.candidates[worldcupID]
	if !ok {
		return nil, domain.ErrWorldcupNotFound
	}
	return append([]domain.Candidate(nil), candidates...), nil
}

func (s *Store) SaveQuizResult(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizResults = append(s.quizResults, result)
	return nil
}

func (s *Store) UpdateQuestionStats(_ context.Context, questionID string, stats domain.QuestionStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for quizID, questions := range s.questions {
		for i := range questions {
			if questions[i].ID == questionID {
				questions[i].CorrectCount = stats.CorrectCount
				questions[i].TotalCount = stats.TotalCount
				s.questions[quizID] = questions
				return nil
			}
		}
	}
	return domain.ErrNoCurrentQuestion
}

func (s *Store) SaveWorldcupResult(_ context.Context, result domain.WorldcupResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worldcupResults = append(s.worldcupResults, result)
	return nil
}

func (s *Store) UpdateCandidateStats(_ context.Context, candidateID string, stats domain.CandidateStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for worldcupID, candidates := range s.candidates {
		for i := range candidates {
			if candidates[i].ID != candidateID {
				continue
			}
			if stats.WinCount != nil {
				candidates[i].WinCount = *stats.WinCount
			}
			if stats.FinalCount != nil {
				candidates[i].FinalCount = *stats.FinalCount
			}
			if stats.AppearCount != nil {
				candidates[i].AppearCount = *stats.AppearCount
			}
			s.candidates[worldcupID] = candidates
			return nil
		}
	}
	return domain.ErrWorldcupNotFound
}

// QuizResults returns the recorded quiz result submissions in order.
func (s *Store) QuizResults() []domain.QuizResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.QuizResult(nil), s.quizResults...)
}

// WorldcupResults returns the recorded worldcup result submissions in order.
func (s *Store) WorldcupResults() []domain.WorldcupResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.WorldcupResult(nil), s.worldcupResults...)
}
