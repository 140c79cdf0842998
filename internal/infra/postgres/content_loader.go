package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pickme-game-service/internal/domain"
)

// ContentLoader loads game content stored as JSONB documents. Each quiz row
// carries its descriptor plus the ordered question list; worldcup rows carry
// the candidate list.
type ContentLoader struct {
	pool *pgxpool.Pool
}

func NewContentLoader(pool *pgxpool.Pool) *ContentLoader {
	return &ContentLoader{pool: pool}
}

type quizDocument struct {
	domain.Quiz
	Questions []domain.Question `json:"questions"`
}

type worldcupDocument struct {
	domain.Worldcup
	Candidates []domain.Candidate `json:"candidates"`
}

func (l *ContentLoader) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	doc, err := l.loadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return doc.Quiz, nil
}

func (l *ContentLoader) GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	doc, err := l.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return doc.Questions, nil
}

func (l *ContentLoader) GetWorldcup(ctx context.Context, worldcupID string) (domain.Worldcup, error) {
	doc, err := l.loadWorldcup(ctx, worldcupID)
	if err != nil {
		return domain.Worldcup{}, err
	}
	return doc.Worldcup, nil
}

func (l *ContentLoader) GetCandidates(ctx context.Context, worldcupID string) ([]domain.Candidate, error) {
	doc, err := l.loadWorldcup(ctx, worldcupID)
	if err != nil {
		return nil, err
	}
	return doc.Candidates, nil
}

func (l *ContentLoader) loadQuiz(ctx context.Context, quizID string) (quizDocument, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return quizDocument{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return quizDocument{}, fmt.Errorf("load quiz: %w", err)
	}
	var doc quizDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return quizDocument{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return doc, nil
}

func (l *ContentLoader) loadWorldcup(ctx context.Context, worldcupID string) (worldcupDocument, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM worldcups WHERE id=$1`, worldcupID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return worldcupDocument{}, domain.ErrWorldcupNotFound
	}
	if err != nil {
		return worldcupDocument{}, fmt.Errorf("load worldcup: %w", err)
	}
	var doc worldcupDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return worldcupDocument{}, fmt.Errorf("unmarshal worldcup: %w", err)
	}
	return doc, nil
}
