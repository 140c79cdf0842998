package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pickme-game-service/internal/domain"
)

// Client talks to the mapping-store backend (a json-server style REST API
// keyed by collection and id). It implements the catalog and reporter
// interfaces the engines and the transport host consume. Query/filter/sort
// semantics live on the server side; the client only shapes requests.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithToken attaches a bearer token to every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient swaps the underlying HTTP client (tests, custom timeouts).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger attaches a request logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetQuiz fetches one quiz descriptor.
func (c *Client) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := c.doJSON(ctx, http.MethodGet, "/quizzes/"+url.PathEscape(quizID), nil, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("get quiz %s: %w", quizID, err)
	}
	return quiz, nil
}

// GetQuestions fetches the quiz's question list, ordered by questionNumber
// on the server.
func (c *Client) GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	var questions []domain.Question
	path := "/quizzes/" + url.PathEscape(quizID) + "/start"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &questions); err != nil {
		return nil, fmt.Errorf("get questions for %s: %w", quizID, err)
	}
	return questions, nil
}

// GetWorldcup fetches one worldcup descriptor.
func (c *Client) GetWorldcup(ctx context.Context, worldcupID string) (domain.Worldcup, error) {
	var worldcup domain.Worldcup
	if err := c.doJSON(ctx, http.MethodGet, "/worldcups/"+url.PathEscape(worldcupID), nil, &worldcup); err != nil {
		return domain.Worldcup{}, fmt.Errorf("get worldcup %s: %w", worldcupID, err)
	}
	return worldcup, nil
}

// GetCandidates fetches the worldcup's full candidate list.
func (c *Client) GetCandidates(ctx context.Context, worldcupID string) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	path := "/worldcup_candidates?worldcupId=" + url.QueryEscape(worldcupID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &candidates); err != nil {
		return nil, fmt.Errorf("get candidates for %s: %w", worldcupID, err)
	}
	return candidates, nil
}

// StartWorldcup asks the server for a shuffled subset of the given size.
func (c *Client) StartWorldcup(ctx context.Context, worldcupID string, count int) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	path := "/worldcups/" + url.PathEscape(worldcupID) + "/start/" + strconv.Itoa(count)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &candidates); err != nil {
		return nil, fmt.Errorf("start worldcup %s: %w", worldcupID, err)
	}
	return candidates, nil
}

// SaveQuizResult submits a finished quiz session's result record.
func (c *Client) SaveQuizResult(ctx context.Context, result domain.QuizResult) error {
	if err := c.doJSON(ctx, http.MethodPost, "/quiz_results", result, nil); err != nil {
		return fmt.Errorf("save quiz result: %w", err)
	}
	return nil
}

// UpdateQuestionStats replaces a question's cumulative counters.
func (c *Client) UpdateQuestionStats(ctx context.Context, questionID string, stats domain.QuestionStats) error {
	path := "/quiz_questions/" + url.PathEscape(questionID)
	if err := c.doJSON(ctx, http.MethodPatch, path, stats, nil); err != nil {
		return fmt.Errorf("update question stats %s: %w", questionID, err)
	}
	return nil
}

// SaveWorldcupResult submits a finished bracket session's result record.
func (c *Client) SaveWorldcupResult(ctx context.Context, result domain.WorldcupResult) error {
	if err := c.doJSON(ctx, http.MethodPost, "/worldcup_results", result, nil); err != nil {
		return fmt.Errorf("save worldcup result: %w", err)
	}
	return nil
}

// UpdateCandidateStats patches a candidate's cumulative counters; nil fields
// in the patch are omitted from the request body.
func (c *Client) UpdateCandidateStats(ctx context.Context, candidateID string, stats domain.CandidateStats) error {
	path := "/worldcup_candidates/" + url.PathEscape(candidateID)
	if err := c.doJSON(ctx, http.MethodPatch, path, stats, nil); err != nil {
		return fmt.Errorf("update candidate stats %s: %w", candidateID, err)
	}
	return nil
}

// QuizRanking returns the store-side top results for a quiz.
func (c *Client) QuizRanking(ctx context.Context, quizID string) ([]domain.QuizResult, error) {
	var results []domain.QuizResult
	path := "/quizzes/" + url.PathEscape(quizID) + "/ranking"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, fmt.Errorf("quiz ranking %s: %w", quizID, err)
	}
	return results, nil
}

// WorldcupRanking returns candidates ordered by win count.
func (c *Client) WorldcupRanking(ctx context.Context, worldcupID string) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	path := "/worldcups/" + url.PathEscape(worldcupID) + "/ranking"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &candidates); err != nil {
		return nil, fmt.Errorf("worldcup ranking %s: %w", worldcupID, err)
	}
	return candidates, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("mapping store request")

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound(path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mapping store returned %d: %s", resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errNotFound(path string) error {
	switch {
	case strings.HasPrefix(path, "/quizzes/"):
		return domain.ErrQuizNotFound
	case strings.HasPrefix(path, "/worldcups/"):
		return domain.ErrWorldcupNotFound
	default:
		return fmt.Errorf("not found: %s", path)
	}
}
