package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"pickme-game-service/internal/domain"
	"pickme-game-service/internal/engine"
)

// Catalog supplies game content to new sessions.
type Catalog interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
	GetWorldcup(ctx context.Context, worldcupID string) (domain.Worldcup, error)
	GetCandidates(ctx context.Context, worldcupID string) ([]domain.Candidate, error)
}

// WSHandler hosts game sessions over websockets. Each connection owns one
// engine; the client drives it with typed messages and the handler streams
// countdown ticks and state transitions back.
type WSHandler struct {
	catalog      Catalog
	quizReporter engine.QuizReporter
	wcReporter   engine.WorldcupReporter
	clock        clockwork.Clock
	scoring      engine.Scoring
	allowPass    bool
	sessionLimit int
	questionTime int
	log          zerolog.Logger
	upgrader     websocket.Upgrader
}

// WSOption customizes handler construction.
type WSOption func(*WSHandler)

func WithWSClock(clock clockwork.Clock) WSOption {
	return func(h *WSHandler) { h.clock = clock }
}

func WithWSScoring(s engine.Scoring) WSOption {
	return func(h *WSHandler) { h.scoring = s }
}

func WithWSPass() WSOption {
	return func(h *WSHandler) { h.allowPass = true }
}

func WithWSSessionLimit(seconds int) WSOption {
	return func(h *WSHandler) { h.sessionLimit = seconds }
}

func WithWSQuestionTime(seconds int) WSOption {
	return func(h *WSHandler) { h.questionTime = seconds }
}

func WithWSLogger(log zerolog.Logger) WSOption {
	return func(h *WSHandler) { h.log = log }
}

func NewWSHandler(catalog Catalog, quizReporter engine.QuizReporter, wcReporter engine.WorldcupReporter, opts ...WSOption) *WSHandler {
	h := &WSHandler{
		catalog:      catalog,
		quizReporter: quizReporter,
		wcReporter:   wcReporter,
		clock:        clockwork.NewRealClock(),
		scoring:      engine.FlatScoring(),
		log:          zerolog.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type selectPayload struct {
	CandidateID string `json:"candidateId"`
}

type savePayload struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

// questionView is a question stripped of its answer.
type questionView struct {
	ID             string `json:"id"`
	QuestionNumber int    `json:"questionNumber"`
	Prompt         string `json:"prompt"`
	TimeLimit      int    `json:"timeLimit"`
	Index          int    `json:"index"`
	Total          int    `json:"total"`
}

type answerResultPayload struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"totalScore"`
}

type tickPayload struct {
	Remaining        int `json:"remaining"`
	SessionRemaining int `json:"sessionRemaining,omitempty"`
}

type quizFinishedPayload struct {
	Score          int                   `json:"score"`
	Tier           string                `json:"tier"`
	CorrectCount   int                   `json:"correctCount"`
	TotalQuestions int                   `json:"totalQuestions"`
	Answers        []domain.AnswerRecord `json:"answers"`
}

type matchPayload struct {
	Match    engine.Match    `json:"match"`
	Round    string          `json:"round"`
	Progress engine.Progress `json:"progress"`
}

type winnerPayload struct {
	Winner domain.Candidate   `json:"winner"`
	Top4   []domain.Candidate `json:"top4"`
}

type savedPayload struct {
	Success bool   `json:"success"`
	Score   int    `json:"score,omitempty"`
	Tier    string `json:"tier,omitempty"`
}

// ServeWS upgrades the request and runs one game session until the client
// disconnects. Query parameters: game (quiz or worldcup), id, and for
// worldcups an optional count to trim the bracket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	gameType := r.URL.Query().Get("game")
	gameID := r.URL.Query().Get("id")
	if gameID == "" || (gameType != "quiz" && gameType != "worldcup") {
		http.Error(w, "missing or invalid game type or id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := h.log.With().Str("session", sessionID).Str("game", gameType).Str("id", gameID).Logger()

	send := make(chan any, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	switch gameType {
	case "quiz":
		h.runQuiz(r, conn, send, log, gameID)
	case "worldcup":
		h.runWorldcup(r, conn, send, log, gameID)
	}

	close(send)
	<-writerDone
}

func (h *WSHandler) runQuiz(r *http.Request, conn *websocket.Conn, send chan<- any, log zerolog.Logger, quizID string) {
	ctx := r.Context()
	quiz, err := h.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	questions, err := h.catalog.GetQuestions(ctx, quizID)
	if err != nil {
		send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}

	opts := []engine.QuizOption{engine.WithClock(h.clock), engine.WithScoring(h.scoring)}
	if h.allowPass {
		opts = append(opts, engine.WithPass())
	}
	if h.sessionLimit > 0 {
		opts = append(opts, engine.WithSessionLimit(h.sessionLimit))
	}
	if h.questionTime > 0 {
		opts = append(opts, engine.WithQuestionTime(h.questionTime))
	}
	eng := engine.NewQuizEngine(h.quizReporter, opts...)
	eng.StartGame(quiz, questions)
	defer eng.EndGame()

	send <- h.questionEvent(eng)

	stop := make(chan struct{})
	ticksDone := make(chan struct{})
	go h.streamTicks(eng, send, stop, ticksDone)
	defer func() {
		close(stop)
		<-ticksDone
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			q, ok := eng.CurrentQuestion()
			if !ok {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: domain.ErrNoCurrentQuestion.Error()}}
				continue
			}
			result, err := eng.CheckAnswer(payload.Answer)
			if err != nil {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[answerResultPayload]{Type: "answerResult", Payload: answerResultPayload{
				QuestionID: q.ID,
				Correct:    result.Correct,
				Awarded:    result.Awarded,
				TotalScore: eng.Score(),
			}}
		case "skip":
			if err := eng.Skip(); err != nil {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			h.advanceQuiz(eng, send)
		case "pass":
			if err := eng.PassCurrent(); err != nil {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- h.questionEvent(eng)
		case "next":
			h.advanceQuiz(eng, send)
		case "save":
			var payload savePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "invalid save payload"}}
				continue
			}
			outcome := eng.SaveResult(ctx, engine.Player{UserID: payload.UserID, Nickname: payload.Nickname})
			if outcome.Err != nil {
				log.Warn().Err(outcome.Err).Msg("save quiz result failed")
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: outcome.Err.Error()}}
				continue
			}
			send <- outboundMessage[savedPayload]{Type: "saved", Payload: savedPayload{Success: true, Score: outcome.Score, Tier: outcome.Tier}}
		default:
			send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}
}

// streamTicks pushes one countdown event per second and turns engine
// timeouts into skip notifications. Sends race against session teardown,
// so each one also watches the stop channel.
func (h *WSHandler) streamTicks(eng *engine.QuizEngine, send chan<- any, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := h.clock.NewTicker(time.Second)
	defer ticker.Stop()
	push := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-stop:
			return false
		}
	}
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if eng.TimedOut() {
				eng.ClearTimedOut()
				if !push(outboundMessage[errorPayload]{Type: "timeout", Payload: errorPayload{Message: "time is up"}}) {
					return
				}
				if eng.NextQuestion() {
					if !push(h.finishedEvent(eng)) {
						return
					}
				} else if !push(h.questionEvent(eng)) {
					return
				}
				continue
			}
			if !eng.Active() {
				continue
			}
			if !push(outboundMessage[tickPayload]{Type: "tick", Payload: tickPayloadFor(eng)}) {
				return
			}
		}
	}
}

func tickPayloadFor(eng *engine.QuizEngine) tickPayload {
	return tickPayload{
		Remaining:        eng.QuestionRemaining(),
		SessionRemaining: eng.SessionRemaining(),
	}
}

func (h *WSHandler) advanceQuiz(eng *engine.QuizEngine, send chan<- any) {
	if eng.NextQuestion() {
		send <- h.finishedEvent(eng)
		return
	}
	send <- h.questionEvent(eng)
}

func (h *WSHandler) finishedEvent(eng *engine.QuizEngine) outboundMessage[quizFinishedPayload] {
	return outboundMessage[quizFinishedPayload]{Type: "finished", Payload: quizFinishedPayload{
		Score:          eng.Score(),
		Tier:           eng.Tier(),
		CorrectCount:   eng.CorrectCount(),
		TotalQuestions: eng.TotalQuestions(),
		Answers:        eng.Answers(),
	}}
}

func (h *WSHandler) questionEvent(eng *engine.QuizEngine) outboundMessage[questionView] {
	q, _ := eng.CurrentQuestion()
	return outboundMessage[questionView]{Type: "question", Payload: questionView{
		ID:             q.ID,
		QuestionNumber: q.QuestionNumber,
		Prompt:         q.Prompt,
		TimeLimit:      q.TimeLimit,
		Index:          len(eng.Answers()) + 1,
		Total:          eng.TotalQuestions(),
	}}
}

func (h *WSHandler) runWorldcup(r *http.Request, conn *websocket.Conn, send chan<- any, log zerolog.Logger, worldcupID string) {
	ctx := r.Context()
	worldcup, err := h.catalog.GetWorldcup(ctx, worldcupID)
	if err != nil {
		send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	candidates, err := h.catalog.GetCandidates(ctx, worldcupID)
	if err != nil {
		send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	if raw := r.URL.Query().Get("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count <= 0 || count > len(candidates) {
			send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "invalid count"}}
			return
		}
		candidates = candidates[:count]
	}

	eng := engine.NewBracketEngine(h.wcReporter, engine.WithBracketClock(h.clock))
	if err := eng.StartGame(worldcup, candidates); err != nil {
		send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}

	send <- h.matchEvent(eng)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}}
				continue
			}
			result, err := eng.SelectCandidate(payload.CandidateID)
			if err != nil {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			if result.Finished {
				send <- outboundMessage[winnerPayload]{Type: "winner", Payload: winnerPayload{
					Winner: result.Winner,
					Top4:   eng.Top4(),
				}}
				continue
			}
			send <- h.matchEvent(eng)
		case "save":
			outcome := eng.SaveResult(ctx)
			if outcome.Err != nil {
				log.Warn().Err(outcome.Err).Msg("save worldcup result failed")
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: outcome.Err.Error()}}
				continue
			}
			send <- outboundMessage[savedPayload]{Type: "saved", Payload: savedPayload{Success: true}}
		default:
			send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}
}

func (h *WSHandler) matchEvent(eng *engine.BracketEngine) outboundMessage[matchPayload] {
	match, _ := eng.CurrentMatch()
	return outboundMessage[matchPayload]{Type: "match", Payload: matchPayload{
		Match:    match,
		Round:    eng.RoundName(),
		Progress: eng.Progress(),
	}}
}
