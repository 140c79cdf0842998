package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"pickme-game-service/internal/domain"
	"pickme-game-service/internal/infra/memory"
	transport "pickme-game-service/internal/transport/http"
)

func newTestServer(t *testing.T, store *memory.Store) (*httptest.Server, string) {
	t.Helper()
	handler := transport.NewWSHandler(store, store, store, transport.WithWSClock(clockwork.NewFakeClock()))
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return srv, wsURL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEvent(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatalf("no %q event before deadline", want)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Type == "tick" {
			continue
		}
		if ev.Type != want {
			t.Fatalf("got event %q (%s), want %q", ev.Type, ev.Payload, want)
		}
		return ev.Payload
	}
}

func sendMessage(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": json.RawMessage(raw)}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func seedQuizStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	store.SeedQuiz(
		domain.Quiz{ID: "quiz-1", Title: "수도 퀴즈"},
		[]domain.Question{
			{ID: "q1", QuizID: "quiz-1", QuestionNumber: 1, Prompt: "대한민국의 수도는?", Answer: "서울", TimeLimit: 10},
			{ID: "q2", QuizID: "quiz-1", QuestionNumber: 2, Prompt: "프랑스의 수도는?", Answer: "파리", TimeLimit: 10},
			{ID: "q3", QuizID: "quiz-1", QuestionNumber: 3, Prompt: "일본의 수도는?", Answer: "도쿄", TimeLimit: 10},
		},
	)
	return store
}

func TestServeWSQuizSession(t *testing.T) {
	store := seedQuizStore(t)
	_, wsURL := newTestServer(t, store)
	conn := dial(t, wsURL+"?game=quiz&id=quiz-1")

	var question struct {
		ID     string `json:"id"`
		Prompt string `json:"prompt"`
		Total  int    `json:"total"`
	}
	if err := json.Unmarshal(readEvent(t, conn, "question"), &question); err != nil {
		t.Fatalf("unmarshal question: %v", err)
	}
	if question.ID != "q1" || question.Total != 3 {
		t.Fatalf("unexpected first question: %+v", question)
	}

	sendMessage(t, conn, "answer", map[string]string{"answer": " 서 울 "})
	var result struct {
		QuestionID string `json:"questionId"`
		Correct    bool   `json:"correct"`
		Awarded    int    `json:"awarded"`
		TotalScore int    `json:"totalScore"`
	}
	if err := json.Unmarshal(readEvent(t, conn, "answerResult"), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.Correct || result.Awarded != 10 || result.TotalScore != 10 {
		t.Fatalf("unexpected answer result: %+v", result)
	}

	sendMessage(t, conn, "next", nil)
	if err := json.Unmarshal(readEvent(t, conn, "question"), &question); err != nil {
		t.Fatalf("unmarshal question: %v", err)
	}
	if question.ID != "q2" {
		t.Fatalf("expected q2, got %q", question.ID)
	}

	sendMessage(t, conn, "skip", nil)
	if err := json.Unmarshal(readEvent(t, conn, "question"), &question); err != nil {
		t.Fatalf("unmarshal question: %v", err)
	}
	if question.ID != "q3" {
		t.Fatalf("expected q3, got %q", question.ID)
	}

	sendMessage(t, conn, "answer", map[string]string{"answer": "오사카"})
	if err := json.Unmarshal(readEvent(t, conn, "answerResult"), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Correct || result.Awarded != 0 {
		t.Fatalf("wrong answer should not score: %+v", result)
	}

	sendMessage(t, conn, "next", nil)
	var finished struct {
		Score        int    `json:"score"`
		Tier         string `json:"tier"`
		CorrectCount int    `json:"correctCount"`
	}
	if err := json.Unmarshal(readEvent(t, conn, "finished"), &finished); err != nil {
		t.Fatalf("unmarshal finished: %v", err)
	}
	if finished.Score != 10 || finished.CorrectCount != 1 || finished.Tier == "" {
		t.Fatalf("unexpected summary: %+v", finished)
	}

	sendMessage(t, conn, "save", map[string]string{"nickname": "tester"})
	readEvent(t, conn, "saved")
	results := store.QuizResults()
	if len(results) != 1 {
		t.Fatalf("expected 1 stored result, got %d", len(results))
	}
	if results[0].Nickname != "tester" || results[0].Score != 10 {
		t.Fatalf("unexpected stored result: %+v", results[0])
	}
}

func TestServeWSWorldcupSession(t *testing.T) {
	store := memory.NewStore()
	candidates := []domain.Candidate{
		{ID: "c1", WorldcupID: "wc-1", Name: "떡볶이"},
		{ID: "c2", WorldcupID: "wc-1", Name: "순대"},
		{ID: "c3", WorldcupID: "wc-1", Name: "튀김"},
		{ID: "c4", WorldcupID: "wc-1", Name: "김밥"},
	}
	store.SeedWorldcup(domain.Worldcup{ID: "wc-1", Title: "간식 월드컵"}, candidates)
	_, wsURL := newTestServer(t, store)
	conn := dial(t, wsURL+"?game=worldcup&id=wc-1")

	var match struct {
		Match struct {
			Left  domain.Candidate `json:"left"`
			Right domain.Candidate `json:"right"`
		} `json:"match"`
		Round string `json:"round"`
	}
	if err := json.Unmarshal(readEvent(t, conn, "match"), &match); err != nil {
		t.Fatalf("unmarshal match: %v", err)
	}
	if match.Round != "4강" {
		t.Fatalf("expected opening round 4강, got %q", match.Round)
	}

	// Always pick the left side; c1 wins the bracket.
	for i := 0; i < 2; i++ {
		sendMessage(t, conn, "select", map[string]string{"candidateId": match.Match.Left.ID})
		if err := json.Unmarshal(readEvent(t, conn, "match"), &match); err != nil {
			t.Fatalf("unmarshal match: %v", err)
		}
	}
	if match.Round != "결승" {
		t.Fatalf("expected 결승, got %q", match.Round)
	}
	sendMessage(t, conn, "select", map[string]string{"candidateId": match.Match.Left.ID})

	var winner struct {
		Winner domain.Candidate   `json:"winner"`
		Top4   []domain.Candidate `json:"top4"`
	}
	if err := json.Unmarshal(readEvent(t, conn, "winner"), &winner); err != nil {
		t.Fatalf("unmarshal winner: %v", err)
	}
	if winner.Winner.ID != "c1" || len(winner.Top4) != 4 {
		t.Fatalf("unexpected winner event: %+v", winner)
	}

	sendMessage(t, conn, "save", nil)
	readEvent(t, conn, "saved")
	if got := len(store.WorldcupResults()); got != 1 {
		t.Fatalf("expected 1 stored result, got %d", got)
	}
}

func TestServeWSRejectsBadParams(t *testing.T) {
	store := memory.NewStore()
	srv, _ := newTestServer(t, store)

	resp, err := http.Get(srv.URL + "/ws?game=chess&id=x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServeWSUnknownQuiz(t *testing.T) {
	store := memory.NewStore()
	_, wsURL := newTestServer(t, store)
	conn := dial(t, wsURL+"?game=quiz&id=missing")

	var errMsg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(readEvent(t, conn, "error"), &errMsg); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if errMsg.Message == "" {
		t.Fatal("expected an error message")
	}
}
