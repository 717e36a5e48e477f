package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsTask struct {
	ID       string `json:"id"`
	Question struct {
		Expression string `json:"expression"`
	} `json:"question"`
}

func TestWebSocketPlaysSessionToResult(t *testing.T) {
	server, _, test := newTestServer(t, 2)

	u := "ws" + server.URL[len("http"):] + "/ws?testId=" + test.ID + "&tz=180"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if cookies := resp.Cookies(); len(cookies) != 1 || cookies[0].Name != TokenCookie {
		t.Fatalf("expected visitor token cookie, got %v", cookies)
	}

	readNext(t, conn, "started")
	var state struct {
		Task *wsTask `json:"task"`
	}
	decode(t, readNext(t, conn, "state"), &state)
	if state.Task == nil {
		t.Fatalf("expected open task in state")
	}

	// first answer wrong on purpose, second one right
	answer(t, conn, state.Task.ID, "-1")
	var result struct {
		Accepted bool `json:"accepted"`
		Correct  bool `json:"correct"`
		Complete bool `json:"complete"`
	}
	decode(t, readNext(t, conn, "answerResult"), &result)
	if !result.Accepted || result.Correct || result.Complete {
		t.Fatalf("unexpected first result %+v", result)
	}
	var next wsTask
	decode(t, readNext(t, conn, "task"), &next)

	answer(t, conn, next.ID, solve(t, next.Question.Expression))
	decode(t, readNext(t, conn, "answerResult"), &result)
	if !result.Accepted || !result.Correct || !result.Complete {
		t.Fatalf("unexpected last result %+v", result)
	}
	var final struct {
		Session struct {
			Result      *int `json:"result"`
			Correctness int  `json:"correctness"`
		} `json:"session"`
		Tasks []struct {
			Answer string `json:"answer"`
		} `json:"tasks"`
	}
	decode(t, readNext(t, conn, "result"), &final)
	if final.Session.Result == nil || final.Session.Correctness != 50 || len(final.Tasks) != 2 {
		t.Fatalf("unexpected final result %+v", final)
	}
}

func TestWebSocketRejectsInvalidInputAndStaleTask(t *testing.T) {
	server, _, test := newTestServer(t, 3)

	u := "ws" + server.URL[len("http"):] + "/ws?testId=" + test.ID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(t, conn, "started")
	var state struct {
		Task *wsTask `json:"task"`
	}
	decode(t, readNext(t, conn, "state"), &state)

	answer(t, conn, state.Task.ID, "seven")
	var rejected struct {
		Accepted bool     `json:"accepted"`
		Errors   []string `json:"errors"`
	}
	decode(t, readNext(t, conn, "answerResult"), &rejected)
	if rejected.Accepted || len(rejected.Errors) == 0 {
		t.Fatalf("expected validation errors, got %+v", rejected)
	}
	// the same task stays open after a rejected input
	answer(t, conn, state.Task.ID, "0")
	readNext(t, conn, "answerResult")
	readNext(t, conn, "task")

	answer(t, conn, state.Task.ID, "0")
	var failure errorPayload
	decode(t, readNext(t, conn, "error"), &failure)
	if failure.Message == "" || failure.Redirect != "play" {
		t.Fatalf("expected stale task error redirecting to play, got %+v", failure)
	}

	if err := conn.WriteJSON(map[string]any{"type": "pause"}); err != nil {
		t.Fatalf("write pause: %v", err)
	}
	var paused struct {
		AnswerTime int `json:"answerTime"`
	}
	decode(t, readNext(t, conn, "paused"), &paused)
	if paused.AnswerTime < 10 {
		t.Fatalf("expected pause penalty, got %d", paused.AnswerTime)
	}
}

func TestWebSocketRequiresTarget(t *testing.T) {
	server, _, _ := newTestServer(t, 1)

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func answer(t *testing.T, conn *websocket.Conn, taskID, value string) {
	t.Helper()
	msg := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"taskId": taskID,
			"input":  map[string]string{"answer": value},
		},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write answer: %v", err)
	}
}

func readNext(t *testing.T, conn *websocket.Conn, expect string) json.RawMessage {
	t.Helper()
	var msg wsMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != expect {
		t.Fatalf("expected type %s, got %s: %s", expect, msg.Type, msg.Payload)
	}
	return msg.Payload
}

func decode(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

// solve answers "a + b = ?".
func solve(t *testing.T, expression string) string {
	t.Helper()
	var a, b int
	if _, err := fmt.Sscanf(expression, "%d + %d = ?", &a, &b); err != nil {
		t.Fatalf("parse %q: %v", expression, err)
	}
	return strconv.Itoa(a + b)
}

type brokenConn struct {
	writes int
	closed chan struct{}
}

func (c *brokenConn) WriteJSON(interface{}) error {
	c.writes++
	return errors.New("connection reset")
}

func (c *brokenConn) Close() error {
	close(c.closed)
	return nil
}

func TestOutboxStopsAcceptingAfterWriteFailure(t *testing.T) {
	conn := &brokenConn{closed: make(chan struct{})}
	out := startOutbox(conn, zap.NewNop())

	pushed := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			out.push(outboundMessage{Type: "task"})
		}
		close(pushed)
	}()

	select {
	case <-pushed:
	case <-time.After(2 * time.Second):
		t.Fatalf("push blocked after the writer exited")
	}
	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the connection closed after a failed write")
	}
	out.close()
	if conn.writes != 1 {
		t.Fatalf("expected one attempted write, got %d", conn.writes)
	}
}
