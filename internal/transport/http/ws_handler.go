package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/extension"
	"go.uber.org/zap"
)

// WSHandler plays sessions over a websocket.
type WSHandler struct {
	service  *app.TestingService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.TestingService, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	TaskID string          `json:"taskId"`
	Input  extension.Input `json:"input"`
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// jsonConn is the part of a websocket connection the outbox writes through.
type jsonConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// outbox owns the single writer goroutine of a connection; gorilla
// connections do not support concurrent writes.
type outbox struct {
	send chan outboundMessage
	done chan struct{}
}

func startOutbox(conn jsonConn, log *zap.Logger) *outbox {
	o := &outbox{send: make(chan outboundMessage, 16), done: make(chan struct{})}
	go func() {
		defer close(o.done)
		for msg := range o.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write failed", zap.Error(err))
				// unblocks the handler's read loop
				_ = conn.Close()
				return
			}
		}
	}()
	return o
}

// push drops the message once the writer has gone.
func (o *outbox) push(msg outboundMessage) {
	select {
	case o.send <- msg:
	case <-o.done:
	}
}

func (o *outbox) close() {
	close(o.send)
	<-o.done
}

// ServeWS starts a session (?testId=) or resumes one (?sessionId=) and then
// serves answer, pause and resume messages until the client goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	testID := r.URL.Query().Get("testId")
	sessionID := r.URL.Query().Get("sessionId")
	if testID == "" && sessionID == "" {
		http.Error(w, "missing testId or sessionId", http.StatusBadRequest)
		return
	}

	actor := actorFrom(r)
	header := http.Header{}
	if cookie := ensureVisitor(&actor); cookie != nil {
		header.Add("Set-Cookie", cookie.String())
	}

	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	out := startOutbox(conn, h.log)
	defer out.close()
	push := out.push

	fail := func(err error) {
		if statusOf(err) == http.StatusInternalServerError {
			h.log.Error("play failed", zap.String("session", sessionID), zap.Error(err))
		}
		push(outboundMessage{Type: "error", Payload: errorBody(err)})
	}

	if sessionID == "" {
		session, err := h.service.StartSession(ctx, testID, actor)
		if err != nil {
			fail(err)
			return
		}
		sessionID = session.ID
		push(outboundMessage{Type: "started", Payload: newSessionView(session)})
	}

	sendState := func() bool {
		state, err := h.service.OpenState(ctx, sessionID, actor)
		if err != nil {
			fail(err)
			return false
		}
		push(outboundMessage{Type: "state", Payload: newStateView(state)})
		if state.Complete() {
			h.sendResult(ctx, push, sessionID, actor, fail)
		}
		return true
	}
	if !sendState() {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.TaskID == "" {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			outcome, err := h.service.SubmitAnswer(ctx, sessionID, payload.TaskID, actor, payload.Input)
			if err != nil {
				fail(err)
				continue
			}
			push(outboundMessage{Type: "answerResult", Payload: newAnswerView(outcome)})
			// a rejected input leaves the same task open; the client keeps showing it
			switch {
			case !outcome.Accepted:
			case outcome.Complete():
				h.sendResult(ctx, push, sessionID, actor, fail)
			case outcome.Next != nil:
				push(outboundMessage{Type: "task", Payload: newTaskView(outcome.Next)})
			}
		case "pause":
			session, err := h.service.PauseSession(ctx, sessionID, actor)
			if err != nil {
				fail(err)
				continue
			}
			push(outboundMessage{Type: "paused", Payload: newSessionView(session)})
		case "resume":
			sendState()
		default:
			push(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}
}

func (h *WSHandler) sendResult(ctx context.Context, push func(outboundMessage), sessionID string, actor domain.Actor, fail func(error)) {
	session, tasks, err := h.service.Result(ctx, sessionID, actor)
	if err != nil {
		fail(err)
		return
	}
	push(outboundMessage{Type: "result", Payload: newResultView(session, tasks)})
}
