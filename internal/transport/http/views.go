package http

import (
	"encoding/json"
	"time"

	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/domain"
)

// taskView hides the expected answer of an open task.
type taskView struct {
	ID        string          `json:"id"`
	Question  json.RawMessage `json:"question"`
	LimitTime int             `json:"limitTime"`
	CreatedAt time.Time       `json:"createdAt"`
}

type answeredView struct {
	ID       string          `json:"id"`
	Question json.RawMessage `json:"question"`
	Answer   string          `json:"answer"`
	Expected string          `json:"expected"`
	Correct  bool            `json:"correct"`
	Elapsed  int             `json:"elapsed"`
	Limit    int             `json:"limitTime"`
}

type sessionView struct {
	domain.Session
	Complete    bool `json:"complete"`
	Correctness int  `json:"correctness"`
	Speed       int  `json:"speed"`
}

type stateView struct {
	Session sessionView `json:"session"`
	Test    string      `json:"test"`
	Task    *taskView   `json:"task,omitempty"`
}

type answerView struct {
	Accepted bool        `json:"accepted"`
	Errors   []string    `json:"errors,omitempty"`
	Correct  bool        `json:"correct"`
	Complete bool        `json:"complete"`
	Session  sessionView `json:"session"`
}

type resultView struct {
	Session sessionView    `json:"session"`
	Tasks   []answeredView `json:"tasks"`
}

func newTaskView(t *domain.Task) *taskView {
	if t == nil {
		return nil
	}
	return &taskView{ID: t.ID, Question: t.Payload.Question, LimitTime: t.Payload.LimitTime, CreatedAt: t.CreatedAt}
}

func newSessionView(s domain.Session) sessionView {
	return sessionView{
		Session:     s,
		Complete:    s.Complete(),
		Correctness: domain.Correctness(s.CorrectCount, s.AnswerCount),
		Speed:       domain.Speed(s.LimitTime, s.AnswerTime),
	}
}

func newStateView(state app.PlayState) stateView {
	return stateView{Session: newSessionView(state.Session), Test: state.Test.Name, Task: newTaskView(state.Task)}
}

func newAnswerView(o app.SubmitOutcome) answerView {
	return answerView{
		Accepted: o.Accepted,
		Errors:   o.Errors,
		Correct:  o.Correct,
		Complete: o.Complete(),
		Session:  newSessionView(o.Session),
	}
}

func newResultView(session domain.Session, tasks []domain.Task) resultView {
	view := resultView{Session: newSessionView(session), Tasks: make([]answeredView, 0, len(tasks))}
	for _, t := range tasks {
		item := answeredView{
			ID:       t.ID,
			Question: t.Payload.Question,
			Expected: t.Payload.Answer,
			Correct:  t.Correct,
			Elapsed:  t.Elapsed(),
			Limit:    t.Payload.LimitTime,
		}
		if t.Answer != nil {
			item.Answer = *t.Answer
		}
		view.Tasks = append(view.Tasks, item)
	}
	return view
}
