package domain

import (
	"encoding/json"
	"time"
)

// Test is a reusable quiz definition bound to an extension and its configuration.
type Test struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Extension   string          `json:"extension"`
	Config      json.RawMessage `json:"config"`
	AnswerCount int             `json:"answerCount"` // answers needed to complete a session
	LimitTime   int             `json:"limitTime"`   // total time budget in seconds
	OwnerID     string          `json:"ownerId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	ModifiedAt  time.Time       `json:"modifiedAt"`
}

// TestFilter narrows catalog listings. Empty fields match everything.
type TestFilter struct {
	Name      string
	Extension string
	OwnerID   string
}

// Name is a display name a user plays under on leaderboards.
type Name struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Value      string    `json:"value"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Payload is what a generator produced for a single task.
type Payload struct {
	Question  json.RawMessage `json:"question"`
	Answer    string          `json:"answer"`
	LimitTime int             `json:"limitTime"` // par time in seconds
}

// Task is a single question instance inside a session.
type Task struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Payload    Payload   `json:"payload"`
	Answer     *string   `json:"answer,omitempty"`
	Correct    bool      `json:"correct"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Open reports whether the task still waits for an answer.
func (t Task) Open() bool { return t.Answer == nil }

// Elapsed is the whole number of seconds the user took to answer.
func (t Task) Elapsed() int {
	d := t.ModifiedAt.Sub(t.CreatedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// SessionFilter narrows session history listings.
type SessionFilter struct {
	TestID        string
	Owner         Identity
	NameID        string
	HideCompleted bool
}

// Page is an offset/limit window. A zero Limit means no limit.
type Page struct {
	Offset int
	Limit  int
}

// Activity is the read model the rating engine aggregates: one row per session.
type Activity struct {
	SessionID    string
	Owner        Identity
	NameID       string
	NameValue    string
	Extension    string
	AnswerCount  int
	CorrectCount int
	AnswerTime   int
	LimitTime    int
	Complete     bool
	LocalTime    time.Time
}

// Crammer is one leaderboard row.
type Crammer struct {
	Rank         int       `json:"rank"`
	Key          string    `json:"key"`
	Label        string    `json:"label"`
	Sessions     int       `json:"sessions"`
	Completed    int       `json:"completed"`
	AnswerCount  int       `json:"answerCount"`
	CorrectCount int       `json:"correctCount"`
	AnswerTime   int       `json:"answerTime"`
	Crammers     float64   `json:"crammers"`
	LastActivity time.Time `json:"lastActivity"`
}

// ChartPoint is the aggregate of one identity on one calendar day.
type ChartPoint struct {
	Key          string  `json:"key"`
	Label        string  `json:"label"`
	Day          string  `json:"day"`
	Sessions     int     `json:"sessions"`
	Completed    int     `json:"completed"`
	CorrectCount int     `json:"correctCount"`
	AnswerTime   int     `json:"answerTime"`
	Crammers     float64 `json:"crammers"`
}
