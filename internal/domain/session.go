package domain

import (
	"fmt"
	"math"
	"time"
)

// PausePenalty is charged to a session's answer time every time it is paused.
const PausePenalty = 10 * time.Second

// Session is one attempt at a test.
type Session struct {
	ID     string `json:"id"`
	TestID string `json:"testId"`
	// Extension and TargetCount are copied from the test when the session starts.
	Extension   string `json:"extension"`
	TargetCount int    `json:"targetCount"`

	Owner Identity `json:"-"`
	// OriginToken keeps the anonymous token the session was started with, even after binding.
	OriginToken string `json:"-"`
	NameID      string `json:"nameId,omitempty"`

	AnswerCount  int  `json:"answerCount"`
	CorrectCount int  `json:"correctCount"`
	AnswerTime   int  `json:"answerTime"` // seconds the user spent answering, plus pause penalties
	LimitTime    int  `json:"limitTime"`  // sum of par times of answered tasks
	Result       *int `json:"result,omitempty"`

	// LocalTime is the actor's wall clock at the last activity, see WallClock.
	LocalTime  time.Time `json:"localTime"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// NewSession starts a session for test on behalf of actor.
func NewSession(id string, test Test, actor Actor, now time.Time) Session {
	s := Session{
		ID:          id,
		TestID:      test.ID,
		Extension:   test.Extension,
		TargetCount: test.AnswerCount,
		Owner:       actor.Identity,
		NameID:      actor.NameID,
		LocalTime:   actor.LocalClock(now),
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	if token, ok := actor.Identity.Token(); ok {
		s.OriginToken = token
	}
	return s
}

// Complete reports whether every required answer has been recorded.
func (s Session) Complete() bool {
	return s.AnswerCount >= s.TargetCount
}

// RecordAnswer accumulates an answered task and computes the result once
// the session reaches its target answer count.
func (s Session) RecordAnswer(task Task, local time.Time) (Session, error) {
	if task.Open() {
		return s, fmt.Errorf("record task %s: %w", task.ID, ErrTaskNotFound)
	}
	if s.Complete() {
		return s, ErrSessionComplete
	}
	s.AnswerCount++
	if task.Correct {
		s.CorrectCount++
	}
	s.AnswerTime += task.Elapsed()
	s.LimitTime += task.Payload.LimitTime
	s.LocalTime = local
	if s.Complete() {
		result := Score(s.CorrectCount, s.AnswerCount, s.LimitTime, s.AnswerTime)
		s.Result = &result
	}
	return s, nil
}

// Pause charges the pause penalty without counting an answer.
func (s Session) Pause(penalty time.Duration, local time.Time) (Session, error) {
	if s.Complete() {
		return s, ErrSessionComplete
	}
	s.AnswerTime += int(penalty / time.Second)
	s.LocalTime = local
	return s, nil
}

// Correctness is the rounded percentage of correct answers.
func Correctness(correct, answered int) int {
	if answered <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(answered) * 100))
}

// Speed is the rounded percentage of par time over spent time, capped at 100.
// A session that spent no measurable time answers at full speed.
func Speed(limitTime, answerTime int) int {
	if answerTime <= 0 {
		return 100
	}
	speed := int(math.Round(float64(limitTime) / float64(answerTime) * 100))
	if speed > 100 {
		return 100
	}
	return speed
}

// Score combines correctness and speed into the 0-100 session result.
func Score(correct, answered, limitTime, answerTime int) int {
	return int(math.Round(float64(Correctness(correct, answered)*Speed(limitTime, answerTime)) / 100))
}

// Crammers weighs the unrounded result by answering throughput. Sessions with
// no answers or no spent time contribute nothing.
func Crammers(a Activity) float64 {
	if a.AnswerCount <= 0 || a.AnswerTime <= 0 {
		return 0
	}
	correctness := float64(a.CorrectCount) / float64(a.AnswerCount) * 100
	speed := math.Min(float64(a.LimitTime)/float64(a.AnswerTime), 1)
	return correctness * speed * float64(a.AnswerCount) / float64(a.AnswerTime)
}

// Activity projects the session into the rating read model.
func (s Session) Activity(nameValue string) Activity {
	return Activity{
		SessionID:    s.ID,
		Owner:        s.Owner,
		NameID:       s.NameID,
		NameValue:    nameValue,
		Extension:    s.Extension,
		AnswerCount:  s.AnswerCount,
		CorrectCount: s.CorrectCount,
		AnswerTime:   s.AnswerTime,
		LimitTime:    s.LimitTime,
		Complete:     s.Complete(),
		LocalTime:    s.LocalTime,
	}
}
