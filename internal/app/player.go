package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/extension"
	"go.uber.org/zap"
)

// PlayState is what a player sees when opening a session.
type PlayState struct {
	Session domain.Session
	Test    domain.Test
	// Task is the open task; nil once the session is complete.
	Task *domain.Task
}

// Complete reports whether the session has nothing left to answer.
func (p PlayState) Complete() bool { return p.Task == nil }

// SubmitOutcome describes what happened to a submitted answer.
type SubmitOutcome struct {
	Accepted bool
	// Errors lists input problems when the answer was rejected by the extension.
	Errors   []string
	Correct  bool
	Answered *domain.Task
	Session  domain.Session
	// Next is the task to show after this submission, nil when complete.
	Next *domain.Task
}

// Complete reports whether the submission finished the session.
func (o SubmitOutcome) Complete() bool { return o.Session.Complete() }

// StartSession creates a session for the test on behalf of actor.
func (s *TestingService) StartSession(ctx context.Context, testID string, actor domain.Actor) (domain.Session, error) {
	if actor.Identity.IsZero() {
		return domain.Session{}, domain.ErrNotOwner
	}
	test, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return domain.Session{}, err
	}
	if _, err := s.registry.Lookup(test.Extension); err != nil {
		return domain.Session{}, err
	}
	if actor.NameID != "" {
		name, err := s.store.Names().GetName(ctx, actor.NameID)
		if err != nil {
			return domain.Session{}, err
		}
		if userID, ok := actor.Identity.UserID(); !ok || name.UserID != userID {
			return domain.Session{}, fmt.Errorf("name %s: %w", actor.NameID, domain.ErrNotOwner)
		}
	}

	session := domain.NewSession(s.newID(), test, actor, s.now())
	if err := s.store.Sessions().CreateSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.metrics.SessionStarted(session.Extension)
	s.log.Info("session started",
		zap.String("session", session.ID),
		zap.String("test", test.ID),
		zap.Stringer("owner", session.Owner),
	)
	return session, nil
}

// OpenState returns the session with its open task, generating one if needed.
// Repeated calls return the same task until it is answered.
func (s *TestingService) OpenState(ctx context.Context, sessionID string, actor domain.Actor) (PlayState, error) {
	session, err := s.ownedSession(ctx, sessionID, actor)
	if err != nil {
		return PlayState{}, err
	}
	test, err := s.tests.GetTest(ctx, session.TestID)
	if err != nil {
		return PlayState{}, err
	}
	state := PlayState{Session: session, Test: test}
	if session.Complete() {
		return state, nil
	}
	task, err := s.openTask(ctx, session, test)
	if err != nil {
		return PlayState{}, err
	}
	state.Task = &task
	return state, nil
}

// SubmitAnswer answers the open task taskID. Input the extension cannot parse
// is returned as Errors without touching the session. Answering a task that is
// no longer open returns domain.ErrTaskAnswered.
func (s *TestingService) SubmitAnswer(ctx context.Context, sessionID, taskID string, actor domain.Actor, input extension.Input) (SubmitOutcome, error) {
	session, err := s.ownedSession(ctx, sessionID, actor)
	if err != nil {
		return SubmitOutcome{}, err
	}
	if session.Complete() {
		return SubmitOutcome{Session: session}, domain.ErrSessionComplete
	}
	open, err := s.store.Tasks().ReadOpenTask(ctx, sessionID)
	if errors.Is(err, domain.ErrTaskNotFound) || (err == nil && open.ID != taskID) {
		return SubmitOutcome{Session: session}, fmt.Errorf("task %s: %w", taskID, domain.ErrTaskAnswered)
	}
	if err != nil {
		return SubmitOutcome{}, err
	}

	generator, err := s.registry.Lookup(session.Extension)
	if err != nil {
		return SubmitOutcome{}, err
	}
	answer, problems := generator.Validate(input)
	if len(problems) > 0 {
		return SubmitOutcome{Errors: problems, Session: session, Next: &open}, nil
	}

	local := actor.LocalClock(s.now())
	var answered domain.Task
	var updated domain.Session
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		var err error
		answered, err = tx.Tasks().SubmitAnswer(ctx, taskID, answer)
		if err != nil {
			return err
		}
		current, err := tx.Sessions().GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		updated, err = current.RecordAnswer(answered, local)
		if err != nil {
			return err
		}
		return tx.Sessions().UpdateProgress(ctx, current, updated)
	})
	if err != nil {
		return SubmitOutcome{Session: session}, err
	}

	s.metrics.AnswerRecorded(updated.Extension, answered.Correct)
	outcome := SubmitOutcome{
		Accepted: true,
		Correct:  answered.Correct,
		Answered: &answered,
		Session:  updated,
	}
	if updated.Complete() {
		s.metrics.SessionCompleted(updated.Extension, *updated.Result)
		s.log.Info("session completed",
			zap.String("session", updated.ID),
			zap.Int("result", *updated.Result),
			zap.Int("correct", updated.CorrectCount),
			zap.Int("answers", updated.AnswerCount),
		)
		return outcome, nil
	}

	test, err := s.tests.GetTest(ctx, updated.TestID)
	if err != nil {
		return outcome, err
	}
	next, err := s.openTask(ctx, updated, test)
	if err != nil {
		return outcome, err
	}
	outcome.Next = &next
	return outcome, nil
}

// PauseSession discards the open task and charges the pause penalty.
// The next OpenState generates a fresh task.
func (s *TestingService) PauseSession(ctx context.Context, sessionID string, actor domain.Actor) (domain.Session, error) {
	session, err := s.ownedSession(ctx, sessionID, actor)
	if err != nil {
		return domain.Session{}, err
	}
	if session.Complete() {
		return session, domain.ErrSessionComplete
	}

	local := actor.LocalClock(s.now())
	var updated domain.Session
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.Tasks().DiscardOpenTask(ctx, sessionID); err != nil {
			return err
		}
		current, err := tx.Sessions().GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		updated, err = current.Pause(s.pausePenalty, local)
		if err != nil {
			return err
		}
		return tx.Sessions().UpdateProgress(ctx, current, updated)
	})
	if err != nil {
		return domain.Session{}, err
	}
	s.metrics.SessionPaused(updated.Extension)
	s.log.Debug("session paused", zap.String("session", sessionID), zap.Int("answer_time", updated.AnswerTime))
	return updated, nil
}

// Result returns a completed session with its answered tasks, most recent first.
func (s *TestingService) Result(ctx context.Context, sessionID string, actor domain.Actor) (domain.Session, []domain.Task, error) {
	session, err := s.ownedSession(ctx, sessionID, actor)
	if err != nil {
		return domain.Session{}, nil, err
	}
	if !session.Complete() {
		return session, nil, domain.ErrSessionIncomplete
	}
	tasks, err := s.store.Tasks().ListAnswered(ctx, sessionID, domain.Page{})
	if err != nil {
		return domain.Session{}, nil, err
	}
	return session, tasks, nil
}

func (s *TestingService) ownedSession(ctx context.Context, sessionID string, actor domain.Actor) (domain.Session, error) {
	session, err := s.store.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if !actor.Identity.Owns(session.Owner) {
		return domain.Session{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotOwner)
	}
	return session, nil
}

// openTask reads the open task or generates one. Concurrent generators race
// on the store's one-open-task guard and the loser reads the winner's task.
func (s *TestingService) openTask(ctx context.Context, session domain.Session, test domain.Test) (domain.Task, error) {
	task, err := s.store.Tasks().ReadOpenTask(ctx, session.ID)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, domain.ErrTaskNotFound) {
		return domain.Task{}, err
	}

	generator, err := s.registry.Lookup(session.Extension)
	if err != nil {
		return domain.Task{}, err
	}
	payload, err := generator.Generate(test.Config)
	if err != nil {
		return domain.Task{}, fmt.Errorf("generate task for %s: %w", session.ID, err)
	}
	task, err = s.store.Tasks().CreateOpenTask(ctx, session.ID, payload)
	if errors.Is(err, domain.ErrOpenTaskExists) {
		return s.store.Tasks().ReadOpenTask(ctx, session.ID)
	}
	return task, err
}
