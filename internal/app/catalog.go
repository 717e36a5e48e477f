package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rtm-python/est/internal/domain"
	"go.uber.org/zap"
)

// GetTest reads a test through the cached read path.
func (s *TestingService) GetTest(ctx context.Context, testID string) (domain.Test, error) {
	return s.tests.GetTest(ctx, testID)
}

// CreateTest validates and stores a new test. The configuration is checked by
// generating one task with it.
func (s *TestingService) CreateTest(ctx context.Context, test domain.Test) (domain.Test, error) {
	if err := s.validateTest(test); err != nil {
		return domain.Test{}, err
	}
	now := s.now()
	test.ID = s.newID()
	test.CreatedAt = now
	test.ModifiedAt = now
	if err := s.store.Tests().CreateTest(ctx, test); err != nil {
		return domain.Test{}, fmt.Errorf("create test: %w", err)
	}
	s.log.Info("test created", zap.String("test", test.ID), zap.String("extension", test.Extension))
	return test, nil
}

// UpdateTest replaces a test definition. Sessions already started keep the
// extension and answer count they were created with.
func (s *TestingService) UpdateTest(ctx context.Context, test domain.Test) (domain.Test, error) {
	if err := s.validateTest(test); err != nil {
		return domain.Test{}, err
	}
	existing, err := s.store.Tests().GetTest(ctx, test.ID)
	if err != nil {
		return domain.Test{}, err
	}
	test.OwnerID = existing.OwnerID
	test.CreatedAt = existing.CreatedAt
	test.ModifiedAt = s.now()
	if err := s.store.Tests().UpdateTest(ctx, test); err != nil {
		return domain.Test{}, fmt.Errorf("update test: %w", err)
	}
	s.invalidate(ctx, test.ID)
	return test, nil
}

// DeleteTest soft-deletes a test.
func (s *TestingService) DeleteTest(ctx context.Context, testID string) error {
	if err := s.store.Tests().DeleteTest(ctx, testID); err != nil {
		return err
	}
	s.invalidate(ctx, testID)
	return nil
}

// ListTests lists tests matching filter.
func (s *TestingService) ListTests(ctx context.Context, filter domain.TestFilter, page domain.Page) ([]domain.Test, error) {
	return s.store.Tests().ListTests(ctx, filter, page)
}

// CreateName registers a display name for userID.
func (s *TestingService) CreateName(ctx context.Context, userID, value string) (domain.Name, error) {
	value = strings.TrimSpace(value)
	if userID == "" {
		return domain.Name{}, domain.ErrNotOwner
	}
	if value == "" {
		return domain.Name{}, &domain.ValidationError{Problems: []string{"name: required"}}
	}
	now := s.now()
	name := domain.Name{ID: s.newID(), UserID: userID, Value: value, CreatedAt: now, ModifiedAt: now}
	if err := s.store.Names().CreateName(ctx, name); err != nil {
		return domain.Name{}, fmt.Errorf("create name: %w", err)
	}
	return name, nil
}

// ListNames lists the display names of userID.
func (s *TestingService) ListNames(ctx context.Context, userID string) ([]domain.Name, error) {
	return s.store.Names().ListNames(ctx, userID)
}

// ListSessions lists session history, most recently modified first.
func (s *TestingService) ListSessions(ctx context.Context, filter domain.SessionFilter, page domain.Page) ([]domain.Session, error) {
	return s.store.Sessions().ListSessions(ctx, filter, page)
}

func (s *TestingService) validateTest(test domain.Test) error {
	var problems []string
	if strings.TrimSpace(test.Name) == "" {
		problems = append(problems, "name: required")
	}
	if test.AnswerCount < 1 {
		problems = append(problems, "answerCount: must be at least 1")
	}
	if test.LimitTime < 0 {
		problems = append(problems, "limitTime: must not be negative")
	}
	generator, err := s.registry.Lookup(test.Extension)
	if err != nil {
		problems = append(problems, fmt.Sprintf("extension: %v", err))
	} else if _, err := generator.Generate(test.Config); err != nil {
		problems = append(problems, fmt.Sprintf("config: %v", err))
	}
	if len(problems) > 0 {
		return &domain.ValidationError{Problems: problems}
	}
	return nil
}

func (s *TestingService) invalidate(ctx context.Context, testID string) {
	cache, ok := s.tests.(TestCache)
	if !ok {
		return
	}
	if err := cache.Invalidate(ctx, testID); err != nil {
		s.log.Warn("test cache invalidation failed", zap.String("test", testID), zap.Error(err))
	}
}
