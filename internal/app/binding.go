package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// BindIdentity moves every session owned by the anonymous token to userID.
// Sessions move in batches, each batch in its own transaction, until a batch
// comes back short. Running it again after success moves nothing.
func (s *TestingService) BindIdentity(ctx context.Context, userID, token string) (int, error) {
	if userID == "" || token == "" {
		return 0, nil
	}
	total := 0
	for {
		var moved int
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
			var err error
			moved, err = tx.Sessions().BindAnonymous(ctx, userID, token, s.bindBatch)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("bind sessions to %s: %w", userID, err)
		}
		total += moved
		if moved < s.bindBatch {
			break
		}
	}
	if total > 0 {
		s.metrics.SessionsBound(total)
		s.log.Info("anonymous sessions bound", zap.String("user", userID), zap.Int("sessions", total))
	}
	return total, nil
}
