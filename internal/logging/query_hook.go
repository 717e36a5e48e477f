package logging

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// SlowQuery is the duration above which queries are reported as warnings.
const SlowQuery = 200 * time.Millisecond

// QueryHook reports bun queries through zap.
type QueryHook struct {
	log *zap.Logger
}

func NewQueryHook(log *zap.Logger) *QueryHook {
	return &QueryHook{log: log}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	fields := []zap.Field{
		zap.String("operation", event.Operation()),
		zap.Duration("elapsed", elapsed),
		zap.String("sql", event.Query),
	}

	switch {
	// no rows is an expected outcome of lookups
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.log.Error("query failed", append(fields, zap.Error(event.Err))...)
	case elapsed > SlowQuery:
		h.log.Warn("slow query", fields...)
	default:
		h.log.Debug("query", fields...)
	}
}
