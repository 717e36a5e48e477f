// Package rating aggregates session activity into leaderboards and per-day
// trend series. It never writes: sources may be replicas or cached snapshots.
package rating

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rtm-python/est/internal/domain"
)

// DayLayout is the calendar day key format.
const DayLayout = "2006-01-02"

// AnonymousLabel is shown for identities that never picked a display name.
const AnonymousLabel = "Anonymous User"

// Source lists session activity matching a filter.
type Source interface {
	ListActivity(ctx context.Context, filter Filter) ([]domain.Activity, error)
}

// Window is a half-open range [Since, Until) of wall clock time. A zero bound is open.
type Window struct {
	Since time.Time
	Until time.Time
}

// Contains reports whether the wall clock reading t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Since.IsZero() && t.Before(w.Since) {
		return false
	}
	if !w.Until.IsZero() && !t.Before(w.Until) {
		return false
	}
	return true
}

// Filter is what sources apply before aggregation.
type Filter struct {
	Window    Window
	Extension string
	// Owner restricts activity to one identity when set.
	Owner domain.Identity
}

// Matches applies the filter to one activity row.
func (f Filter) Matches(a domain.Activity) bool {
	if a.AnswerCount == 0 {
		return false
	}
	if f.Extension != "" && a.Extension != f.Extension {
		return false
	}
	if !f.Owner.IsZero() && a.Owner != f.Owner {
		return false
	}
	return f.Window.Contains(a.LocalTime)
}

// Query selects a leaderboard page.
type Query struct {
	Window    Window
	Extension string
	Limit     int
	Offset    int
}

// ChartQuery selects per-day series.
type ChartQuery struct {
	Window    Window
	Extension string
	Owner     domain.Identity
}

// Engine ranks identities by summed crammers.
type Engine struct {
	source Source
}

func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// TopCrammers groups activity by identity and ranks by summed crammers,
// breaking ties by most recent activity.
func (e *Engine) TopCrammers(ctx context.Context, q Query) ([]domain.Crammer, error) {
	filter := Filter{Window: q.Window, Extension: q.Extension}
	rows, err := e.source.ListActivity(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	byKey := make(map[string]*domain.Crammer)
	for _, row := range rows {
		if !filter.Matches(row) {
			continue
		}
		key, label := groupOf(row)
		c, ok := byKey[key]
		if !ok {
			c = &domain.Crammer{Key: key, Label: label}
			byKey[key] = c
		}
		c.Sessions++
		if row.Complete {
			c.Completed++
		}
		c.AnswerCount += row.AnswerCount
		c.CorrectCount += row.CorrectCount
		c.AnswerTime += row.AnswerTime
		c.Crammers += domain.Crammers(row)
		if row.LocalTime.After(c.LastActivity) {
			c.LastActivity = row.LocalTime
		}
	}

	ranked := make([]domain.Crammer, 0, len(byKey))
	for _, c := range byKey {
		ranked = append(ranked, *c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Crammers != ranked[j].Crammers {
			return ranked[i].Crammers > ranked[j].Crammers
		}
		if !ranked[i].LastActivity.Equal(ranked[j].LastActivity) {
			return ranked[i].LastActivity.After(ranked[j].LastActivity)
		}
		return ranked[i].Key < ranked[j].Key
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return paginate(ranked, q.Offset, q.Limit), nil
}

// ChartSeries returns one point per identity per active day, ordered by
// identity then day. Days without activity are not emitted.
func (e *Engine) ChartSeries(ctx context.Context, q ChartQuery) ([]domain.ChartPoint, error) {
	filter := Filter{Window: q.Window, Extension: q.Extension, Owner: q.Owner}
	rows, err := e.source.ListActivity(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	type dayKey struct{ key, day string }
	byDay := make(map[dayKey]*domain.ChartPoint)
	for _, row := range rows {
		if !filter.Matches(row) {
			continue
		}
		key, label := groupOf(row)
		dk := dayKey{key: key, day: row.LocalTime.Format(DayLayout)}
		p, ok := byDay[dk]
		if !ok {
			p = &domain.ChartPoint{Key: key, Label: label, Day: dk.day}
			byDay[dk] = p
		}
		p.Sessions++
		if row.Complete {
			p.Completed++
		}
		p.CorrectCount += row.CorrectCount
		p.AnswerTime += row.AnswerTime
		p.Crammers += domain.Crammers(row)
	}

	points := make([]domain.ChartPoint, 0, len(byDay))
	for _, p := range byDay {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Key != points[j].Key {
			return points[i].Key < points[j].Key
		}
		return points[i].Day < points[j].Day
	})
	return points, nil
}

// groupOf picks the leaderboard identity of a session: its display name when
// one was chosen, otherwise its owner.
func groupOf(a domain.Activity) (string, string) {
	label := a.NameValue
	if label == "" {
		label = AnonymousLabel
	}
	if a.NameID != "" {
		return "name:" + a.NameID, label
	}
	if key := a.Owner.Key(); key != "" {
		return key, label
	}
	return "session:" + a.SessionID, label
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
