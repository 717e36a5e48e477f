package rating

import (
	"context"
	"testing"
	"time"

	"github.com/rtm-python/est/internal/domain"
)

type staticSource []domain.Activity

func (s staticSource) ListActivity(_ context.Context, _ Filter) ([]domain.Activity, error) {
	return s, nil
}

var day0 = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func activity(owner domain.Identity, at time.Time, answers, correct, answerTime, limitTime int) domain.Activity {
	return domain.Activity{
		SessionID:    at.String(),
		Owner:        owner,
		Extension:    "arithmetic",
		AnswerCount:  answers,
		CorrectCount: correct,
		AnswerTime:   answerTime,
		LimitTime:    limitTime,
		Complete:     true,
		LocalTime:    at,
	}
}

func TestTopCrammersRanksBySum(t *testing.T) {
	alice := domain.Authenticated("alice")
	bob := domain.Authenticated("bob")
	src := staticSource{
		activity(alice, day0.Add(9*time.Hour), 10, 10, 20, 20), // 50
		activity(bob, day0.Add(10*time.Hour), 10, 10, 40, 40),  // 25
		activity(bob, day0.Add(11*time.Hour), 10, 10, 40, 40),  // 25
		activity(bob, day0.Add(11*time.Hour), 10, 10, 10, 10),  // 100
		activity(alice, day0.Add(-2*time.Hour), 10, 10, 1, 1),  // outside window
		activity(alice, day0.Add(26*time.Hour), 10, 10, 1, 1),  // outside window
	}
	engine := NewEngine(src)

	top, err := engine.TopCrammers(context.Background(), Query{Window: Window{Since: day0, Until: day0.AddDate(0, 0, 1)}})
	if err != nil {
		t.Fatalf("top crammers: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %+v", top)
	}
	if top[0].Key != "user:bob" || top[0].Crammers != 150 || top[0].Sessions != 3 || top[0].Rank != 1 {
		t.Fatalf("expected bob first with 150, got %+v", top[0])
	}
	if top[1].Key != "user:alice" || top[1].Crammers != 50 {
		t.Fatalf("expected alice second with 50, got %+v", top[1])
	}
}

func TestTopCrammersTieBreaksByRecentActivity(t *testing.T) {
	src := staticSource{
		activity(domain.Authenticated("early"), day0.Add(8*time.Hour), 10, 10, 20, 20),
		activity(domain.Authenticated("late"), day0.Add(20*time.Hour), 10, 10, 20, 20),
	}
	top, err := NewEngine(src).TopCrammers(context.Background(), Query{Window: Window{Since: day0, Until: day0.AddDate(0, 0, 1)}})
	if err != nil {
		t.Fatalf("top crammers: %v", err)
	}
	if len(top) != 2 || top[0].Key != "user:late" {
		t.Fatalf("expected most recent identity first, got %+v", top)
	}
}

func TestTopCrammersToleratesZeroTimeAndEmptyWindow(t *testing.T) {
	src := staticSource{activity(domain.Anonymous("tok"), day0.Add(time.Hour), 1, 1, 0, 3)}
	engine := NewEngine(src)

	top, err := engine.TopCrammers(context.Background(), Query{})
	if err != nil {
		t.Fatalf("top crammers: %v", err)
	}
	if len(top) != 1 || top[0].Crammers != 0 || top[0].Label != AnonymousLabel {
		t.Fatalf("expected zero contribution entry, got %+v", top)
	}

	empty, err := engine.TopCrammers(context.Background(), Query{Window: Window{Since: day0.AddDate(1, 0, 0)}})
	if err != nil {
		t.Fatalf("empty window: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", empty)
	}
}

func TestTopCrammersPagination(t *testing.T) {
	var src staticSource
	for i, id := range []string{"a", "b", "c", "d"} {
		src = append(src, activity(domain.Authenticated(id), day0, 10, 10, 10*(i+1), 10*(i+1)))
	}
	page, err := NewEngine(src).TopCrammers(context.Background(), Query{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("top crammers: %v", err)
	}
	if len(page) != 2 || page[0].Rank != 2 || page[0].Key != "user:b" || page[1].Key != "user:c" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestTopCrammersGroupsByName(t *testing.T) {
	first := activity(domain.Authenticated("u1"), day0, 10, 10, 10, 10)
	first.NameID, first.NameValue = "n1", "Speedy"
	second := activity(domain.Anonymous("tok"), day0, 10, 10, 10, 10)
	second.NameID, second.NameValue = "n1", "Speedy"

	top, err := NewEngine(staticSource{first, second}).TopCrammers(context.Background(), Query{})
	if err != nil {
		t.Fatalf("top crammers: %v", err)
	}
	if len(top) != 1 || top[0].Label != "Speedy" || top[0].Sessions != 2 {
		t.Fatalf("expected sessions grouped under the display name, got %+v", top)
	}
}

func TestChartSeriesBucketsByDay(t *testing.T) {
	alice := domain.Authenticated("alice")
	src := staticSource{
		activity(alice, day0.Add(1*time.Hour), 10, 10, 20, 20),
		activity(alice, day0.Add(23*time.Hour), 10, 5, 20, 20),
		activity(alice, day0.Add(25*time.Hour), 10, 10, 10, 10),
		activity(domain.Authenticated("bob"), day0.Add(2*time.Hour), 10, 10, 10, 10),
	}
	points, err := NewEngine(src).ChartSeries(context.Background(), ChartQuery{Owner: alice})
	if err != nil {
		t.Fatalf("chart series: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected two days for alice, got %+v", points)
	}
	if points[0].Day != "2024-05-10" || points[0].Sessions != 2 || points[0].CorrectCount != 15 || points[0].Crammers != 75 {
		t.Fatalf("unexpected first day %+v", points[0])
	}
	if points[1].Day != "2024-05-11" || points[1].Crammers != 100 {
		t.Fatalf("unexpected second day %+v", points[1])
	}
}

func TestPeriodWindow(t *testing.T) {
	now := time.Date(2024, 5, 10, 22, 0, 0, 0, time.UTC)
	loc := domain.ZoneFromOffset(180) // already 11 May 01:00 for the viewer

	w, err := PeriodWindow("7-days", now, loc)
	if err != nil {
		t.Fatalf("period: %v", err)
	}
	if w.Until.Format(DayLayout) != "2024-05-12" || w.Since.Format(DayLayout) != "2024-05-05" {
		t.Fatalf("unexpected window %s - %s", w.Since, w.Until)
	}
	if days := w.Days(); len(days) != 7 || days[6] != "2024-05-11" {
		t.Fatalf("unexpected days %v", days)
	}

	all, err := PeriodWindow("all-days", now, loc)
	if err != nil || !all.Since.IsZero() {
		t.Fatalf("expected open-ended window, got %+v %v", all, err)
	}
	if _, err := PeriodWindow("yesterday", now, loc); err == nil {
		t.Fatalf("expected unknown period error")
	}
}
