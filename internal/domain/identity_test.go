package domain

import (
	"testing"
	"time"
)

func TestIdentityOwnership(t *testing.T) {
	user := Authenticated("u1")
	anon := Anonymous("tok")

	cases := []struct {
		name   string
		caller Identity
		owner  Identity
		want   bool
	}{
		{"same user", user, Authenticated("u1"), true},
		{"other user", user, Authenticated("u2"), false},
		{"same token", anon, Anonymous("tok"), true},
		{"other token", anon, Anonymous("other"), false},
		{"user on anonymous session", user, anon, false},
		{"token on user session", anon, user, false},
		{"nobody owns ownerless", Identity{}, Identity{}, false},
		{"user on ownerless", user, Identity{}, false},
	}
	for _, tc := range cases {
		if got := tc.caller.Owns(tc.owner); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestIdentityConstructorsRejectEmpty(t *testing.T) {
	if !Authenticated("").IsZero() || !Anonymous("").IsZero() {
		t.Fatalf("expected empty references to produce the zero identity")
	}
	if id, ok := Anonymous("tok").UserID(); ok || id != "" {
		t.Fatalf("anonymous identity must not expose a user id, got %q", id)
	}
	if token, ok := Authenticated("u1").Token(); ok || token != "" {
		t.Fatalf("authenticated identity must not expose a token, got %q", token)
	}
	if id, ok := Authenticated("u1").UserID(); !ok || id != "u1" {
		t.Fatalf("expected user id u1, got %q", id)
	}
}

func TestWallClockUsesActorZone(t *testing.T) {
	now := time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC)
	actor := Actor{Location: ZoneFromOffset(180)}

	local := actor.LocalClock(now)
	if local.Format("2006-01-02 15:04") != "2024-03-02 01:30" {
		t.Fatalf("expected next-day wall clock, got %s", local)
	}
	if local.Location() != time.UTC {
		t.Fatalf("expected wall clock tagged as UTC, got %s", local.Location())
	}
}
