package domain

import "time"

type identityKind uint8

const (
	identityNone identityKind = iota
	identityUser
	identityAnonymous
)

// Identity is either an authenticated user reference or an anonymous token.
// The zero value is nobody.
type Identity struct {
	kind  identityKind
	value string
}

// Authenticated returns the identity of a signed-in user.
func Authenticated(userID string) Identity {
	if userID == "" {
		return Identity{}
	}
	return Identity{kind: identityUser, value: userID}
}

// Anonymous returns the identity of a visitor that has not signed in yet.
func Anonymous(token string) Identity {
	if token == "" {
		return Identity{}
	}
	return Identity{kind: identityAnonymous, value: token}
}

// UserID returns the user reference if the identity is authenticated.
func (i Identity) UserID() (string, bool) {
	if i.kind != identityUser {
		return "", false
	}
	return i.value, true
}

// Token returns the anonymous token if the identity is anonymous.
func (i Identity) Token() (string, bool) {
	if i.kind != identityAnonymous {
		return "", false
	}
	return i.value, true
}

func (i Identity) IsZero() bool { return i.kind == identityNone }

// Key is a stable string form used for grouping and cache keys.
func (i Identity) Key() string {
	switch i.kind {
	case identityUser:
		return "user:" + i.value
	case identityAnonymous:
		return "anon:" + i.value
	}
	return ""
}

func (i Identity) String() string {
	switch i.kind {
	case identityUser:
		return "user " + i.value
	case identityAnonymous:
		return "anonymous"
	}
	return "nobody"
}

// Owns reports whether the identity may act on a session owned by owner.
// A session without an owner is owned by nobody.
func (i Identity) Owns(owner Identity) bool {
	if owner.IsZero() || i.IsZero() {
		return false
	}
	return i == owner
}

// Actor is the caller of a play operation: who they are, which display name
// they play under and the time zone their calendar day is counted in.
type Actor struct {
	Identity Identity
	NameID   string
	Location *time.Location
}

// LocalClock converts an instant into the actor's wall clock. The result is
// expressed in UTC so that it stores and compares without zone conversion.
func (a Actor) LocalClock(now time.Time) time.Time {
	return WallClock(now, a.Location)
}

// WallClock returns the wall clock reading of now in loc, tagged as UTC.
func WallClock(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
}

// ZoneFromOffset builds a fixed zone from an offset east of UTC in minutes.
func ZoneFromOffset(minutes int) *time.Location {
	if minutes == 0 {
		return time.UTC
	}
	return time.FixedZone("", minutes*60)
}
