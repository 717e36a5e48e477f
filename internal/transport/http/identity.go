package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rtm-python/est/internal/domain"
)

const (
	// UserHeader carries the authenticated user id set by the auth proxy.
	UserHeader = "X-User-ID"
	// TokenCookie carries the anonymous visitor token.
	TokenCookie = "est_token"
	// OffsetHeader carries the client's UTC offset in minutes east.
	OffsetHeader = "X-Timezone-Offset"
)

const tokenMaxAge = 365 * 24 * 60 * 60

// actorFrom resolves who is calling. Authenticated users win over tokens.
func actorFrom(r *http.Request) domain.Actor {
	actor := domain.Actor{
		NameID:   r.URL.Query().Get("nameId"),
		Location: locationFrom(r),
	}
	if userID := r.Header.Get(UserHeader); userID != "" {
		actor.Identity = domain.Authenticated(userID)
		return actor
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		actor.Identity = domain.Anonymous(cookie.Value)
	}
	return actor
}

// ensureVisitor gives a caller with no identity a fresh anonymous token and
// returns the cookie to send back.
func ensureVisitor(actor *domain.Actor) *http.Cookie {
	if !actor.Identity.IsZero() {
		return nil
	}
	token := uuid.NewString()
	actor.Identity = domain.Anonymous(token)
	return &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   tokenMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func locationFrom(r *http.Request) *time.Location {
	raw := r.URL.Query().Get("tz")
	if raw == "" {
		raw = r.Header.Get(OffsetHeader)
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < -14*60 || minutes > 14*60 {
		return time.UTC
	}
	return domain.ZoneFromOffset(minutes)
}
