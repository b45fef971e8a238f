package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/alicelabs/alice-chat/internal/domain"
	"github.com/alicelabs/alice-chat/internal/identity"
)

// GuestCookieName carries the anonymous guest identity between requests.
const GuestCookieName = "alice_guest_id"

const guestCookieMaxAge = 30 * 24 * time.Hour

type contextKey int

const ownerKey contextKey = iota

var guestIDPattern = regexp.MustCompile(`^guest_[a-f0-9]{32}$`)

// OwnerFromContext extracts the requesting client's owner identity from the
// request context.
func OwnerFromContext(ctx context.Context) (domain.Owner, bool) {
	owner, ok := ctx.Value(ownerKey).(domain.Owner)
	return owner, ok
}

func generateGuestID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate guest id: %w", err)
	}
	return "guest_" + hex.EncodeToString(buf), nil
}

func isValidGuestID(id string) bool {
	return guestIDPattern.MatchString(id)
}

func setGuestCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(guestCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(guestCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateGuestID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(GuestCookieName); err == nil && isValidGuestID(c.Value) {
		setGuestCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateGuestID()
	if err != nil {
		return "", err
	}
	setGuestCookie(w, id, isDev)
	return id, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// ClientMiddleware resolves the requesting client's identity. Requests
// carrying a bearer token are resolved to a member through the identity
// provider; everything else gets an anonymous guest identity backed by a
// cookie.
func ClientMiddleware(provider identity.Provider, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var owner domain.Owner

			if token := bearerToken(r); token != "" {
				user, err := provider.UserFromToken(r.Context(), token)
				if err != nil {
					Error(w, http.StatusUnauthorized, "invalid or expired session")
					return
				}
				owner = domain.MemberOwner(user.ID)
			} else {
				guestID, err := getOrCreateGuestID(w, r, isDev)
				if err != nil {
					Error(w, http.StatusInternalServerError, "failed to establish guest identity")
					return
				}
				owner = domain.GuestOwner(guestID)
			}

			ctx := context.WithValue(r.Context(), ownerKey, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
