package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/anicoll/eco-monitor/pkg/hasher"
)

const (
	sessionCookie = "eco_session"
	tokenSubject  = "dashboard"
)

var ErrUnauthorized = errors.New("unauthorized")

// publicPaths stay reachable without a session.
var publicPaths = map[string]struct{}{
	"/login":            {},
	"/api/login":        {},
	"/healthz":          {},
	"/metrics":          {},
	"/api/openapi.json": {},
}

// Authenticator guards the dashboard with a single bcrypt hashed password and
// HS256 session tokens.
type Authenticator struct {
	passwordHash string
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewAuthenticator returns an authenticator for passwordHash. A random secret
// is generated when secret is empty, which invalidates sessions on restart.
func NewAuthenticator(passwordHash string, secret []byte, ttl time.Duration) (*Authenticator, error) {
	if len(secret) == 0 {
		var err error
		if secret, err = hasher.GenerateSecret(32); err != nil {
			return nil, err
		}
	}
	return &Authenticator{
		passwordHash: passwordHash,
		secret:       secret,
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

// Login checks password and issues a signed session token.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if !hasher.PasswordCorrect(password, a.passwordHash) {
		return "", time.Time{}, ErrUnauthorized
	}
	now := a.now()
	expires := now.Add(a.ttl)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (a *Authenticator) Verify(token string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(tokenSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return errors.Join(ErrUnauthorized, err)
	}
	return nil
}

// Middleware rejects requests without a valid session. API and websocket
// requests get a 401, page requests are redirected to the login form.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := publicPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		if err := a.Verify(requestToken(r)); err != nil {
			if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
				handleError(w, http.StatusUnauthorized, ErrUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) sessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}
