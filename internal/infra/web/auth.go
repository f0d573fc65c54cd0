package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"ai-image-billing/internal/config"
	"ai-image-billing/internal/domain/model"
	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/api"
	"ai-image-billing/internal/infra/logging"
	"ai-image-billing/internal/infra/metrics"
)

// ===== Session/JWT primitives =====

type AuthConfig struct {
	HMACSecret   []byte
	CookieName   string
	CookieDomain string
	SecureCookie bool
	TTL          time.Duration
}

type AuthManager struct {
	cfg AuthConfig
	now func() time.Time
}

func NewAuthManager(cfg config.SessionConfig) *AuthManager {
	name := cfg.CookieName
	if name == "" {
		name = "session"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &AuthManager{
		cfg: AuthConfig{
			HMACSecret:   []byte(cfg.Secret),
			CookieName:   name,
			CookieDomain: cfg.CookieDomain, // "" keeps a host-only cookie
			SecureCookie: cfg.SecureCookie,
			TTL:          ttl,
		},
		now: time.Now,
	}
}

// SessionClaims identify the signed-in user. Subject carries the user id.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// Issue signs a session token without touching any response.
func (a *AuthManager) Issue(user *model.SessionUser) (string, error) {
	if user == nil || user.ID == "" || user.Email == "" {
		return "", errors.New("session user requires id and email")
	}
	now := a.now()
	claims := SessionClaims{
		Email: strings.ToLower(strings.TrimSpace(user.Email)),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
			Subject:   user.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.cfg.HMACSecret)
}

// Mint issues a token and stores it in the session cookie.
func (a *AuthManager) Mint(w http.ResponseWriter, user *model.SessionUser) (string, error) {
	signed, err := a.Issue(user)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   int(a.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return signed, nil
}

func (a *AuthManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*SessionClaims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	// Cookie
	if c, err := r.Cookie(a.cfg.CookieName); err == nil && c.Value != "" {
		return a.parse(c.Value)
	}
	return nil, errMissingToken
}

func (a *AuthManager) parse(tok string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid {
		return nil, errInvalidToken
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// CurrentUser resolves the session on r. It fails with UNAUTHORIZED.
func (a *AuthManager) CurrentUser(r *http.Request) (*model.SessionUser, error) {
	claims, err := a.ParseFromRequest(r)
	if err != nil {
		return nil, derror.Wrap(derror.CodeUnauthorized, err, "authentication required")
	}
	return &model.SessionUser{ID: claims.Subject, Email: claims.Email}, nil
}

// ===== Request context =====

type ctxKey struct{}

func WithSessionUser(ctx context.Context, u *model.SessionUser) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// SessionUserFrom returns the user stored by RequireUser, or nil.
func SessionUserFrom(ctx context.Context) *model.SessionUser {
	u, _ := ctx.Value(ctxKey{}).(*model.SessionUser)
	return u
}

// ===== Middlewares =====

// RequireUser rejects requests without a valid session.
func (a *AuthManager) RequireUser(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.CurrentUser(r)
			if err != nil {
				api.WriteError(w, r, logger, err)
				return
			}
			ctx := WithSessionUser(r.Context(), user)
			ctx = logging.WithUserID(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after RequireUser. The session email has to be on
// the admin allowlist.
func RequireAdmin(admins config.AdminConfig, dev bool, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := SessionUserFrom(r.Context())
			if user == nil {
				metrics.IncAdminRequest(r.URL.Path, "unauthorized")
				api.WriteError(w, r, logger, derror.New(derror.CodeUnauthorized, "authentication required"))
				return
			}
			if !admins.IsAdmin(user.Email) {
				metrics.IncAdminRequest(r.URL.Path, "forbidden")
				l := logging.With(r.Context(), logger)
				l.Warn().Str("email", logging.Redact(user.Email, dev)).Msg("admin access denied")
				api.WriteError(w, r, logger, derror.New(derror.CodeForbidden, "admin access required"))
				return
			}
			metrics.IncAdminRequest(r.URL.Path, "authorized")
			next.ServeHTTP(w, r)
		})
	}
}
