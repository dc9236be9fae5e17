// Package authn implements the Authenticator (spec §4.1/§4.2): resolving
// an AuthContext from a request's bearer token or refresh cookie, and the
// session lifecycle (signup/login/refresh/logout) that issues them.
package authn

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/config"
	"github.com/vespid-ai/control-plane/internal/crypto"
	"github.com/vespid-ai/control-plane/internal/store"
	"github.com/vespid-ai/control-plane/internal/tokencodec"
)

// RefreshCookieName is the session refresh cookie spec §8's end-to-end
// scenario names explicitly ("a vespid_session cookie is set").
const RefreshCookieName = "vespid_session"

// AccessTokenHeader is the header used to hand back a freshly-minted access
// token on passive (non-rotating) refresh, spec §4.1 step 2.
const AccessTokenHeader = "X-Access-Token"

// AuthContext is the resolved identity for the current request, spec §4.1.
type AuthContext struct {
	UserID    uuid.UUID
	Email     string
	SessionID uuid.UUID
}

// Authenticator is the §4.2 coordinator: it owns signing/verifying both
// token formats and the AuthSession lifecycle behind them.
type Authenticator struct {
	Store store.Store
	Cfg   config.Config
}

func New(st store.Store, cfg config.Config) *Authenticator {
	return &Authenticator{Store: st, Cfg: cfg}
}

// Resolve implements the §4.1 pre-handler algorithm. It never returns an
// error for "no credentials" or "bad credentials" — both leave Auth nil, so
// anonymous access is the default and route handlers opt into requiring
// auth via requireAuth(). FreshAccessToken is non-empty only when passive
// refresh-cookie auth issued a replacement access token (no cookie
// rotation on that path).
type ResolveResult struct {
	Auth             *AuthContext
	FreshAccessToken string
}

func (a *Authenticator) Resolve(ctx context.Context, r *http.Request) (ResolveResult, error) {
	if bearer := bearerToken(r); bearer != "" {
		if auth, ok := a.resolveBearer(ctx, bearer); ok {
			return ResolveResult{Auth: auth}, nil
		}
	}

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return ResolveResult{}, nil
	}
	auth, fresh, ok := a.resolvePassiveRefresh(ctx, cookie.Value)
	if !ok {
		return ResolveResult{}, nil
	}
	return ResolveResult{Auth: auth, FreshAccessToken: fresh}, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func (a *Authenticator) resolveBearer(ctx context.Context, token string) (*AuthContext, bool) {
	claims, err := tokencodec.VerifyAccessToken(token, a.Cfg.AuthTokenSecret)
	if err != nil {
		return nil, false
	}
	sess, err := a.Store.GetAuthSession(ctx, claims.SessionID)
	if err != nil || !sess.Active(time.Now()) {
		return nil, false
	}
	_ = a.Store.TouchAuthSession(ctx, sess.ID)
	return &AuthContext{UserID: claims.UserID, Email: claims.Email, SessionID: claims.SessionID}, true
}

func (a *Authenticator) resolvePassiveRefresh(ctx context.Context, blob string) (*AuthContext, string, bool) {
	payload, err := tokencodec.VerifyRefreshToken(blob, a.Cfg.RefreshTokenSecret)
	if err != nil {
		return nil, "", false
	}
	sess, err := a.Store.GetAuthSession(ctx, payload.SessionID)
	if err != nil || !sess.Active(time.Now()) {
		return nil, "", false
	}
	if !constantTimeHashEqual(blob, sess.RefreshTokenHash) {
		return nil, "", false
	}
	_ = a.Store.TouchAuthSession(ctx, sess.ID)

	user, err := a.Store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, "", false
	}
	access, err := tokencodec.SignAccessToken(user.ID, user.EmailLower, sess.ID, a.Cfg.AccessTokenTTL, a.Cfg.AuthTokenSecret)
	if err != nil {
		return nil, "", false
	}
	return &AuthContext{UserID: user.ID, Email: user.EmailLower, SessionID: sess.ID}, access, true
}

// constantTimeHashEqual compares sha256(blob) against the stored hash in
// constant time, spec §8: "constant-time comparison returns false and no
// session lookup happens" on a tampered payload — the session lookup here
// has already happened by construction (VerifyRefreshToken rejects tamper
// before any store call), so this guards the narrower case of a
// syntactically valid but stolen/reused blob. Uses the same SHA256Hex
// encoding tokencodec.HashBlob used to produce the stored hash in the
// first place.
func constantTimeHashEqual(blob, storedHash string) bool {
	return crypto.ConstantTimeEqual(crypto.SHA256Hex(blob), storedHash)
}

var errUnauthorized = apperr.ErrUnauthorized("authentication required")

// RequireAuth is the requireAuth() assertion route handlers call.
func RequireAuth(auth *AuthContext) (*AuthContext, error) {
	if auth == nil {
		return nil, errUnauthorized
	}
	return auth, nil
}
