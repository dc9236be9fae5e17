package authn

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/store"
	"github.com/vespid-ai/control-plane/internal/tokencodec"
	"golang.org/x/crypto/bcrypt"
)

// Issued is what a caller (signup/login/rotate handler) needs to finish the
// HTTP response: the access token for the body and the session row in case
// the handler wants to surface session metadata.
type Issued struct {
	AccessToken string
	Session     store.AuthSession
	User        store.User
}

// SetRefreshCookie writes the signed refresh-token blob as the session
// cookie on w: httpOnly, sameSite=lax, path=/, secure iff production.
func (a *Authenticator) SetRefreshCookie(w http.ResponseWriter, blob string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    blob,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   a.Cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearRefreshCookie expires the session cookie, used by Logout/LogoutAll.
func (a *Authenticator) ClearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.Cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// Signup creates a user, ensures their personal organization, and issues a
// fresh session.
func (a *Authenticator) Signup(ctx context.Context, w http.ResponseWriter, emailLower, password, displayName, userAgent, ip string) (Issued, store.Organization, error) {
	if _, err := a.Store.GetUserByEmail(ctx, emailLower); err == nil {
		return Issued{}, store.Organization{}, apperr.ErrConflict("an account with this email already exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Issued{}, store.Organization{}, apperr.ErrInternal
	}
	user, err := a.Store.CreateUser(ctx, emailLower, string(hash), displayName)
	if err != nil {
		return Issued{}, store.Organization{}, apperr.ErrInternal
	}
	org, err := a.Store.EnsurePersonalOrganization(ctx, user.ID, displayName)
	if err != nil {
		return Issued{}, store.Organization{}, apperr.ErrInternal
	}
	issued, err := a.issueSession(ctx, w, user, userAgent, ip)
	if err != nil {
		return Issued{}, store.Organization{}, err
	}
	return issued, org, nil
}

// Login verifies credentials and issues a fresh session.
func (a *Authenticator) Login(ctx context.Context, w http.ResponseWriter, emailLower, password, userAgent, ip string) (Issued, error) {
	user, err := a.Store.GetUserByEmail(ctx, emailLower)
	if err != nil {
		return Issued{}, apperr.ErrUnauthorized("invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Issued{}, apperr.ErrUnauthorized("invalid email or password")
	}
	return a.issueSession(ctx, w, user, userAgent, ip)
}

// FindOrCreateOAuthUser implements spec §4.4 callback step 5's "find or
// create the user (OAuth users receive a random password hash); ensure a
// personal workspace exists." It never logs in with a password — the
// random hash only occupies the column so bcrypt.CompareHashAndPassword
// on a stray password-login attempt always fails closed.
func (a *Authenticator) FindOrCreateOAuthUser(ctx context.Context, emailLower, displayName string) (store.User, store.Organization, error) {
	if user, err := a.Store.GetUserByEmail(ctx, emailLower); err == nil {
		org, err := a.Store.EnsurePersonalOrganization(ctx, user.ID, displayName)
		if err != nil {
			return store.User{}, store.Organization{}, apperr.ErrInternal
		}
		return user, org, nil
	}

	randomPassword, err := tokencodec.NewTokenNonce()
	if err != nil {
		return store.User{}, store.Organization{}, apperr.ErrInternal
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(randomPassword), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, store.Organization{}, apperr.ErrInternal
	}
	user, err := a.Store.CreateUser(ctx, emailLower, string(hash), displayName)
	if err != nil {
		return store.User{}, store.Organization{}, apperr.ErrInternal
	}
	org, err := a.Store.EnsurePersonalOrganization(ctx, user.ID, displayName)
	if err != nil {
		return store.User{}, store.Organization{}, apperr.ErrInternal
	}
	return user, org, nil
}

// IssueSessionForUser is the exported entry point non-password flows
// (OAuth callback, device flow) use to mint a session for an
// already-resolved user.
func (a *Authenticator) IssueSessionForUser(ctx context.Context, w http.ResponseWriter, user store.User, userAgent, ip string) (Issued, error) {
	return a.issueSession(ctx, w, user, userAgent, ip)
}

// issueSession creates a brand-new AuthSession row for user, signs both
// tokens over it (spec §4.2's signRefreshToken scheme), and writes the
// resulting cookie on w.
func (a *Authenticator) issueSession(ctx context.Context, w http.ResponseWriter, user store.User, userAgent, ip string) (Issued, error) {
	sess, err := a.Store.CreateAuthSession(ctx, store.AuthSession{
		ID:         uuid.New(),
		UserID:     user.ID,
		ExpiresAt:  time.Now().Add(a.Cfg.SessionTTL),
		UserAgent:  userAgent,
		IP:         ip,
		LastUsedAt: time.Now(),
	})
	if err != nil {
		return Issued{}, apperr.ErrInternal
	}

	blob, expiresAt, err := a.signAndStoreRefreshToken(ctx, sess.ID, user.ID)
	if err != nil {
		return Issued{}, err
	}

	access, err := tokencodec.SignAccessToken(user.ID, user.EmailLower, sess.ID, a.Cfg.AccessTokenTTL, a.Cfg.AuthTokenSecret)
	if err != nil {
		return Issued{}, apperr.ErrInternal
	}

	a.SetRefreshCookie(w, blob, expiresAt)
	sess.ExpiresAt = expiresAt
	sess.RefreshTokenHash = tokencodec.HashBlob(blob)
	return Issued{AccessToken: access, Session: sess, User: user}, nil
}

// signAndStoreRefreshToken mints a fresh refresh-token blob for an existing
// session row, persists its hash/expiry, and returns the blob to set as the
// cookie value.
func (a *Authenticator) signAndStoreRefreshToken(ctx context.Context, sessionID, userID uuid.UUID) (string, time.Time, error) {
	nonce, err := tokencodec.NewTokenNonce()
	if err != nil {
		return "", time.Time{}, apperr.ErrInternal
	}
	expiresAt := time.Now().Add(a.Cfg.SessionTTL)
	blob, err := tokencodec.SignRefreshToken(tokencodec.RefreshPayload{
		SessionID:  sessionID,
		UserID:     userID,
		TokenNonce: nonce,
		ExpiresAt:  expiresAt.Unix(),
	}, a.Cfg.RefreshTokenSecret)
	if err != nil {
		return "", time.Time{}, apperr.ErrInternal
	}
	if err := a.Store.RotateAuthSession(ctx, sessionID, tokencodec.HashBlob(blob), expiresAt.Unix()); err != nil {
		return "", time.Time{}, apperr.ErrInternal
	}
	return blob, expiresAt, nil
}

// Rotate implements /auth/refresh's explicit rotation path, spec §4.2:
// generates a new tokenNonce and expiresAt, updates the session row, and
// sets a new refresh cookie. Unlike the passive refresh Resolve performs
// inline on arbitrary requests, this always rotates the cookie.
func (a *Authenticator) Rotate(ctx context.Context, w http.ResponseWriter, r *http.Request) (Issued, error) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return Issued{}, apperr.ErrUnauthorized("no session cookie present")
	}
	payload, err := tokencodec.VerifyRefreshToken(cookie.Value, a.Cfg.RefreshTokenSecret)
	if err != nil {
		return Issued{}, apperr.ErrUnauthorized("invalid refresh token")
	}
	sess, err := a.Store.GetAuthSession(ctx, payload.SessionID)
	if err != nil || !sess.Active(time.Now()) {
		return Issued{}, apperr.ErrUnauthorized("session is not active")
	}
	if !constantTimeHashEqual(cookie.Value, sess.RefreshTokenHash) {
		return Issued{}, apperr.ErrUnauthorized("refresh token does not match session")
	}
	user, err := a.Store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return Issued{}, apperr.ErrInternal
	}

	blob, expiresAt, err := a.signAndStoreRefreshToken(ctx, sess.ID, user.ID)
	if err != nil {
		return Issued{}, err
	}
	access, err := tokencodec.SignAccessToken(user.ID, user.EmailLower, sess.ID, a.Cfg.AccessTokenTTL, a.Cfg.AuthTokenSecret)
	if err != nil {
		return Issued{}, apperr.ErrInternal
	}

	a.SetRefreshCookie(w, blob, expiresAt)
	sess.RefreshTokenHash = tokencodec.HashBlob(blob)
	sess.ExpiresAt = expiresAt
	return Issued{AccessToken: access, Session: sess, User: user}, nil
}

// Logout revokes the current session and clears its cookie.
func (a *Authenticator) Logout(ctx context.Context, w http.ResponseWriter, sessionID uuid.UUID) error {
	if err := a.Store.RevokeAuthSession(ctx, sessionID); err != nil {
		return apperr.ErrInternal
	}
	a.ClearRefreshCookie(w)
	return nil
}

// LogoutAll revokes every active session belonging to userID.
func (a *Authenticator) LogoutAll(ctx context.Context, w http.ResponseWriter, userID uuid.UUID) error {
	if err := a.Store.RevokeAllAuthSessions(ctx, userID); err != nil {
		return apperr.ErrInternal
	}
	a.ClearRefreshCookie(w)
	return nil
}
