package oauthcoord

import (
	"net/http"
	"strings"

	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/crypto"
)

// signedCookieValue reuses the refresh-token signing scheme (spec §4.4:
// "reuses the refresh-token signing scheme with a distinct secret") but
// binds a plain opaque id rather than a structured JSON payload, since the
// state/nonce cookies only need to prove "this id was minted by us", not
// carry their own expiry — StateRecord.ExpiresAt already governs that.
func signedCookieValue(id, secret string) string {
	return id + "." + crypto.HMACSign([]byte(id), secret)
}

// verifySignedCookieValue returns the bound id if value verifies under
// secret.
func verifySignedCookieValue(value, secret string) (string, bool) {
	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	id, sig := parts[0], parts[1]
	if !crypto.HMACVerify([]byte(id), secret, sig) {
		return "", false
	}
	return id, true
}

const (
	stateCookieName = "_state"
	nonceCookieName = "_nonce"
)

// setOAuthCookies writes the two short-TTL signed cookies, spec §4.4 step
//3: "httpOnly; sameSite=lax; path=/; maxAge=600; secure=production".
func setOAuthCookies(w http.ResponseWriter, state, nonce, secret string, secure bool) {
	setOne(w, stateCookieName, signedCookieValue(state, secret), secure)
	setOne(w, nonceCookieName, signedCookieValue(nonce, secret), secure)
}

func setOne(w http.ResponseWriter, name, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearOAuthCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{stateCookieName, nonceCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: secure, SameSite: http.SameSiteLaxMode,
		})
	}
}

// requireCookieID reads and verifies a signed cookie, returning the bound
// id or an error.
func requireCookieID(r *http.Request, cookieName, secret string) (string, error) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", apperr.ErrUnauthorized("missing " + cookieName + " cookie")
	}
	id, ok := verifySignedCookieValue(c.Value, secret)
	if !ok {
		return "", apperr.ErrUnauthorized("invalid " + cookieName + " cookie")
	}
	return id, nil
}
