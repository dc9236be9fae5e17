// Package oauthcoord implements the OAuth coordinator (spec §4.4):
// authorization-code flow start/callback, the Vertex OAuth secret variant,
// and the device flow. Grounded on the teacher's TenantAuthCache pattern
// (internal/auth/tenant_headers.go) for the in-memory state/device tables,
// generalized from "subject:tenant_id → expiry" to the richer records §4.4
// needs.
package oauthcoord

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/authn"
	"github.com/vespid-ai/control-plane/internal/config"
	"github.com/vespid-ai/control-plane/internal/crypto"
	"github.com/vespid-ai/control-plane/internal/secretvault"
	"github.com/vespid-ai/control-plane/internal/store"
	"golang.org/x/oauth2"
)

// Coordinator is the §4.4 coordinator.
type Coordinator struct {
	Providers *Providers
	Authn     *authn.Authenticator
	Vault     *secretvault.Vault
	Cfg       config.Config

	states  *stateTable
	devices *deviceTable

	httpClient *http.Client
}

func New(providers *Providers, a *authn.Authenticator, vault *secretvault.Vault, cfg config.Config) *Coordinator {
	return &Coordinator{
		Providers:  providers,
		Authn:      a,
		Vault:      vault,
		Cfg:        cfg,
		states:     newStateTable(),
		devices:    newDeviceTable(),
		httpClient: http.DefaultClient,
	}
}

// StartResult is what a handler needs to redirect the browser and set
// cookies.
type StartResult struct {
	AuthorizationURL string
}

// Start implements spec §4.4's start algorithm.
func (c *Coordinator) Start(w http.ResponseWriter, providerName, redirectURL string) (StartResult, error) {
	provider, err := c.Providers.Get(providerName)
	if err != nil {
		return StartResult{}, err
	}

	state, err := crypto.RandomToken(24)
	if err != nil {
		return StartResult{}, apperr.ErrInternal
	}
	nonce, err := crypto.RandomToken(24)
	if err != nil {
		return StartResult{}, apperr.ErrInternal
	}
	verifier := oauth2.GenerateVerifier()

	c.states.put(state, StateRecord{
		Provider:     providerName,
		CodeVerifier: verifier,
		Nonce:        nonce,
		ExpiresAt:    time.Now().Add(10 * time.Minute),
	})

	setOAuthCookies(w, state, nonce, c.Cfg.OAuthStateSecret, c.Cfg.IsProduction())

	cfg := provider.OAuth2Config(redirectURL)
	url := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	return StartResult{AuthorizationURL: url}, nil
}

// CallbackResult is the outcome of a successful callback, spec §4.4 step 6.
type CallbackResult struct {
	Issued       authn.Issued
	Organization store.Organization
	Provider     string
}

// Callback implements spec §4.4's callback algorithm.
func (c *Coordinator) Callback(ctx context.Context, w http.ResponseWriter, r *http.Request, queryState, code, redirectURL, userAgent, ip string) (CallbackResult, error) {
	stateCookieID, err := requireCookieID(r, stateCookieName, c.Cfg.OAuthStateSecret)
	if err != nil {
		return CallbackResult{}, err
	}
	nonceCookieID, err := requireCookieID(r, nonceCookieName, c.Cfg.OAuthStateSecret)
	if err != nil {
		return CallbackResult{}, err
	}
	if stateCookieID != queryState {
		return CallbackResult{}, apperr.ErrUnauthorized("state cookie does not match callback state")
	}

	rec, ok := c.states.takeOneShot(queryState)
	if !ok {
		return CallbackResult{}, apperr.ErrUnauthorized("oauth state is missing, expired, or already used")
	}
	if nonceCookieID != rec.Nonce {
		return CallbackResult{}, apperr.ErrOAuthInvalidNonce
	}

	provider, err := c.Providers.Get(rec.Provider)
	if err != nil {
		return CallbackResult{}, err
	}

	cfg := provider.OAuth2Config(redirectURL)
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(rec.CodeVerifier))
	if err != nil {
		return CallbackResult{}, apperr.ErrOAuthProviderError
	}

	profile, err := provider.FetchProfile(ctx, c.httpClient, token)
	if err != nil {
		return CallbackResult{}, apperr.ErrOAuthProviderError
	}

	user, org, err := c.Authn.FindOrCreateOAuthUser(ctx, profile.Email, profile.DisplayName)
	if err != nil {
		return CallbackResult{}, err
	}

	issued, err := c.Authn.IssueSessionForUser(ctx, w, user, userAgent, ip)
	if err != nil {
		return CallbackResult{}, err
	}

	clearOAuthCookies(w, c.Cfg.IsProduction())

	if rec.Provider == "vertex" && token.RefreshToken != "" {
		if err := c.persistVertexRefreshToken(ctx, org, user, token.RefreshToken); err != nil {
			return CallbackResult{}, err
		}
	}

	return CallbackResult{Issued: issued, Organization: org, Provider: rec.Provider}, nil
}

// persistVertexRefreshToken implements spec §4.4's Vertex variant: "persists
// a refresh-token JSON blob as a ConnectorSecret under llm.vertex.oauth; on
// conflict, rotates the existing default secret rather than creating a
// duplicate."
func (c *Coordinator) persistVertexRefreshToken(ctx context.Context, org store.Organization, user store.User, refreshToken string) error {
	tc := store.TenantCtx{ActorUserID: user.ID, OrganizationID: org.ID}
	const connectorID = "llm.vertex.oauth"
	const name = "default"

	payload := fmt.Sprintf(`{"refreshToken":%q}`, refreshToken)

	existing, err := c.Vault.Store.GetConnectorSecretByName(ctx, tc, connectorID, name)
	if err == nil {
		_, err := c.Vault.Rotate(ctx, tc, existing.ID, payload, user.ID)
		return err
	}
	_, err = c.Vault.Create(ctx, tc, connectorID, name, payload, user.ID)
	return err
}

// DeviceStart mints a fresh deviceCode claim, spec §4.4 "device flow": a
// short-TTL deviceCode → {organizationId, userId, provider, name} map.
func (c *Coordinator) DeviceStart(organizationID, userID uuid.UUID, provider, name string) (string, error) {
	code, err := crypto.RandomToken(16)
	if err != nil {
		return "", apperr.ErrInternal
	}
	c.devices.put(code, deviceEntry{
		OrganizationID: organizationID.String(),
		UserID:         userID.String(),
		Provider:       provider,
		Name:           name,
		ExpiresAt:      time.Now().Add(10 * time.Minute),
	})
	return code, nil
}

// DevicePollResult is returned by DevicePoll.
type DevicePollResult struct {
	Status   string // "pending" | "connected"
	SecretID uuid.UUID
}

// DeviceSupply stores the polled token value against deviceCode; called by
// the out-of-band device that completed its own OAuth dance.
func (c *Coordinator) DeviceSupply(ctx context.Context, deviceCode, tokenValue string) error {
	if !c.devices.setToken(deviceCode, tokenValue) {
		return apperr.ErrNotFound("device code not found or expired")
	}
	return nil
}

// DevicePoll implements the poll side: absence of a supplied token returns
// {status: pending}; presence stores it as a ConnectorSecret and deletes
// the device entry.
func (c *Coordinator) DevicePoll(ctx context.Context, deviceCode string) (DevicePollResult, error) {
	entry, ok := c.devices.get(deviceCode)
	if !ok {
		return DevicePollResult{}, apperr.ErrNotFound("device code not found or expired")
	}
	if entry.Token == "" {
		return DevicePollResult{Status: "pending"}, nil
	}

	orgID, err := uuid.Parse(entry.OrganizationID)
	if err != nil {
		return DevicePollResult{}, apperr.ErrInternal
	}
	userID, err := uuid.Parse(entry.UserID)
	if err != nil {
		return DevicePollResult{}, apperr.ErrInternal
	}
	tc := store.TenantCtx{ActorUserID: userID, OrganizationID: orgID}

	connectorID := "llm." + entry.Provider + ".oauth"
	secret, err := c.Vault.Create(ctx, tc, connectorID, entry.Name, entry.Token, userID)
	if err != nil {
		return DevicePollResult{}, err
	}
	c.devices.delete(deviceCode)
	return DevicePollResult{Status: "connected", SecretID: secret.ID}, nil
}
