package oauthcoord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vespid-ai/control-plane/internal/apperr"
	"golang.org/x/oauth2"
	xgithub "golang.org/x/oauth2/github"
	xgoogle "golang.org/x/oauth2/google"
)

// Profile is the provider-agnostic identity shape exchanged for a code,
// spec §4.4 step 4 "exchange code for profile".
type Profile struct {
	ProviderUserID string
	Email          string
	DisplayName    string
}

// Provider dispatches an authorization-code exchange for one IdP. Google and
// GitHub are the two spec §1 names; the interface is deliberately the
// smallest surface a new provider needs to implement.
type Provider interface {
	Name() string
	OAuth2Config(redirectURL string) *oauth2.Config
	FetchProfile(ctx context.Context, httpClient *http.Client, token *oauth2.Token) (Profile, error)
}

// Providers is the registry cmd/server wires providers into.
type Providers struct {
	byName map[string]Provider
}

func NewProviders(providers ...Provider) *Providers {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Providers{byName: m}
}

func (p *Providers) Get(name string) (Provider, error) {
	prov, ok := p.byName[name]
	if !ok {
		return nil, apperr.ErrValidation("unsupported oauth provider: " + name)
	}
	return prov, nil
}

// GoogleProvider implements Provider for Google's OAuth2 + OIDC userinfo
// endpoint.
type GoogleProvider struct {
	ClientID     string
	ClientSecret string
}

func (g GoogleProvider) Name() string { return "google" }

func (g GoogleProvider) OAuth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		Endpoint:     xgoogle.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

type googleUserinfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (g GoogleProvider) FetchProfile(ctx context.Context, httpClient *http.Client, token *oauth2.Token) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://openidconnect.googleapis.com/v1/userinfo", nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	resp, err := httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("oauthcoord: google userinfo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("oauthcoord: google userinfo returned %d", resp.StatusCode)
	}
	var ui googleUserinfo
	if err := json.NewDecoder(resp.Body).Decode(&ui); err != nil {
		return Profile{}, fmt.Errorf("oauthcoord: decoding google userinfo: %w", err)
	}
	return Profile{ProviderUserID: ui.Sub, Email: ui.Email, DisplayName: ui.Name}, nil
}

// GitHubProvider implements Provider for GitHub's OAuth2 + REST user API.
type GitHubProvider struct {
	ClientID     string
	ClientSecret string
}

func (g GitHubProvider) Name() string { return "github" }

func (g GitHubProvider) OAuth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		Endpoint:     xgithub.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{"read:user", "user:email"},
	}
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (g GitHubProvider) FetchProfile(ctx context.Context, httpClient *http.Client, token *oauth2.Token) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user", nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("oauthcoord: github user request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("oauthcoord: github user api returned %d", resp.StatusCode)
	}
	var u githubUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return Profile{}, fmt.Errorf("oauthcoord: decoding github user: %w", err)
	}
	email := u.Email
	if email == "" {
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", u.ID, u.Login)
	}
	displayName := u.Name
	if displayName == "" {
		displayName = u.Login
	}
	return Profile{ProviderUserID: fmt.Sprintf("%d", u.ID), Email: email, DisplayName: displayName}, nil
}
