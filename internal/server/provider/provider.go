// Package provider drives the delegated-identity handshake (OAuth2
// authorization code flow) and yields a verified provider identity.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var ErrNoSubject = errors.New("provider returned no subject id")

// Identity is what the provider vouches for after a successful handshake.
type Identity struct {
	SubjectID   string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Provider is the external identity collaborator.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	// Endpoint and UserInfoURL default to Google's.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

type GoogleProvider struct {
	conf        *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	ep := cfg.Endpoint
	if ep.AuthURL == "" {
		ep = endpoints.Google
	}
	ui := cfg.UserInfoURL
	if ui == "" {
		ui = GoogleUserInfoURL
	}
	return &GoogleProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     ep,
			Scopes:       []string{"openid", "profile", "email"},
		},
		userInfoURL: ui,
	}
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type userInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Exchange trades the authorization code for a token and fetches the
// profile. Pass an *http.Client in ctx under oauth2.HTTPClient to override
// the transport.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var ui userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&ui); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if ui.Sub == "" {
		return nil, ErrNoSubject
	}

	return &Identity{
		SubjectID:   ui.Sub,
		Email:       ui.Email,
		DisplayName: ui.Name,
		AvatarURL:   ui.Picture,
	}, nil
}
