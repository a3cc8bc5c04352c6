// Package login exchanges a LINE Login authorization code for the user's
// LINE id and display name.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/Skryldev/doc-intake/config"
)

// Endpoints are the LINE Login URLs.
type Endpoints struct {
	AuthURL    string
	TokenURL   string
	ProfileURL string
}

// DefaultEndpoints are the public LINE Login v2.1 endpoints.
var DefaultEndpoints = Endpoints{
	AuthURL:    "https://access.line.me/oauth2/v2.1/authorize",
	TokenURL:   "https://api.line.me/oauth2/v2.1/token",
	ProfileURL: "https://api.line.me/v2/profile",
}

var (
	// ErrTokenExchange means LINE did not issue an access token for the code.
	ErrTokenExchange = errors.New("line login: token exchange failed")
	// ErrProfile means the profile request failed or carried no user id.
	ErrProfile = errors.New("line login: profile unavailable")
)

// Profile is the subset of the LINE profile the intake form needs.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl,omitempty"`
}

// LINE performs the code exchange and profile lookup.
type LINE struct {
	oauth      *oauth2.Config
	profileURL string
}

// NewLINE creates a LINE Login client for the channel in cfg.
func NewLINE(cfg config.LINEConfig, ep Endpoints) *LINE {
	return &LINE{
		oauth: &oauth2.Config{
			ClientID:     cfg.ChannelID,
			ClientSecret: cfg.ChannelSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"profile", "openid"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   ep.AuthURL,
				TokenURL:  ep.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		profileURL: ep.ProfileURL,
	}
}

// AuthCodeURL returns the URL that starts a login with the given state.
func (l *LINE) AuthCodeURL(state string) string {
	return l.oauth.AuthCodeURL(state)
}

// Exchange trades code for an access token and fetches the profile.
func (l *LINE) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, err := l.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	resp, err := l.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProfile, resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("%w: no userId", ErrProfile)
	}
	return &p, nil
}
