package login

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/doc-intake/config"
)

type fakeLINE struct {
	tokenStatus int
	profile     string
	gotForm     url.Values
	gotAuth     string
}

func (f *fakeLINE) server(t *testing.T) (*httptest.Server, Endpoints) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":2592000}`))
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		f.gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.profile))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, Endpoints{
		AuthURL:    srv.URL + "/authorize",
		TokenURL:   srv.URL + "/token",
		ProfileURL: srv.URL + "/profile",
	}
}

var channel = config.LINEConfig{
	ChannelID:     "1650000000",
	ChannelSecret: "s3cret",
	RedirectURL:   "https://intake.example/api/line-callback",
}

func TestExchange(t *testing.T) {
	f := &fakeLINE{profile: `{"userId":"U123","displayName":"Chen","pictureUrl":"https://p"}`}
	_, ep := f.server(t)

	p, err := NewLINE(channel, ep).Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "U123", p.UserID)
	assert.Equal(t, "Chen", p.DisplayName)

	assert.Equal(t, "authorization_code", f.gotForm.Get("grant_type"))
	assert.Equal(t, "code-1", f.gotForm.Get("code"))
	assert.Equal(t, "1650000000", f.gotForm.Get("client_id"))
	assert.Equal(t, "s3cret", f.gotForm.Get("client_secret"))
	assert.Equal(t, channel.RedirectURL, f.gotForm.Get("redirect_uri"))
	assert.Equal(t, "Bearer at-1", f.gotAuth)
}

func TestExchangeTokenRejected(t *testing.T) {
	f := &fakeLINE{tokenStatus: http.StatusBadRequest}
	_, ep := f.server(t)

	_, err := NewLINE(channel, ep).Exchange(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrTokenExchange)
}

func TestExchangeProfileWithoutUser(t *testing.T) {
	f := &fakeLINE{profile: `{"displayName":"Chen"}`}
	_, ep := f.server(t)

	_, err := NewLINE(channel, ep).Exchange(context.Background(), "code-1")
	assert.ErrorIs(t, err, ErrProfile)
}

func TestAuthCodeURL(t *testing.T) {
	u, err := url.Parse(NewLINE(channel, DefaultEndpoints).AuthCodeURL("st"))
	require.NoError(t, err)
	assert.Equal(t, "access.line.me", u.Host)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "st", q.Get("state"))
	assert.Equal(t, "profile openid", q.Get("scope"))
}
