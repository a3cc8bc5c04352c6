package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	loc := time.FixedZone("Asia/Taipei", 8*3600)
	m := Message{
		Name:    "Chen",
		GroupID: "G1",
		Phone:   "0912000000",
		Time:    time.Date(2026, 1, 1, 4, 5, 6, 0, time.UTC),
	}
	text := Text(m, loc)
	assert.Contains(t, text, "Chen")
	assert.Contains(t, text, "G1")
	assert.Contains(t, text, "0912000000")
	assert.Contains(t, text, "2026/01/01 12:05:06")
}

func TestLINEPush(t *testing.T) {
	var body map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/push", r.URL.Path)
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sentMessages":[{"id":"1","quoteToken":"q"}]}`))
	}))
	defer srv.Close()

	l, err := NewLINE("token", srv.URL, time.UTC)
	require.NoError(t, err)

	err = l.Notify(context.Background(), Message{ExternalUserID: "U123", Name: "Chen", Time: time.Now()})
	require.NoError(t, err)

	assert.Equal(t, "Bearer token", auth)
	assert.Equal(t, "U123", body["to"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "text", first["type"])
	assert.Contains(t, first["text"], "Chen")
}

func TestLINEPushRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"The property, 'to', in the request body is invalid"}`))
	}))
	defer srv.Close()

	l, err := NewLINE("token", srv.URL, time.UTC)
	require.NoError(t, err)
	assert.Error(t, l.Notify(context.Background(), Message{ExternalUserID: "bad"}))
}
