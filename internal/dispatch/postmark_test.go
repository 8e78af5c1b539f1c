package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/domain"
)

func TestPostmarkSend(t *testing.T) {
	var got postmarkRequest
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Postmark-Server-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(postmarkResponse{ErrorCode: 0})
	}))
	defer srv.Close()

	sender := NewPostmarkSender(config.PostmarkConfig{ServerToken: "tok-1", From: "verified@relay.example"}).WithEndpoint(srv.URL)
	err := sender.Send(context.Background(), &domain.ComposedMail{
		From:     "hello@relay.example",
		To:       "alice@example.com",
		ReplyTo:  "alice@example.com",
		Subject:  "Re: hi",
		HTMLBody: "<p>hi</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "tok-1", token)
	// The configured sender signature overrides the composed From.
	assert.Equal(t, "verified@relay.example", got.From)
	assert.Equal(t, "alice@example.com", got.To)
	assert.Equal(t, "<p>hi</p>", got.HTMLBody)
}

func TestPostmarkSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(postmarkResponse{ErrorCode: 300, Message: "invalid email"})
	}))
	defer srv.Close()

	sender := NewPostmarkSender(config.PostmarkConfig{ServerToken: "tok-1"}).WithEndpoint(srv.URL)
	err := sender.Send(context.Background(), &domain.ComposedMail{To: "x", Subject: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email")
}
