package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewshammond/MailBridge/internal/config"
)

func verifyServer(t *testing.T, success bool, captured *map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if captured != nil {
			*captured = map[string]string{
				"secret":   r.PostFormValue("secret"),
				"response": r.PostFormValue("response"),
				"remoteip": r.PostFormValue("remoteip"),
			}
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": success})
	}))
}

func TestVerifySuccess(t *testing.T) {
	var got map[string]string
	srv := verifyServer(t, true, &got)
	defer srv.Close()

	v := NewWithEndpoint(srv.URL)
	policy := &config.CaptchaPolicy{Provider: "turnstile", Secret: "shh"}

	err := v.Verify(context.Background(), policy, "tok-123", "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, "shh", got["secret"])
	assert.Equal(t, "tok-123", got["response"])
	assert.Equal(t, "203.0.113.9", got["remoteip"])
}

func TestVerifyProviderRejects(t *testing.T) {
	srv := verifyServer(t, false, nil)
	defer srv.Close()

	v := NewWithEndpoint(srv.URL)
	policy := &config.CaptchaPolicy{Provider: "hcaptcha", Secret: "shh"}

	err := v.Verify(context.Background(), policy, "tok-123", "")
	assert.ErrorIs(t, err, ErrFailed)
}

func TestVerifyEmptyToken(t *testing.T) {
	// No network call happens for an empty token.
	v := NewWithEndpoint("http://127.0.0.1:1")
	policy := &config.CaptchaPolicy{Provider: "recaptcha", Secret: "shh"}

	err := v.Verify(context.Background(), policy, "", "")
	assert.ErrorIs(t, err, ErrFailed)
}

func TestVerifyUnknownProvider(t *testing.T) {
	v := New()
	policy := &config.CaptchaPolicy{Provider: "rotating-gif", Secret: "shh"}

	err := v.Verify(context.Background(), policy, "tok", "")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
