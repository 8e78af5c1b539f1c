// Package captcha verifies submission tokens against the channel's
// configured provider. Verification is best-effort network I/O; a provider
// "no" or a missing token is a hard reject, a transport failure is surfaced
// for the caller to decide.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matthewshammond/MailBridge/internal/config"
)

var (
	ErrFailed          = errors.New("captcha verification failed")
	ErrUnknownProvider = errors.New("unknown captcha provider")
)

var verifyURLs = map[string]string{
	"recaptcha": "https://www.google.com/recaptcha/api/siteverify",
	"hcaptcha":  "https://hcaptcha.com/siteverify",
	"turnstile": "https://challenges.cloudflare.com/turnstile/v0/siteverify",
}

type Verifier struct {
	client *http.Client

	// verifyURL overrides the provider endpoint. Test hook only.
	verifyURL string
}

func New() *Verifier {
	return &Verifier{client: &http.Client{Timeout: 10 * time.Second}}
}

// NewWithEndpoint returns a Verifier pinned to a single endpoint, used by
// tests against a local server.
func NewWithEndpoint(endpoint string) *Verifier {
	v := New()
	v.verifyURL = endpoint
	return v
}

// Verify posts token against the policy's provider. An empty token fails
// immediately; the provider's verdict is final.
func (v *Verifier) Verify(ctx context.Context, policy *config.CaptchaPolicy, token, remoteIP string) error {
	if token == "" {
		return ErrFailed
	}

	endpoint := v.verifyURL
	if endpoint == "" {
		var ok bool
		endpoint, ok = verifyURLs[strings.ToLower(policy.Provider)]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProvider, policy.Provider)
		}
	}

	form := url.Values{
		"secret":   {policy.Secret},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("captcha request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("captcha response: %w", err)
	}
	if !result.Success {
		return ErrFailed
	}
	return nil
}
