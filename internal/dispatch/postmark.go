package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/domain"
)

const postmarkAPI = "https://api.postmarkapp.com/email"

// PostmarkSender is the API-provider backend. Send failures are fatal to the
// attempt; there is no mirror step, Postmark keeps its own activity log.
type PostmarkSender struct {
	cfg      config.PostmarkConfig
	client   *http.Client
	endpoint string
}

func NewPostmarkSender(cfg config.PostmarkConfig) *PostmarkSender {
	return &PostmarkSender{
		cfg:      cfg,
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: postmarkAPI,
	}
}

// WithConfig returns a copy of p using per-channel credentials.
func (p *PostmarkSender) WithConfig(cfg config.PostmarkConfig) *PostmarkSender {
	clone := *p
	if cfg.ServerToken != "" {
		clone.cfg.ServerToken = cfg.ServerToken
	}
	if cfg.From != "" {
		clone.cfg.From = cfg.From
	}
	return &clone
}

// WithEndpoint pins the API endpoint, for tests.
func (p *PostmarkSender) WithEndpoint(endpoint string) *PostmarkSender {
	clone := *p
	clone.endpoint = endpoint
	return &clone
}

type postmarkRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	ReplyTo  string `json:"ReplyTo,omitempty"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody"`
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

func (p *PostmarkSender) Send(ctx context.Context, m *domain.ComposedMail) error {
	from := m.From
	if p.cfg.From != "" {
		// The API requires a verified sender signature.
		from = p.cfg.From
	}

	payload, err := json.Marshal(postmarkRequest{
		From:     from,
		To:       m.To,
		ReplyTo:  m.ReplyTo,
		Subject:  m.Subject,
		HTMLBody: m.HTMLBody,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.cfg.ServerToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("postmark request: %w", err)
	}
	defer resp.Body.Close()

	var result postmarkResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("postmark response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.ErrorCode != 0 {
		return fmt.Errorf("postmark send failed (%d): %s", result.ErrorCode, result.Message)
	}
	return nil
}
