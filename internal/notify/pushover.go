// Package notify pushes operator notifications. Delivery is fire-and-forget:
// failures are logged at debug and swallowed, never propagated into the
// relay path.
package notify

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matthewshammond/MailBridge/internal/config"
)

const pushoverAPI = "https://api.pushover.net/1/messages.json"

type Notifier struct {
	cfg    config.PushoverConfig
	client *http.Client
	log    logrus.FieldLogger

	// endpoint override for tests.
	endpoint string
}

func New(cfg config.PushoverConfig, log logrus.FieldLogger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
		endpoint: pushoverAPI,
	}
}

// NewWithEndpoint pins the API endpoint, for tests.
func NewWithEndpoint(cfg config.PushoverConfig, log logrus.FieldLogger, endpoint string) *Notifier {
	n := New(cfg, log)
	n.endpoint = endpoint
	return n
}

// Push sends one notification. A nil receiver or missing credentials make it
// a no-op.
func (n *Notifier) Push(ctx context.Context, title, message string) {
	if n == nil || !n.cfg.Enabled() {
		return
	}

	form := url.Values{
		"token":   {n.cfg.Token},
		"user":    {n.cfg.User},
		"title":   {title},
		"message": {message},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		n.log.WithError(err).Debug("pushover request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.WithError(err).Debug("pushover push failed")
		return
	}
	resp.Body.Close()
}
