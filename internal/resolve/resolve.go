// Package resolve maps inbound traffic to its configuration entry: form
// submissions by channel key and origin, polled reply mail by alias and
// subject prefix. Both paths return exactly one target or an error; callers
// drop unresolvable messages.
package resolve

import (
	"errors"
	"strings"

	"github.com/matthewshammond/MailBridge/internal/config"
)

var (
	ErrChannelNotFound  = errors.New("channel not found")
	ErrOriginNotAllowed = errors.New("origin not allowed")
	ErrNoResponder      = errors.New("no responder for alias")
	ErrNoTemplate       = errors.New("no template for subject")
)

// SubmissionTarget is the resolved routing for a form submission.
type SubmissionTarget struct {
	Channel   *config.Channel
	Responder *config.Responder
}

// ReplyTarget is the resolved routing for a polled reply mail.
type ReplyTarget struct {
	Responder *config.Responder
	Template  *config.ReplyTemplate
}

type Resolver struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Submission resolves a channel key and Origin header. The origin check is a
// containment check: some configured allowed domain must appear inside the
// Origin header, which admits subdomains and either scheme.
func (r *Resolver) Submission(channelKey, origin string) (*SubmissionTarget, error) {
	ch := r.cfg.ChannelByKey(channelKey)
	if ch == nil {
		return nil, ErrChannelNotFound
	}

	if origin == "" || !originAllowed(origin, ch.AllowedDomains) {
		return nil, ErrOriginNotAllowed
	}

	responder := r.cfg.ResponderForChannel(ch)
	if responder == nil {
		return nil, ErrNoResponder
	}

	return &SubmissionTarget{Channel: ch, Responder: responder}, nil
}

// Reply resolves a polled mail's To address and subject. Alias matching is a
// case-insensitive substring over the To header; subject matching is a prefix
// match over the responder's templates in configured order. In postmark mode
// the subject marker the composer added is stripped first.
func (r *Resolver) Reply(to, subject, mode string) (*ReplyTarget, error) {
	responder := r.cfg.ResponderByAddress(to)
	if responder == nil {
		return nil, ErrNoResponder
	}

	if mode == config.ModePostmark {
		subject = strings.TrimPrefix(subject, config.PostmarkSubjectMarker)
	}

	tpl := responder.ReplyForSubject(subject)
	if tpl == nil {
		return nil, ErrNoTemplate
	}

	return &ReplyTarget{Responder: responder, Template: tpl}, nil
}

func originAllowed(origin string, domains []string) bool {
	for _, domain := range domains {
		if domain != "" && strings.Contains(origin, domain) {
			return true
		}
	}
	return false
}
