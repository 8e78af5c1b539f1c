// Package intake validates raw submission fields and shapes them into a
// canonical message. Checks run in a fixed order and the first violation
// rejects the whole submission.
package intake

import (
	"errors"
	"strings"
	"time"

	"github.com/matthewshammond/MailBridge/internal/domain"
)

var (
	ErrInvalidName    = errors.New("invalid name")
	ErrInvalidEmail   = errors.New("invalid email")
	ErrInvalidSubject = errors.New("invalid subject")
	ErrInvalidBody    = errors.New("invalid content")

	// ErrBotDetected fires on a populated honeypot field, a decoy no real
	// client ever fills in.
	ErrBotDetected = errors.New("bot detected")
)

// Submission carries the raw field values from a multipart/JSON payload or a
// parsed mail body, before any validation.
type Submission struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Subject  string `json:"subject"`
	Body     string `json:"content"`
	Honeypot string `json:"website,omitempty"`
	Captcha  string `json:"captcha_token,omitempty"`
}

const (
	maxNameLen    = 100
	maxEmailLen   = 254
	maxSubjectLen = 200
	maxBodyLen    = 10000
)

// Normalize validates sub and returns the canonical Message. The returned
// error names the first failing stage; callers map it to a generic outward
// response.
func Normalize(sub Submission, origin, channelKey string, now time.Time) (*domain.Message, error) {
	if strings.TrimSpace(sub.Name) == "" || len(sub.Name) > maxNameLen {
		return nil, ErrInvalidName
	}
	if strings.TrimSpace(sub.Email) == "" || !strings.Contains(sub.Email, "@") || len(sub.Email) > maxEmailLen {
		return nil, ErrInvalidEmail
	}
	if strings.TrimSpace(sub.Subject) == "" || len(sub.Subject) > maxSubjectLen {
		return nil, ErrInvalidSubject
	}
	if strings.TrimSpace(sub.Body) == "" || len(sub.Body) > maxBodyLen {
		return nil, ErrInvalidBody
	}
	if strings.TrimSpace(sub.Honeypot) != "" {
		return nil, ErrBotDetected
	}

	return &domain.Message{
		SenderName:    strings.TrimSpace(sub.Name),
		SenderEmail:   strings.TrimSpace(sub.Email),
		Subject:       strings.TrimSpace(sub.Subject),
		Body:          sub.Body,
		OriginAddress: origin,
		ChannelKey:    channelKey,
		ReceivedAt:    now,
		HoneypotField: sub.Honeypot,
		CaptchaToken:  sub.Captcha,
	}, nil
}

// FieldError reports whether err is one of the intake validation errors, as
// opposed to an infrastructure failure.
func FieldError(err error) bool {
	for _, e := range []error{ErrInvalidName, ErrInvalidEmail, ErrInvalidSubject, ErrInvalidBody, ErrBotDetected} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
