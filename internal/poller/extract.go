package poller

import (
	"errors"
	"regexp"
	"strings"
)

// ErrMissingFields means the message body did not carry the labeled fields
// the composer embeds, so no reply can be addressed.
var ErrMissingFields = errors.New("missing labeled fields in body")

// Fields are the submitter details recovered from an acknowledgment body.
// The composer's output format is this extractor's input grammar.
type Fields struct {
	Name      string
	FirstName string
	Email     string
	Subject   string
}

// HTML form first (the ack is sent as HTML), plain-text form as fallback for
// bodies that went through HTML stripping.
var (
	htmlNameRe    = regexp.MustCompile(`<b>Name:</b>\s*(.+?)</p>`)
	htmlEmailRe   = regexp.MustCompile(`<b>Email:</b>\s*(.+?)</p>`)
	htmlSubjectRe = regexp.MustCompile(`<b>Subject:</b>\s*(.+?)</p>`)

	textNameRe    = regexp.MustCompile(`(?m)^\s*Name:\s*(.+?)\s*$`)
	textEmailRe   = regexp.MustCompile(`(?m)^\s*Email:\s*(.+?)\s*$`)
	textSubjectRe = regexp.MustCompile(`(?m)^\s*Subject:\s*(.+?)\s*$`)
)

// ExtractFields pulls the labeled Name/Email/Subject fields out of body.
// Email and subject are required; the greeting falls back to the full name's
// first word.
func ExtractFields(body string) (*Fields, error) {
	name := firstMatch(body, htmlNameRe, textNameRe)
	email := firstMatch(body, htmlEmailRe, textEmailRe)
	subject := firstMatch(body, htmlSubjectRe, textSubjectRe)

	if email == "" || subject == "" {
		return nil, ErrMissingFields
	}

	fields := &Fields{
		Name:    name,
		Email:   email,
		Subject: subject,
	}
	if parts := strings.Fields(name); len(parts) > 0 {
		fields.FirstName = parts[0]
	}
	return fields, nil
}

func firstMatch(body string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(body); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
