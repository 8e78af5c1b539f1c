// Package dispatch composes outbound mail from resolved templates and sends
// it through the active delivery backend.
package dispatch

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/oklog/ulid/v2"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/domain"
)

// ComposeAck renders the form-submission acknowledgment for the channel's
// canonical recipient. The body format embeds the labeled Name/Email/Subject
// fields the poll loop later extracts, so the composer's output is also the
// poll path's input grammar.
func ComposeAck(msg *domain.Message, ch *config.Channel, responder *config.Responder, mode string) *domain.ComposedMail {
	to := ch.PrimaryAddress()

	subject := fmt.Sprintf(responder.Ack.Subject, msg.Subject)
	if mode == config.ModePostmark {
		subject = config.PostmarkSubjectMarker + subject
	}

	body := fmt.Sprintf(responder.Ack.Body,
		msg.SenderName,
		msg.SenderEmail,
		msg.Subject,
		strings.ReplaceAll(msg.Body, "\n", "<br>"),
	)

	return &domain.ComposedMail{
		ID:          ulid.Make().String(),
		From:        to,
		FromName:    ch.FromName,
		To:          to,
		ReplyTo:     msg.SenderEmail,
		ReplyToName: msg.SenderName,
		Subject:     subject,
		HTMLBody:    body,
	}
}

// ComposeReply renders an auto-reply to the submitter whose fields were
// extracted from a polled acknowledgment. Greeting uses the first name only.
func ComposeReply(name, email, subject string, responder *config.Responder, tpl *config.ReplyTemplate) *domain.ComposedMail {
	return &domain.ComposedMail{
		ID:       ulid.Make().String(),
		From:     responder.Alias,
		To:       email,
		Subject:  fmt.Sprintf(tpl.Subject, subject),
		HTMLBody: fmt.Sprintf("<p>%s,</p><p>%s</p>%s", name, tpl.Body, responder.Signature),
	}
}

// renderMIME serializes m as a single-part HTML message.
func renderMIME(m *domain.ComposedMail) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: m.FromName, Address: m.From}})
	h.SetAddressList("To", []*mail.Address{{Address: m.To}})
	if m.ReplyTo != "" {
		h.SetAddressList("Reply-To", []*mail.Address{{Name: m.ReplyToName, Address: m.ReplyTo}})
	}
	h.SetSubject(m.Subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}
	if _, err := io.WriteString(w, m.HTMLBody); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
