package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/domain"
)

// SMTPSender is the direct-mailbox backend: authenticated mail submission
// over STARTTLS, with a best-effort mirror of the sent copy into the
// account's Sent folder over IMAP.
type SMTPSender struct {
	smtp config.SMTPConfig
	imap config.IMAPConfig
}

func NewSMTPSender(smtpCfg config.SMTPConfig, imapCfg config.IMAPConfig) *SMTPSender {
	return &SMTPSender{smtp: smtpCfg, imap: imapCfg}
}

func (s *SMTPSender) Send(_ context.Context, m *domain.ComposedMail) error {
	raw, err := renderMIME(m)
	if err != nil {
		return err
	}

	c, err := s.dial()
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer c.Close()

	if err := c.Auth(sasl.NewPlainClient("", s.smtp.User, s.smtp.Password)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(m.From, nil); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(m.To, nil); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write(raw); err != nil {
		_ = wc.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return c.Quit()
}

// dial opens the submission connection. STARTTLS is the default; disable_tls
// is for relays on a trusted network that never offer it.
func (s *SMTPSender) dial() (*smtp.Client, error) {
	if s.smtp.DisableTLS {
		return smtp.Dial(s.smtp.Addr())
	}
	return smtp.DialStartTLS(s.smtp.Addr(), nil)
}

// Mirror appends a copy of m to the Sent folder. Callers treat failure as
// non-fatal; the message is already on the wire.
func (s *SMTPSender) Mirror(_ context.Context, m *domain.ComposedMail) error {
	raw, err := renderMIME(m)
	if err != nil {
		return err
	}

	c, err := client.DialTLS(s.imap.Addr(), nil)
	if err != nil {
		return fmt.Errorf("dial imap: %w", err)
	}
	defer c.Logout()

	if err := c.Login(s.imap.User, s.imap.Password); err != nil {
		return fmt.Errorf("imap login: %w", err)
	}

	buf := bytes.NewBuffer(raw)
	if err := c.Append(s.imap.SentFolder, []string{imap.SeenFlag}, time.Now(), buf); err != nil {
		return fmt.Errorf("append to %s: %w", s.imap.SentFolder, err)
	}
	return nil
}
