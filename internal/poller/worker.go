// Package poller watches the relay mailbox for reply traffic and closes the
// loop: it re-extracts the submitter from acknowledgments the dispatcher
// produced, resolves a reply template and sends the auto-reply.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"
	"github.com/sirupsen/logrus"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/dispatch"
	"github.com/matthewshammond/MailBridge/internal/resolve"
)

type Worker struct {
	cfg        *config.Config
	resolver   *resolve.Resolver
	dispatcher *dispatch.Dispatcher
	modes      *dispatch.ModeSource
	log        logrus.FieldLogger
}

func New(cfg *config.Config, resolver *resolve.Resolver, dispatcher *dispatch.Dispatcher, modes *dispatch.ModeSource, log logrus.FieldLogger) *Worker {
	return &Worker{
		cfg:        cfg,
		resolver:   resolver,
		dispatcher: dispatcher,
		modes:      modes,
		log:        log,
	}
}

// Start runs poll passes on the configured interval until ctx is canceled.
// A failed pass is simply retried at the next tick; there is no backoff.
func (w *Worker) Start(ctx context.Context) {
	interval := time.Duration(w.cfg.Global.PollSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.WithField("interval", interval).Info("mailbox poller started")

	if err := w.processPass(ctx); err != nil {
		w.log.WithError(err).Error("poll pass failed")
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info("mailbox poller stopping")
			return
		case <-ticker.C:
			if err := w.processPass(ctx); err != nil {
				w.log.WithError(err).Error("poll pass failed")
			}
		}
	}
}

// processPass is one sequential sweep of the inbox. Messages are handled
// strictly one after another; a failure on one leaves it unread for the next
// pass and moves on.
func (w *Worker) processPass(ctx context.Context) error {
	imapCfg := w.cfg.Global.IMAP

	c, err := client.DialTLS(imapCfg.Addr(), nil)
	if err != nil {
		return fmt.Errorf("dial imap: %w", err)
	}
	defer c.Logout()

	if err := c.Login(imapCfg.User, imapCfg.Password); err != nil {
		return fmt.Errorf("imap login: %w", err)
	}

	if _, err := c.Select("INBOX", false); err != nil {
		return fmt.Errorf("select inbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil
	}

	w.log.WithField("count", len(uids)).Info("unread messages found")

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek: nothing is marked read until its reply actually went out.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	for msg := range messages {
		if err := w.handleMessage(ctx, c, msg, section); err != nil {
			w.log.WithError(err).WithField("uid", msg.Uid).Warn("message left unread")
		}
	}

	if err := <-done; err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, c *client.Client, msg *imap.Message, section *imap.BodySectionName) error {
	if msg.Envelope == nil {
		return errors.New("server returned no envelope")
	}

	to := formatRecipients(msg.Envelope.To)
	subject := msg.Envelope.Subject
	mode := w.modes.Current(ctx)

	target, err := w.resolver.Reply(to, subject, mode)
	if err != nil {
		// Not reply traffic we know how to answer. Dropped, not surfaced.
		w.log.WithFields(logrus.Fields{"uid": msg.Uid, "to": to, "subject": subject}).Debug("no reply target")
		return nil
	}

	body, err := w.messageBody(msg, section)
	if err != nil {
		return err
	}

	fields, err := ExtractFields(body)
	if err != nil {
		return fmt.Errorf("uid %d: %w", msg.Uid, err)
	}

	reply := dispatch.ComposeReply(fields.FirstName, fields.Email, fields.Subject, target.Responder, target.Template)
	if err := w.dispatcher.Deliver(ctx, dispatch.Job{Kind: dispatch.KindReply, Mail: reply}); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	w.log.WithFields(logrus.Fields{"uid": msg.Uid, "to": fields.Email}).Info("auto-reply sent")
	return w.markSeen(c, msg.Uid)
}

// messageBody extracts a usable text body: the plain part when present,
// otherwise the HTML part (the extractor reads the HTML grammar directly,
// with a stripped-text fallback).
func (w *Worker) messageBody(msg *imap.Message, section *imap.BodySectionName) (string, error) {
	r := msg.GetBody(section)
	if r == nil {
		return "", errors.New("server returned no body")
	}

	raw, err := io.ReadAll(io.LimitReader(r, int64(w.cfg.Global.MaxMailBytes)+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(raw) > w.cfg.Global.MaxMailBytes {
		return "", fmt.Errorf("message too large: %d bytes", len(raw))
	}

	mr, err := mail.CreateReader(strings.NewReader(string(raw)))
	if err != nil {
		return "", fmt.Errorf("parse mail: %w", err)
	}

	var textBody, htmlBody string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			b, _ := io.ReadAll(p.Body)
			t, _, _ := h.ContentType()
			switch t {
			case "text/plain":
				textBody += string(b)
			case "text/html":
				htmlBody += string(b)
			}
		}
	}

	switch {
	case htmlBody != "":
		// Prefer the HTML part; if the grammar is not in there, fall back
		// to its stripped text.
		if _, err := ExtractFields(htmlBody); err == nil {
			return htmlBody, nil
		}
		return html2text.HTML2Text(htmlBody), nil
	case textBody != "":
		return textBody, nil
	default:
		return "", errors.New("no text or html part")
	}
}

func (w *Worker) markSeen(c *client.Client, uid uint32) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return c.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil)
}

func formatRecipients(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.Address())
	}
	return strings.Join(parts, ", ")
}
