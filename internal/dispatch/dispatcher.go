package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/domain"
	"github.com/matthewshammond/MailBridge/internal/notify"
	"github.com/matthewshammond/MailBridge/internal/store"
)

// Job kinds, for stats and notifications.
const (
	KindAck   = "ack"
	KindReply = "reply"
)

// Job is one composed message bound for a delivery backend. Channel is set on
// the submission path so per-channel credentials apply; it is nil for
// replies.
type Job struct {
	Kind    string
	Mail    *domain.ComposedMail
	Channel *config.Channel
}

// Dispatcher owns the outbound path. The submission handler enqueues and
// returns; a single worker goroutine drains the queue, so the HTTP response
// never waits on a mail backend. The poll loop calls Deliver synchronously
// because it must know the outcome before marking the source message read.
type Dispatcher struct {
	smtp     Sender
	postmark Sender
	modes    *ModeSource
	stats    *store.Stats
	notifier *notify.Notifier
	log      logrus.FieldLogger

	jobs chan Job
	wg   sync.WaitGroup
	once sync.Once
}

const queueDepth = 64

func New(smtpSender, postmarkSender Sender, modes *ModeSource, stats *store.Stats, notifier *notify.Notifier, log logrus.FieldLogger) *Dispatcher {
	d := &Dispatcher{
		smtp:     smtpSender,
		postmark: postmarkSender,
		modes:    modes,
		stats:    stats,
		notifier: notifier,
		log:      log,
		jobs:     make(chan Job, queueDepth),
	}
	d.wg.Add(1)
	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		// Detached from any request context on purpose: a dispatch once
		// started runs to completion or failure.
		if err := d.Deliver(context.Background(), job); err != nil {
			d.log.WithError(err).WithField("mail_id", job.Mail.ID).Error("dispatch failed")
		}
	}
}

// Enqueue hands a job to the worker. The submitter has already been told
// "success"; failures from here on are logged, never surfaced.
func (d *Dispatcher) Enqueue(job Job) {
	d.jobs <- job
}

// Drain stops accepting jobs and blocks until queued work finishes. Used for
// shutdown and by tests to await completion deterministically.
func (d *Dispatcher) Drain() {
	d.once.Do(func() { close(d.jobs) })
	d.wg.Wait()
}

// Deliver sends one job through the active backend, records stats and pushes
// the operator notification. At most one attempt; no retry here.
func (d *Dispatcher) Deliver(ctx context.Context, job Job) error {
	mode := d.modes.Current(ctx)
	sender := d.senderFor(mode, job.Channel)

	err := sender.Send(ctx, job.Mail)
	d.record(ctx, job, mode, err)
	if err != nil {
		return err
	}

	if mirrorer, ok := sender.(Mirrorer); ok {
		if merr := mirrorer.Mirror(ctx, job.Mail); merr != nil {
			d.log.WithError(merr).WithField("mail_id", job.Mail.ID).Warn("sent-folder mirror failed")
		}
	}
	return nil
}

func (d *Dispatcher) senderFor(mode string, ch *config.Channel) Sender {
	if mode == config.ModePostmark {
		if ch != nil && ch.Postmark != nil {
			if pm, ok := d.postmark.(*PostmarkSender); ok {
				return pm.WithConfig(*ch.Postmark)
			}
		}
		return d.postmark
	}
	return d.smtp
}

func (d *Dispatcher) record(ctx context.Context, job Job, mode string, sendErr error) {
	var stat, title string
	switch {
	case job.Kind == KindReply && sendErr == nil:
		stat, title = store.StatRepliesSent, "Auto-reply sent"
	case job.Kind == KindReply:
		stat, title = store.StatRepliesFailed, "Auto-reply failed"
	case sendErr == nil:
		stat, title = store.StatDispatched, "Form submission relayed"
	default:
		stat, title = store.StatDispatchFailed, "Form relay failed"
	}

	if err := d.stats.Incr(ctx, stat); err != nil {
		d.log.WithError(err).Debug("stat increment failed")
	}

	msg := fmt.Sprintf("%s -> %s (%s mode)", job.Mail.Subject, job.Mail.To, mode)
	if sendErr != nil {
		msg = fmt.Sprintf("%s: %v", msg, sendErr)
	}
	d.notifier.Push(ctx, title, msg)
}
