package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/domain"
	"github.com/matthewshammond/MailBridge/internal/notify"
	"github.com/matthewshammond/MailBridge/internal/store"
)

// fakeSender records every delivered mail and optionally fails.
type fakeSender struct {
	mu       sync.Mutex
	sent     []*domain.ComposedMail
	mirrored []*domain.ComposedMail
	sendErr  error
	mirror   bool
}

func (f *fakeSender) Send(_ context.Context, m *domain.ComposedMail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeMirrorSender additionally implements Mirrorer.
type fakeMirrorSender struct {
	fakeSender
	mirrorErr error
}

func (f *fakeMirrorSender) Mirror(_ context.Context, m *domain.ComposedMail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mirrorErr != nil {
		return f.mirrorErr
	}
	f.mirrored = append(f.mirrored, m)
	return nil
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestDispatcher(t *testing.T, smtpS, pmS Sender, mode string) (*Dispatcher, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemory()
	modes := NewModeSource(mem, mode)
	stats := store.NewStats(mem)
	notifier := notify.New(config.PushoverConfig{}, testLogger())
	return New(smtpS, pmS, modes, stats, notifier, testLogger()), mem
}

func ackJob() Job {
	return Job{
		Kind:    KindAck,
		Mail:    &domain.ComposedMail{ID: "01TEST", To: "hello@relay.example", Subject: "New Inquiry: hi"},
		Channel: fixtureChannel(),
	}
}

func TestEnqueueDeliversThroughSMTPInICloudMode(t *testing.T) {
	smtpS := &fakeSender{}
	pmS := &fakeSender{}
	d, _ := newTestDispatcher(t, smtpS, pmS, config.ModeICloud)

	d.Enqueue(ackJob())
	d.Drain()

	assert.Equal(t, 1, smtpS.sentCount())
	assert.Equal(t, 0, pmS.sentCount())
}

func TestDeliverUsesPostmarkInPostmarkMode(t *testing.T) {
	smtpS := &fakeSender{}
	pmS := &fakeSender{}
	d, _ := newTestDispatcher(t, smtpS, pmS, config.ModePostmark)

	require.NoError(t, d.Deliver(context.Background(), ackJob()))

	assert.Equal(t, 0, smtpS.sentCount())
	assert.Equal(t, 1, pmS.sentCount())
}

func TestModeFlipSwitchesBackendBetweenDeliveries(t *testing.T) {
	smtpS := &fakeSender{}
	pmS := &fakeSender{}
	d, mem := newTestDispatcher(t, smtpS, pmS, config.ModeICloud)

	ctx := context.Background()
	require.NoError(t, d.Deliver(ctx, ackJob()))
	require.NoError(t, store.SetMode(ctx, mem, config.ModePostmark))
	require.NoError(t, d.Deliver(ctx, ackJob()))

	assert.Equal(t, 1, smtpS.sentCount())
	assert.Equal(t, 1, pmS.sentCount())
}

func TestInvalidStoredModeFallsBack(t *testing.T) {
	smtpS := &fakeSender{}
	pmS := &fakeSender{}
	d, mem := newTestDispatcher(t, smtpS, pmS, config.ModeICloud)

	ctx := context.Background()
	require.NoError(t, mem.SetWithTTL(ctx, store.KeyMode, "garbage", 0))
	require.NoError(t, d.Deliver(ctx, ackJob()))

	assert.Equal(t, 1, smtpS.sentCount())
}

func TestDeliverRecordsStats(t *testing.T) {
	smtpS := &fakeSender{}
	d, mem := newTestDispatcher(t, smtpS, &fakeSender{}, config.ModeICloud)

	ctx := context.Background()
	require.NoError(t, d.Deliver(ctx, ackJob()))

	totals, err := store.NewStats(mem).Totals(ctx, store.StatDispatched)
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals[store.StatDispatched])
}

func TestDeliverFailureRecordsFailureStat(t *testing.T) {
	smtpS := &fakeSender{sendErr: errors.New("connection refused")}
	d, mem := newTestDispatcher(t, smtpS, &fakeSender{}, config.ModeICloud)

	ctx := context.Background()
	err := d.Deliver(ctx, ackJob())
	require.Error(t, err)

	totals, serr := store.NewStats(mem).Totals(ctx, store.StatDispatchFailed)
	require.NoError(t, serr)
	assert.Equal(t, int64(1), totals[store.StatDispatchFailed])
}

func TestReplyJobRecordsReplyStat(t *testing.T) {
	smtpS := &fakeSender{}
	d, mem := newTestDispatcher(t, smtpS, &fakeSender{}, config.ModeICloud)

	ctx := context.Background()
	job := Job{Kind: KindReply, Mail: &domain.ComposedMail{ID: "01REPLY", To: "alice@example.com", Subject: "Re: hi"}}
	require.NoError(t, d.Deliver(ctx, job))

	totals, err := store.NewStats(mem).Totals(ctx, store.StatRepliesSent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals[store.StatRepliesSent])
}

func TestMirrorFailureDoesNotFailDelivery(t *testing.T) {
	smtpS := &fakeMirrorSender{mirrorErr: errors.New("imap unavailable")}
	d, _ := newTestDispatcher(t, smtpS, &fakeSender{}, config.ModeICloud)

	require.NoError(t, d.Deliver(context.Background(), ackJob()))
	assert.Equal(t, 1, smtpS.sentCount())
}

func TestMirrorRunsAfterSuccessfulSend(t *testing.T) {
	smtpS := &fakeMirrorSender{}
	d, _ := newTestDispatcher(t, smtpS, &fakeSender{}, config.ModeICloud)

	require.NoError(t, d.Deliver(context.Background(), ackJob()))

	smtpS.mu.Lock()
	defer smtpS.mu.Unlock()
	assert.Len(t, smtpS.mirrored, 1)
}

func TestDrainIsIdempotent(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeSender{}, &fakeSender{}, config.ModeICloud)
	d.Drain()
	d.Drain()
}

func TestPostmarkPerChannelOverride(t *testing.T) {
	pm := NewPostmarkSender(config.PostmarkConfig{ServerToken: "global", From: "global@relay.example"})
	d, _ := newTestDispatcher(t, &fakeSender{}, pm, config.ModePostmark)

	ch := fixtureChannel()
	ch.Postmark = &config.PostmarkConfig{ServerToken: "channel", From: "channel@relay.example"}

	sender := d.senderFor(config.ModePostmark, ch)
	override, ok := sender.(*PostmarkSender)
	require.True(t, ok)
	assert.NotSame(t, pm, override)
}
