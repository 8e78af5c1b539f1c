package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewshammond/MailBridge/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Global: config.Global{Mode: config.ModeICloud},
		Channels: []config.Channel{
			{
				Key:            "contact",
				ToAddresses:    []string{"hello@relay.example"},
				FromName:       "Example Site",
				AllowedDomains: []string{"example.com"},
			},
		},
		Responders: []config.Responder{
			{
				Alias: "hello@relay.example",
				Ack:   config.AckTemplate{Subject: "%s", Body: "<p><b>Name:</b> %s</p><p><b>Email:</b> %s</p><p><b>Subject:</b> %s</p><p>%s</p>"},
				Replies: []config.ReplyTemplate{
					{Prefix: "Support Request", Subject: "Re: %s", Body: "We are on it."},
					{Prefix: "Billing", Subject: "Re: %s", Body: "Billing will reach out."},
				},
				Signature: "<p>--<br>The Example Team</p>",
			},
		},
	}
}

func TestSubmissionResolvesChannel(t *testing.T) {
	r := New(testConfig())

	target, err := r.Submission("contact", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "contact", target.Channel.Key)
	assert.Equal(t, "hello@relay.example", target.Responder.Alias)
}

func TestSubmissionUnknownChannel(t *testing.T) {
	r := New(testConfig())
	_, err := r.Submission("nope", "https://example.com")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestSubmissionOriginChecks(t *testing.T) {
	r := New(testConfig())

	// Containment admits subdomains and ports.
	_, err := r.Submission("contact", "https://www.example.com:8443")
	assert.NoError(t, err)

	_, err = r.Submission("contact", "")
	assert.ErrorIs(t, err, ErrOriginNotAllowed)

	_, err = r.Submission("contact", "https://evil.test")
	assert.ErrorIs(t, err, ErrOriginNotAllowed)
}

func TestReplyAliasSubstringMatch(t *testing.T) {
	r := New(testConfig())

	target, err := r.Reply("Site Owner <HELLO@relay.example>", "Support Request — urgent", config.ModeICloud)
	require.NoError(t, err)
	assert.Equal(t, "Support Request", target.Template.Prefix)
}

func TestReplyFirstPrefixWins(t *testing.T) {
	cfg := testConfig()
	// Two templates sharing a prefix: the earlier one must win.
	cfg.Responders[0].Replies = []config.ReplyTemplate{
		{Prefix: "Support", Subject: "Re: %s", Body: "general"},
		{Prefix: "Support Request", Subject: "Re: %s", Body: "specific"},
	}
	r := New(cfg)

	target, err := r.Reply("hello@relay.example", "Support Request — urgent", config.ModeICloud)
	require.NoError(t, err)
	assert.Equal(t, "general", target.Template.Body)
}

func TestReplyStripsPostmarkMarker(t *testing.T) {
	r := New(testConfig())

	_, err := r.Reply("hello@relay.example", config.PostmarkSubjectMarker+"Billing question", config.ModeICloud)
	assert.ErrorIs(t, err, ErrNoTemplate)

	target, err := r.Reply("hello@relay.example", config.PostmarkSubjectMarker+"Billing question", config.ModePostmark)
	require.NoError(t, err)
	assert.Equal(t, "Billing", target.Template.Prefix)
}

func TestReplyNoMatch(t *testing.T) {
	r := New(testConfig())

	_, err := r.Reply("stranger@elsewhere.example", "Support Request", config.ModeICloud)
	assert.ErrorIs(t, err, ErrNoResponder)

	_, err = r.Reply("hello@relay.example", "Unrelated newsletter", config.ModeICloud)
	assert.ErrorIs(t, err, ErrNoTemplate)
}
