package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Global: Global{Mode: ModeICloud},
		Channels: []Channel{
			{Key: "contact", ToAddresses: []string{"hello@relay.example"}, AllowedDomains: []string{"example.com"}},
		},
		Responders: []Responder{
			{Alias: "hello@relay.example"},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.Global.Mode = "carrier-pigeon"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestValidateRejectsDuplicateChannelKey(t *testing.T) {
	cfg := validConfig()
	cfg.Channels = append(cfg.Channels, cfg.Channels[0])
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestValidateRejectsDuplicateAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Responders = append(cfg.Responders, Responder{Alias: "HELLO@relay.example"})
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestValidateRejectsChannelWithoutRecipients(t *testing.T) {
	cfg := validConfig()
	cfg.Channels[0].ToAddresses = nil
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestValidateRejectsCaptchaWithoutSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Channels[0].Captcha = &CaptchaPolicy{Provider: "turnstile"}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestShadowedPrefixes(t *testing.T) {
	r := Responder{
		Replies: []ReplyTemplate{
			{Prefix: "Support"},
			{Prefix: "Support Request"},
			{Prefix: "Billing"},
		},
	}
	assert.Equal(t, []string{"Support Request"}, r.ShadowedPrefixes())
}

func TestReplyForSubjectPrefixMatch(t *testing.T) {
	r := Responder{
		Replies: []ReplyTemplate{
			{Prefix: "Support Request", Body: "support"},
			{Prefix: "Billing", Body: "billing"},
		},
	}

	tpl := r.ReplyForSubject("Support Request — urgent")
	require.NotNil(t, tpl)
	assert.Equal(t, "support", tpl.Body)

	assert.Nil(t, r.ReplyForSubject("Something else"))
	// Prefix, not substring: the prefix must start the subject.
	assert.Nil(t, r.ReplyForSubject("Re: Support Request"))
}

func TestResponderByAddress(t *testing.T) {
	cfg := &Config{Responders: []Responder{
		{Alias: "hello@relay.example"},
		{Alias: "sales@relay.example"},
	}}

	r := cfg.ResponderByAddress("Owner <SALES@relay.example>")
	require.NotNil(t, r)
	assert.Equal(t, "sales@relay.example", r.Alias)

	assert.Nil(t, cfg.ResponderByAddress("other@elsewhere.example"))
}

func TestChannelByKey(t *testing.T) {
	cfg := validConfig()
	require.NotNil(t, cfg.ChannelByKey("contact"))
	assert.Nil(t, cfg.ChannelByKey("missing"))
}
