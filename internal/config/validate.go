package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks cross-entry consistency. Failures here abort process start;
// a relay running against a broken channel table silently drops mail.
func (c *Config) Validate() error {
	if !ValidMode(c.Global.Mode) {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Global.Mode)
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("%w: no channels configured", ErrInvalidConfig)
	}

	keys := make(map[string]bool)
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.Key == "" {
			return fmt.Errorf("%w: channel %d has no key", ErrInvalidConfig, i)
		}
		if keys[ch.Key] {
			return fmt.Errorf("%w: duplicate channel key %q", ErrInvalidConfig, ch.Key)
		}
		keys[ch.Key] = true
		if len(ch.ToAddresses) == 0 {
			return fmt.Errorf("%w: channel %q has no recipients", ErrInvalidConfig, ch.Key)
		}
		if len(ch.AllowedDomains) == 0 {
			return fmt.Errorf("%w: channel %q allows no origins", ErrInvalidConfig, ch.Key)
		}
		if ch.Captcha != nil && ch.Captcha.Secret == "" {
			return fmt.Errorf("%w: channel %q captcha policy has no secret", ErrInvalidConfig, ch.Key)
		}
	}

	aliases := make(map[string]bool)
	for i := range c.Responders {
		r := &c.Responders[i]
		if r.Alias == "" {
			return fmt.Errorf("%w: responder %d has no alias", ErrInvalidConfig, i)
		}
		lower := strings.ToLower(r.Alias)
		if aliases[lower] {
			return fmt.Errorf("%w: duplicate responder alias %q", ErrInvalidConfig, r.Alias)
		}
		aliases[lower] = true
	}
	return nil
}

// ShadowedPrefixes reports reply prefixes that can never match because an
// earlier prefix subsumes them. Matching is first-configured-wins, so these
// entries are dead configuration; callers log them at startup.
func (r *Responder) ShadowedPrefixes() []string {
	var shadowed []string
	for i := range r.Replies {
		for j := 0; j < i; j++ {
			if strings.HasPrefix(r.Replies[i].Prefix, r.Replies[j].Prefix) {
				shadowed = append(shadowed, r.Replies[i].Prefix)
				break
			}
		}
	}
	return shadowed
}
