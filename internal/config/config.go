package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Channel is one configured intake surface (a web form key plus the mailbox
// it relays to).
type Channel struct {
	Key            string   `mapstructure:"key" yaml:"key"`
	ToAddresses    []string `mapstructure:"to" yaml:"to"`
	FromName       string   `mapstructure:"from_name" yaml:"from_name"`
	AllowedDomains []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`

	// Captcha is optional; when set, submissions on this channel must carry
	// a token that verifies against the provider.
	Captcha *CaptchaPolicy `mapstructure:"captcha" yaml:"captcha,omitempty"`

	// Postmark overrides the global API credentials for this channel.
	Postmark *PostmarkConfig `mapstructure:"postmark" yaml:"postmark,omitempty"`
}

// PrimaryAddress returns the canonical recipient (first in the list).
func (c *Channel) PrimaryAddress() string {
	if len(c.ToAddresses) == 0 {
		return ""
	}
	return c.ToAddresses[0]
}

type CaptchaPolicy struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Secret   string `mapstructure:"secret" yaml:"secret"`
}

type PostmarkConfig struct {
	ServerToken string `mapstructure:"server_token" yaml:"server_token"`
	From        string `mapstructure:"from" yaml:"from"`
}

type SMTPConfig struct {
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	User       string `mapstructure:"user" yaml:"user"`
	Password   string `mapstructure:"password" yaml:"password"`
	DisableTLS bool   `mapstructure:"disable_tls" yaml:"disable_tls"`
}

func (s SMTPConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type IMAPConfig struct {
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	User       string `mapstructure:"user" yaml:"user"`
	Password   string `mapstructure:"password" yaml:"password"`
	SentFolder string `mapstructure:"sent_folder" yaml:"sent_folder"`
}

func (i IMAPConfig) Addr() string { return fmt.Sprintf("%s:%d", i.Host, i.Port) }

type PushoverConfig struct {
	Token string `mapstructure:"token" yaml:"token"`
	User  string `mapstructure:"user" yaml:"user"`
}

func (p PushoverConfig) Enabled() bool { return p.Token != "" && p.User != "" }

type AdminConfig struct {
	Password  string `mapstructure:"password" yaml:"password"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// Global holds process-wide settings shared by every channel.
type Global struct {
	Mode            string         `mapstructure:"mode" yaml:"mode"`
	HTTPAddr        string         `mapstructure:"http_addr" yaml:"http_addr"`
	RedisURL        string         `mapstructure:"redis_url" yaml:"redis_url"`
	RateLimitPerMin int            `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min"`
	PollSeconds     int            `mapstructure:"poll_seconds" yaml:"poll_seconds"`
	ProfileTTLHours int            `mapstructure:"profile_ttl_hours" yaml:"profile_ttl_hours"`
	MaxMailBytes    int            `mapstructure:"max_mail_bytes" yaml:"max_mail_bytes"`
	LogLevel        string         `mapstructure:"log_level" yaml:"log_level"`
	SMTP            SMTPConfig     `mapstructure:"smtp" yaml:"smtp"`
	IMAP            IMAPConfig     `mapstructure:"imap" yaml:"imap"`
	Postmark        PostmarkConfig `mapstructure:"postmark" yaml:"postmark"`
	Pushover        PushoverConfig `mapstructure:"pushover" yaml:"pushover"`
	Admin           AdminConfig    `mapstructure:"admin" yaml:"admin"`
}

// Config is the full static configuration, loaded once at startup and
// read-only thereafter. Components receive it (or a slice of it) at
// construction, never through package globals.
type Config struct {
	Global   Global    `mapstructure:"global" yaml:"global"`
	Channels []Channel `mapstructure:"channels" yaml:"channels"`

	// Responders is loaded from the responses document, keyed lookup is by
	// configured order.
	Responders []Responder `mapstructure:"-" yaml:"-"`
}

// Load reads config.yaml (path from MAILBRIDGE_CONFIG, default ./config) and
// the responses document next to it, applies env overrides for credentials,
// and validates. Missing or inconsistent configuration is fatal to startup.
func Load() (*Config, error) {
	// Credentials may live in a .env file during development.
	_ = godotenv.Load()

	dir := getEnv("MAILBRIDGE_CONFIG", "config")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	responders, err := LoadResponders(dir + "/responses.json")
	if err != nil {
		return nil, err
	}
	cfg.Responders = responders

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	g := &c.Global
	if g.Mode == "" {
		g.Mode = ModeICloud
	}
	if g.HTTPAddr == "" {
		g.HTTPAddr = ":1234"
	}
	if g.RedisURL == "" {
		g.RedisURL = "redis://localhost:6379/0"
	}
	if g.RateLimitPerMin == 0 {
		g.RateLimitPerMin = 5
	}
	if g.PollSeconds == 0 {
		g.PollSeconds = 30
	}
	if g.ProfileTTLHours == 0 {
		g.ProfileTTLHours = 24
	}
	if g.MaxMailBytes == 0 {
		g.MaxMailBytes = 5242880 // 5MB
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.IMAP.SentFolder == "" {
		g.IMAP.SentFolder = "Sent Messages"
	}
}

func (c *Config) applyEnvOverrides() {
	g := &c.Global
	g.RedisURL = getEnv("REDIS_URL", g.RedisURL)
	g.SMTP.Password = getEnv("SMTP_PASSWORD", g.SMTP.Password)
	g.IMAP.Password = getEnv("IMAP_PASSWORD", g.IMAP.Password)
	g.Postmark.ServerToken = getEnv("POSTMARK_SERVER_TOKEN", g.Postmark.ServerToken)
	g.Pushover.Token = getEnv("PUSHOVER_TOKEN", g.Pushover.Token)
	g.Pushover.User = getEnv("PUSHOVER_USER", g.Pushover.User)
	g.Admin.Password = getEnv("ADMIN_PASSWORD", g.Admin.Password)
	g.Admin.JWTSecret = getEnv("JWT_SECRET", g.Admin.JWTSecret)
	g.PollSeconds = getEnvInt("POLL_SECONDS", g.PollSeconds)
}

// Delivery modes.
const (
	ModeICloud   = "icloud"
	ModePostmark = "postmark"
)

// PostmarkSubjectMarker prefixes acknowledgment subjects in postmark mode.
// The poll loop strips it again before template matching.
const PostmarkSubjectMarker = "Postmark Inquiry: "

func ValidMode(mode string) bool {
	return mode == ModeICloud || mode == ModePostmark
}

// ChannelByKey returns the channel with the given form key, or nil.
func (c *Config) ChannelByKey(key string) *Channel {
	for i := range c.Channels {
		if c.Channels[i].Key == key {
			return &c.Channels[i]
		}
	}
	return nil
}

// ResponderByAddress returns the first configured responder whose alias is
// contained in addr, case-insensitively. Configuration order wins.
func (c *Config) ResponderByAddress(addr string) *Responder {
	lower := strings.ToLower(addr)
	for i := range c.Responders {
		if strings.Contains(lower, strings.ToLower(c.Responders[i].Alias)) {
			return &c.Responders[i]
		}
	}
	return nil
}

// ResponderForChannel returns the responder for the channel's canonical
// recipient, or nil when none is configured.
func (c *Config) ResponderForChannel(ch *Channel) *Responder {
	for i := range c.Responders {
		if strings.EqualFold(c.Responders[i].Alias, ch.PrimaryAddress()) {
			return &c.Responders[i]
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
