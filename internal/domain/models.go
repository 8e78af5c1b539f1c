package domain

import "time"

// Message is the canonical envelope both entry paths produce. A Message is
// immutable once constructed; the pipeline only reads it.
type Message struct {
	SenderName  string `json:"sender_name"`
	SenderEmail string `json:"sender_email"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`

	// OriginAddress is the client IP on the submission path and the
	// watched mailbox alias on the poll path.
	OriginAddress string    `json:"origin_address"`
	ChannelKey    string    `json:"channel_key"`
	ReceivedAt    time.Time `json:"received_at"`

	HoneypotField string `json:"honeypot_field,omitempty"`
	CaptchaToken  string `json:"captcha_token,omitempty"`
}

// ComposedMail is a fully rendered outbound message, the unit of work the
// dispatcher hands to a delivery backend.
type ComposedMail struct {
	ID          string
	From        string
	FromName    string
	To          string
	ReplyTo     string
	ReplyToName string
	Subject     string
	HTMLBody    string
}
