package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Responder holds the templates for one watched mailbox alias: the
// acknowledgment sent on form submission and the ordered reply templates the
// poll loop matches reply subjects against.
//
// The document is an ordered array, not an object: subject matching is
// first-prefix-wins, so declaration order is significant and must survive
// decoding.
type Responder struct {
	Alias     string          `json:"alias"`
	Ack       AckTemplate     `json:"ack"`
	Replies   []ReplyTemplate `json:"replies"`
	Signature string          `json:"signature"`
}

// AckTemplate formats the form-submission acknowledgment. Subject takes the
// submitter's subject; Body takes name, email, subject and the HTML-escaped
// message content, in that order.
type AckTemplate struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ReplyTemplate is one auto-reply candidate. Prefix is matched against the
// incoming reply subject; Subject is a format taking the extracted original
// subject; Body is the response text inserted between greeting and signature.
type ReplyTemplate struct {
	Prefix  string `json:"prefix"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ReplyForSubject returns the first configured reply template whose prefix
// matches subject, or nil.
func (r *Responder) ReplyForSubject(subject string) *ReplyTemplate {
	for i := range r.Replies {
		if len(subject) >= len(r.Replies[i].Prefix) && subject[:len(r.Replies[i].Prefix)] == r.Replies[i].Prefix {
			return &r.Replies[i]
		}
	}
	return nil
}

// LoadResponders reads the responses document from path.
func LoadResponders(path string) ([]Responder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read responses: %w", err)
	}
	var responders []Responder
	if err := json.Unmarshal(data, &responders); err != nil {
		return nil, fmt.Errorf("parse responses: %w", err)
	}
	return responders, nil
}
