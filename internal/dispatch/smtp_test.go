package dispatch

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/domain"
)

type smtpRecorder struct {
	commands []string
	data     string
}

// startPlainSMTP runs a one-connection SMTP server that never offers
// STARTTLS, recording the command stream and the DATA payload.
func startPlainSMTP(t *testing.T) (string, *smtpRecorder, chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	rec := &smtpRecorder{}
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer ln.Close()

		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		write := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		write("220 fake ESMTP")
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			rec.commands = append(rec.commands, line)

			verb := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(verb, "EHLO"), strings.HasPrefix(verb, "HELO"):
				write("250-fake")
				write("250 AUTH PLAIN")
			case strings.HasPrefix(verb, "AUTH"):
				write("235 2.7.0 ok")
			case strings.HasPrefix(verb, "MAIL"), strings.HasPrefix(verb, "RCPT"):
				write("250 ok")
			case verb == "DATA":
				write("354 go")
				for {
					dl, err := br.ReadString('\n')
					if err != nil {
						return
					}
					if strings.TrimRight(dl, "\r\n") == "." {
						break
					}
					rec.data += dl
				}
				write("250 queued")
			case verb == "QUIT":
				write("221 bye")
				return
			default:
				write("250 ok")
			}
		}
	}()

	return ln.Addr().String(), rec, done
}

func smtpConfigFor(t *testing.T, addr string, disableTLS bool) config.SMTPConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return config.SMTPConfig{Host: host, Port: port, User: "relay", Password: "pw", DisableTLS: disableTLS}
}

func TestSMTPSendPlainWhenTLSDisabled(t *testing.T) {
	addr, rec, done := startPlainSMTP(t)

	sender := NewSMTPSender(smtpConfigFor(t, addr, true), config.IMAPConfig{})
	err := sender.Send(context.Background(), &domain.ComposedMail{
		From:     "hello@relay.example",
		To:       "owner@relay.example",
		Subject:  "New Inquiry: hi",
		HTMLBody: "<p>hi</p>",
	})
	require.NoError(t, err)
	<-done

	var sawStartTLS, sawMail, sawRcpt bool
	for _, cmd := range rec.commands {
		u := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(u, "STARTTLS"):
			sawStartTLS = true
		case strings.HasPrefix(u, "MAIL FROM:<HELLO@RELAY.EXAMPLE>"):
			sawMail = true
		case strings.HasPrefix(u, "RCPT TO:<OWNER@RELAY.EXAMPLE>"):
			sawRcpt = true
		}
	}
	assert.False(t, sawStartTLS)
	assert.True(t, sawMail)
	assert.True(t, sawRcpt)
	assert.Contains(t, rec.data, "Subject: New Inquiry: hi")
}

func TestSMTPSendRequiresStartTLSByDefault(t *testing.T) {
	addr, _, done := startPlainSMTP(t)

	// The server never advertises STARTTLS, so the default secure dial must
	// refuse to proceed.
	sender := NewSMTPSender(smtpConfigFor(t, addr, false), config.IMAPConfig{})
	err := sender.Send(context.Background(), &domain.ComposedMail{
		From: "hello@relay.example",
		To:   "owner@relay.example",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial")
	<-done
}
