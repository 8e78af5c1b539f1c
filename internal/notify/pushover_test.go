package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewshammond/MailBridge/internal/config"
)

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestPushSendsForm(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = map[string]string{
			"token":   r.PostFormValue("token"),
			"user":    r.PostFormValue("user"),
			"title":   r.PostFormValue("title"),
			"message": r.PostFormValue("message"),
		}
	}))
	defer srv.Close()

	n := NewWithEndpoint(config.PushoverConfig{Token: "app-tok", User: "usr-key"}, discardLogger(), srv.URL)
	n.Push(context.Background(), "Form submission relayed", "contact: hello")

	require.NotNil(t, got)
	assert.Equal(t, "app-tok", got["token"])
	assert.Equal(t, "usr-key", got["user"])
	assert.Equal(t, "Form submission relayed", got["title"])
	assert.Equal(t, "contact: hello", got["message"])
}

func TestPushDisabledIsNoOp(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := NewWithEndpoint(config.PushoverConfig{}, discardLogger(), srv.URL)
	n.Push(context.Background(), "title", "message")
	assert.False(t, called)
}

func TestPushNilNotifier(t *testing.T) {
	var n *Notifier
	n.Push(context.Background(), "title", "message")
}
