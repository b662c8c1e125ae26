package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/pkg/platform/circuit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResendSender_PostsMessage(t *testing.T) {
	var got resendPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	s := NewResendSender(ResendConfig{APIKey: "re_test", From: "Warden <no@w.dev>", URL: srv.URL}, discardLogger())
	err := s.Send(context.Background(), Message{To: "bob@x.com", Subject: "Hi", Text: "t", HTML: "<p>h</p>"})

	require.NoError(t, err)
	assert.Equal(t, "Bearer re_test", auth)
	assert.Equal(t, []string{"bob@x.com"}, got.To)
	assert.Equal(t, "Warden <no@w.dev>", got.From)
	assert.Equal(t, "Hi", got.Subject)
}

func TestResendSender_ProviderErrorOpensCircuit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	breaker := circuit.New("resend-test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	s := NewResendSender(ResendConfig{URL: srv.URL, Breaker: breaker}, discardLogger())
	msg := Message{To: "bob@x.com", Subject: "Hi", Text: "t"}

	assert.ErrorIs(t, s.Send(context.Background(), msg), ErrProviderFail)
	assert.ErrorIs(t, s.Send(context.Background(), msg), ErrProviderFail)
	assert.ErrorIs(t, s.Send(context.Background(), msg), ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestResendSender_RequiresRecipient(t *testing.T) {
	s := NewResendSender(ResendConfig{}, discardLogger())
	assert.ErrorIs(t, s.Send(context.Background(), Message{Subject: "x"}), ErrNoRecipient)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, s.Send(context.Background(), Message{To: "alice@example.com", Subject: "Hello"}))
	assert.NotContains(t, buf.String(), "alice@example.com")
	assert.Contains(t, buf.String(), "Hello")
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

type countingFailures struct{ kinds []string }

func (c *countingFailures) EmailFailed(kind string) { c.kinds = append(c.kinds, kind) }

func TestNotifier_Subjects(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifier(rec, "Warden", discardLogger())
	ctx := context.Background()

	n.SendEmailVerification(ctx, "a@x.com", "AB12C", 15*time.Minute)
	n.SendLoginCode(ctx, "a@x.com", "ZZ9Q1", 5*time.Minute)
	n.SendPendingActivation(ctx, "a@x.com", "alice")
	n.SendActivated(ctx, "a@x.com")

	require.Len(t, rec.msgs, 4)
	assert.Equal(t, "Verify your email for Warden", rec.msgs[0].Subject)
	assert.Contains(t, rec.msgs[0].Text, "AB12C")
	assert.Contains(t, rec.msgs[0].Text, "15 minutes")
	assert.Contains(t, rec.msgs[0].HTML, "AB12C")

	assert.Equal(t, "Your login code for Warden", rec.msgs[1].Subject)
	assert.Contains(t, rec.msgs[1].Text, "5 minutes")

	assert.Equal(t, "Email verified - Activation pending", rec.msgs[2].Subject)
	assert.Contains(t, rec.msgs[2].Text, "Hello alice")

	assert.Equal(t, "Your Warden account is active", rec.msgs[3].Subject)
}

func TestNotifier_EscapesHTML(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifier(rec, "Warden", discardLogger())
	n.SendPendingActivation(context.Background(), "a@x.com", "<script>")

	require.Len(t, rec.msgs, 1)
	assert.NotContains(t, rec.msgs[0].HTML, "<script>")
}

func TestNotifier_SwallowsFailures(t *testing.T) {
	rec := &recordingSender{err: errors.New("smtp down")}
	failures := &countingFailures{}
	n := NewNotifier(rec, "Warden", discardLogger(), WithFailureCounter(failures))

	n.SendLoginCode(context.Background(), "a@x.com", "AAAAA", 5*time.Minute)
	assert.Equal(t, []string{KindLoginCode}, failures.kinds)
}
