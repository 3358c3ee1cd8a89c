package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingProvider struct {
	mu      sync.Mutex
	batches [][]Recipient
	failOn  map[int]error
}

func (p *recordingProvider) SendBatch(ctx context.Context, template string, recipients []Recipient) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.batches)
	p.batches = append(p.batches, recipients)
	if err, ok := p.failOn[idx]; ok {
		return err
	}
	return nil
}

func recipients(n int) []Recipient {
	out := make([]Recipient, n)
	for i := range out {
		out[i] = Recipient{Email: fmt.Sprintf("u%d@x.example", i)}
	}
	return out
}

func TestSendBatchChunks(t *testing.T) {
	p := &recordingProvider{}
	m := NewMailer(p, zap.NewNop(), 2, "")

	require.NoError(t, m.SendBatch(context.Background(), "t", recipients(5)))
	require.Len(t, p.batches, 3)
	assert.Len(t, p.batches[0], 2)
	assert.Len(t, p.batches[2], 1)
}

func TestSendBatchAggregatesFailuresAndContinues(t *testing.T) {
	boom := errors.New("gateway down")
	p := &recordingProvider{failOn: map[int]error{1: boom}}
	m := NewMailer(p, zap.NewNop(), 2, "")

	err := m.SendBatch(context.Background(), "t", recipients(6))
	var failure *SendBatchFailure
	require.ErrorAs(t, err, &failure)
	require.Len(t, failure.Failures, 1)
	assert.Equal(t, []string{"u2@x.example", "u3@x.example"}, failure.Failures[0].Recipients)
	assert.ErrorIs(t, failure.Failures[0].Err, boom)
	assert.True(t, failure.Failed("u3@x.example"))
	assert.False(t, failure.Failed("u4@x.example"))
	assert.Len(t, p.batches, 3)
}

func TestRecipientOverride(t *testing.T) {
	p := &recordingProvider{}
	m := NewMailer(p, zap.NewNop(), 10, "qa@x.example")

	err := m.Send(context.Background(), "t", []string{"real@x.example"}, map[string]any{"name": "R"})
	require.NoError(t, err)
	require.Len(t, p.batches, 1)
	got := p.batches[0][0]
	assert.Equal(t, "qa@x.example", got.Email)
	assert.Equal(t, "real@x.example", got.Data["original_recipient"])
	assert.Equal(t, "R", got.Data["name"])
}

func TestHTTPProvider(t *testing.T) {
	var got batchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/batch", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewHTTP(srv.URL, "k", "from@x.example", srv.Client())
	err := p.SendBatch(context.Background(), "receipt", []Recipient{{Email: "a@x.example", Data: map[string]any{"amount": "$1.00"}}})
	require.NoError(t, err)
	assert.Equal(t, "receipt", got.Template)
	assert.Equal(t, "from@x.example", got.From)
	require.Len(t, got.Recipients, 1)
	assert.Equal(t, "a@x.example", got.Recipients[0].Email)
}

func TestHTTPProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHTTP(srv.URL, "k", "f", srv.Client()).SendBatch(context.Background(), "t", nil)
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusBadGateway, status.StatusCode)
}

func TestSMTPProviderRendersEachRecipient(t *testing.T) {
	p := NewSMTP(SMTPConfig{Host: "localhost", Port: 25, From: "f@x.example"})
	var sent []string
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "localhost:25", addr)
		sent = append(sent, to[0])
		assert.Contains(t, string(msg), "is due on 2026-03-04")
		return nil
	}
	err := p.SendBatch(context.Background(), "installment_reminder_2", []Recipient{
		{Email: "a@x.example", Data: map[string]any{"deadline": "2026-03-04"}},
		{Email: "b@x.example", Data: map[string]any{"deadline": "2026-03-04"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.example", "b@x.example"}, sent)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, err := Render("missing", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing"))
}
