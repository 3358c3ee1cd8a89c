package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider posts batches to a templated-mail gateway.
type HTTPProvider struct {
	url    string
	key    string
	from   string
	client *http.Client
}

func NewHTTP(url, key, from string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPProvider{url: url, key: key, from: from, client: client}
}

type batchRequest struct {
	From       string      `json:"from"`
	Template   string      `json:"template"`
	Recipients []Recipient `json:"recipients"`
}

// StatusError is a non-2xx answer from the mail gateway.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mail gateway returned %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Upstream() string { return "mail" }

func (p *HTTPProvider) SendBatch(ctx context.Context, template string, recipients []Recipient) error {
	body, err := json.Marshal(batchRequest{From: p.from, Template: template, Recipients: recipients})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/messages/batch", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.key)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
