package mail

import "context"

// Recipient is one addressee of a templated batch with its own merge data.
type Recipient struct {
	Email string         `json:"to"`
	Data  map[string]any `json:"data,omitempty"`
}

// Provider is a mail transport.
type Provider interface {
	// SendBatch delivers template to every recipient in one request.
	SendBatch(ctx context.Context, template string, recipients []Recipient) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) SendBatch(ctx context.Context, template string, recipients []Recipient) error {
	return nil
}
