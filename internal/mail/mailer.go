package mail

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	TemplateReceipt  = "receipt"
	TemplateOpsAlert = "ops_alert"
)

const defaultChunkSize = 1000

// RecipientFailure is one chunk that could not be delivered.
type RecipientFailure struct {
	Recipients []string
	Err        error
}

// SendBatchFailure aggregates chunk failures. The chunks not listed were sent.
type SendBatchFailure struct {
	Failures []RecipientFailure
}

func (e *SendBatchFailure) Error() string {
	n := 0
	for _, f := range e.Failures {
		n += len(f.Recipients)
	}
	return fmt.Sprintf("mail batch failed for %d recipients in %d chunks: %v", n, len(e.Failures), e.Failures[0].Err)
}

func (e *SendBatchFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Failed reports whether email was part of a failed chunk.
func (e *SendBatchFailure) Failed(email string) bool {
	for _, f := range e.Failures {
		for _, r := range f.Recipients {
			if r == email {
				return true
			}
		}
	}
	return false
}

// Mailer chunks batches and applies the recipient override.
type Mailer struct {
	provider  Provider
	log       *zap.Logger
	chunkSize int
	override  string
}

func NewMailer(provider Provider, log *zap.Logger, chunkSize int, override string) *Mailer {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Mailer{
		provider:  provider,
		log:       log.Named("mail"),
		chunkSize: chunkSize,
		override:  strings.TrimSpace(override),
	}
}

// Send delivers one templated message to to.
func (m *Mailer) Send(ctx context.Context, template string, to []string, data map[string]any) error {
	recipients := make([]Recipient, 0, len(to))
	for _, addr := range to {
		recipients = append(recipients, Recipient{Email: addr, Data: data})
	}
	return m.SendBatch(ctx, template, recipients)
}

// SendBatch sends recipients in chunks. Every chunk is attempted; failures
// come back as *SendBatchFailure keyed by the original addresses.
func (m *Mailer) SendBatch(ctx context.Context, template string, recipients []Recipient) error {
	var failure SendBatchFailure
	for start := 0; start < len(recipients); start += m.chunkSize {
		end := min(start+m.chunkSize, len(recipients))
		chunk := recipients[start:end]

		if err := m.provider.SendBatch(ctx, template, m.rewrite(chunk)); err != nil {
			addrs := make([]string, 0, len(chunk))
			for _, r := range chunk {
				addrs = append(addrs, r.Email)
			}
			m.log.Warn("mail chunk failed",
				zap.String("template", template),
				zap.Int("recipients", len(chunk)),
				zap.Error(err),
			)
			failure.Failures = append(failure.Failures, RecipientFailure{Recipients: addrs, Err: err})
		}
	}
	if len(failure.Failures) > 0 {
		return &failure
	}
	return nil
}

func (m *Mailer) rewrite(chunk []Recipient) []Recipient {
	if m.override == "" {
		return chunk
	}
	out := make([]Recipient, len(chunk))
	for i, r := range chunk {
		data := make(map[string]any, len(r.Data)+1)
		for k, v := range r.Data {
			data[k] = v
		}
		data["original_recipient"] = r.Email
		out[i] = Recipient{Email: m.override, Data: data}
	}
	return out
}
