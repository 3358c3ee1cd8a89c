package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPProvider renders embedded templates and sends one message per recipient.
type SMTPProvider struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg SMTPConfig) *SMTPProvider {
	return &SMTPProvider{cfg: cfg, send: smtp.SendMail}
}

func (p *SMTPProvider) SendBatch(ctx context.Context, name string, recipients []Recipient) error {
	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	var errs []error
	for _, r := range recipients {
		if err := ctx.Err(); err != nil {
			return err
		}
		subject, body, err := Render(name, r.Data)
		if err != nil {
			return err
		}
		mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
		msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n%s\r\n%s", p.cfg.From, r.Email, subject, mime, body))
		if err := p.send(addr, auth, p.cfg.From, []string{r.Email}, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Email, err))
		}
	}
	return errors.Join(errs...)
}

// Render executes the template for name. Reminder templates carry their
// offset as a suffix (installment_reminder_7) and share one file.
func Render(name string, data map[string]any) (string, string, error) {
	t := templates.Lookup(name + ".html")
	if t == nil {
		if i := strings.LastIndexByte(name, '_'); i > 0 {
			t = templates.Lookup(name[:i] + ".html")
		}
	}
	if t == nil {
		return "", "", fmt.Errorf("mail template %q not found", name)
	}
	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("execute template %q: %w", name, err)
	}
	subject, _ := data["subject"].(string)
	if subject == "" {
		subject = defaultSubject(name)
	}
	return subject, body.String(), nil
}

func defaultSubject(name string) string {
	switch {
	case strings.HasPrefix(name, "installment_reminder"):
		return "Your next bootcamp installment is coming up"
	case name == TemplateReceipt:
		return "Your bootcamp payment receipt"
	case name == TemplateOpsAlert:
		return "Payment gateway rejected an order"
	default:
		return "Bootcamp notification"
	}
}
