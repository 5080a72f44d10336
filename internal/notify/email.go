package notify

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/resend/resend-go/v3"
)

const subjectPrefix = "[growthctl] "

// sendMailHook is replaced in tests.
var sendMailHook = smtp.SendMail

// Email sends through an SMTP relay with PLAIN auth.
type Email struct {
	Host, User, Pass string
	Port             int
	To               []string
}

func (e *Email) Name() string { return "Email" }

func (e *Email) Send(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	auth := smtp.PlainAuth("", e.User, e.Pass, e.Host)
	header := fmt.Sprintf(
		"To: %s\r\nSubject: %s%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n",
		strings.Join(e.To, ","),
		subjectPrefix,
		title,
	)
	return sendMailHook(addr, auth, e.User, e.To, []byte(header+message))
}

// resendEmails is the part of the Resend SDK the provider calls.
type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Resend sends through the Resend e-mail API.
type Resend struct {
	From   string
	To     []string
	emails resendEmails
}

func NewResend(apiKey, from string, to []string) *Resend {
	return &Resend{From: from, To: to, emails: resend.NewClient(apiKey).Emails}
}

func (r *Resend) Name() string { return "Resend" }

func (r *Resend) Send(ctx context.Context, title, message string) error {
	body := strings.ReplaceAll(html.EscapeString(message), "\n", "<br>")
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", Agent, r.From),
		To:      r.To,
		Subject: subjectPrefix + title,
		Html:    fmt.Sprintf("<h2>%s</h2><p>%s</p>", html.EscapeString(title), body),
		Text:    message,
	}
	if _, err := r.emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
