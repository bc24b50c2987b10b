package escalation

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// fromName and fromAddress are the sender identity for every escalation
// email, matching mozalert/escalations/email.py's hardcoded from_email.
const (
	fromName    = "Checkoperator"
	fromAddress = "checkoperator@afrank.local"
)

// EmailEscalator sends an HTML summary of a check's status via SendGrid,
// grounded on mozalert/escalations/email.py. It reads its API key from the
// process environment rather than from check arguments, reading
// SENDGRID_API_KEY directly.
//
// sendgrid-go is adopted directly since mozalert/escalations/email.py uses
// SendGrid explicitly and no other pack library talks to it.
type EmailEscalator struct {
	APIKey string
}

// NewEmailEscalator reads SENDGRID_API_KEY from the environment.
func NewEmailEscalator() Escalator {
	return &EmailEscalator{APIKey: os.Getenv("SENDGRID_API_KEY")}
}

func (e *EmailEscalator) Escalate(ctx context.Context, req Request, args map[string]string) error {
	to := args["email"]
	if to == "" {
		return fmt.Errorf("email escalation missing required arg %q", "email")
	}

	subject := fmt.Sprintf("Checkoperator %s: %s", req.Status.Status, req.Config.Name)
	if req.Recovery {
		subject = fmt.Sprintf("Checkoperator RECOVERED: %s", req.Config.Name)
	}

	body := e.renderBody(req)

	from := mail.NewEmail(fromName, fromAddress)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, body, body)

	client := sendgrid.NewSendClient(e.APIKey)
	_, err := client.Send(message)
	return err
}

func (e *EmailEscalator) renderBody(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p><b>Name:</b> %s<br>\n", req.Config.Name)
	fmt.Fprintf(&b, "<b>Status:</b> %s<br>\n", req.Status.Status)

	if req.Status.Attempt > 0 && req.Config.MaxAttempts > 0 {
		fmt.Fprintf(&b, "<b>Attempt:</b> %d/%d<br>\n", req.Status.Attempt, req.Config.MaxAttempts)
	} else if req.Status.Attempt > 0 {
		fmt.Fprintf(&b, "<b>Attempt:</b> %d<br>\n", req.Status.Attempt)
	}

	if !req.Status.LastCheck.IsZero() {
		fmt.Fprintf(&b, "<b>Last Check:</b> %s<br>\n", req.Status.LastCheck.UTC().Format("2006-01-02 15:04:05"))
	}
	if req.Status.Logs != "" {
		fmt.Fprintf(&b, "<b>More Details:</b><br> <pre>%s</pre><br>\n", req.Status.Logs)
	}
	if req.Config.SourceRef != "" {
		fmt.Fprintf(&b, "<b>Source Code for Check:</b><br> <pre>%s</pre><br>\n", req.Config.SourceRef)
	}
	b.WriteString("</p>")
	return b.String()
}
