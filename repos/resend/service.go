package resend

import (
	"context"
	"fmt"
	"html"
	"strings"

	resend "github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

type sender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Service mails operators about store divergence. A Service without an API
// key or recipients does nothing.
type Service struct {
	emails sender
	from   string
	to     []string
}

// NewService creates a new alert mailer.
func NewService(apiKey, from string, to []string) *Service {
	s := &Service{from: from, to: to}
	if apiKey != "" {
		s.emails = resend.NewClient(apiKey).Emails
	}
	if s.from == "" {
		s.from = "onboarding@resend.dev"
	}
	return s
}

func (s *Service) Enabled() bool {
	return s != nil && s.emails != nil && len(s.to) > 0
}

func (s *Service) send(ctx context.Context, subject, body string) error {
	if !s.Enabled() {
		return nil
	}
	_, err := s.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      s.to,
		Subject: subject,
		Html:    body,
	})
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to send alert mail")
		return xerrors.Errorf("send alert: %w", err)
	}
	return nil
}

// SendPartialWrite reports a submission that one of the stores rejected.
func (s *Service) SendPartialWrite(ctx context.Context, p PartialWrite) error {
	subject := fmt.Sprintf("Partial result write in %s", p.Division)
	return s.send(ctx, subject, partialWriteBody(p))
}

// SendDivergence reports the matches a reconciliation run found out of sync.
// Reports without divergences are not sent.
func (s *Service) SendDivergence(ctx context.Context, r DivergenceReport) error {
	if len(r.Divergences) == 0 {
		return nil
	}
	subject := fmt.Sprintf("%d result(s) differ between stores", len(r.Divergences))
	return s.send(ctx, subject, divergenceBody(r))
}

func partialWriteBody(p PartialWrite) string {
	var b strings.Builder
	b.WriteString("<h2>Result saved to one store only</h2><ul>")
	item(&b, "Division", p.Division)
	item(&b, "Match", p.Match)
	item(&b, "Row", fmt.Sprint(p.RowIndex))
	item(&b, "Realtime key", p.FirebaseIndex)
	item(&b, "Submission", p.Submission)
	if p.FirebaseError != "" {
		item(&b, "Realtime error", p.FirebaseError)
	}
	if p.SheetsError != "" {
		item(&b, "Spreadsheet error", p.SheetsError)
	}
	b.WriteString("</ul>")
	return b.String()
}

func divergenceBody(r DivergenceReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Reconciliation checked %d matches, repaired %d</h2><ul>", r.Checked, r.Repaired)
	for _, d := range r.Divergences {
		fmt.Fprintf(&b, "<li>%s, match %s (row %d): %s</li>",
			html.EscapeString(d.Division), html.EscapeString(d.Match), d.RowIndex, html.EscapeString(d.Detail))
	}
	b.WriteString("</ul>")
	return b.String()
}

func item(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "<li><b>%s:</b> %s</li>", label, html.EscapeString(value))
}
