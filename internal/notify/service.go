package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/inlane-funnel/internal/events"
	"github.com/wolfman30/inlane-funnel/internal/leads"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

const rowStyle = `style="padding: 8px; border-bottom: 1px solid #e5e7eb;"`

// Service emails operators about new leads and payment results.
// It implements events.Handler for the notify worker.
type Service struct {
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

func NewService(email EmailSender, recipients []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	var cleaned []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	return &Service{email: email, recipients: cleaned, logger: logger}
}

var _ events.Handler = (*Service)(nil)

// HandleLeadCreated sends the new-lead summary to every recipient.
func (s *Service) HandleLeadCreated(ctx context.Context, evt events.LeadCreatedV1) error {
	area := evt.Area
	if evt.Area == leads.AreaOther && evt.CustomArea != "" {
		area = fmt.Sprintf("%s (%s)", evt.Area, evt.CustomArea)
	}
	license := leads.LicenseFromPtr(evt.HasLicense)
	licenseText := map[leads.LicenseAnswer]string{
		leads.LicenseYes:     "Yes",
		leads.LicenseNo:      "No",
		leads.LicenseUnknown: "Not asked",
	}[license]

	rows := [][2]string{
		{"Name", evt.Name},
		{"Phone", evt.Phone},
		{"Email", evt.Email},
		{"Area", area},
		{"Driving license", licenseText},
		{"Submitted", evt.CreatedAt.Format("January 2, 2006 at 3:04 PM")},
	}
	subject := fmt.Sprintf("New lead - %s (%s)", evt.Name, area)
	return s.sendAll(ctx, subject, rows, "lead_id", evt.LeadID)
}

// HandlePaymentRecorded sends the verified payment result.
func (s *Service) HandlePaymentRecorded(ctx context.Context, evt events.PaymentRecordedV1) error {
	outcome := "Payment received"
	if evt.Status != "done" {
		outcome = "Payment failed"
	}
	rows := [][2]string{
		{"Transaction ID", evt.TransactionID},
		{"Status", evt.Status},
		{"Message", evt.Message},
		{"Verified", evt.OccurredAt.Format("January 2, 2006 at 3:04 PM")},
	}
	subject := fmt.Sprintf("%s - %s", outcome, evt.TransactionID)
	return s.sendAll(ctx, subject, rows, "transaction_id", evt.TransactionID)
}

func (s *Service) sendAll(ctx context.Context, subject string, rows [][2]string, idKey, idValue string) error {
	if s.email == nil || len(s.recipients) == 0 {
		s.logger.Debug("notify: email not configured, skipping", idKey, idValue)
		return nil
	}

	var text, table strings.Builder
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(&text, "%s: %s\n", row[0], row[1])
		fmt.Fprintf(&table, "<tr><td %s><strong>%s:</strong></td><td %s>%s</td></tr>\n",
			rowStyle, html.EscapeString(row[0]), rowStyle, html.EscapeString(row[1]))
	}
	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>%s</h2>
<table style="border-collapse: collapse; margin: 20px 0;">
%s</table>
</div>`, html.EscapeString(subject), table.String())

	var failed int
	for _, recipient := range s.recipients {
		msg := EmailMessage{To: recipient, Subject: subject, Body: text.String(), HTML: htmlBody}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: failed to send email", "error", err, "to", recipient, idKey, idValue)
			failed++
			continue
		}
		s.logger.Info("notify: email sent", "to", recipient, idKey, idValue)
	}
	// Redelivery would re-send to every recipient, so only retry when nobody
	// received the email.
	switch {
	case failed == len(s.recipients):
		return fmt.Errorf("notify: all %d email(s) failed", failed)
	case failed > 0:
		s.logger.Warn("notify: partial delivery, not retrying", "failed", failed, "total", len(s.recipients), idKey, idValue)
	}
	return nil
}
