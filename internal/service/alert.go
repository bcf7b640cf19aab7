package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
)

// mailSender is the part of the SendGrid client the alerter uses.
type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type sendGridAlertService struct {
	client   mailSender
	from     *mail.Email
	to       *mail.Email
	maxLines int
}

// NewSendGridAlertService emails operators when a sync does not fully succeed.
func NewSendGridAlertService(apiKey, from, to string) AlertService {
	return newAlertService(sendgrid.NewSendClient(apiKey), from, to)
}

func newAlertService(client mailSender, from, to string) *sendGridAlertService {
	return &sendGridAlertService{
		client:   client,
		from:     mail.NewEmail("Pricing Sync", from),
		to:       mail.NewEmail("Pricing Operators", to),
		maxLines: 50,
	}
}

func (s *sendGridAlertService) SendSyncAlert(ctx context.Context, result *domain.SyncResult, errs []string) error {
	subject := fmt.Sprintf("Catalog sync %s (run %s)", result.State, result.RunID)
	plain, htmlContent := s.render(result, errs)

	message := mail.NewSingleEmail(s.from, subject, s.to, plain, htmlContent)

	logger.ExternalServiceCall("SendGrid", "Send", "subject", subject)
	response, err := s.client.Send(message)
	if err != nil {
		logger.ExternalServiceResult("SendGrid", "Send", err)
		return fmt.Errorf("failed to send sync alert: %w", err)
	}
	if response.StatusCode >= 400 {
		err := fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("SendGrid", "Send", err)
		return err
	}
	logger.ExternalServiceResult("SendGrid", "Send", nil, "status", response.StatusCode)
	return nil
}

func (s *sendGridAlertService) render(result *domain.SyncResult, errs []string) (string, string) {
	collections := make([]string, 0, len(result.PerCollection))
	for c := range result.PerCollection {
		collections = append(collections, string(c))
	}
	sort.Strings(collections)

	var plain, body strings.Builder
	fmt.Fprintf(&plain, "Sync run %s finished with state %s.\n", result.RunID, result.State)
	fmt.Fprintf(&plain, "Started %s, finished %s. Cache written: %t.\n\n",
		result.StartedAt.Format("2006-01-02 15:04:05Z07:00"), result.FinishedAt.Format("2006-01-02 15:04:05Z07:00"), result.CacheWritten)
	fmt.Fprintf(&body, "<html><body><h2>Catalog sync %s</h2><p>Run <code>%s</code></p><table>",
		html.EscapeString(string(result.State)), html.EscapeString(result.RunID))

	for _, name := range collections {
		cr := result.PerCollection[domain.Collection(name)]
		status := "ok"
		if !cr.Success {
			status = "FAILED: " + cr.Error
		}
		fmt.Fprintf(&plain, "  %-12s upserted=%d deleted=%d quarantined=%d %s\n", name, cr.Upserted, cr.Deleted, cr.Quarantined, status)
		fmt.Fprintf(&body, "<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%s</td></tr>",
			html.EscapeString(name), cr.Upserted, cr.Deleted, cr.Quarantined, html.EscapeString(status))
	}
	body.WriteString("</table>")

	if len(errs) > 0 {
		plain.WriteString("\nErrors:\n")
		body.WriteString("<h3>Errors</h3><ul>")
		for i, e := range errs {
			if i == s.maxLines {
				fmt.Fprintf(&plain, "  ... and %d more\n", len(errs)-i)
				fmt.Fprintf(&body, "<li>... and %d more</li>", len(errs)-i)
				break
			}
			fmt.Fprintf(&plain, "  - %s\n", e)
			fmt.Fprintf(&body, "<li>%s</li>", html.EscapeString(e))
		}
		body.WriteString("</ul>")
	}
	body.WriteString("</body></html>")
	return plain.String(), body.String()
}
