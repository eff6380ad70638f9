package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

// MailJob is one templated message addressed to one recipient.
type MailJob struct {
	Template  string         `json:"template"`
	Recipient string         `json:"recipient"`
	Subject   string         `json:"subject"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Mailer delivers mail jobs.
type Mailer interface {
	Send(ctx context.Context, job MailJob) error
}

// LogMailer records jobs in the log instead of sending them.
type LogMailer struct {
	logg *logger.Logger
}

// NewLogMailer builds a mailer that only logs.
func NewLogMailer(logg *logger.Logger) *LogMailer {
	return &LogMailer{logg: logg}
}

func (m *LogMailer) Send(ctx context.Context, job MailJob) error {
	if strings.TrimSpace(job.Recipient) == "" {
		return fmt.Errorf("mail job %s has no recipient", job.Template)
	}
	if m.logg != nil {
		logCtx := m.logg.WithFields(ctx, map[string]any{
			"template":  job.Template,
			"recipient": job.Recipient,
			"subject":   job.Subject,
		})
		m.logg.Info(logCtx, "mail job dispatched")
	}
	return nil
}
