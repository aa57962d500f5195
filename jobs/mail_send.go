package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/hazo-app/hazo-auth/internal/jobs"
)

// SendEmailJob delivers transactional email over SMTP.
type SendEmailJob struct {
	Addr    string
	From    string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics

	// send is swappable for tests.
	send func(addr, from string, to []string, msg []byte) error
}

// NewSendEmailJob initialises the email delivery handler.
func NewSendEmailJob(addr, from string, logger *slog.Logger, metrics *jobmetrics.Metrics) *SendEmailJob {
	return &SendEmailJob{
		Addr:    addr,
		From:    from,
		Logger:  logger,
		Metrics: metrics,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// Handle processes TaskTypeSendEmail tasks.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("send email: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskTypeSendEmail)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	msg := buildMessage(j.From, payload)
	if err := j.send(j.Addr, j.From, []string{payload.To}, msg); err != nil {
		resultErr = fmt.Errorf("send email to %s: %w", payload.To, err)
		if j.Logger != nil {
			j.Logger.Error("send email", slog.String("to", payload.To), slog.Any("error", err))
		}
		return resultErr
	}
	if j.Logger != nil {
		j.Logger.Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	}
	return nil
}

func buildMessage(from string, payload SendEmailPayload) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", payload.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", payload.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(payload.Body)
	return []byte(b.String())
}
