package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeScopeIntegrity is the task type for the scope tree integrity scan.
	TaskTypeScopeIntegrity = "scopes:integrity"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// ScopeIntegrityPayload configures a scope integrity scan run.
type ScopeIntegrityPayload struct {
	// Limit caps how many offending rows are reported per category.
	Limit int `json:"limit"`
}

// NewScopeIntegrityTask constructs an Asynq task.
func NewScopeIntegrityTask(payload ScopeIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeScopeIntegrity, data), nil
}
