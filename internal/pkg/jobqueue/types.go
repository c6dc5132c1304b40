package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeWebhookRetrySweep JobType = "webhook_retry_sweep"
	JobTypeReconciliationRun JobType = "reconciliation_run"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// WebhookRetrySweepJobPayload contains the payload for webhook retry sweep jobs
type WebhookRetrySweepJobPayload struct {
	Limit int `json:"limit"` // max deliveries to process in one sweep; 0 = default batch size
}

// ToMap converts the payload to a map for storage
func (p WebhookRetrySweepJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"limit": p.Limit,
	}
}

// FromMap creates a payload from a map
func WebhookRetrySweepJobPayloadFromMap(data map[string]interface{}) (*WebhookRetrySweepJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload WebhookRetrySweepJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ReconciliationRunJobPayload contains the payload for reconciliation run jobs
type ReconciliationRunJobPayload struct {
	Type        string `json:"type"`       // manual, automatic or scheduled
	StartDate   string `json:"start_date"` // RFC 3339
	EndDate     string `json:"end_date"`   // RFC 3339
	Notes       string `json:"notes,omitempty"`
	InitiatedBy uint   `json:"initiated_by"`
}

// ToMap converts the payload to a map for storage
func (p ReconciliationRunJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":         p.Type,
		"start_date":   p.StartDate,
		"end_date":     p.EndDate,
		"notes":        p.Notes,
		"initiated_by": p.InitiatedBy,
	}
}

// FromMap creates a payload from a map
func ReconciliationRunJobPayloadFromMap(data map[string]interface{}) (*ReconciliationRunJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ReconciliationRunJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
