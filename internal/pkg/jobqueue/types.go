package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypePaymentNotification JobType = "payment_notification"
	JobTypePaymentReconcile    JobType = "payment_reconcile"
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

// PaymentNotificationJobPayload tells the buyer that an order was fulfilled
type PaymentNotificationJobPayload struct {
	Environment   string `json:"environment"`
	TransactionID string `json:"transaction_id"`
	OrderID       string `json:"order_id"`
	ProductType   string `json:"product_type"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

// ToMap converts the payload to a map for storage
func (p PaymentNotificationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"environment":    p.Environment,
		"transaction_id": p.TransactionID,
		"order_id":       p.OrderID,
		"product_type":   p.ProductType,
		"customer_email": p.CustomerEmail,
		"customer_name":  p.CustomerName,
		"amount":         p.Amount,
		"currency":       p.Currency,
	}
}

// PaymentNotificationJobPayloadFromMap creates a payload from a map
func PaymentNotificationJobPayloadFromMap(data map[string]interface{}) (*PaymentNotificationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload PaymentNotificationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// PaymentReconcileJobPayload is one reconciliation window. Dates are YYYY-MM-DD.
type PaymentReconcileJobPayload struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	UseAlternate bool   `json:"use_alternate"`
}

func (p PaymentReconcileJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"start_date":    p.StartDate,
		"end_date":      p.EndDate,
		"use_alternate": p.UseAlternate,
	}
}

func PaymentReconcileJobPayloadFromMap(data map[string]interface{}) (*PaymentReconcileJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var payload PaymentReconcileJobPayload
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
