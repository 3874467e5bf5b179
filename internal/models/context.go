package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TaskContext describes why a task exists. Each known TaskType has its own
// variant; unknown types use RawContext.
type TaskContext interface {
	// TaskType returns the type this context belongs to.
	TaskType() TaskType
	// Validate checks required fields.
	Validate() error
}

// PreFlightFailureContext is raised when pre-flight checks block a visit.
type PreFlightFailureContext struct {
	BlockerCodes []string   `json:"blockerCodes"`
	CheckedAt    *time.Time `json:"checkedAt,omitempty"`
	Details      string     `json:"details,omitempty"`
}

func (PreFlightFailureContext) TaskType() TaskType { return TaskTypePreFlightFailure }

func (c PreFlightFailureContext) Validate() error {
	if len(c.BlockerCodes) == 0 {
		return NewValidationError("context.blockerCodes", "at least one blocker code is required")
	}
	return nil
}

// PaymentFailedContext is raised when a payment for a service order fails.
type PaymentFailedContext struct {
	PaymentID   string  `json:"paymentId"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	FailureCode string  `json:"failureCode,omitempty"`
	Attempts    int     `json:"attempts,omitempty"`
}

func (PaymentFailedContext) TaskType() TaskType { return TaskTypePaymentFailed }

func (c PaymentFailedContext) Validate() error {
	if c.PaymentID == "" {
		return NewValidationError("context.paymentId", "payment id is required")
	}
	if c.Currency == "" {
		return NewValidationError("context.currency", "currency is required")
	}
	if c.Amount < 0 {
		return NewValidationError("context.amount", "amount must not be negative")
	}
	return nil
}

// WCFIssueContext is raised when a customer disputes a work completion form.
type WCFIssueContext struct {
	WCFID           string `json:"wcfId"`
	DisputeReason   string `json:"disputeReason"`
	CustomerComment string `json:"customerComment,omitempty"`
}

func (WCFIssueContext) TaskType() TaskType { return TaskTypeWCFIssue }

func (c WCFIssueContext) Validate() error {
	if c.WCFID == "" {
		return NewValidationError("context.wcfId", "wcf id is required")
	}
	if c.DisputeReason == "" {
		return NewValidationError("context.disputeReason", "dispute reason is required")
	}
	return nil
}

// RawContext carries the payload of a task type without a dedicated schema.
type RawContext struct {
	Type TaskType
	Data json.RawMessage
}

func (c RawContext) TaskType() TaskType { return c.Type }

func (c RawContext) Validate() error {
	if len(c.Data) == 0 {
		return nil
	}
	if !json.Valid(c.Data) {
		return NewValidationError("context", "payload is not valid JSON")
	}
	return nil
}

// MarshalJSON emits the raw payload unchanged.
func (c RawContext) MarshalJSON() ([]byte, error) {
	if len(c.Data) == 0 {
		return []byte("{}"), nil
	}
	return c.Data, nil
}

// DecodeContext decodes a JSON payload into the variant for taskType.
// Unknown fields are rejected for known types. An empty payload yields the
// zero variant, which Validate will reject for known types.
func DecodeContext(taskType TaskType, data []byte) (TaskContext, error) {
	data = bytes.TrimSpace(data)
	empty := len(data) == 0 || string(data) == "null"

	decode := func(v any) error {
		if empty {
			return nil
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return NewValidationError("context", fmt.Sprintf("malformed %s context: %v", taskType, err))
		}
		return nil
	}

	switch taskType {
	case TaskTypePreFlightFailure:
		var c PreFlightFailureContext
		if err := decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case TaskTypePaymentFailed:
		var c PaymentFailedContext
		if err := decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case TaskTypeWCFIssue:
		var c WCFIssueContext
		if err := decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	}

	raw := RawContext{Type: taskType}
	if !empty {
		raw.Data = append(json.RawMessage(nil), data...)
	}
	return raw, nil
}

// EncodeContext serialises a context for persistence.
func EncodeContext(c TaskContext) ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}
