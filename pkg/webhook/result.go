package webhook

import "time"

// Result is the outcome of processing one event
type Result struct {
	Success     bool      `json:"success"`
	ContactID   string    `json:"contactId,omitempty"`
	Message     string    `json:"message"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Succeeded builds a successful result
func Succeeded(message, contactID string) Result {
	return Result{
		Success:     true,
		ContactID:   contactID,
		Message:     message,
		ProcessedAt: time.Now().UTC(),
	}
}

// Failed builds a failed result; a non-nil err is appended to the message
func Failed(message string, err error) Result {
	r := Result{
		Success:     false,
		Message:     message,
		ProcessedAt: time.Now().UTC(),
	}
	if err != nil {
		r.Message = message + ": " + err.Error()
		r.Error = err.Error()
	}
	return r
}
