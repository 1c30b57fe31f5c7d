package transport

import (
	"github.com/goccy/go-json"

	"github.com/fastygo/schoolerp/domain"
)

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Meta       interface{} `json:"meta,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(status int, message string, data interface{}, meta interface{}) Envelope {
	return Envelope{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
		Meta:       meta,
	}
}

// NewError returns an error envelope. The top-level message repeats the error message.
func NewError(status int, code, message string, fields []domain.FieldError) Envelope {
	return Envelope{
		Success:    false,
		StatusCode: status,
		Message:    message,
		Error:      &ErrorBody{Code: code, Message: message, Fields: fields},
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
