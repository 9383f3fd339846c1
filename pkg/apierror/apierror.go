package apierror

import "fmt"

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the error kind so callers can match it with errors.Is.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func Wrap(kind error, code string, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: status, Err: kind}
}
