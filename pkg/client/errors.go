package client

import (
	"encoding/json"

	"github.com/Sternrassler/go621/pkg/apierror"
)

// errorBody is the JSON shape e621 uses for failed requests.
type errorBody struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// newServerError builds the error for a non-2xx response. The reason is taken
// from the body when it is a JSON error object.
func newServerError(status int, body []byte, target string) *apierror.ServerError {
	var payload errorBody
	reason := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		reason = payload.Reason
		if reason == "" {
			reason = payload.Message
		}
	}

	return &apierror.ServerError{
		Status:      status,
		RateLimited: apierror.IsRateLimited(status),
		Reason:      reason,
		URL:         target,
	}
}
