package smsprovider

import "context"

// SendRequest holds the data for one outbound SMS.
type SendRequest struct {
	InternalMessageID string // our message ID, for provider-side correlation
	Recipient         string
	Content           string
}

// SendResponse holds the outcome of a send attempt.
type SendResponse struct {
	Success           bool
	ProviderMessageID string // ID assigned by the provider on success
	StatusCode        int
	ErrorMessage      string
	ProviderName      string
}

// Provider is the interface an SMS gateway adapter implements. Retry and
// backoff belong to the provider side; callers dispatch exactly once and
// surface the result.
type Provider interface {
	Send(ctx context.Context, request SendRequest) (*SendResponse, error)
	GetName() string
}
