package outreach

import (
	"context"
)

// EmailMessage is the fully rendered email handed to a provider, footer
// included.
type EmailMessage struct {
	To       string
	Subject  string
	BodyHTML string
	BodyText string
}

// SendResult is the provider acknowledgment for an accepted email.
type SendResult struct {
	MessageID string
	Response  map[string]interface{}
}

// EmailProvider sends one email. Implementations return provider errors
// untouched; classification happens in the pipeline.
type EmailProvider interface {
	Name() string
	Send(ctx context.Context, msg EmailMessage) (*SendResult, error)
}

// CallRequest is a fully prepared outbound call.
type CallRequest struct {
	To                string
	Script            string
	StatusCallbackURL string
}

// CallResult is the provider acknowledgment for an initiated call. The
// terminal outcome arrives later through the status webhook.
type CallResult struct {
	CallID   string
	Response map[string]interface{}
}

// CallProvider places one outbound call.
type CallProvider interface {
	Name() string
	Place(ctx context.Context, req CallRequest) (*CallResult, error)
}
