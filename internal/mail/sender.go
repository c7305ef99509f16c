// Package mail renders and delivers transactional email.
package mail

import "context"

// Message is a rendered email ready for delivery.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
	ReplyTo string
}

// Result reports the outcome of a delivery attempt.
type Result struct {
	Success   bool
	MessageID string
	Error     string
}

// Sender delivers messages. Delivery failures are reported in Result.
type Sender interface {
	Send(ctx context.Context, msg Message) Result
}

func failed(err error) Result {
	return Result{Success: false, Error: err.Error()}
}
