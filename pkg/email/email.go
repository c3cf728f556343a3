// Package email delivers transactional mail. Production uses SMTP; without
// SMTP credentials the log sender prints magic links to the process log so
// local flows stay usable.
package email

import "context"

// Message is one outbound mail with both plain-text and HTML bodies.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
