// Package notify loads per-platform notification settings, renders the
// configured templates against a run result and fans the messages out.
//
// Files are split by concern: loader.go and platform.go resolve
// configuration, context.go and render.go turn a run into text, chat.go,
// system.go, telegram.go and email.go hold the senders, and dispatcher.go
// ties them together.
package notify

import "context"

// Sender delivers one rendered notification. An empty title means "no
// title". vars is the render context and may be nil.
type Sender interface {
	Send(ctx context.Context, title, content string, vars Context) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, title, content string, vars Context) error

func (f SenderFunc) Send(ctx context.Context, title, content string, vars Context) error {
	return f(ctx, title, content, vars)
}
