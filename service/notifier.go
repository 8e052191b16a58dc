package service

import (
	"context"

	"clinic-auth/pkg/logger"
)

// Notifier delivers a message to a phone number
type Notifier interface {
	Notify(ctx context.Context, phone, message string) error
}

// LogNotifier is the delivery used when no SMS gateway is configured. It delivers
// nothing: Notify logs the phone number and message length, never the message
// body, and returns nil unless ctx is already done.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a notifier that only logs delivery metadata
func NewLogNotifier(logger *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the delivery
func (n *LogNotifier) Notify(ctx context.Context, phone, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.logger.Infow("SMS notification queued",
		"phone_number", phone,
		"message_length", len(message))
	return nil
}
