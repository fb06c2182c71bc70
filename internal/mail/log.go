package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes the message text to the log instead of delivering it.
// Only for development: the text contains the raw verification link.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) Name() string { return "log" }

func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.logger.Warn("mail not delivered, logging for manual delivery",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
