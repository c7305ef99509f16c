package mail

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogSender writes messages to the log instead of delivering them.
// Used in development when no SMTP relay is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) Result {
	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	id := uuid.NewString()
	s.log.Info("email captured",
		zap.String("message_id", id),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	s.log.Debug("email body", zap.String("message_id", id), zap.String("text", msg.Text))
	return Result{Success: true, MessageID: id}
}
