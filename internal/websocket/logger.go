package websocket

import (
	"go.uber.org/zap"

	"storefront-chat/pkg/logger"
)

// socketLogger provides structured logging for realtime events.
type socketLogger struct {
	logger *zap.Logger
}

func newSocketLogger(l *logger.Logger) *socketLogger {
	if l == nil {
		l = logger.NewNop()
	}
	return &socketLogger{logger: l.Named("websocket").Logger}
}

func (l *socketLogger) fields(event string, c *Client, extra []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", c.Subject),
		zap.String("client_id", c.ID),
	}, extra...)
}

func (l *socketLogger) Info(event string, c *Client, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, c, fields)...)
}

func (l *socketLogger) Error(event string, c *Client, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, c, append(fields, zap.Error(err)))...)
}

func (l *socketLogger) Warn(event string, c *Client, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, c, fields)...)
}
