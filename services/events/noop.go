package events

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
)

// LogPublisher stands in when no broker is configured, events are only logged
type LogPublisher struct {
	logger logger.Logger
}

func NewLogPublisher(logger logger.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishFanoutEvent(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) error {
	p.logger.Debugf("Event %T for %s %s not published, no broker configured", message, entityType, entityId)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
