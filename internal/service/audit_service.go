package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/buyeth/identity-service/internal/config"
	"github.com/buyeth/identity-service/internal/events"
)

const webhookTimeout = 3 * time.Second

// AuditService writes an audit trail for directory and session events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.AuditConfig
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.AuditConfig) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		a.dispatcher.Subscribe(eventType, a.handle)
	}
}

func (a *AuditService) handle(ctx context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Time("timestamp", event.Timestamp),
		zap.Any("payload", event.Payload),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.Actor.UserID != "" {
		fields = append(fields, zap.String("actor_id", event.Actor.UserID))
	}

	if event.Type == events.EventLoginFailed {
		a.logger.Warn("audit", fields...)
	} else {
		a.logger.Info("audit", fields...)
	}
	return a.sendWebhook(ctx, event)
}

// sendWebhook posts the event as JSON to the configured audit endpoint. Any non-2xx
// answer is a delivery failure.
func (a *AuditService) sendWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(a.cfg.WebhookURL)
	if url == "" {
		return nil
	}

	timeout := webhookTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("audit webhook %s: %w", event.ID, context.DeadlineExceeded)
	}

	status, body, errs := fiber.Post(url).Timeout(timeout).JSON(event).Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("audit webhook %s: %w", event.ID, errors.Join(errs...))
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return fmt.Errorf("audit webhook %s: status %d: %s", event.ID, status, body)
	}
	a.logger.Debug("audit webhook delivered",
		zap.String("event_id", event.ID),
		zap.Int("status", status))
	return nil
}
