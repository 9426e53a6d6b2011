package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/edu-platform/credential-service/internal/events"
	"github.com/edu-platform/credential-service/internal/observability"
)

// AuditService records credential events in the server log and metrics.
// Failure reasons only ever reach this log, never the caller.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventAccountRegistered, a.handleAccountRegistered)
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLoginSucceeded)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
}

func (a *AuditService) handleAccountRegistered(_ context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("event_id", event.ID), zap.String("account_id", event.AccountID)}
	if p, ok := event.Payload.(events.AccountRegisteredPayload); ok {
		fields = append(fields, zap.String("username", p.Username), zap.String("role", string(p.Role)))
	}
	a.logger.Info("AccountRegistered", fields...)
	a.metrics.RecordAuthEvent(string(event.Type), "")
	return nil
}

func (a *AuditService) handleLoginSucceeded(_ context.Context, event events.Event) error {
	a.logger.Info("LoginSucceeded", zap.String("event_id", event.ID), zap.String("account_id", event.AccountID))
	a.metrics.RecordAuthEvent(string(event.Type), "")
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	reason := "unknown"
	fields := []zap.Field{zap.String("event_id", event.ID)}
	if event.AccountID != "" {
		fields = append(fields, zap.String("account_id", event.AccountID))
	}
	if p, ok := event.Payload.(events.LoginFailedPayload); ok {
		reason = p.Reason
	}
	fields = append(fields, zap.String("reason", reason))
	a.logger.Warn("LoginFailed", fields...)
	a.metrics.RecordAuthEvent(string(event.Type), reason)
	return nil
}
