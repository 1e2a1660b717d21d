package providers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	svc "github.com/devsync/outreach-backend/internal/service/outreach"
)

// LogEmailProvider writes the message to the log instead of sending it. The
// default provider for development environments.
type LogEmailProvider struct {
	logger *zap.Logger
}

func NewLogEmailProvider(logger *zap.Logger) *LogEmailProvider {
	return &LogEmailProvider{logger: logger}
}

func (p *LogEmailProvider) Name() string { return "log" }

func (p *LogEmailProvider) Send(_ context.Context, msg svc.EmailMessage) (*svc.SendResult, error) {
	id := fmt.Sprintf("log-%s", uuid.New())
	p.logger.Info("email (log provider)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("message_id", id))
	return &svc.SendResult{
		MessageID: id,
		Response:  map[string]interface{}{"provider": "log"},
	}, nil
}

// LogCallProvider logs call placements instead of dialing.
type LogCallProvider struct {
	logger *zap.Logger
}

func NewLogCallProvider(logger *zap.Logger) *LogCallProvider {
	return &LogCallProvider{logger: logger}
}

func (p *LogCallProvider) Name() string { return "log" }

func (p *LogCallProvider) Place(_ context.Context, req svc.CallRequest) (*svc.CallResult, error) {
	id := fmt.Sprintf("log-call-%s", uuid.New())
	p.logger.Info("call (log provider)",
		zap.String("to", req.To),
		zap.String("call_id", id))
	return &svc.CallResult{
		CallID:   id,
		Response: map[string]interface{}{"provider": "log"},
	}, nil
}
