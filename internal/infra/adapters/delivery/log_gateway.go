package delivery

import (
	"context"

	"github.com/rs/zerolog"

	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/adapter"
	"dvsafe-service/internal/infra/logging"
)

var _ adapter.DeliveryGateway = (*LogGateway)(nil)

// LogGateway only records the alert. It stands in for a real channel in dev
// and in deployments that forward alerts from the log pipeline.
type LogGateway struct {
	dev bool
	log *zerolog.Logger
}

func NewLogGateway(dev bool, logger *zerolog.Logger) *LogGateway {
	return &LogGateway{dev: dev, log: logging.Component(logger, "log_gateway")}
}

func (g *LogGateway) Notify(ctx context.Context, c model.EmergencyContact, e model.PanicEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.log.Warn().
		Str("contact_id", c.ID).
		Str("phone", logging.Redact(c.Phone, g.dev)).
		Time("triggered_at", e.TriggeredAt).
		Msg("panic alert")
	return true, nil
}
