package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

// RunReporter escribe la bitácora de ejecuciones y publica el evento de resultado.
// Ambas cosas son best-effort: una falla se registra en el log y nunca aborta la corrida.
type RunReporter struct {
	logs      repository.RunLogRepository
	publisher EventPublisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewRunReporter construye el reporter. logs y publisher pueden ser nil.
func NewRunReporter(logs repository.RunLogRepository, publisher EventPublisher, log zerolog.Logger, now func() time.Time) *RunReporter {
	if now == nil {
		now = time.Now
	}
	return &RunReporter{logs: logs, publisher: publisher, log: log, now: now}
}

// RoutingKey clave de ruteo del evento para un tipo de corrida.
func RoutingKey(runType entity.RunType) string {
	return "billing." + string(runType) + ".completed"
}

// Record persiste payload como JSON con la etiqueta runType y lo notifica.
func (r *RunReporter) Record(ctx context.Context, runType entity.RunType, payload any) {
	if r == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		r.log.Error().Err(err).Str("run_type", string(runType)).Msg("serializar bitácora de ejecución")
		return
	}
	if r.logs != nil {
		entry := &entity.RunLog{
			ID:        uuid.New().String(),
			Type:      runType,
			Payload:   body,
			CreatedAt: r.now(),
		}
		if err := r.logs.Create(ctx, entry); err != nil {
			r.log.Error().Err(err).Str("run_type", string(runType)).Msg("no se pudo guardar la bitácora de ejecución")
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, RoutingKey(runType), json.RawMessage(body)); err != nil {
			r.log.Warn().Err(err).Str("run_type", string(runType)).Msg("no se pudo notificar el resultado de la ejecución")
		}
	}
}
