package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

var _ repository.RunLogRepository = (*RunLogRepo)(nil)

// RunLogRepo bitácora de ejecuciones en run_logs (payload jsonb).
type RunLogRepo struct {
	q Querier
}

// NewRunLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewRunLogRepository(q Querier) *RunLogRepo {
	return &RunLogRepo{q: q}
}

func (r *RunLogRepo) Create(ctx context.Context, log *entity.RunLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	query := `INSERT INTO run_logs (id, type, payload, created_at) VALUES ($1, $2, $3::jsonb, $4)`
	if _, err := r.q.Exec(ctx, query, log.ID, log.Type, string(log.Payload), log.CreatedAt); err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	return nil
}

// DeleteOlderThan borra los registros anteriores a before. Devuelve cuántos.
func (r *RunLogRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM run_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge run logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
