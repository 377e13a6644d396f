package repository

import (
	"context"
	"time"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// RunLogRepository bitácora de ejecuciones (solo inserción; el borrado es la retención).
type RunLogRepository interface {
	Create(ctx context.Context, log *entity.RunLog) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
