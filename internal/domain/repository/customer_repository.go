package repository

import (
	"context"
	"time"

	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// CustomerRepository define el puerto de persistencia para Customer (facturación).
// El CRM es dueño del registro; aquí solo se lee y se actualiza estado/mora.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
	// ListBillingCandidates clientes activos con al menos un servicio activo.
	// Si ids no está vacío, restringe a esos clientes sin filtrar por estado
	// (la elegibilidad decide).
	ListBillingCandidates(ctx context.Context, ids []string) ([]*entity.Customer, error)
	// UpdateStatus cambia el estado y agrega la nota a la bitácora de observaciones.
	UpdateStatus(ctx context.Context, id string, status entity.CustomerStatus, observation string) error
	// MarkInMora activa la bandera de mora; mora_since conserva la primera fecha.
	MarkInMora(ctx context.Context, ids []string, since time.Time) error
}
