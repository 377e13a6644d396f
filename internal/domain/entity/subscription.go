package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus estado del servicio contratado.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCut       SubscriptionStatus = "cut" // cortado por mora
)

// Valid indica si el estado pertenece al conjunto cerrado.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionSuspended, SubscriptionCut:
		return true
	}
	return false
}

// ServiceSubscription vincula un cliente con un plan.
type ServiceSubscription struct {
	ID                   string
	CustomerID           string
	PlanID               string
	Plan                 *Plan // cargado con JOIN; nil = plan no resoluble
	ActivationDate       time.Time
	Status               SubscriptionStatus
	RequiresInstallation bool
	CustomPrice          *decimal.Decimal // tarifa especial pactada con el cliente
}

// EffectivePrice devuelve la tarifa especial si existe, si no el precio del plan.
func (s *ServiceSubscription) EffectivePrice() decimal.Decimal {
	if s.CustomPrice != nil && s.CustomPrice.IsPositive() {
		return *s.CustomPrice
	}
	if s.Plan == nil {
		return decimal.Zero
	}
	return s.Plan.Price
}
