package entity

import "github.com/shopspring/decimal"

// ServiceType tipo de servicio del plan.
type ServiceType string

const (
	ServiceInternet ServiceType = "internet"
	ServiceTV       ServiceType = "tv"
	ServiceCombo    ServiceType = "combo"
)

// Valid indica si el tipo pertenece al conjunto cerrado.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceInternet, ServiceTV, ServiceCombo:
		return true
	}
	return false
}

// Plan tarifa comercial. Inmutable desde la facturación.
type Plan struct {
	ID               string
	Name             string
	Price            decimal.Decimal
	ServiceType      ServiceType
	PermanenceMonths int // cláusula de permanencia
	InstallationFee  decimal.Decimal
	VATApplicable    bool
	VATRate          decimal.Decimal // porcentaje (19 = 19%)
}
