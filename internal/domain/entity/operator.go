package entity

import "time"

// Roles del back-office.
const (
	RoleAdmin       = "admin"
	RoleFacturacion = "facturacion"
	RoleSoporte     = "soporte"
)

// ValidRole indica si el rol pertenece al conjunto cerrado.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleFacturacion, RoleSoporte:
		return true
	}
	return false
}

// Operator usuario del back-office que opera la facturación.
type Operator struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Status       string // active | inactive
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
