package entity

import (
	"fmt"
	"strings"
	"time"
)

// CustomerStatus estado comercial del cliente. El CRM es dueño del registro;
// la facturación solo lee el estado y lo cambia a suspended por mora.
type CustomerStatus string

const (
	CustomerActive    CustomerStatus = "active"
	CustomerSuspended CustomerStatus = "suspended"
	CustomerWithdrawn CustomerStatus = "withdrawn" // retirado
)

// Valid indica si el estado pertenece al conjunto cerrado.
func (s CustomerStatus) Valid() bool {
	switch s {
	case CustomerActive, CustomerSuspended, CustomerWithdrawn:
		return true
	}
	return false
}

// Customer representa un suscriptor del ISP.
type Customer struct {
	ID             string
	Name           string
	TaxID          string // NIT o Cédula (Colombia)
	ActivationDate time.Time
	Status         CustomerStatus
	InMora         bool
	MoraSince      *time.Time
	Observations   string // bitácora de texto, solo se agregan líneas
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ObservationEntry formatea una línea de bitácora con marca de tiempo.
func ObservationEntry(at time.Time, note string) string {
	return fmt.Sprintf("[%s] %s", at.Format("2006-01-02 15:04"), strings.TrimSpace(note))
}

// AppendObservation agrega una nota a la bitácora sin tocar las anteriores.
func (c *Customer) AppendObservation(at time.Time, note string) {
	entry := ObservationEntry(at, note)
	if c.Observations == "" {
		c.Observations = entry
		return
	}
	c.Observations = c.Observations + "\n" + entry
}
