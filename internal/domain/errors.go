package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	ErrOperatorNotFound   = errors.New("operador no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")

	// Facturación automática. Los tres primeros son "esperados": el orquestador
	// los registra como cliente omitido, no como error.
	ErrNotEligible     = errors.New("cliente no elegible para facturación")
	ErrNoConcepts      = errors.New("no hay conceptos facturables para el periodo")
	ErrDuplicatePeriod = errors.New("ya existe una factura vigente para el periodo")
	ErrLockNotAcquired = errors.New("otro proceso está facturando al cliente")

	ErrDataIntegrity  = errors.New("datos inconsistentes")
	ErrInfrastructure = errors.New("falla de infraestructura")
)
