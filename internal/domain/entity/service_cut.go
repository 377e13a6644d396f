package entity

import "time"

// ServiceCut corte de servicio por mora. ReconnectedAt nil = sigue cortado.
type ServiceCut struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	CutAt          time.Time
	ReconnectedAt  *time.Time
	Reason         string
}
