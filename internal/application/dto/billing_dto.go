package dto

import "github.com/shopspring/decimal"

// RunBillingRequest body para POST /api/billing/runs.
// Sin customer_ids = corrida masiva; reference_date vacío = hoy.
type RunBillingRequest struct {
	ReferenceDate string   `json:"reference_date,omitempty"` // YYYY-MM-DD
	CustomerIDs   []string `json:"customer_ids,omitempty"`
	DryRun        bool     `json:"dry_run,omitempty"`
	Workers       int      `json:"workers,omitempty"`
}

// GenerateInvoiceRequest body para POST /api/billing/customers/:id/invoices.
type GenerateInvoiceRequest struct {
	ReferenceDate string `json:"reference_date,omitempty"`
}

// RecomputeInterestRequest body para POST /api/billing/interest/recompute.
type RecomputeInterestRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
	AsOf       string `json:"as_of,omitempty"`
}

// MaintenanceRequest body opcional de los endpoints de mantenimiento.
type MaintenanceRequest struct {
	AsOf string `json:"as_of,omitempty"`
}

// PeriodResponse ventana facturada.
type PeriodResponse struct {
	From              string `json:"from"`
	To                string `json:"to"`
	Label             string `json:"label"`
	DaysBilled        int    `json:"days_billed"`
	IsFirstInvoice    bool   `json:"is_first_invoice"`
	IsLevelingInvoice bool   `json:"is_leveling_invoice"`
}

// InvoiceResponse factura generada (o simulada) con sus líneas.
type InvoiceResponse struct {
	ID              string                `json:"id,omitempty"`
	Number          int64                 `json:"number,omitempty"`
	CustomerID      string                `json:"customer_id"`
	CustomerName    string                `json:"customer_name,omitempty"`
	Period          PeriodResponse        `json:"period"`
	IssueDate       string                `json:"issue_date"`
	DueDate         string                `json:"due_date"`
	Internet        decimal.Decimal       `json:"internet"`
	TV              decimal.Decimal       `json:"tv"`
	PreviousBalance decimal.Decimal       `json:"previous_balance"`
	Interest        decimal.Decimal       `json:"interest"`
	Reconnection    decimal.Decimal       `json:"reconnection"`
	Discount        decimal.Decimal       `json:"discount"`
	Misc            decimal.Decimal       `json:"misc"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	VAT             decimal.Decimal       `json:"vat"`
	Total           decimal.Decimal       `json:"total"`
	Status          string                `json:"status"`
	Lines           []InvoiceLineResponse `json:"lines"`
}

// InvoiceLineResponse concepto de la factura.
type InvoiceLineResponse struct {
	Type            string          `json:"type"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Value           decimal.Decimal `json:"value"`
	VATApplicable   bool            `json:"vat_applicable"`
	VATRate         decimal.Decimal `json:"vat_rate"`
	VATValue        decimal.Decimal `json:"vat_value"`
	PendingChargeID string          `json:"pending_charge_id,omitempty"`
}

// EligibilityResponse resultado de validar a un cliente.
type EligibilityResponse struct {
	CustomerID string `json:"customer_id"`
	Eligible   bool   `json:"eligible"`
	Code       string `json:"code"`
	Reason     string `json:"reason,omitempty"`
}

// InvoicePreviewResponse simulación de la factura sin persistir.
type InvoicePreviewResponse struct {
	Eligibility EligibilityResponse `json:"eligibility"`
	Invoice     *InvoiceResponse    `json:"invoice,omitempty"`
}

// PendingInterestResponse mora causada pendiente de cobro.
type PendingInterestResponse struct {
	CustomerID   string          `json:"customer_id"`
	Cutoff       string          `json:"cutoff"`
	Total        decimal.Decimal `json:"total"`
	InvoiceCount int             `json:"invoice_count"`
}
