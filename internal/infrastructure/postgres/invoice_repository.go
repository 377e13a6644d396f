package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/isp-billing/internal/domain"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// invoiceColumns columnas de la cabecera (alias i) más lo abonado según la tabla de pagos.
const invoiceColumns = `i.id, i.number, i.customer_id, i.period_from, i.period_to, i.period_label,
	i.issue_date, i.due_date, i.internet, i.tv, i.previous_balance, i.interest, i.reconnection,
	i.discount, i.misc, i.subtotal, i.vat, i.total, i.accrued_interest, i.status, i.created_at, i.updated_at,
	COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.invoice_id = i.id), 0)`

func scanInvoices(rows pgx.Rows) ([]*entity.Invoice, error) {
	defer rows.Close()
	var out []*entity.Invoice
	for rows.Next() {
		var inv entity.Invoice
		if err := rows.Scan(
			&inv.ID, &inv.Number, &inv.CustomerID, &inv.PeriodFrom, &inv.PeriodTo, &inv.PeriodLabel,
			&inv.IssueDate, &inv.DueDate, &inv.Internet, &inv.TV, &inv.PreviousBalance, &inv.Interest, &inv.Reconnection,
			&inv.Discount, &inv.Misc, &inv.Subtotal, &inv.VAT, &inv.Total, &inv.AccruedInterest, &inv.Status,
			&inv.CreatedAt, &inv.UpdatedAt, &inv.Paid,
		); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, &inv)
	}
	return out, rows.Err()
}

// PeriodHistory cantidad de facturas no anuladas y el "hasta" más reciente.
func (r *InvoiceRepo) PeriodHistory(ctx context.Context, customerID string) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), MAX(period_to)
		FROM invoices
		WHERE customer_id = $1 AND status <> 'void'`
	var (
		count  int
		lastTo *time.Time
	)
	if err := r.q.QueryRow(ctx, query, customerID).Scan(&count, &lastTo); err != nil {
		return 0, time.Time{}, fmt.Errorf("invoice period history: %w", err)
	}
	if lastTo == nil {
		return count, time.Time{}, nil
	}
	return count, *lastTo, nil
}

// ExistsIssuedInMonth true si hay factura no anulada emitida en el mes de month.
func (r *InvoiceRepo) ExistsIssuedInMonth(ctx context.Context, customerID string, month time.Time) (bool, error) {
	y, m, _ := month.Date()
	from := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	query := `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE customer_id = $1 AND status <> 'void'
			  AND issue_date >= $2 AND issue_date < $3
		)`
	var exists bool
	if err := r.q.QueryRow(ctx, query, customerID, from, from.AddDate(0, 1, 0)).Scan(&exists); err != nil {
		return false, fmt.Errorf("invoice exists in month: %w", err)
	}
	return exists, nil
}

// ExistsForPeriod true si ya hay una factura vigente que arranca en periodFrom.
func (r *InvoiceRepo) ExistsForPeriod(ctx context.Context, customerID string, periodFrom time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE customer_id = $1 AND period_from = $2 AND status <> 'void'
		)`
	var exists bool
	if err := r.q.QueryRow(ctx, query, customerID, dateOnly(periodFrom)).Scan(&exists); err != nil {
		return false, fmt.Errorf("invoice exists for period: %w", err)
	}
	return exists, nil
}

// ListUnpaidByCustomer facturas pending/overdue del cliente, de la más antigua a la más reciente.
func (r *InvoiceRepo) ListUnpaidByCustomer(ctx context.Context, customerID string) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices i
		WHERE i.customer_id = $1 AND i.status IN ('pending', 'overdue')
		ORDER BY i.issue_date, i.number`
	rows, err := r.q.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list unpaid invoices: %w", err)
	}
	return scanInvoices(rows)
}

// ListInterestCandidates facturas impagas con vencimiento anterior a asOf. customerID vacío = todos.
func (r *InvoiceRepo) ListInterestCandidates(ctx context.Context, customerID string, asOf time.Time) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices i
		WHERE i.status IN ('pending', 'overdue') AND i.due_date < $1
		  AND ($2::text IS NULL OR i.customer_id = $2::uuid)
		ORDER BY i.customer_id, i.due_date`
	rows, err := r.q.Query(ctx, query, dateOnly(asOf), nullIfEmpty(customerID))
	if err != nil {
		return nil, fmt.Errorf("list interest candidates: %w", err)
	}
	return scanInvoices(rows)
}

// UpdateAccruedInterest sobrescribe la mora causada de la factura.
func (r *InvoiceRepo) UpdateAccruedInterest(ctx context.Context, invoiceID string, amount decimal.Decimal) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE invoices SET accrued_interest = $2, updated_at = NOW() WHERE id = $1`,
		invoiceID, amount)
	if err != nil {
		return fmt.Errorf("update accrued interest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SumPendingInterest mora causada por facturas impagas emitidas hasta cutoff.
func (r *InvoiceRepo) SumPendingInterest(ctx context.Context, customerID string, cutoff time.Time) (decimal.Decimal, int, error) {
	query := `
		SELECT COALESCE(SUM(accrued_interest), 0), COUNT(*)
		FROM invoices
		WHERE customer_id = $1 AND status IN ('pending', 'overdue')
		  AND accrued_interest > 0 AND issue_date <= $2`
	var (
		total decimal.Decimal
		count int
	)
	if err := r.q.QueryRow(ctx, query, customerID, dateOnly(cutoff)).Scan(&total, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("sum pending interest: %w", err)
	}
	return total, count, nil
}

// NextNumber siguiente consecutivo de la secuencia. Los números consumidos por
// transacciones revertidas no se reutilizan.
func (r *InvoiceRepo) NextNumber(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("next invoice number: %w", err)
	}
	return n, nil
}

// Create persiste la cabecera de la factura.
func (r *InvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoices (id, number, customer_id, period_from, period_to, period_label, issue_date, due_date,
			internet, tv, previous_balance, interest, reconnection, discount, misc, subtotal, vat, total,
			accrued_interest, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`
	_, err := r.q.Exec(ctx, query,
		invoice.ID, invoice.Number, invoice.CustomerID,
		dateOnly(invoice.PeriodFrom), dateOnly(invoice.PeriodTo), invoice.PeriodLabel,
		dateOnly(invoice.IssueDate), dateOnly(invoice.DueDate),
		invoice.Internet, invoice.TV, invoice.PreviousBalance, invoice.Interest, invoice.Reconnection,
		invoice.Discount, invoice.Misc, invoice.Subtotal, invoice.VAT, invoice.Total,
		invoice.AccruedInterest, invoice.Status, invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) && violatedConstraint(err) == uniqueInvoicePeriod {
			return fmt.Errorf("insert invoice: %w", domain.ErrDuplicatePeriod)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice number already exists: %w", errors.Join(domain.ErrConflict, err))
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// CreateLine persiste un concepto de la factura.
func (r *InvoiceRepo) CreateLine(ctx context.Context, line *entity.InvoiceLine) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoice_lines (id, invoice_id, position, type, description, quantity, unit_price, value,
			vat_applicable, vat_rate, vat_value, pending_charge_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		line.ID, line.InvoiceID, line.Position, line.Type, line.Description, line.Quantity, line.UnitPrice,
		line.Value, line.VATApplicable, line.VATRate, line.VATValue, nullIfEmpty(line.PendingChargeID),
	)
	if err != nil {
		return fmt.Errorf("insert invoice line: %w", err)
	}
	return nil
}

// GetLines conceptos de la factura en orden de impresión.
func (r *InvoiceRepo) GetLines(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	query := `
		SELECT id, invoice_id, position, type, description, quantity, unit_price, value,
		       vat_applicable, vat_rate, vat_value, pending_charge_id
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY position`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice lines: %w", err)
	}
	defer rows.Close()

	var out []*entity.InvoiceLine
	for rows.Next() {
		var (
			l        entity.InvoiceLine
			chargeID *string
		)
		if err := rows.Scan(
			&l.ID, &l.InvoiceID, &l.Position, &l.Type, &l.Description, &l.Quantity, &l.UnitPrice, &l.Value,
			&l.VATApplicable, &l.VATRate, &l.VATValue, &chargeID,
		); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		l.PendingChargeID = derefStr(chargeID)
		out = append(out, &l)
	}
	return out, rows.Err()
}

// PromoteOverdue pasa a overdue las pending vencidas antes de asOf.
func (r *InvoiceRepo) PromoteOverdue(ctx context.Context, asOf time.Time) (int64, []string, error) {
	query := `
		UPDATE invoices
		SET status = 'overdue', updated_at = NOW()
		WHERE status = 'pending' AND due_date < $1
		RETURNING customer_id`
	rows, err := r.q.Query(ctx, query, dateOnly(asOf))
	if err != nil {
		return 0, nil, fmt.Errorf("promote overdue invoices: %w", err)
	}
	defer rows.Close()

	var (
		n    int64
		ids  []string
		seen = map[string]bool{}
	)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, nil, fmt.Errorf("scan promoted invoice: %w", err)
		}
		n++
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("promote overdue invoices: %w", err)
	}
	return n, ids, nil
}

// ListMoraCustomers clientes con servicios activos cuyo peor atraso (con saldo) es ≥ minDays.
func (r *InvoiceRepo) ListMoraCustomers(ctx context.Context, minDays int, asOf time.Time) ([]repository.CustomerMora, error) {
	query := `
		SELECT i.customer_id::text, MAX($2::date - i.due_date) AS worst
		FROM invoices i
		WHERE i.status IN ('pending', 'overdue')
		  AND i.total > COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.invoice_id = i.id), 0)
		  AND EXISTS (
			SELECT 1 FROM service_subscriptions s
			WHERE s.customer_id = i.customer_id AND s.status = 'active'
		  )
		GROUP BY i.customer_id
		HAVING MAX($2::date - i.due_date) >= $1
		ORDER BY i.customer_id`
	rows, err := r.q.Query(ctx, query, minDays, dateOnly(asOf))
	if err != nil {
		return nil, fmt.Errorf("list mora customers: %w", err)
	}
	defer rows.Close()

	var out []repository.CustomerMora
	for rows.Next() {
		var cm repository.CustomerMora
		if err := rows.Scan(&cm.CustomerID, &cm.WorstDaysOverdue); err != nil {
			return nil, fmt.Errorf("scan mora customer: %w", err)
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}
