package billing_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	appbilling "github.com/jhoicas/isp-billing/internal/application/billing"
	"github.com/jhoicas/isp-billing/internal/domain"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// memStore: base de datos en memoria para los puertos de repositorio.
// ──────────────────────────────────────────────────────────────────────────────

type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	customers map[string]*entity.Customer
	subs      []*entity.ServiceSubscription
	invoices  []*entity.Invoice
	lines     []*entity.InvoiceLine
	charges   []*entity.PendingCharge
	cuts      []*entity.ServiceCut
	runLogs   []*entity.RunLog
	seq       int64

	// Inyección de fallas por cliente
	failCreateFor map[string]bool
	failLineFor   map[string]bool
	panicFor      map[string]bool
	failList      error
}

func newMemStore() *memStore {
	return &memStore{
		customers:     map[string]*entity.Customer{},
		failCreateFor: map[string]bool{},
		failLineFor:   map[string]bool{},
		panicFor:      map[string]bool{},
	}
}

func (s *memStore) repos() appbilling.Repositories {
	return appbilling.Repositories{
		Customers:     &memCustomers{s},
		Subscriptions: &memSubscriptions{s},
		Invoices:      &memInvoices{s},
		Charges:       &memCharges{s},
		Cuts:          &memCuts{s},
		RunLogs:       &memRunLogs{s},
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dayBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).Before(time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC))
}

// ── Customers ─────────────────────────────────────────────────────────────────

type memCustomers struct{ s *memStore }

var _ repository.CustomerRepository = (*memCustomers)(nil)

func (r *memCustomers) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCustomers) ListBillingCandidates(_ context.Context, ids []string) ([]*entity.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failList != nil {
		return nil, r.s.failList
	}
	var out []*entity.Customer
	if len(ids) > 0 {
		for _, id := range ids {
			if c, ok := r.s.customers[id]; ok {
				cp := *c
				out = append(out, &cp)
			}
		}
		return out, nil
	}
	for _, c := range r.s.customers {
		if c.Status != entity.CustomerActive || !r.s.hasActiveSub(c.ID) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCustomers) UpdateStatus(_ context.Context, id string, status entity.CustomerStatus, observation string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	if c.Observations == "" {
		c.Observations = observation
	} else {
		c.Observations += "\n" + observation
	}
	return nil
}

func (r *memCustomers) MarkInMora(_ context.Context, ids []string, since time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		if c, ok := r.s.customers[id]; ok {
			c.InMora = true
			if c.MoraSince == nil {
				t := since
				c.MoraSince = &t
			}
		}
	}
	return nil
}

// ── Subscriptions ─────────────────────────────────────────────────────────────

type memSubscriptions struct{ s *memStore }

var _ repository.SubscriptionRepository = (*memSubscriptions)(nil)

func (s *memStore) hasActiveSub(customerID string) bool {
	for _, sub := range s.subs {
		if sub.CustomerID == customerID && sub.Status == entity.SubscriptionActive {
			return true
		}
	}
	return false
}

func (r *memSubscriptions) ListActiveByCustomer(_ context.Context, customerID string) ([]*entity.ServiceSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.panicFor[customerID] {
		panic("fallo inesperado leyendo servicios")
	}
	var out []*entity.ServiceSubscription
	for _, sub := range r.s.subs {
		if sub.CustomerID == customerID && sub.Status == entity.SubscriptionActive {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSubscriptions) CutActiveByCustomer(_ context.Context, customerID string) ([]*entity.ServiceSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ServiceSubscription
	for _, sub := range r.s.subs {
		if sub.CustomerID == customerID && sub.Status == entity.SubscriptionActive {
			sub.Status = entity.SubscriptionCut
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ── Invoices ──────────────────────────────────────────────────────────────────

type memInvoices struct{ s *memStore }

var _ repository.InvoiceRepository = (*memInvoices)(nil)

func (r *memInvoices) PeriodHistory(_ context.Context, customerID string) (int, time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int
	var last time.Time
	for _, inv := range r.s.invoices {
		if inv.CustomerID != customerID || inv.Status == entity.InvoiceVoid {
			continue
		}
		count++
		if inv.PeriodTo.After(last) {
			last = inv.PeriodTo
		}
	}
	return count, last, nil
}

func (r *memInvoices) ExistsIssuedInMonth(_ context.Context, customerID string, month time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invoices {
		if inv.CustomerID == customerID && inv.Status != entity.InvoiceVoid &&
			inv.IssueDate.Year() == month.Year() && inv.IssueDate.Month() == month.Month() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memInvoices) ExistsForPeriod(_ context.Context, customerID string, periodFrom time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.existsForPeriod(customerID, periodFrom), nil
}

func (s *memStore) existsForPeriod(customerID string, periodFrom time.Time) bool {
	for _, inv := range s.invoices {
		if inv.CustomerID == customerID && inv.Status != entity.InvoiceVoid && sameDay(inv.PeriodFrom, periodFrom) {
			return true
		}
	}
	return false
}

func (r *memInvoices) ListUnpaidByCustomer(_ context.Context, customerID string) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.s.invoices {
		if inv.CustomerID == customerID && inv.Status.IsUnpaid() {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memInvoices) ListInterestCandidates(_ context.Context, customerID string, asOf time.Time) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.s.invoices {
		if customerID != "" && inv.CustomerID != customerID {
			continue
		}
		if inv.Status.IsUnpaid() && dayBefore(inv.DueDate, asOf) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memInvoices) UpdateAccruedInterest(_ context.Context, invoiceID string, amount decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invoices {
		if inv.ID == invoiceID {
			inv.AccruedInterest = amount
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *memInvoices) SumPendingInterest(_ context.Context, customerID string, cutoff time.Time) (decimal.Decimal, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	count := 0
	for _, inv := range r.s.invoices {
		if inv.CustomerID != customerID || !inv.Status.IsUnpaid() || dayBefore(cutoff, inv.IssueDate) {
			continue
		}
		if inv.AccruedInterest.IsPositive() {
			total = total.Add(inv.AccruedInterest)
			count++
		}
	}
	return total, count, nil
}

func (r *memInvoices) NextNumber(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	return r.s.seq, nil
}

func (r *memInvoices) Create(_ context.Context, invoice *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCreateFor[invoice.CustomerID] {
		return errors.New("insert invoice: conexión reiniciada")
	}
	if r.s.existsForPeriod(invoice.CustomerID, invoice.PeriodFrom) {
		return domain.ErrDuplicatePeriod
	}
	cp := *invoice
	r.s.invoices = append(r.s.invoices, &cp)
	return nil
}

func (r *memInvoices) CreateLine(_ context.Context, line *entity.InvoiceLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invoices {
		if inv.ID == line.InvoiceID && r.s.failLineFor[inv.CustomerID] {
			return errors.New("insert invoice line: violación de llave foránea")
		}
	}
	cp := *line
	r.s.lines = append(r.s.lines, &cp)
	return nil
}

func (r *memInvoices) GetLines(_ context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.InvoiceLine
	for _, l := range r.s.lines {
		if l.InvoiceID == invoiceID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memInvoices) PromoteOverdue(_ context.Context, asOf time.Time) (int64, []string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	seen := map[string]bool{}
	var ids []string
	for _, inv := range r.s.invoices {
		if inv.Status == entity.InvoicePending && dayBefore(inv.DueDate, asOf) {
			inv.Status = entity.InvoiceOverdue
			n++
			if !seen[inv.CustomerID] {
				seen[inv.CustomerID] = true
				ids = append(ids, inv.CustomerID)
			}
		}
	}
	return n, ids, nil
}

func (r *memInvoices) ListMoraCustomers(_ context.Context, minDays int, asOf time.Time) ([]repository.CustomerMora, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	worst := map[string]int{}
	for _, inv := range r.s.invoices {
		if !inv.Status.IsUnpaid() || !inv.Outstanding().IsPositive() {
			continue
		}
		if d := inv.DaysOverdue(asOf); d > worst[inv.CustomerID] {
			worst[inv.CustomerID] = d
		}
	}
	var out []repository.CustomerMora
	for id, d := range worst {
		if d >= minDays && r.s.hasActiveSub(id) {
			out = append(out, repository.CustomerMora{CustomerID: id, WorstDaysOverdue: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

// ── Pending charges ───────────────────────────────────────────────────────────

type memCharges struct{ s *memStore }

var _ repository.PendingChargeRepository = (*memCharges)(nil)

func (r *memCharges) ListUnbilledByCustomer(_ context.Context, customerID string, upTo time.Time) ([]*entity.PendingCharge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.PendingCharge
	for _, ch := range r.s.charges {
		if ch.CustomerID == customerID && !ch.Billed && !dayBefore(upTo, ch.EffectiveDate) {
			cp := *ch
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memCharges) MarkBilled(_ context.Context, ids []string, invoiceID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		found := false
		for _, ch := range r.s.charges {
			if ch.ID == id && !ch.Billed {
				ch.Billed = true
				ch.BilledInvoiceID = invoiceID
				found = true
			}
		}
		if !found {
			return domain.ErrConflict
		}
	}
	return nil
}

// ── Service cuts ──────────────────────────────────────────────────────────────

type memCuts struct{ s *memStore }

var _ repository.ServiceCutRepository = (*memCuts)(nil)

func (r *memCuts) FindUnreconnectedBetween(_ context.Context, customerID string, from, to time.Time) (*entity.ServiceCut, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *entity.ServiceCut
	for _, c := range r.s.cuts {
		if c.CustomerID == customerID && c.ReconnectedAt == nil && !c.CutAt.Before(from) && c.CutAt.Before(to) {
			if found == nil || c.CutAt.After(found.CutAt) {
				cp := *c
				found = &cp
			}
		}
	}
	return found, nil
}

func (r *memCuts) Create(_ context.Context, cut *entity.ServiceCut) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *cut
	r.s.cuts = append(r.s.cuts, &cp)
	return nil
}

// ── Run logs ──────────────────────────────────────────────────────────────────

type memRunLogs struct{ s *memStore }

var _ repository.RunLogRepository = (*memRunLogs)(nil)

func (r *memRunLogs) Create(_ context.Context, log *entity.RunLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.runLogs = append(r.s.runLogs, log)
	return nil
}

func (r *memRunLogs) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.runLogs[:0]
	var n int64
	for _, l := range r.s.runLogs {
		if l.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.s.runLogs = kept
	return n, nil
}

func (s *memStore) runLogsOf(t entity.RunType) []*entity.RunLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.RunLog
	for _, l := range s.runLogs {
		if l.Type == t {
			out = append(out, l)
		}
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// memTx: transacciones serializadas con rollback por snapshot.
// ──────────────────────────────────────────────────────────────────────────────

type memTx struct{ s *memStore }

var _ appbilling.BillingTxRunner = (*memTx)(nil)

type snapshot struct {
	customers map[string]entity.Customer
	subs      []entity.ServiceSubscription
	invoices  []*entity.Invoice
	lines     []*entity.InvoiceLine
	charges   []entity.PendingCharge
	cuts      []*entity.ServiceCut
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		customers: map[string]entity.Customer{},
		invoices:  append([]*entity.Invoice(nil), s.invoices...),
		lines:     append([]*entity.InvoiceLine(nil), s.lines...),
		cuts:      append([]*entity.ServiceCut(nil), s.cuts...),
	}
	for id, c := range s.customers {
		snap.customers[id] = *c
	}
	for _, sub := range s.subs {
		snap.subs = append(snap.subs, *sub)
	}
	for _, ch := range s.charges {
		snap.charges = append(snap.charges, *ch)
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range snap.customers {
		*s.customers[id] = c
	}
	for i := range snap.subs {
		*s.subs[i] = snap.subs[i]
	}
	for i := range snap.charges {
		*s.charges[i] = snap.charges[i]
	}
	s.invoices = snap.invoices
	s.lines = snap.lines
	s.cuts = snap.cuts
}

func (t *memTx) RunBilling(_ context.Context, fn func(tx appbilling.TxRepositories) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()
	snap := t.s.snapshot()
	r := t.s.repos()
	err := fn(appbilling.TxRepositories{
		Customers:     r.Customers,
		Subscriptions: r.Subscriptions,
		Invoices:      r.Invoices,
		Charges:       r.Charges,
		Cuts:          r.Cuts,
	})
	if err != nil {
		t.s.restore(snap)
	}
	return err
}

// ──────────────────────────────────────────────────────────────────────────────
// Locker y publisher falsos
// ──────────────────────────────────────────────────────────────────────────────

type memLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	denied map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}, denied: map[string]bool{}}
}

func (l *memLocker) Lock(_ context.Context, customerID string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denied[customerID] || l.held[customerID] {
		return nil, domain.ErrLockNotAcquired
	}
	l.held[customerID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, customerID)
	}, nil
}

type memPublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *memPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return p.err
}

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

var bogota = func() *time.Location {
	loc, err := time.LoadLocation("America/Bogota")
	if err != nil {
		panic(err)
	}
	return loc
}()

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, bogota)
}

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// fixedNow 2024-03-01 08:00 en Bogotá: día de la corrida mensual.
func fixedNow() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, bogota) }

func testSettings() appbilling.Settings {
	s := appbilling.DefaultSettings()
	s.Location = bogota
	return s
}

func newTestService(s *memStore, locker appbilling.CustomerLocker, pub appbilling.EventPublisher) *appbilling.Service {
	return appbilling.NewService(appbilling.Dependencies{
		Repos:     s.repos(),
		Tx:        &memTx{s},
		Locker:    locker,
		Publisher: pub,
		Settings:  testSettings(),
		Logger:    zerolog.Nop(),
		Now:       fixedNow,
	})
}

var internetPlan = &entity.Plan{
	ID:               "plan-internet-50",
	Name:             "Fibra 50 Mbps",
	Price:            money(60000),
	ServiceType:      entity.ServiceInternet,
	PermanenceMonths: 6,
	InstallationFee:  money(100000),
	VATApplicable:    true,
	VATRate:          money(19),
}

var tvPlan = &entity.Plan{
	ID:          "plan-tv-basico",
	Name:        "TV Básica",
	Price:       money(30000),
	ServiceType: entity.ServiceTV,
}

// addCustomer cliente activo con un servicio de internet activo.
func (s *memStore) addCustomer(id string, activation time.Time) *entity.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &entity.Customer{
		ID:             id,
		Name:           "Cliente " + id,
		TaxID:          "CC-" + id,
		ActivationDate: activation,
		Status:         entity.CustomerActive,
	}
	s.customers[id] = c
	s.subs = append(s.subs, &entity.ServiceSubscription{
		ID:             "sub-" + id,
		CustomerID:     id,
		PlanID:         internetPlan.ID,
		Plan:           internetPlan,
		ActivationDate: activation,
		Status:         entity.SubscriptionActive,
	})
	return c
}

// addInvoice factura previa del cliente.
func (s *memStore) addInvoice(customerID string, from, to, issue time.Time, total int64, status entity.InvoiceStatus) *entity.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	inv := &entity.Invoice{
		ID:              "inv-" + customerID + "-" + from.Format("20060102"),
		Number:          s.seq,
		CustomerID:      customerID,
		PeriodFrom:      from,
		PeriodTo:        to,
		IssueDate:       issue,
		DueDate:         issue.AddDate(0, 0, 15),
		Total:           money(total),
		Paid:            decimal.Zero,
		AccruedInterest: decimal.Zero,
		Status:          status,
	}
	s.invoices = append(s.invoices, inv)
	return inv
}

func (s *memStore) invoicesOf(customerID string) []*entity.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range s.invoices {
		if inv.CustomerID == customerID {
			out = append(out, inv)
		}
	}
	return out
}
