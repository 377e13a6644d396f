package billing_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appbilling "github.com/jhoicas/isp-billing/internal/application/billing"
	"github.com/jhoicas/isp-billing/internal/domain"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

func seedCustomers(s *memStore, n int) {
	for i := 1; i <= n; i++ {
		s.addCustomer(fmt.Sprintf("c%03d", i), date(2024, 2, 10))
	}
}

func resultOf(t *testing.T, summary *appbilling.RunSummary, customerID string) appbilling.CustomerResult {
	t.Helper()
	for _, r := range summary.Results {
		if r.CustomerID == customerID {
			return r
		}
	}
	t.Fatalf("sin resultado para %s", customerID)
	return appbilling.CustomerResult{}
}

// ──────────────────────────────────────────────────────────────────────────────
// Aislamiento de fallas: 100 clientes, 1 falla → 99 facturados + 1 error
// ──────────────────────────────────────────────────────────────────────────────

func TestRun_AislaLaFallaDeUnCliente(t *testing.T) {
	for _, workers := range []int{1, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			store := newMemStore()
			seedCustomers(store, 100)
			store.failLineFor["c042"] = true // falla después de insertar la cabecera
			pub := &memPublisher{}
			svc := newTestService(store, newMemLocker(), pub)

			summary, err := svc.GenerateMonthlyBilling(context.Background(), appbilling.RunParams{
				Mode:    appbilling.RunModeMonthly,
				Workers: workers,
			})
			require.NoError(t, err)

			assert.Equal(t, 100, summary.Processed)
			assert.Equal(t, 99, summary.Invoiced)
			assert.Equal(t, 0, summary.Skipped)
			assert.Equal(t, 1, summary.Errored)
			assert.True(t, money(99*71400).Equal(summary.TotalBilled), "got %s", summary.TotalBilled)

			failed := resultOf(t, summary, "c042")
			assert.Equal(t, appbilling.StatusError, failed.Status)
			assert.Contains(t, failed.Reason, "llave foránea")

			// Sin commit parcial: ni cabecera ni líneas del cliente que falló
			assert.Empty(t, store.invoicesOf("c042"))
			assert.Len(t, store.invoices, 99)
			assert.Len(t, store.lines, 99)

			assert.Len(t, store.runLogsOf(entity.RunMonthlyBilling), 1)
			assert.Contains(t, pub.keys, "billing.monthly_billing.completed")
		})
	}
}

func TestRun_PanicoDeUnClienteNoDetieneLaCorrida(t *testing.T) {
	store := newMemStore()
	seedCustomers(store, 5)
	store.panicFor["c003"] = true
	svc := newTestService(store, nil, nil)

	summary, err := svc.GenerateMonthlyBilling(context.Background(), appbilling.RunParams{})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Invoiced)
	assert.Equal(t, 1, summary.Errored)
	r := resultOf(t, summary, "c003")
	assert.Equal(t, appbilling.StatusError, r.Status)
	assert.Contains(t, r.Reason, "pánico")
}

func TestRun_FallaAlListarCandidatosEsFatal(t *testing.T) {
	store := newMemStore()
	store.failList = errors.New("dial tcp: connection refused")
	svc := newTestService(store, nil, nil)

	summary, err := svc.GenerateMonthlyBilling(context.Background(), appbilling.RunParams{})
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, domain.ErrInfrastructure)
	assert.Empty(t, store.runLogs)
}

func TestRun_SegundaCorridaDelMesOmiteATodos(t *testing.T) {
	store := newMemStore()
	seedCustomers(store, 10)
	svc := newTestService(store, nil, nil)

	first, err := svc.GenerateMonthlyBilling(context.Background(), appbilling.RunParams{})
	require.NoError(t, err)
	require.Equal(t, 10, first.Invoiced)

	second, err := svc.GenerateMonthlyBilling(context.Background(), appbilling.RunParams{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Invoiced)
	assert.Equal(t, 10, second.Skipped)
	assert.Equal(t, 0, second.Errored)
	for _, r := range second.Results {
		assert.Equal(t, string(appbilling.IneligibleAlreadyBilled), r.Code)
	}
	assert.Len(t, store.invoices, 10)
}

func TestRun_SimulacionNoPersiste(t *testing.T) {
	store := newMemStore()
	seedCustomers(store, 3)
	svc := newTestService(store, nil, nil)

	summary, err := svc.GenerateMonthlyBilling(context.Background(), appbilling.RunParams{Mode: appbilling.RunModePreview})
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 3, summary.Invoiced)
	assert.True(t, money(3*71400).Equal(summary.TotalBilled))
	assert.Empty(t, store.invoices)
	assert.Empty(t, store.runLogs)
}

func TestRun_ListaDeClientesConIDInexistente(t *testing.T) {
	store := newMemStore()
	seedCustomers(store, 3)
	svc := newTestService(store, nil, nil)

	summary, err := svc.GenerateMonthlyBilling(context.Background(), appbilling.RunParams{
		CustomerIDs: []string{"c002", "fantasma"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Invoiced)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, string(appbilling.IneligibleNotFound), resultOf(t, summary, "fantasma").Code)
	assert.Empty(t, store.invoicesOf("c001"))
}

func TestRun_LockOcupadoSeOmite(t *testing.T) {
	store := newMemStore()
	seedCustomers(store, 3)
	locker := newMemLocker()
	locker.denied["c002"] = true
	svc := newTestService(store, locker, nil)

	summary, err := svc.GenerateMonthlyBilling(context.Background(), appbilling.RunParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Invoiced)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, appbilling.StatusSkipped, resultOf(t, summary, "c002").Status)
}

func TestRun_ContextoCanceladoRegistraErrores(t *testing.T) {
	store := newMemStore()
	seedCustomers(store, 4)
	svc := newTestService(store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := svc.GenerateMonthlyBilling(ctx, appbilling.RunParams{})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Errored)
	assert.Empty(t, store.invoices)
}

func TestRun_NotificacionFallidaNoAbortaLaCorrida(t *testing.T) {
	store := newMemStore()
	seedCustomers(store, 2)
	pub := &memPublisher{err: errors.New("broker caído")}
	svc := newTestService(store, nil, pub)

	summary, err := svc.GenerateMonthlyBilling(context.Background(), appbilling.RunParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Invoiced)
	assert.Len(t, store.runLogsOf(entity.RunMonthlyBilling), 1)
}
