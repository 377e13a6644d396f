package billing

import (
	"context"
	"time"

	dombilling "github.com/jhoicas/isp-billing/internal/domain/billing"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// draft factura calculada y lista para persistir.
type draft struct {
	Customer    *entity.Customer
	Eligibility EligibilityResult
	Period      dombilling.Period
	Concepts    []dombilling.Concept
	Reference   time.Time
}

// pipeline Validate → Period → Concepts → Assemble para un cliente.
type pipeline struct {
	eligibility *EligibilityValidator
	periods     *PeriodService
	concepts    *ConceptCalculator
	assembler   *InvoiceAssembler
}

// prepare corre todo salvo la persistencia. Un cliente no elegible retorna *IneligibleError.
// Con dryRun no hay ninguna escritura, tampoco la suspensión por mora.
func (p *pipeline) prepare(ctx context.Context, customerID string, ref time.Time, dryRun bool) (*draft, error) {
	chk, err := p.eligibility.check(ctx, customerID, ref, !dryRun)
	if err != nil {
		return nil, err
	}
	if !chk.Result.Eligible {
		return &draft{Customer: chk.Customer, Eligibility: chk.Result, Reference: ref}, &IneligibleError{Result: chk.Result}
	}

	period, err := p.periods.forCustomer(ctx, chk.Customer, ref)
	if err != nil {
		return nil, err
	}
	concepts, err := p.concepts.Calculate(ctx, ConceptInput{
		Customer:      chk.Customer,
		Subscriptions: chk.Subscriptions,
		Period:        period,
		Reference:     ref,
	})
	if err != nil {
		return nil, err
	}
	return &draft{
		Customer:    chk.Customer,
		Eligibility: chk.Result,
		Period:      period,
		Concepts:    concepts,
		Reference:   ref,
	}, nil
}

func (p *pipeline) input(d *draft) AssembleInput {
	return AssembleInput{Customer: d.Customer, Period: d.Period, Concepts: d.Concepts, IssueDate: d.Reference}
}

func (p *pipeline) commit(ctx context.Context, d *draft) (*AssembleResult, error) {
	return p.assembler.Assemble(ctx, p.input(d))
}
