package cli

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/jhoicas/isp-billing/internal/application/billing"
)

func newRunCmd(rt *runtime) *cobra.Command {
	var (
		date      string
		customers []string
		dryRun    bool
		workers   int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Corrida de facturación (masiva o sobre --customers)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			ref, err := ParseDate(date, c.Location)
			if err != nil {
				return err
			}
			ids := lo.Uniq(lo.Compact(lo.Map(customers, func(s string, _ int) string { return strings.TrimSpace(s) })))
			mode := billing.RunModeManual
			if dryRun {
				mode = billing.RunModePreview
			}
			summary, err := c.Billing.GenerateMonthlyBilling(cmd.Context(), billing.RunParams{
				Mode:          mode,
				ReferenceDate: lo.FromPtr(ref),
				CustomerIDs:   ids,
				DryRun:        dryRun,
				Workers:       workers,
			})
			if err != nil {
				return err
			}
			return rt.print(summary)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "fecha de referencia YYYY-MM-DD (por defecto hoy)")
	cmd.Flags().StringSliceVar(&customers, "customers", nil, "ids de cliente separados por coma")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "simula sin persistir")
	cmd.Flags().IntVar(&workers, "workers", 0, "workers concurrentes (0 = configurado)")
	return cmd
}

func newInvoiceCmd(rt *runtime) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "invoice <customer-id>",
		Short: "Factura a un cliente fuera de la corrida masiva",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := customerArg(args)
			if err != nil {
				return err
			}
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			ref, err := ParseDate(date, c.Location)
			if err != nil {
				return err
			}
			inv, err := c.Billing.GenerateInvoiceForCustomer(cmd.Context(), id, ref)
			if err != nil {
				return err
			}
			return rt.print(inv)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "fecha de referencia YYYY-MM-DD")
	return cmd
}

func newPreviewCmd(rt *runtime) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "preview <customer-id>",
		Short: "Simula la factura de un cliente sin persistir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := customerArg(args)
			if err != nil {
				return err
			}
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			ref, err := ParseDate(date, c.Location)
			if err != nil {
				return err
			}
			out, err := c.Billing.PreviewInvoice(cmd.Context(), id, ref)
			if err != nil {
				return err
			}
			return rt.print(out)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "fecha de referencia YYYY-MM-DD")
	return cmd
}

func newValidateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <customer-id>",
		Short: "Valida si el cliente puede facturarse hoy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := customerArg(args)
			if err != nil {
				return err
			}
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			out, err := c.Billing.ValidateCustomerForBilling(cmd.Context(), id)
			if err != nil {
				return err
			}
			return rt.print(out)
		},
	}
}

func newPeriodCmd(rt *runtime) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "period <customer-id>",
		Short: "Periodo que se le facturaría al cliente",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := customerArg(args)
			if err != nil {
				return err
			}
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			ref, err := ParseDate(date, c.Location)
			if err != nil {
				return err
			}
			p, err := c.Billing.CalculatePeriod(cmd.Context(), id, ref)
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "%s  %s → %s  (%d días)\n", p.Label, p.From.Format("2006-01-02"), p.To.Format("2006-01-02"), p.DaysBilled)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "fecha de referencia YYYY-MM-DD")
	return cmd
}

func newInterestCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interest",
		Short: "Intereses de mora",
	}

	var customer, asOf string
	recompute := &cobra.Command{
		Use:   "recompute",
		Short: "Recalcula la mora causada (todos o --customer)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			at, err := ParseDate(asOf, c.Location)
			if err != nil {
				return err
			}
			var id *string
			if customer != "" {
				v, err := customerArg([]string{customer})
				if err != nil {
					return err
				}
				id = &v
			}
			out, err := c.Billing.RecomputeMoratoryInterest(cmd.Context(), id, at)
			if err != nil {
				return err
			}
			return rt.print(out)
		},
	}
	recompute.Flags().StringVar(&customer, "customer", "", "id de cliente")
	recompute.Flags().StringVar(&asOf, "as-of", "", "fecha de cálculo YYYY-MM-DD")

	var cutoff string
	pending := &cobra.Command{
		Use:   "pending <customer-id>",
		Short: "Mora causada pendiente de cobro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := customerArg(args)
			if err != nil {
				return err
			}
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			at, err := ParseDate(cutoff, c.Location)
			if err != nil {
				return err
			}
			out, err := c.Billing.GetPendingInterest(cmd.Context(), id, at)
			if err != nil {
				return err
			}
			return rt.print(out)
		},
	}
	pending.Flags().StringVar(&cutoff, "cutoff", "", "fecha de corte YYYY-MM-DD")

	cmd.AddCommand(recompute, pending)
	return cmd
}
