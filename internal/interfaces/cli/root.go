// Package cli comandos de operación del motor de facturación (billingctl).
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jhoicas/isp-billing/internal/app"
)

// Builder construye el contenedor de dependencias; se inyecta para pruebas.
type Builder func(ctx context.Context) (*app.Container, error)

type runtime struct {
	build     Builder
	container *app.Container
	out       io.Writer
}

// Execute corre billingctl y cierra el contenedor aunque el comando falle.
func Execute(ctx context.Context, build Builder) error {
	root, rt := newRoot(build)
	defer rt.close()
	return root.ExecuteContext(ctx)
}

// NewRootCmd arma el árbol de comandos. El contenedor se construye solo cuando
// un comando lo necesita.
func NewRootCmd(build Builder) *cobra.Command {
	root, _ := newRoot(build)
	return root
}

func newRoot(build Builder) (*cobra.Command, *runtime) {
	rt := &runtime{build: build}
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operación del motor de facturación y mora",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			rt.out = cmd.OutOrStdout()
		},
	}
	root.AddCommand(
		newRunCmd(rt),
		newInvoiceCmd(rt),
		newPreviewCmd(rt),
		newValidateCmd(rt),
		newPeriodCmd(rt),
		newInterestCmd(rt),
		newMaintenanceCmd(rt),
		newScheduleCmd(rt),
		newMigrateCmd(rt),
		newOperatorCmd(rt),
	)
	return root, rt
}

func (rt *runtime) close() {
	if rt.container != nil {
		rt.container.Close()
		rt.container = nil
	}
}

func (rt *runtime) get(ctx context.Context) (*app.Container, error) {
	if rt.container != nil {
		return rt.container, nil
	}
	c, err := rt.build(ctx)
	if err != nil {
		return nil, err
	}
	rt.container = c
	return c, nil
}

func (rt *runtime) print(v any) error {
	enc := json.NewEncoder(rt.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ParseDate YYYY-MM-DD en loc. Vacío = nil (hoy).
func ParseDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, fmt.Errorf("fecha %q: se espera YYYY-MM-DD", raw)
	}
	return &t, nil
}

func customerArg(args []string) (string, error) {
	id := strings.TrimSpace(args[0])
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("id de cliente inválido: %q", id)
	}
	return id, nil
}
