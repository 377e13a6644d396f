package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/isp-billing/internal/application/dto"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
)

// PasswordEnv variable de entorno alternativa a --password.
const PasswordEnv = "BILLINGCTL_OPERATOR_PASSWORD"

func newOperatorCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Operadores del back-office",
	}
	var in dto.CreateOperatorRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Da de alta un operador (admin, facturacion o soporte)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !entity.ValidRole(in.Role) {
				return fmt.Errorf("rol inválido %q", in.Role)
			}
			if in.Password == "" {
				in.Password = os.Getenv(PasswordEnv)
			}
			if in.Password == "" {
				return fmt.Errorf("password requerido (--password o %s)", PasswordEnv)
			}
			c, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			out, err := c.Auth.CreateOperator(cmd.Context(), in)
			if err != nil {
				return err
			}
			return rt.print(out)
		},
	}
	create.Flags().StringVar(&in.Email, "email", "", "email del operador")
	create.Flags().StringVar(&in.Name, "name", "", "nombre visible")
	create.Flags().StringVar(&in.Role, "role", entity.RoleSoporte, "admin | facturacion | soporte")
	create.Flags().StringVar(&in.Password, "password", "", "password (mínimo 8 caracteres)")
	_ = create.MarkFlagRequired("email")
	cmd.AddCommand(create)
	return cmd
}
