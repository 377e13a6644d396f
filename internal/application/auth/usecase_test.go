package auth_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/isp-billing/internal/application/auth"
	"github.com/jhoicas/isp-billing/internal/application/dto"
	"github.com/jhoicas/isp-billing/internal/domain"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/pkg/jwt"
)

const secret = "test-secret"

type memOperators struct {
	mu      sync.Mutex
	byEmail map[string]*entity.Operator
}

func (m *memOperators) Create(_ context.Context, op *entity.Operator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[op.Email]; ok {
		return domain.ErrEmailAlreadyExists
	}
	cp := *op
	m.byEmail[op.Email] = &cp
	return nil
}

func (m *memOperators) GetByEmail(_ context.Context, email string) (*entity.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *op
	return &cp, nil
}

func newUseCase() (*auth.AuthUseCase, *memOperators) {
	repo := &memOperators{byEmail: map[string]*entity.Operator{}}
	return auth.NewAuthUseCase(repo, auth.JWTConfig{Secret: secret, ExpMinutes: 60, Issuer: "isp-billing-test"}), repo
}

func TestCreateOperator_HasheaYNormalizaEmail(t *testing.T) {
	uc, repo := newUseCase()
	out, err := uc.CreateOperator(context.Background(), dto.CreateOperatorRequest{
		Email: "  Cartera@ISP.co ", Password: "secreto123", Role: entity.RoleFacturacion,
	})
	require.NoError(t, err)
	assert.Equal(t, "cartera@isp.co", out.Email)
	assert.Equal(t, "cartera@isp.co", out.Name, "sin nombre se usa el email")

	stored := repo.byEmail["cartera@isp.co"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "secreto123", stored.PasswordHash)
}

func TestCreateOperator_Validaciones(t *testing.T) {
	uc, _ := newUseCase()
	ctx := context.Background()

	cases := []dto.CreateOperatorRequest{
		{Email: "", Password: "secreto123", Role: entity.RoleAdmin},
		{Email: "sin-arroba", Password: "secreto123", Role: entity.RoleAdmin},
		{Email: "a@isp.co", Password: "corta", Role: entity.RoleAdmin},
		{Email: "a@isp.co", Password: "secreto123", Role: "bodeguero"},
	}
	for _, in := range cases {
		_, err := uc.CreateOperator(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, in)
	}
}

func TestCreateOperator_EmailDuplicado(t *testing.T) {
	uc, _ := newUseCase()
	ctx := context.Background()
	in := dto.CreateOperatorRequest{Email: "a@isp.co", Password: "secreto123", Role: entity.RoleAdmin}

	_, err := uc.CreateOperator(ctx, in)
	require.NoError(t, err)
	_, err = uc.CreateOperator(ctx, in)
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
}

func TestLogin_EmiteTokenConRol(t *testing.T) {
	uc, _ := newUseCase()
	ctx := context.Background()
	_, err := uc.CreateOperator(ctx, dto.CreateOperatorRequest{Email: "a@isp.co", Password: "secreto123", Role: entity.RoleSoporte})
	require.NoError(t, err)

	out, err := uc.Login(ctx, dto.LoginRequest{Email: "A@isp.co", Password: "secreto123"})
	require.NoError(t, err)

	userID, role, err := jwt.Parse(secret, out.Token)
	require.NoError(t, err)
	assert.Equal(t, out.Operator.ID, userID)
	assert.Equal(t, entity.RoleSoporte, role)
}

func TestLogin_Rechazos(t *testing.T) {
	uc, repo := newUseCase()
	ctx := context.Background()
	_, err := uc.CreateOperator(ctx, dto.CreateOperatorRequest{Email: "a@isp.co", Password: "secreto123", Role: entity.RoleAdmin})
	require.NoError(t, err)

	_, err = uc.Login(ctx, dto.LoginRequest{Email: "nadie@isp.co", Password: "secreto123"})
	assert.ErrorIs(t, err, domain.ErrOperatorNotFound)

	_, err = uc.Login(ctx, dto.LoginRequest{Email: "a@isp.co", Password: "otra-clave"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	repo.byEmail["a@isp.co"].Status = "inactive"
	_, err = uc.Login(ctx, dto.LoginRequest{Email: "a@isp.co", Password: "secreto123"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
