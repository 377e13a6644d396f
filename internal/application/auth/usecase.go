package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/isp-billing/internal/application/dto"
	"github.com/jhoicas/isp-billing/internal/domain"
	"github.com/jhoicas/isp-billing/internal/domain/entity"
	"github.com/jhoicas/isp-billing/internal/domain/repository"
	"github.com/jhoicas/isp-billing/pkg/jwt"
)

// MinPasswordLength longitud mínima del password de un operador.
const MinPasswordLength = 8

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuthUseCase alta de operadores y login del back-office.
type AuthUseCase struct {
	operators repository.OperatorRepository
	jwtCfg    JWTConfig
	now       func() time.Time
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(operators repository.OperatorRepository, jwtCfg JWTConfig) *AuthUseCase {
	return &AuthUseCase{operators: operators, jwtCfg: jwtCfg, now: time.Now}
}

// CreateOperator hashea el password con bcrypt y persiste. El alta se hace desde
// billingctl; no hay registro público.
func (uc *AuthUseCase) CreateOperator(ctx context.Context, in dto.CreateOperatorRequest) (*dto.OperatorResponse, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") || len(in.Password) < MinPasswordLength || !entity.ValidRole(in.Role) {
		return nil, domain.ErrInvalidInput
	}
	existing, err := uc.operators.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailAlreadyExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = email
	}
	op := &entity.Operator{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         in.Role,
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.operators.Create(ctx, op); err != nil {
		return nil, err
	}
	return toOperatorResponse(op), nil
}

// Login verifica email/password y emite el JWT con el rol del operador.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	op, err := uc.operators.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, domain.ErrOperatorNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	if op.Status != "active" {
		return nil, domain.ErrForbidden
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, op.ID, op.Role, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{Token: token, Operator: *toOperatorResponse(op)}, nil
}

func toOperatorResponse(op *entity.Operator) *dto.OperatorResponse {
	return &dto.OperatorResponse{
		ID:        op.ID,
		Email:     op.Email,
		Name:      op.Name,
		Role:      op.Role,
		Status:    op.Status,
		CreatedAt: op.CreatedAt,
	}
}
