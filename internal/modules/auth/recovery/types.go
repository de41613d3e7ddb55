package recovery

import (
	"context"

	"github.com/contactly/core/internal/models"
)

// UserStore is the slice of the user store the recovery chain needs.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
}

type FindDTO struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyCodeDTO struct {
	Code string `json:"code" binding:"required,len=6"`
}

type ResetDTO struct {
	Password string `json:"password" binding:"required,min=8"`
}

// Chain steps. Each step token carries its step marker; possession of the
// step-n token is the only way into transition n+1.
const (
	stepIdentified  = 1
	stepOTPSent     = 2
	stepOTPVerified = 3
)
