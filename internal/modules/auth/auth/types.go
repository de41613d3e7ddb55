package auth

import (
	"context"
	"errors"
	"time"

	"github.com/contactly/core/internal/models"
	"github.com/contactly/core/internal/pkg/taskqueue"
)

// UserStore is the durable user-record surface the orchestrator needs.
// Implemented by the user module's mongo store.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByProvider(ctx context.Context, provider, providerUID string) (*models.User, error)
	SetVerified(ctx context.Context, id string) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	RecordLogin(ctx context.Context, id, ip string) error
}

// Dispatcher enqueues background jobs. The request path never waits on their
// outcome.
type Dispatcher interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}) (*taskqueue.Task, error)
}

type SignupDTO struct {
	Email    string `json:"email"    binding:"required,email"`
	Name     string `json:"name"     binding:"required,min=1"`
	Password string `json:"password" binding:"required,min=8"`
}

type VerifyDTO struct {
	Code       string `json:"code"        binding:"required,len=6"`
	RememberMe bool   `json:"remember_me"`
}

type LoginDTO struct {
	Email      string `json:"email"       binding:"required,email"`
	Password   string `json:"password"    binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

// ClearLoginDTO is LoginDTO plus the prior sessions to evict before the new
// session is created.
type ClearLoginDTO struct {
	LoginDTO
	SessionIDs []string `json:"session_ids" binding:"required,min=1"`
}

// TokenPair is the access+refresh credential pair bound to one session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id"`
}

type sessionResponse struct {
	SessionID  string    `json:"session_id"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	DeviceType string    `json:"device_type"`
	IP         string    `json:"ip"`
	Location   string    `json:"location"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiredAt  time.Time `json:"expired_at"`
	Current    bool      `json:"current"`
}

var (
	errBadCredentials = errors.New("bad email or password")
)
