package user

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/contactly/core/internal/middleware"
	"github.com/contactly/core/internal/models"
	"github.com/contactly/core/internal/modules/auth/revocation"
	"github.com/contactly/core/internal/modules/auth/session"
	"github.com/contactly/core/internal/pkg/apperror"
	"github.com/contactly/core/internal/pkg/credential"
	"github.com/contactly/core/internal/pkg/response"
	"github.com/contactly/core/internal/pkg/taskqueue"
)

type UpdateProfileDTO struct {
	Name   *string `json:"name"   binding:"omitempty,max=80"`
	Bio    *string `json:"bio"    binding:"omitempty,max=500"`
	Avatar *string `json:"avatar" binding:"omitempty,url"`
}

type VerifyPasswordDTO struct {
	Password string `json:"password" binding:"required"`
}

type ChangePasswordDTO struct {
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

type DeleteAccountDTO struct {
	Password string `json:"password" binding:"required"`
}

// OwnedPurger drops everything a user owns in one collection family.
type OwnedPurger interface {
	PurgeOwner(ctx context.Context, ownerID string) error
}

// Dispatcher enqueues background jobs.
type Dispatcher interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}) (*taskqueue.Task, error)
}

// Service covers the account itself: profile, password change behind a
// short-lived password-change credential, and deletion with full purge.
type Service struct {
	store    *Store
	signer   *credential.Signer
	ledger   *revocation.Ledger
	sessions *session.Registry
	purgers  []OwnedPurger
	logger   *zap.Logger
}

func NewService(
	store *Store,
	signer *credential.Signer,
	ledger *revocation.Ledger,
	sessions *session.Registry,
	purgers []OwnedPurger,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:    store,
		signer:   signer,
		ledger:   ledger,
		sessions: sessions,
		purgers:  purgers,
		logger:   logger,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.ErrNotFound
	}
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, dto *UpdateProfileDTO) (*models.User, error) {
	fields := bson.M{}
	if dto.Name != nil {
		fields["name"] = *dto.Name
	}
	if dto.Bio != nil {
		fields["bio"] = *dto.Bio
	}
	if dto.Avatar != nil {
		fields["avatar"] = *dto.Avatar
	}
	if len(fields) > 0 {
		if err := s.store.UpdateProfile(ctx, id, fields); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// VerifyPassword checks the current password and hands back a short-lived
// password-change credential. Only its holder can actually set a new one.
func (s *Service) VerifyPassword(ctx context.Context, id, password string) (string, error) {
	if err := s.comparePassword(ctx, id, password); err != nil {
		return "", err
	}
	return s.signer.Sign(credential.KindPasswordChange, id, "")
}

// ChangePassword consumes the password-change credential and writes the new
// hash. The consumed token is deny-listed so it cannot authorize twice, and
// every other session of the user is dropped.
func (s *Service) ChangePassword(ctx context.Context, token, newPassword, keepSessionID string) error {
	if token == "" {
		return apperror.ErrCredentialMissing
	}
	revoked, err := s.ledger.IsRevoked(ctx, revocation.KindPasswordChange, token)
	if err != nil {
		return err
	}
	if revoked {
		return apperror.ErrRevoked
	}
	claims, err := s.signer.Verify(credential.KindPasswordChange, token)
	if err != nil {
		return err
	}
	userID := claims.UserID()

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.store.SetPassword(ctx, userID, string(hash)); err != nil {
		return err
	}
	if err := s.ledger.Revoke(ctx, revocation.KindPasswordChange, token, remaining(claims)); err != nil {
		s.logger.Warn("password-change token revoke failed", zap.Error(err))
	}
	return s.dropOtherSessions(ctx, userID, keepSessionID)
}

// DeleteAccount verifies the password, then removes the user with everything
// attached: sessions (deny-listed), contacts, labels and feedback.
func (s *Service) DeleteAccount(ctx context.Context, id, password string) error {
	if err := s.comparePassword(ctx, id, password); err != nil {
		return err
	}
	if err := s.sessions.RemoveAll(ctx, id); err != nil {
		return err
	}
	for _, p := range s.purgers {
		if err := p.PurgeOwner(ctx, id); err != nil {
			return err
		}
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) comparePassword(ctx context.Context, id, password string) error {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return apperror.ErrNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return apperror.Validationf("incorrect password")
	}
	return nil
}

func (s *Service) dropOtherSessions(ctx context.Context, userID, keepSessionID string) error {
	records, err := s.sessions.List(ctx, userID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.SessionID == keepSessionID {
			continue
		}
		if err := s.sessions.Remove(ctx, userID, rec.SessionID); err != nil {
			return err
		}
	}
	return nil
}

func remaining(claims *credential.Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return time.Until(claims.ExpiresAt.Time)
}

// CookieWriter is the slice of the auth cookie surface this module needs.
type CookieWriter interface {
	SetPwdChange(c *gin.Context, token string)
	ClearAll(c *gin.Context)
}

const pwdChangeCookie = "ct-pwd-change"

type Handler struct {
	svc     *Service
	cookies CookieWriter
}

func NewHandler(svc *Service, cookies CookieWriter) *Handler {
	return &Handler{svc: svc, cookies: cookies}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/user", authMW)

	g.GET("", h.me)
	g.PATCH("", h.update)
	g.POST("/password/verify", h.verifyPassword)
	g.POST("/password", h.changePassword)
	g.DELETE("", h.deleteAccount)
}

func (h *Handler) me(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateProfileDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

func (h *Handler) verifyPassword(c *gin.Context) {
	var dto VerifyPasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, err := h.svc.VerifyPassword(c.Request.Context(), middleware.CurrentUserID(c), dto.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.SetPwdChange(c, token)
	response.OK(c, gin.H{"message": "password verified"})
}

func (h *Handler) changePassword(c *gin.Context) {
	var dto ChangePasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, _ := c.Cookie(pwdChangeCookie)
	if token == "" {
		token = middleware.NormalizeToken(c.GetHeader("x-password-change-token"))
	}
	err := h.svc.ChangePassword(c.Request.Context(), token, dto.NewPassword, middleware.CurrentSessionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "password updated"})
}

func (h *Handler) deleteAccount(c *gin.Context) {
	var dto DeleteAccountDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.DeleteAccount(c.Request.Context(), middleware.CurrentUserID(c), dto.Password); err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.ClearAll(c)
	response.NoContent(c)
}
