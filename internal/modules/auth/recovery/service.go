package recovery

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/contactly/core/internal/models"
	"github.com/contactly/core/internal/modules/auth/limiter"
	"github.com/contactly/core/internal/modules/auth/otpstore"
	"github.com/contactly/core/internal/modules/auth/revocation"
	"github.com/contactly/core/internal/modules/notify"
	"github.com/contactly/core/internal/pkg/apperror"
	"github.com/contactly/core/internal/pkg/clientinfo"
	"github.com/contactly/core/internal/pkg/credential"
	"github.com/contactly/core/internal/pkg/taskqueue"
)

// Dispatcher enqueues background jobs.
type Dispatcher interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}) (*taskqueue.Task, error)
}

// Service drives the three-step recovery chain:
// IDENTIFIED -> OTP_SENT -> OTP_VERIFIED -> PASSWORD_RESET.
// Step tokens are recover-kind credentials carrying their step marker; used
// steps are deny-listed by user id, so at most one chain is in flight per
// user and advancing a chain kills every outstanding token of the prior step.
type Service struct {
	users  UserStore
	signer *credential.Signer
	codes  *otpstore.Store
	ledger *revocation.Ledger
	gates  *limiter.Limiter
	jobs   Dispatcher
	logger *zap.Logger
}

func NewService(
	users UserStore,
	signer *credential.Signer,
	codes *otpstore.Store,
	ledger *revocation.Ledger,
	gates *limiter.Limiter,
	jobs Dispatcher,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:  users,
		signer: signer,
		codes:  codes,
		ledger: ledger,
		gates:  gates,
		jobs:   jobs,
		logger: logger,
	}
}

// Find locates a verified account by email and issues the step-1 token.
// Starting a chain resets any in-flight one: prior step deny-entries and any
// stored code are dropped, so the new chain overwrites rather than forks.
func (s *Service) Find(ctx context.Context, email string) (string, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", apperror.ErrNotFound
	}
	if !u.IsVerified {
		return "", apperror.ErrNotVerified
	}

	if err := s.resetChain(ctx, u.ID); err != nil {
		return "", err
	}
	return s.signStep(u.ID, stepIdentified)
}

// SendCode consumes the step-1 token, generates and stores the code,
// dispatches delivery and hands back the step-2 token. Both limiter gates
// apply: the fixed window on every call, the escalating cooldown on resends.
func (s *Service) SendCode(ctx context.Context, stepToken string) (string, error) {
	userID, err := s.consumeStep(ctx, stepToken, stepIdentified)
	if err != nil {
		return "", err
	}
	if err := s.gates.CheckRequestRate(ctx, userID); err != nil {
		return "", err
	}
	if err := s.gates.CheckResendCooldown(ctx, userID); err != nil {
		return "", err
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", apperror.ErrNotFound
	}

	code, err := s.codes.Issue(ctx, userID)
	if err != nil {
		return "", err
	}
	s.dispatch(ctx, notify.JobVerificationEmail, notify.VerificationEmail{
		Email:     u.Email,
		Name:      u.Name,
		Code:      code,
		ExpiresIn: fmt.Sprintf("%d minutes", int(otpstore.CodeTTL.Minutes())),
	})
	return s.signStep(userID, stepOTPSent)
}

// VerifyCode consumes the step-2 token, checks the submitted code with the
// timing-safe comparator, clears limiter state and issues the step-3 token.
func (s *Service) VerifyCode(ctx context.Context, stepToken, code string) (string, error) {
	userID, err := s.consumeStep(ctx, stepToken, stepOTPSent)
	if err != nil {
		return "", err
	}
	if err := s.codes.Consume(ctx, userID, code); err != nil {
		return "", err
	}
	if err := s.gates.Clear(ctx, userID); err != nil {
		s.logger.Warn("limiter clear failed", zap.String("user_id", userID), zap.Error(err))
	}
	return s.signStep(userID, stepOTPVerified)
}

// Reset consumes the step-3 token and writes the new password hash, ending
// the chain.
func (s *Service) Reset(ctx context.Context, stepToken, password string, client clientinfo.Info) error {
	userID, err := s.consumeStep(ctx, stepToken, stepOTPVerified)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	u, err := s.users.FindByID(ctx, userID)
	if err == nil && u != nil {
		s.dispatch(ctx, notify.JobSecurityAlert, notify.SecurityAlert{
			Email: u.Email, Name: u.Name,
			Title: "Your password was reset", Action: models.ActivityPasswordReset, Client: client,
		})
	}
	s.dispatch(ctx, notify.JobActivityRecord, notify.ActivityRecord{
		UserID: userID, Action: models.ActivityPasswordReset, Client: client,
	})
	return nil
}

// consumeStep validates a step token and deny-lists its step for the user, so
// every token of that step (this one and any concurrent sibling) is spent.
func (s *Service) consumeStep(ctx context.Context, token string, step int) (string, error) {
	userID, err := s.checkStep(ctx, token, step)
	if err != nil {
		return "", err
	}
	if err := s.ledger.Revoke(ctx, revocation.RecoverStep(step), userID, credential.RecoverTTL); err != nil {
		return "", err
	}
	return userID, nil
}

// checkStep verifies token shape, kind, step marker and the per-user step
// deny-list. Replayed step tokens land on the deny-list hit.
func (s *Service) checkStep(ctx context.Context, token string, step int) (string, error) {
	if token == "" {
		return "", apperror.ErrCredentialMissing
	}
	claims, err := s.signer.Verify(credential.KindRecover, token)
	if err != nil {
		return "", err
	}
	if claims.SessionID != strconv.Itoa(step) {
		return "", apperror.ErrCredentialInvalid
	}
	userID := claims.UserID()

	revoked, err := s.ledger.IsRevoked(ctx, revocation.RecoverStep(step), userID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", apperror.ErrRevoked
	}
	return userID, nil
}

func (s *Service) signStep(userID string, step int) (string, error) {
	return s.signer.Sign(credential.KindRecover, userID, strconv.Itoa(step))
}

func (s *Service) resetChain(ctx context.Context, userID string) error {
	for _, step := range []int{stepIdentified, stepOTPSent, stepOTPVerified} {
		if err := s.ledger.Unrevoke(ctx, revocation.RecoverStep(step), userID); err != nil {
			return err
		}
	}
	if err := s.codes.Clear(ctx, userID); err != nil {
		return err
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, jobType string, payload interface{}) {
	if _, err := s.jobs.Enqueue(ctx, jobType, payload); err != nil {
		s.logger.Warn("job enqueue failed", zap.String("type", jobType), zap.Error(err))
	}
}
