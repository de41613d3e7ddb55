package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/contactly/core/internal/models"
	"github.com/contactly/core/internal/modules/auth/limiter"
	"github.com/contactly/core/internal/modules/auth/otpstore"
	"github.com/contactly/core/internal/modules/auth/revocation"
	sessionreg "github.com/contactly/core/internal/modules/auth/session"
	"github.com/contactly/core/internal/modules/notify"
	"github.com/contactly/core/internal/pkg/apperror"
	"github.com/contactly/core/internal/pkg/clientinfo"
	"github.com/contactly/core/internal/pkg/credential"
)

// Service composes the signer, registry, ledger, limiter and OTP store into
// the top-level account/session use cases.
type Service struct {
	users    UserStore
	signer   *credential.Signer
	codes    *otpstore.Store
	sessions *sessionreg.Registry
	ledger   *revocation.Ledger
	gates    *limiter.Limiter
	jobs     Dispatcher
	logger   *zap.Logger
}

func NewService(
	users UserStore,
	signer *credential.Signer,
	codes *otpstore.Store,
	sessions *sessionreg.Registry,
	ledger *revocation.Ledger,
	gates *limiter.Limiter,
	jobs Dispatcher,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:    users,
		signer:   signer,
		codes:    codes,
		sessions: sessions,
		ledger:   ledger,
		gates:    gates,
		jobs:     jobs,
		logger:   logger,
	}
}

// Signer exposes the credential signer for middleware construction.
func (s *Service) Signer() *credential.Signer { return s.signer }

// Ledger exposes the revocation ledger for middleware construction.
func (s *Service) Ledger() *revocation.Ledger { return s.ledger }

// Sessions exposes the session registry.
func (s *Service) Sessions() *sessionreg.Registry { return s.sessions }

// Signup creates an unverified account, issues the activation credential and
// dispatches the first verification code.
func (s *Service) Signup(ctx context.Context, dto SignupDTO, client clientinfo.Info) (*models.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	u := &models.User{
		Base:     models.NewBase(),
		Email:    dto.Email,
		Name:     dto.Name,
		Password: string(hash),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, "", err
	}

	activation, err := s.signer.Sign(credential.KindActivation, u.ID, "")
	if err != nil {
		return nil, "", err
	}

	if err := s.sendCode(ctx, u); err != nil {
		return nil, "", err
	}
	s.dispatch(ctx, notify.JobActivityRecord, notify.ActivityRecord{
		UserID: u.ID, Action: models.ActivitySignup, Client: client,
	})
	return u, activation, nil
}

// VerifyActivation validates an activation credential (deny-list first) and
// returns the account it belongs to.
func (s *Service) VerifyActivation(ctx context.Context, token string) (string, error) {
	claims, err := s.checkToken(ctx, credential.KindActivation, revocation.KindActivation, token)
	if err != nil {
		return "", err
	}
	return claims.UserID(), nil
}

// ResendCode issues a fresh verification code behind both limiter gates.
func (s *Service) ResendCode(ctx context.Context, userID string) error {
	if err := s.gates.CheckRequestRate(ctx, userID); err != nil {
		return err
	}
	if err := s.gates.CheckResendCooldown(ctx, userID); err != nil {
		return err
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return apperror.ErrNotFound
	}
	if u.IsVerified {
		return apperror.Validationf("account is already verified")
	}
	return s.sendCode(ctx, u)
}

func (s *Service) sendCode(ctx context.Context, u *models.User) error {
	code, err := s.codes.Issue(ctx, u.ID)
	if err != nil {
		return err
	}
	s.dispatch(ctx, notify.JobVerificationEmail, notify.VerificationEmail{
		Email:     u.Email,
		Name:      u.Name,
		Code:      code,
		ExpiresIn: fmt.Sprintf("%d minutes", int(otpstore.CodeTTL.Minutes())),
	})
	return nil
}

// Verify consumes the activation credential and the submitted code, marks the
// account verified, clears OTP and limiter state and opens the first session.
func (s *Service) Verify(ctx context.Context, activationToken string, dto VerifyDTO, client clientinfo.Info) (*models.User, *TokenPair, error) {
	claims, err := s.checkToken(ctx, credential.KindActivation, revocation.KindActivation, activationToken)
	if err != nil {
		return nil, nil, err
	}
	userID := claims.UserID()

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, nil, apperror.ErrNotFound
	}

	if err := s.gates.CheckRequestRate(ctx, userID); err != nil {
		return nil, nil, err
	}
	if err := s.codes.Consume(ctx, userID, dto.Code); err != nil {
		return nil, nil, err
	}

	if err := s.users.SetVerified(ctx, userID); err != nil {
		return nil, nil, err
	}
	u.IsVerified = true

	// The activation credential is single-use.
	_ = s.ledger.Revoke(ctx, revocation.KindActivation, activationToken, remaining(claims))
	if err := s.gates.Clear(ctx, userID); err != nil {
		s.logger.Warn("limiter clear failed", zap.String("user_id", userID), zap.Error(err))
	}

	pair, err := s.openSession(ctx, u, dto.RememberMe, client)
	if err != nil {
		return nil, nil, err
	}
	s.dispatch(ctx, notify.JobSecurityAlert, notify.SecurityAlert{
		Email: u.Email, Name: u.Name,
		Title: "Welcome to Contactly", Action: models.ActivitySignup, Client: client,
	})
	return u, pair, nil
}

// Login authenticates a local account and opens a session.
func (s *Service) Login(ctx context.Context, dto LoginDTO, client clientinfo.Info) (*models.User, *TokenPair, error) {
	u, err := s.authenticate(ctx, dto.Email, dto.Password)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.openSession(ctx, u, dto.RememberMe, client)
	if err != nil {
		return nil, nil, err
	}
	s.afterLogin(ctx, u, client)
	return u, pair, nil
}

// ClearAndLogin evicts the selected prior sessions, then logs in. Each evicted
// session id is deny-listed so its still-unexpired credentials die with it.
func (s *Service) ClearAndLogin(ctx context.Context, dto ClearLoginDTO, client clientinfo.Info) (*models.User, *TokenPair, error) {
	u, err := s.authenticate(ctx, dto.Email, dto.Password)
	if err != nil {
		return nil, nil, err
	}
	for _, sid := range dto.SessionIDs {
		if err := s.sessions.Remove(ctx, u.ID, sid); err != nil {
			return nil, nil, err
		}
	}
	pair, err := s.openSession(ctx, u, dto.RememberMe, client)
	if err != nil {
		return nil, nil, err
	}
	s.afterLogin(ctx, u, client)
	return u, pair, nil
}

// LoginOAuth finds or creates the account for a social identity and opens a
// session. OAuth accounts are born verified: the provider owns the mailbox
// proof.
func (s *Service) LoginOAuth(ctx context.Context, provider, providerUID, email, name string, client clientinfo.Info) (*models.User, *TokenPair, error) {
	u, err := s.users.FindByProvider(ctx, provider, providerUID)
	if err != nil {
		return nil, nil, err
	}
	if u == nil && email != "" {
		if u, err = s.users.FindByEmail(ctx, email); err != nil {
			return nil, nil, err
		}
	}
	if u == nil {
		u = &models.User{
			Base:        models.NewBase(),
			Email:       email,
			Name:        name,
			IsVerified:  true,
			Provider:    provider,
			ProviderUID: providerUID,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, nil, err
		}
	}

	pair, err := s.openSession(ctx, u, true, client)
	if err != nil {
		return nil, nil, err
	}
	s.afterLogin(ctx, u, client)
	return u, pair, nil
}

// Refresh issues a new access credential for an existing session. The session
// record's last-used timestamp moves; its TTL does not.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.checkToken(ctx, credential.KindRefresh, revocation.KindRefresh, refreshToken)
	if err != nil {
		return "", err
	}
	userID, sid := claims.UserID(), claims.SessionID

	if revoked, err := s.ledger.IsRevoked(ctx, revocation.KindSession, sid); err != nil {
		return "", err
	} else if revoked {
		return "", apperror.ErrRevoked
	}
	rec, err := s.sessions.Get(ctx, userID, sid)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", apperror.ErrRevoked
	}

	access, err := s.signer.Sign(credential.KindAccess, userID, sid)
	if err != nil {
		return "", err
	}
	if err := s.sessions.Touch(ctx, userID, sid); err != nil {
		s.logger.Warn("session touch failed", zap.String("sid", sid), zap.Error(err))
	}
	return access, nil
}

// Logout deny-lists the presented credentials and the session id, each bounded
// by its own remaining life, and removes the session.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string, client clientinfo.Info) error {
	claims, err := s.checkToken(ctx, credential.KindAccess, revocation.KindAccess, accessToken)
	if err != nil {
		return err
	}
	userID, sid := claims.UserID(), claims.SessionID

	_ = s.ledger.Revoke(ctx, revocation.KindAccess, accessToken, remaining(claims))
	if refreshClaims, err := s.signer.Verify(credential.KindRefresh, refreshToken); err == nil {
		_ = s.ledger.Revoke(ctx, revocation.KindRefresh, refreshToken, remaining(refreshClaims))
	}
	if err := s.sessions.Remove(ctx, userID, sid); err != nil {
		return err
	}
	s.dispatch(ctx, notify.JobActivityRecord, notify.ActivityRecord{
		UserID: userID, Action: models.ActivityLogout, Client: client,
	})
	return nil
}

// ListSessions enumerates the user's live sessions.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]sessionreg.Record, error) {
	return s.sessions.List(ctx, userID)
}

// RemoveSession evicts a single session.
func (s *Service) RemoveSession(ctx context.Context, userID, sid string) error {
	return s.sessions.Remove(ctx, userID, sid)
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		time.Sleep(3 * time.Second)
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		time.Sleep(3 * time.Second)
		return nil, errBadCredentials
	}
	if !u.IsVerified {
		return nil, apperror.ErrNotVerified
	}
	return u, nil
}

// openSession creates the session record and signs the credential pair bound
// to it. Refresh TTL depends on remember-me and fixes the session lifetime.
func (s *Service) openSession(ctx context.Context, u *models.User, rememberMe bool, client clientinfo.Info) (*TokenPair, error) {
	refreshTTL := credential.RefreshShortTTL
	if rememberMe {
		refreshTTL = credential.RefreshTTL
	}

	rec, err := s.sessions.Create(ctx, u.ID, client, refreshTTL)
	if err != nil {
		return nil, err
	}
	access, err := s.signer.Sign(credential.KindAccess, u.ID, rec.SessionID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signer.SignWithTTL(credential.KindRefresh, u.ID, rec.SessionID, refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, SessionID: rec.SessionID}, nil
}

func (s *Service) afterLogin(ctx context.Context, u *models.User, client clientinfo.Info) {
	if err := s.users.RecordLogin(ctx, u.ID, client.IP); err != nil {
		s.logger.Warn("record login failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	s.dispatch(ctx, notify.JobActivityRecord, notify.ActivityRecord{
		UserID: u.ID, Action: models.ActivityLogin, Client: client,
	})
	s.dispatch(ctx, notify.JobSecurityAlert, notify.SecurityAlert{
		Email: u.Email, Name: u.Name,
		Title: "New sign-in to your account", Action: models.ActivityLogin, Client: client,
	})
}

// checkToken is the shared consume path: deny-list lookup on the raw value
// first, so known-bad tokens are rejected before the signature check, then
// signature/expiry verification. A stolen-but-valid credential that gets
// revoked later dies at the first lookup on its next use.
func (s *Service) checkToken(ctx context.Context, kind credential.Kind, rkind revocation.Kind, token string) (*credential.Claims, error) {
	if token == "" {
		return nil, apperror.ErrCredentialMissing
	}
	if revoked, err := s.ledger.IsRevoked(ctx, rkind, token); err != nil {
		return nil, err
	} else if revoked {
		return nil, apperror.ErrRevoked
	}
	claims, err := s.signer.Verify(kind, token)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) dispatch(ctx context.Context, jobType string, payload interface{}) {
	if _, err := s.jobs.Enqueue(ctx, jobType, payload); err != nil {
		s.logger.Warn("job enqueue failed", zap.String("type", jobType), zap.Error(err))
	}
}

func remaining(claims *credential.Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return time.Until(claims.ExpiresAt.Time)
}
