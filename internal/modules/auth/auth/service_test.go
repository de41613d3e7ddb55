package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/contactly/core/internal/models"
	"github.com/contactly/core/internal/modules/auth/limiter"
	"github.com/contactly/core/internal/modules/auth/otpstore"
	"github.com/contactly/core/internal/modules/auth/revocation"
	sessionreg "github.com/contactly/core/internal/modules/auth/session"
	"github.com/contactly/core/internal/modules/notify"
	"github.com/contactly/core/internal/pkg/apperror"
	"github.com/contactly/core/internal/pkg/cache"
	"github.com/contactly/core/internal/pkg/clientinfo"
	"github.com/contactly/core/internal/pkg/credential"
	"github.com/contactly/core/internal/pkg/otp"
	"github.com/contactly/core/internal/pkg/taskqueue"
)

// fakeUserStore keeps users in a map, mimicking the mongo store's nil-on-miss
// contract.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return errors.New("email taken")
		}
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) FindByProvider(ctx context.Context, provider, providerUID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Provider == provider && u.ProviderUID == providerUID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) SetVerified(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.IsVerified = true
	}
	return nil
}

func (f *fakeUserStore) SetPassword(ctx context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Password = passwordHash
	}
	return nil
}

func (f *fakeUserStore) RecordLogin(ctx context.Context, id, ip string) error {
	return nil
}

// fakeDispatcher records enqueued jobs instead of running a worker.
type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []fakeJob
}

type fakeJob struct {
	Type    string
	Payload interface{}
}

func (f *fakeDispatcher) Enqueue(ctx context.Context, taskType string, payload interface{}) (*taskqueue.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, fakeJob{Type: taskType, Payload: payload})
	return &taskqueue.Task{ID: "fake", Type: taskType}, nil
}

// lastCode digs the most recently dispatched verification code out of the
// job log.
func (f *fakeDispatcher) lastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.jobs) - 1; i >= 0; i-- {
		if f.jobs[i].Type == notify.JobVerificationEmail {
			return f.jobs[i].Payload.(notify.VerificationEmail).Code
		}
	}
	return ""
}

type testEnv struct {
	svc    *Service
	users  *fakeUserStore
	jobs   *fakeDispatcher
	store  *cache.Memory
	ledger *revocation.Ledger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	signer, err := credential.NewSigner(credential.Secrets{
		Access:         "a-secret",
		Refresh:        "r-secret",
		Recover:        "rec-secret",
		Activation:     "act-secret",
		PasswordChange: "pwd-secret",
	})
	require.NoError(t, err)
	codec, err := otp.NewCodec("otp-secret")
	require.NoError(t, err)

	store := cache.NewMemory()
	users := newFakeUserStore()
	jobs := &fakeDispatcher{}
	ledger := revocation.New(store)

	svc := NewService(
		users,
		signer,
		otpstore.New(store, codec),
		sessionreg.NewRegistry(store),
		ledger,
		limiter.New(store),
		jobs,
		zap.NewNop(),
	)
	return &testEnv{svc: svc, users: users, jobs: jobs, store: store, ledger: ledger}
}

var testClient = clientinfo.Info{
	Browser: "Chrome", OS: "macOS", DeviceType: "desktop",
	IP: "198.51.100.4", Location: "Lisbon, Portugal",
}

func signupAndVerify(t *testing.T, env *testEnv, email string) (*models.User, *TokenPair) {
	t.Helper()
	ctx := context.Background()

	u, activation, err := env.svc.Signup(ctx, SignupDTO{
		Email: email, Name: "Test User", Password: "hunter2hunter2",
	}, testClient)
	require.NoError(t, err)

	code := env.jobs.lastCode()
	require.Len(t, code, otp.CodeLength)

	verified, pair, err := env.svc.Verify(ctx, activation, VerifyDTO{Code: code, RememberMe: true}, testClient)
	require.NoError(t, err)
	require.True(t, verified.IsVerified)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return u, pair
}

func TestSignupThenVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, pair := signupAndVerify(t, env, "alice@example.com")

	stored, err := env.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)

	sessions, err := env.svc.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, pair.SessionID, sessions[0].SessionID)
}

func TestVerifyWrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, activation, err := env.svc.Signup(ctx, SignupDTO{
		Email: "bob@example.com", Name: "Bob", Password: "hunter2hunter2",
	}, testClient)
	require.NoError(t, err)

	code := env.jobs.lastCode()
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, _, err = env.svc.Verify(ctx, activation, VerifyDTO{Code: wrong}, testClient)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	// The right code still works after a failed attempt.
	_, _, err = env.svc.Verify(ctx, activation, VerifyDTO{Code: code}, testClient)
	assert.NoError(t, err)
}

func TestActivationTokenSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, activation, err := env.svc.Signup(ctx, SignupDTO{
		Email: "carol@example.com", Name: "Carol", Password: "hunter2hunter2",
	}, testClient)
	require.NoError(t, err)

	code := env.jobs.lastCode()
	_, _, err = env.svc.Verify(ctx, activation, VerifyDTO{Code: code}, testClient)
	require.NoError(t, err)

	_, err = env.svc.VerifyActivation(ctx, activation)
	assert.True(t, errors.Is(err, apperror.ErrRevoked))
}

func TestLoginUnverified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.svc.Signup(ctx, SignupDTO{
		Email: "dave@example.com", Name: "Dave", Password: "hunter2hunter2",
	}, testClient)
	require.NoError(t, err)

	_, _, err = env.svc.Login(ctx, LoginDTO{
		Email: "dave@example.com", Password: "hunter2hunter2",
	}, testClient)
	assert.True(t, errors.Is(err, apperror.ErrNotVerified))
}

func TestLoginAndRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	signupAndVerify(t, env, "erin@example.com")

	_, pair, err := env.svc.Login(ctx, LoginDTO{
		Email: "erin@example.com", Password: "hunter2hunter2", RememberMe: false,
	}, testClient)
	require.NoError(t, err)

	access, err := env.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
}

func TestRefreshAfterSessionRemoval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, pair := signupAndVerify(t, env, "frank@example.com")

	require.NoError(t, env.svc.RemoveSession(ctx, u.ID, pair.SessionID))

	_, err := env.svc.Refresh(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, apperror.ErrRevoked))
}

func TestLogoutRevokesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, pair := signupAndVerify(t, env, "grace@example.com")

	require.NoError(t, env.svc.Logout(ctx, pair.AccessToken, pair.RefreshToken, testClient))

	revoked, err := env.ledger.IsRevoked(ctx, revocation.KindAccess, pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = env.ledger.IsRevoked(ctx, revocation.KindRefresh, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = env.ledger.IsRevoked(ctx, revocation.KindSession, pair.SessionID)
	require.NoError(t, err)
	assert.True(t, revoked)

	sessions, err := env.svc.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, apperror.ErrRevoked))
}

func TestClearAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, first := signupAndVerify(t, env, "heidi@example.com")

	_, _, err := env.svc.ClearAndLogin(ctx, ClearLoginDTO{
		LoginDTO:   LoginDTO{Email: "heidi@example.com", Password: "hunter2hunter2"},
		SessionIDs: []string{first.SessionID},
	}, testClient)
	require.NoError(t, err)

	sessions, err := env.svc.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.NotEqual(t, first.SessionID, sessions[0].SessionID)

	_, err = env.svc.Refresh(ctx, first.RefreshToken)
	assert.True(t, errors.Is(err, apperror.ErrRevoked))
}

func TestLoginOAuthCreatesVerifiedUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, pair, err := env.svc.LoginOAuth(ctx, "github", "gh-42", "ivan@example.com", "Ivan", testClient)
	require.NoError(t, err)
	assert.True(t, u.IsVerified)
	assert.NotEmpty(t, pair.AccessToken)

	// A second login with the same identity reuses the account.
	again, _, err := env.svc.LoginOAuth(ctx, "github", "gh-42", "ivan@example.com", "Ivan", testClient)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestResendCodeCooldown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, _, err := env.svc.Signup(ctx, SignupDTO{
		Email: "judy@example.com", Name: "Judy", Password: "hunter2hunter2",
	}, testClient)
	require.NoError(t, err)

	require.NoError(t, env.svc.ResendCode(ctx, u.ID))
	err = env.svc.ResendCode(ctx, u.ID)
	assert.True(t, errors.Is(err, apperror.ErrRateLimited), "second resend inside the cooldown")
}

func TestPasswordHashNeverPlaintext(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, _, err := env.svc.Signup(ctx, SignupDTO{
		Email: "kim@example.com", Name: "Kim", Password: "hunter2hunter2",
	}, testClient)
	require.NoError(t, err)

	stored, err := env.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2hunter2", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("hunter2hunter2")))
}
