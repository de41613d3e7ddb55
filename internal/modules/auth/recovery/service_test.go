package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/contactly/core/internal/models"
	"github.com/contactly/core/internal/modules/auth/limiter"
	"github.com/contactly/core/internal/modules/auth/otpstore"
	"github.com/contactly/core/internal/modules/auth/revocation"
	"github.com/contactly/core/internal/modules/notify"
	"github.com/contactly/core/internal/pkg/apperror"
	"github.com/contactly/core/internal/pkg/cache"
	"github.com/contactly/core/internal/pkg/clientinfo"
	"github.com/contactly/core/internal/pkg/credential"
	"github.com/contactly/core/internal/pkg/otp"
	"github.com/contactly/core/internal/pkg/taskqueue"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
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

func (f *fakeUsers) SetPassword(ctx context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Password = passwordHash
	}
	return nil
}

type fakeJobs struct {
	mu   sync.Mutex
	sent []struct {
		Type    string
		Payload interface{}
	}
}

func (f *fakeJobs) Enqueue(ctx context.Context, taskType string, payload interface{}) (*taskqueue.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, struct {
		Type    string
		Payload interface{}
	}{taskType, payload})
	return &taskqueue.Task{ID: "fake", Type: taskType}, nil
}

func (f *fakeJobs) lastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Type == notify.JobVerificationEmail {
			return f.sent[i].Payload.(notify.VerificationEmail).Code
		}
	}
	return ""
}

type env struct {
	svc   *Service
	users *fakeUsers
	jobs  *fakeJobs
	store *cache.Memory
}

func newEnv(t *testing.T) *env {
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
	hash, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &fakeUsers{users: map[string]*models.User{
		"u1": {
			Base:       models.Base{ID: "u1"},
			Email:      "alice@example.com",
			Name:       "Alice",
			Password:   string(hash),
			IsVerified: true,
		},
		"u2": {
			Base:       models.Base{ID: "u2"},
			Email:      "pending@example.com",
			Name:       "Pending",
			IsVerified: false,
		},
	}}
	jobs := &fakeJobs{}

	svc := NewService(
		users,
		signer,
		otpstore.New(store, codec),
		revocation.New(store),
		limiter.New(store),
		jobs,
		zap.NewNop(),
	)
	return &env{svc: svc, users: users, jobs: jobs, store: store}
}

var client = clientinfo.Info{Browser: "Safari", OS: "iOS", IP: "192.0.2.9"}

func runChain(t *testing.T, e *env) {
	t.Helper()
	ctx := context.Background()

	step1, err := e.svc.Find(ctx, "alice@example.com")
	require.NoError(t, err)

	step2, err := e.svc.SendCode(ctx, step1)
	require.NoError(t, err)

	code := e.jobs.lastCode()
	require.Len(t, code, otp.CodeLength)

	step3, err := e.svc.VerifyCode(ctx, step2, code)
	require.NoError(t, err)

	require.NoError(t, e.svc.Reset(ctx, step3, "brand-new-password", client))
}

func TestFullChain(t *testing.T) {
	e := newEnv(t)
	runChain(t, e)

	u, err := e.users.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("brand-new-password")))
}

func TestFindUnknownEmail(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Find(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestFindUnverifiedAccount(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Find(context.Background(), "pending@example.com")
	assert.True(t, errors.Is(err, apperror.ErrNotVerified))
}

func TestStepTokensAreSingleUse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	step1, err := e.svc.Find(ctx, "alice@example.com")
	require.NoError(t, err)

	_, err = e.svc.SendCode(ctx, step1)
	require.NoError(t, err)

	// Replaying the consumed step-1 token must fail.
	_, err = e.svc.SendCode(ctx, step1)
	assert.True(t, errors.Is(err, apperror.ErrRevoked))
}

func TestStepsCannotBeSkipped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	step1, err := e.svc.Find(ctx, "alice@example.com")
	require.NoError(t, err)

	// The step-1 token does not open later transitions.
	_, err = e.svc.VerifyCode(ctx, step1, "123456")
	assert.True(t, errors.Is(err, apperror.ErrCredentialInvalid))

	err = e.svc.Reset(ctx, step1, "whatever-password", client)
	assert.True(t, errors.Is(err, apperror.ErrCredentialInvalid))
}

func TestOtherKindsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.SendCode(ctx, "")
	assert.True(t, errors.Is(err, apperror.ErrCredentialMissing))

	_, err = e.svc.SendCode(ctx, "garbage-token")
	assert.True(t, errors.Is(err, apperror.ErrCredentialInvalid))
}

func TestVerifyWrongCodeKeepsStep(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	step1, err := e.svc.Find(ctx, "alice@example.com")
	require.NoError(t, err)
	step2, err := e.svc.SendCode(ctx, step1)
	require.NoError(t, err)

	code := e.jobs.lastCode()
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, err = e.svc.VerifyCode(ctx, step2, wrong)
	require.Error(t, err)

	// Consuming step 2 deny-listed it even though the code was wrong; the
	// user has to restart from Find.
	_, err = e.svc.VerifyCode(ctx, step2, code)
	assert.True(t, errors.Is(err, apperror.ErrRevoked))
}

func TestNewFindResetsChain(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	now := time.Now()
	e.store.SetClock(func() time.Time { return now })

	step1, err := e.svc.Find(ctx, "alice@example.com")
	require.NoError(t, err)
	_, err = e.svc.SendCode(ctx, step1)
	require.NoError(t, err)

	// Starting over wipes the in-flight chain: the fresh step-1 token works
	// even though the previous one was consumed. The resend cooldown is
	// deliberately not reset, so wait it out.
	fresh, err := e.svc.Find(ctx, "alice@example.com")
	require.NoError(t, err)

	now = now.Add(limiter.CooldownBase + time.Second)
	_, err = e.svc.SendCode(ctx, fresh)
	assert.NoError(t, err)
}

func TestChainCanRunTwice(t *testing.T) {
	e := newEnv(t)
	runChain(t, e)
	runChain(t, e)
}
