package otpstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactly/core/internal/pkg/cache"
	"github.com/contactly/core/internal/pkg/otp"
)

func newStore(t *testing.T) (*Store, *cache.Memory) {
	t.Helper()
	codec, err := otp.NewCodec("test-pepper")
	require.NoError(t, err)
	mem := cache.NewMemory()
	return New(mem, codec), mem
}

func TestIssueAndConsume(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	code, err := s.Issue(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, code, otp.CodeLength)

	require.NoError(t, s.Consume(ctx, "u1", code))

	// Consumed codes do not verify twice.
	err = s.Consume(ctx, "u1", code)
	assert.Error(t, err)
}

func TestConsumeWrongCode(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	code, err := s.Issue(ctx, "u1")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	require.Error(t, s.Consume(ctx, "u1", wrong))

	// A wrong attempt does not invalidate the live code.
	assert.NoError(t, s.Consume(ctx, "u1", code))
}

func TestReissueInvalidatesPrevious(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	first, err := s.Issue(ctx, "u1")
	require.NoError(t, err)
	second, err := s.Issue(ctx, "u1")
	require.NoError(t, err)

	if first != second {
		require.Error(t, s.Consume(ctx, "u1", first))
	}
	assert.NoError(t, s.Consume(ctx, "u1", second))
}

func TestCodeExpiry(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)

	now := time.Now()
	mem.SetClock(func() time.Time { return now })

	code, err := s.Issue(ctx, "u1")
	require.NoError(t, err)

	now = now.Add(CodeTTL + time.Second)
	assert.Error(t, s.Consume(ctx, "u1", code))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	code, err := s.Issue(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx, "u1"))
	assert.Error(t, s.Consume(ctx, "u1", code))
}
