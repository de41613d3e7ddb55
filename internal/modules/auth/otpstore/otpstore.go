package otpstore

import (
	"context"
	"fmt"
	"time"

	"github.com/contactly/core/internal/pkg/apperror"
	"github.com/contactly/core/internal/pkg/cache"
	"github.com/contactly/core/internal/pkg/otp"
)

// CodeTTL is the lifetime of a one-time code.
const CodeTTL = 4 * time.Minute

func key(userID string) string { return fmt.Sprintf("user:otp:%s", userID) }

// Store keeps at most one live code digest per user. A resend overwrites the
// previous digest, so older codes stop verifying the moment a new one is
// issued.
type Store struct {
	store cache.Store
	codec *otp.Codec
}

func New(store cache.Store, codec *otp.Codec) *Store {
	return &Store{store: store, codec: codec}
}

// Issue generates a fresh code, stores its digest and returns the plaintext
// code for delivery. The plaintext is never persisted.
func (s *Store) Issue(ctx context.Context, userID string) (string, error) {
	code, err := otp.Generate()
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, key(userID), s.codec.Hash(code), CodeTTL); err != nil {
		return "", err
	}
	return code, nil
}

// Consume verifies a submitted code against the stored digest and deletes it
// on success. Absent, expired and wrong codes all yield the same error so the
// caller cannot distinguish which check failed.
func (s *Store) Consume(ctx context.Context, userID, code string) error {
	stored, ok, err := s.store.Get(ctx, key(userID))
	if err != nil {
		return err
	}
	if !ok || !s.codec.Compare(code, stored) {
		return apperror.Validationf("invalid or expired code")
	}
	return s.store.Del(ctx, key(userID))
}

// Clear drops any live code without verifying it.
func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.store.Del(ctx, key(userID))
}
