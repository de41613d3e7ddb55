package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/contactly/core/internal/pkg/cache"
)

// Kind namespaces deny-list entries so a revoked session id can never shadow a
// revoked token string and vice versa.
type Kind string

const (
	KindAccess         Kind = "access"
	KindRefresh        Kind = "refresh"
	KindSession        Kind = "session"
	KindActivation     Kind = "activation"
	KindPasswordChange Kind = "passwordChange"
)

// RecoverStep returns the deny-list kind for a recovery step token. Entries
// under it are keyed by user id, not token value: one in-flight chain per user.
func RecoverStep(step int) Kind {
	return Kind(fmt.Sprintf("recover:%d", step))
}

// Ledger is the deny-list of revoked token strings and session ids. An entry's
// existence means rejected; its TTL is bounded by the remaining life of the
// thing it revokes, so entries expire on their own and need no sweeping.
type Ledger struct {
	store cache.Store
}

func New(store cache.Store) *Ledger {
	return &Ledger{store: store}
}

func key(kind Kind, value string) string {
	return fmt.Sprintf("blacklist:%s:%s", kind, value)
}

// Revoke writes a deny-list entry. ttl must cover the remaining validity of
// the revoked item; non-positive ttls are dropped since the item is already
// dead.
func (l *Ledger) Revoke(ctx context.Context, kind Kind, value string, ttl time.Duration) error {
	if value == "" || ttl <= 0 {
		return nil
	}
	return l.store.Set(ctx, key(kind, value), "1", ttl)
}

// IsRevoked reports whether value is deny-listed under kind.
func (l *Ledger) IsRevoked(ctx context.Context, kind Kind, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	return l.store.Exists(ctx, key(kind, value))
}

// Unrevoke drops a deny-list entry before its TTL runs out. Used when a new
// recovery chain overwrites an in-flight one.
func (l *Ledger) Unrevoke(ctx context.Context, kind Kind, value string) error {
	if value == "" {
		return nil
	}
	return l.store.Del(ctx, key(kind, value))
}

// RevokeInPipe adds the deny-list write to an open batch.
func RevokeInPipe(p cache.Pipeliner, kind Kind, value string, ttl time.Duration) {
	if value == "" || ttl <= 0 {
		return
	}
	p.Set(key(kind, value), "1", ttl)
}
