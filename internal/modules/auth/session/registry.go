package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contactly/core/internal/modules/auth/revocation"
	"github.com/contactly/core/internal/pkg/cache"
	"github.com/contactly/core/internal/pkg/clientinfo"
	"github.com/contactly/core/internal/pkg/credential"
)

// Record is the server-held metadata for one authenticated device. It lives
// under a per-session cache key whose TTL equals the refresh credential TTL in
// effect when the session was created.
type Record struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	DeviceType string    `json:"device_type"`
	IP         string    `json:"ip"`
	Location   string    `json:"location"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiredAt  time.Time `json:"expired_at"`
}

func indexKey(userID string) string { return fmt.Sprintf("user:%s:sessions", userID) }

func recordKey(userID, sid string) string {
	return fmt.Sprintf("user:%s:sessions:%s", userID, sid)
}

// Registry tracks active sessions: one TTL record per session plus a per-user
// index set used only for enumeration. The index carries no TTL of its own, so
// members can outlive their record; readers filter and lazily prune.
type Registry struct {
	store cache.Store
}

func NewRegistry(store cache.Store) *Registry {
	return &Registry{store: store}
}

// Create builds a record from client metadata and writes record + index
// membership as one batch. ttl is the refresh TTL variant in effect.
func (r *Registry) Create(ctx context.Context, userID string, info clientinfo.Info, ttl time.Duration) (*Record, error) {
	now := time.Now()
	rec := &Record{
		SessionID:  uuid.New().String(),
		UserID:     userID,
		Browser:    info.Browser,
		OS:         info.OS,
		DeviceType: info.DeviceType,
		IP:         info.IP,
		Location:   info.Location,
		CreatedAt:  now,
		LastUsedAt: now,
		ExpiredAt:  now.Add(ttl),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	err = r.store.Pipelined(ctx, func(p cache.Pipeliner) {
		p.Set(recordKey(userID, rec.SessionID), string(data), ttl)
		p.SAdd(indexKey(userID), rec.SessionID)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns the record for one session, or nil when expired/unknown.
func (r *Registry) Get(ctx context.Context, userID, sid string) (*Record, error) {
	raw, ok, err := r.store.Get(ctx, recordKey(userID, sid))
	if err != nil || !ok {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List enumerates a user's live sessions. Index members whose record has
// expired are dropped from the result and pruned from the index best-effort;
// a crash between Remove's batch commands therefore heals here.
func (r *Registry) List(ctx context.Context, userID string) ([]Record, error) {
	sids, err := r.store.SMembers(ctx, indexKey(userID))
	if err != nil {
		return nil, err
	}
	if len(sids) == 0 {
		return []Record{}, nil
	}

	keys := make([]string, len(sids))
	for i, sid := range sids {
		keys[i] = recordKey(userID, sid)
	}
	values, err := r.store.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(sids))
	var stale []string
	for i, sid := range sids {
		raw, ok := values[keys[i]]
		if !ok {
			stale = append(stale, sid)
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			stale = append(stale, sid)
			continue
		}
		records = append(records, rec)
	}
	if len(stale) > 0 {
		_ = r.store.SRem(ctx, indexKey(userID), stale...)
	}
	return records, nil
}

// Touch rewrites the record with a fresh last-used timestamp while keeping the
// existing TTL: session lifetime is fixed at creation, never sliding.
func (r *Registry) Touch(ctx context.Context, userID, sid string) error {
	rec, err := r.Get(ctx, userID, sid)
	if err != nil || rec == nil {
		return err
	}
	rec.LastUsedAt = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, recordKey(userID, sid), string(data), cache.KeepTTL)
}

// Remove deny-lists the session id, drops it from the index and deletes its
// record. The three commands go out as one batch but are not atomic; List
// tolerates the partial states a crash can leave behind.
func (r *Registry) Remove(ctx context.Context, userID, sid string) error {
	ttl := credential.RefreshTTL
	if rec, err := r.Get(ctx, userID, sid); err == nil && rec != nil {
		if remaining := time.Until(rec.ExpiredAt); remaining > 0 {
			ttl = remaining
		}
	}
	return r.store.Pipelined(ctx, func(p cache.Pipeliner) {
		revocation.RevokeInPipe(p, revocation.KindSession, sid, ttl)
		p.SRem(indexKey(userID), sid)
		p.Del(recordKey(userID, sid))
	})
}

// RemoveAll removes every session in the index, deny-listing each id.
func (r *Registry) RemoveAll(ctx context.Context, userID string) error {
	sids, err := r.store.SMembers(ctx, indexKey(userID))
	if err != nil {
		return err
	}
	for _, sid := range sids {
		if err := r.Remove(ctx, userID, sid); err != nil {
			return err
		}
	}
	return r.store.Del(ctx, indexKey(userID))
}
