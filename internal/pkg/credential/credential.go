package credential

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/contactly/core/internal/pkg/apperror"
)

// Kind selects which credential family a token belongs to. Each kind is signed
// with its own secret, so a token of one kind never verifies as another.
type Kind string

const (
	KindAccess         Kind = "access"
	KindRefresh        Kind = "refresh"
	KindRecover        Kind = "recover"
	KindActivation     Kind = "activation"
	KindPasswordChange Kind = "passwordChange"
)

// Fixed lifetimes per kind. Refresh has a short variant for sessions created
// without remember-me.
const (
	AccessTTL         = 15 * time.Minute
	RefreshTTL        = 7 * 24 * time.Hour
	RefreshShortTTL   = 24 * time.Hour
	RecoverTTL        = 5 * time.Minute
	ActivationTTL     = 24 * time.Hour
	PasswordChangeTTL = 15 * time.Minute
)

// Claims is the signed payload.
type Claims struct {
	SessionID string `json:"sid,omitempty"`
	jwtlib.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }

// Secrets carries one signing secret per kind.
type Secrets struct {
	Access         string
	Refresh        string
	Recover        string
	Activation     string
	PasswordChange string
}

// Signer issues and verifies the five credential kinds. Verification is pure:
// no store access, fails closed on any signature or expiry problem.
type Signer struct {
	secrets map[Kind][]byte
	ttls    map[Kind]time.Duration
}

// NewSigner builds a signer from per-kind secrets. Empty secrets are rejected
// so a misconfigured deployment cannot silently sign everything with "".
func NewSigner(s Secrets) (*Signer, error) {
	secrets := map[Kind][]byte{
		KindAccess:         []byte(s.Access),
		KindRefresh:        []byte(s.Refresh),
		KindRecover:        []byte(s.Recover),
		KindActivation:     []byte(s.Activation),
		KindPasswordChange: []byte(s.PasswordChange),
	}
	for kind, secret := range secrets {
		if len(secret) == 0 {
			return nil, fmt.Errorf("credential: empty secret for kind %q", kind)
		}
	}
	return &Signer{
		secrets: secrets,
		ttls: map[Kind]time.Duration{
			KindAccess:         AccessTTL,
			KindRefresh:        RefreshTTL,
			KindRecover:        RecoverTTL,
			KindActivation:     ActivationTTL,
			KindPasswordChange: PasswordChangeTTL,
		},
	}, nil
}

// TTL returns the fixed lifetime of a kind.
func (s *Signer) TTL(kind Kind) time.Duration { return s.ttls[kind] }

// Sign issues a credential for userID, optionally bound to a session id.
func (s *Signer) Sign(kind Kind, userID, sessionID string) (string, error) {
	return s.SignWithTTL(kind, userID, sessionID, s.ttls[kind])
}

// SignWithTTL issues a credential with an explicit lifetime (refresh short
// variant). ttl must be positive.
func (s *Signer) SignWithTTL(kind Kind, userID, sessionID string, ttl time.Duration) (string, error) {
	secret, ok := s.secrets[kind]
	if !ok {
		return "", fmt.Errorf("credential: unknown kind %q", kind)
	}
	if strings.TrimSpace(userID) == "" {
		return "", apperror.Validationf("subject is required")
	}
	if ttl <= 0 {
		ttl = s.ttls[kind]
	}

	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Verify validates a token of the given kind and returns its claims.
func (s *Signer) Verify(kind Kind, tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, apperror.ErrCredentialMissing
	}
	secret, ok := s.secrets[kind]
	if !ok {
		return nil, fmt.Errorf("credential: unknown kind %q", kind)
	}

	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrCredentialInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, apperror.ErrCredentialInvalid
	}
	return claims, nil
}
