package auth

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contactly/core/internal/pkg/credential"
)

// Cookie names, one per credential kind that travels via cookie.
const (
	CookieAccess     = "ct-access"
	CookieRefresh    = "ct-refresh"
	CookieActivation = "ct-activate"
	CookieRecover    = "ct-recover"
	CookiePwdChange  = "ct-pwd-change"
)

// CookieWriter sets HTTP-only credential cookies scoped by environment:
// Secure is on outside development, the domain comes from config.
type CookieWriter struct {
	Domain string
	Secure bool
}

func (w CookieWriter) set(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetCookie(name, value, int(ttl.Seconds()), "/", w.Domain, w.Secure, true)
}

func (w CookieWriter) clear(c *gin.Context, name string) {
	c.SetCookie(name, "", -1, "/", w.Domain, w.Secure, true)
}

// SetPair writes the access+refresh cookies for a fresh session.
func (w CookieWriter) SetPair(c *gin.Context, pair *TokenPair, rememberMe bool) {
	refreshTTL := credential.RefreshShortTTL
	if rememberMe {
		refreshTTL = credential.RefreshTTL
	}
	w.set(c, CookieAccess, pair.AccessToken, credential.AccessTTL)
	w.set(c, CookieRefresh, pair.RefreshToken, refreshTTL)
}

// SetActivation writes the activation cookie issued at signup.
func (w CookieWriter) SetActivation(c *gin.Context, token string) {
	w.set(c, CookieActivation, token, credential.ActivationTTL)
}

// SetRecover writes the current recovery-step cookie.
func (w CookieWriter) SetRecover(c *gin.Context, token string) {
	w.set(c, CookieRecover, token, credential.RecoverTTL)
}

// SetPwdChange writes the password-change-page cookie.
func (w CookieWriter) SetPwdChange(c *gin.Context, token string) {
	w.set(c, CookiePwdChange, token, credential.PasswordChangeTTL)
}

// ClearAll drops every credential cookie.
func (w CookieWriter) ClearAll(c *gin.Context) {
	for _, name := range []string{CookieAccess, CookieRefresh, CookieActivation, CookieRecover, CookiePwdChange} {
		w.clear(c, name)
	}
}

// TokenFromRequest pulls a credential from the named cookie, falling back to
// the Authorization header.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if raw, err := c.Cookie(cookieName); err == nil {
		if token := strings.TrimSpace(raw); token != "" {
			return token
		}
	}
	return NormalizeBearer(c.GetHeader("Authorization"))
}

// NormalizeBearer trims spaces and strips an optional Bearer prefix.
func NormalizeBearer(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
