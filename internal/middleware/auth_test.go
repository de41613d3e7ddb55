package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactly/core/internal/modules/auth/revocation"
	"github.com/contactly/core/internal/modules/auth/session"
	"github.com/contactly/core/internal/pkg/cache"
	"github.com/contactly/core/internal/pkg/clientinfo"
	"github.com/contactly/core/internal/pkg/credential"
)

type guardEnv struct {
	signer   *credential.Signer
	ledger   *revocation.Ledger
	sessions *session.Registry
	router   *gin.Engine
}

func newGuardEnv(t *testing.T) *guardEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signer, err := credential.NewSigner(credential.Secrets{
		Access:         "a-secret",
		Refresh:        "r-secret",
		Recover:        "rec-secret",
		Activation:     "act-secret",
		PasswordChange: "pwd-secret",
	})
	require.NoError(t, err)

	store := cache.NewMemory()
	ledger := revocation.New(store)
	sessions := session.NewRegistry(store)

	router := gin.New()
	router.GET("/protected", Auth(signer, ledger, sessions), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    CurrentUserID(c),
			"session_id": CurrentSessionID(c),
		})
	})
	return &guardEnv{signer: signer, ledger: ledger, sessions: sessions, router: router}
}

func (e *guardEnv) openSession(t *testing.T, userID string) (string, string) {
	t.Helper()
	rec, err := e.sessions.Create(context.Background(), userID, clientinfo.Info{}, time.Hour)
	require.NoError(t, err)
	token, err := e.signer.Sign(credential.KindAccess, userID, rec.SessionID)
	require.NoError(t, err)
	return token, rec.SessionID
}

func (e *guardEnv) request(token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestGuardAllowsValidToken(t *testing.T) {
	e := newGuardEnv(t)
	token, sid := e.openSession(t, "u1")

	w := e.request(token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u1")
	assert.Contains(t, w.Body.String(), sid)
}

func TestGuardReadsCookie(t *testing.T) {
	e := newGuardEnv(t)
	token, _ := e.openSession(t, "u1")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "ct-access", Value: token})
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGuardRejectsMissingToken(t *testing.T) {
	e := newGuardEnv(t)
	w := e.request("")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGuardRejectsGarbage(t *testing.T) {
	e := newGuardEnv(t)
	w := e.request("not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGuardRejectsRevokedToken(t *testing.T) {
	e := newGuardEnv(t)
	token, _ := e.openSession(t, "u1")

	require.NoError(t, e.ledger.Revoke(context.Background(), revocation.KindAccess, token, time.Hour))
	w := e.request(token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGuardRejectsRevokedSession(t *testing.T) {
	e := newGuardEnv(t)
	token, sid := e.openSession(t, "u1")

	require.NoError(t, e.ledger.Revoke(context.Background(), revocation.KindSession, sid, time.Hour))
	w := e.request(token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGuardRejectsRemovedSession(t *testing.T) {
	e := newGuardEnv(t)
	token, sid := e.openSession(t, "u1")

	require.NoError(t, e.sessions.Remove(context.Background(), "u1", sid))
	w := e.request(token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGuardRejectsWrongKind(t *testing.T) {
	e := newGuardEnv(t)
	_, sid := e.openSession(t, "u1")

	refresh, err := e.signer.Sign(credential.KindRefresh, "u1", sid)
	require.NoError(t, err)
	w := e.request(refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "abc", NormalizeToken("abc"))
	assert.Equal(t, "abc", NormalizeToken("Bearer abc"))
	assert.Equal(t, "abc", NormalizeToken("bearer abc"))
	assert.Equal(t, "abc", NormalizeToken("  Bearer  abc  "))
	assert.Equal(t, "", NormalizeToken("   "))
}
