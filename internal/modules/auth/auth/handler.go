package auth

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/contactly/core/internal/middleware"
	"github.com/contactly/core/internal/models"
	"github.com/contactly/core/internal/modules/user"
	"github.com/contactly/core/internal/pkg/clientinfo"
	"github.com/contactly/core/internal/pkg/credential"
	"github.com/contactly/core/internal/pkg/response"
)

type Handler struct {
	svc      *Service
	cookies  CookieWriter
	resolver clientinfo.Resolver
}

func NewHandler(svc *Service, cookies CookieWriter, resolver clientinfo.Resolver) *Handler {
	return &Handler{svc: svc, cookies: cookies, resolver: resolver}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	a := rg.Group("/auth")

	a.POST("/signup", h.signup)
	a.POST("/verify", h.verify)
	a.POST("/verify/resend", h.resendCode)
	a.POST("/login", h.login)
	a.POST("/login/clear-devices", h.clearAndLogin)
	a.POST("/refresh", h.refresh)
	a.POST("/logout", h.logout)

	sess := a.Group("/sessions", authMW)
	sess.GET("", h.listSessions)
	sess.DELETE("/:sid", h.removeSession)
}

func (h *Handler) signup(c *gin.Context) {
	var dto SignupDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, activation, err := h.svc.Signup(c.Request.Context(), dto, h.resolver.Resolve(c))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			response.Conflict(c, "email already registered")
			return
		}
		response.Error(c, err)
		return
	}
	h.cookies.SetActivation(c, activation)
	response.Created(c, gin.H{
		"id":               u.ID,
		"email":            u.Email,
		"activation_token": activation,
	})
}

func (h *Handler) resendCode(c *gin.Context) {
	userID, err := h.svc.VerifyActivation(c.Request.Context(), TokenFromRequest(c, CookieActivation))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.svc.ResendCode(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "verification code sent"})
}

func (h *Handler) verify(c *gin.Context) {
	var dto VerifyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token := TokenFromRequest(c, CookieActivation)
	u, pair, err := h.svc.Verify(c.Request.Context(), token, dto, h.resolver.Resolve(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.clear(c, CookieActivation)
	h.cookies.SetPair(c, pair, dto.RememberMe)
	response.OK(c, gin.H{"user": publicUser(u), "tokens": pair})
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, pair, err := h.svc.Login(c.Request.Context(), dto, h.resolver.Resolve(c))
	if err != nil {
		h.loginError(c, err)
		return
	}
	h.cookies.SetPair(c, pair, dto.RememberMe)
	response.OK(c, gin.H{"user": publicUser(u), "tokens": pair})
}

func (h *Handler) clearAndLogin(c *gin.Context) {
	var dto ClearLoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, pair, err := h.svc.ClearAndLogin(c.Request.Context(), dto, h.resolver.Resolve(c))
	if err != nil {
		h.loginError(c, err)
		return
	}
	h.cookies.SetPair(c, pair, dto.RememberMe)
	response.OK(c, gin.H{"user": publicUser(u), "tokens": pair})
}

func (h *Handler) loginError(c *gin.Context, err error) {
	if errors.Is(err, errBadCredentials) {
		response.ForbiddenMsg(c, "incorrect email or password")
		return
	}
	response.Error(c, err)
}

func (h *Handler) refresh(c *gin.Context) {
	token := TokenFromRequest(c, CookieRefresh)
	access, err := h.svc.Refresh(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.set(c, CookieAccess, access, credential.AccessTTL)
	response.OK(c, gin.H{"access_token": access})
}

func (h *Handler) logout(c *gin.Context) {
	accessToken := TokenFromRequest(c, CookieAccess)
	refreshToken := TokenFromRequest(c, CookieRefresh)
	if err := h.svc.Logout(c.Request.Context(), accessToken, refreshToken, h.resolver.Resolve(c)); err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.ClearAll(c)
	response.NoContent(c)
}

func (h *Handler) listSessions(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	current := middleware.CurrentSessionID(c)

	records, err := h.svc.ListSessions(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]sessionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, sessionResponse{
			SessionID:  rec.SessionID,
			Browser:    rec.Browser,
			OS:         rec.OS,
			DeviceType: rec.DeviceType,
			IP:         rec.IP,
			Location:   rec.Location,
			CreatedAt:  rec.CreatedAt,
			LastUsedAt: rec.LastUsedAt,
			ExpiredAt:  rec.ExpiredAt,
			Current:    rec.SessionID == current,
		})
	}
	response.OK(c, out)
}

func (h *Handler) removeSession(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if err := h.svc.RemoveSession(c.Request.Context(), userID, c.Param("sid")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func publicUser(u *models.User) gin.H {
	return gin.H{
		"id":          u.ID,
		"email":       u.Email,
		"name":        u.Name,
		"is_verified": u.IsVerified,
		"avatar":      u.Avatar,
	}
}
