package recovery

import (
	"github.com/gin-gonic/gin"

	"github.com/contactly/core/internal/modules/auth/auth"
	"github.com/contactly/core/internal/pkg/clientinfo"
	"github.com/contactly/core/internal/pkg/response"
)

type Handler struct {
	svc      *Service
	cookies  auth.CookieWriter
	resolver clientinfo.Resolver
}

func NewHandler(svc *Service, cookies auth.CookieWriter, resolver clientinfo.Resolver) *Handler {
	return &Handler{svc: svc, cookies: cookies, resolver: resolver}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/auth/recovery")
	g.POST("/find", h.find)
	g.POST("/code", h.sendCode)
	g.POST("/verify", h.verifyCode)
	g.POST("/reset", h.reset)
}

func (h *Handler) find(c *gin.Context) {
	var dto FindDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, err := h.svc.Find(c.Request.Context(), dto.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.SetRecover(c, token)
	response.OK(c, gin.H{"message": "account found"})
}

func (h *Handler) sendCode(c *gin.Context) {
	token, err := h.svc.SendCode(c.Request.Context(), h.stepToken(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.SetRecover(c, token)
	response.OK(c, gin.H{"message": "code sent"})
}

func (h *Handler) verifyCode(c *gin.Context) {
	var dto VerifyCodeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, err := h.svc.VerifyCode(c.Request.Context(), h.stepToken(c), dto.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.SetRecover(c, token)
	response.OK(c, gin.H{"message": "code verified"})
}

func (h *Handler) reset(c *gin.Context) {
	var dto ResetDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := h.svc.Reset(c.Request.Context(), h.stepToken(c), dto.Password, h.resolver.Resolve(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.ClearAll(c)
	response.OK(c, gin.H{"message": "password updated"})
}

func (h *Handler) stepToken(c *gin.Context) string {
	return auth.TokenFromRequest(c, auth.CookieRecover)
}
