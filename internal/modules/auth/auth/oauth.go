package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contactly/core/internal/config"
	"github.com/contactly/core/internal/pkg/clientinfo"
	"github.com/contactly/core/internal/pkg/response"
)

// OAuthHandler handles social login flows for the configured providers.
type OAuthHandler struct {
	svc      *Service
	cfg      config.OAuthConfig
	cookies  CookieWriter
	resolver clientinfo.Resolver
}

func NewOAuthHandler(svc *Service, cfg config.OAuthConfig, cookies CookieWriter, resolver clientinfo.Resolver) *OAuthHandler {
	return &OAuthHandler{svc: svc, cfg: cfg, cookies: cookies, resolver: resolver}
}

func (h *OAuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth/oauth")

	g.GET("/providers", h.listProviders)
	g.GET("/:provider/redirect", h.redirectToProvider)
	g.GET("/:provider/callback", h.handleCallback)
}

func (h *OAuthHandler) provider(name string) *config.OAuthProvider {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "github":
		if h.cfg.GitHub.Enable && h.cfg.GitHub.ClientID != "" {
			return &h.cfg.GitHub
		}
	case "google":
		if h.cfg.Google.Enable && h.cfg.Google.ClientID != "" {
			return &h.cfg.Google
		}
	}
	return nil
}

// GET /auth/oauth/providers
func (h *OAuthHandler) listProviders(c *gin.Context) {
	providers := make([]string, 0, 2)
	if h.provider("github") != nil {
		providers = append(providers, "github")
	}
	if h.provider("google") != nil {
		providers = append(providers, "google")
	}
	c.JSON(http.StatusOK, providers)
}

// GET /auth/oauth/:provider/redirect?callback_url=...
func (h *OAuthHandler) redirectToProvider(c *gin.Context) {
	providerID := c.Param("provider")
	p := h.provider(providerID)
	if p == nil {
		response.NotFoundMsg(c, "oauth provider not found or not configured")
		return
	}
	authURL := buildAuthURL(providerID, p, c.Query("callback_url"))
	if authURL == "" {
		response.NotFoundMsg(c, "oauth provider not found or not configured")
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// GET /auth/oauth/:provider/callback?code=...&state=...
func (h *OAuthHandler) handleCallback(c *gin.Context) {
	providerID := strings.ToLower(c.Param("provider"))
	code := c.Query("code")
	if code == "" {
		response.BadRequest(c, "missing code")
		return
	}
	p := h.provider(providerID)
	if p == nil {
		response.NotFoundMsg(c, "oauth provider not found or not configured")
		return
	}

	accessToken, err := exchangeCode(providerID, code, p)
	if err != nil {
		response.InternalError(c, fmt.Errorf("token exchange failed: %w", err))
		return
	}
	social, err := fetchSocialUser(providerID, accessToken)
	if err != nil {
		response.InternalError(c, fmt.Errorf("failed to fetch user info: %w", err))
		return
	}

	name := social.Name
	if name == "" {
		name = social.Login
	}
	u, pair, err := h.svc.LoginOAuth(c.Request.Context(), providerID, social.ID, social.Email, name, h.resolver.Resolve(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.SetPair(c, pair, true)

	// state carries the client callback URL to bounce back to.
	if callbackURL := strings.TrimSpace(c.Query("state")); callbackURL != "" {
		if redirectWithToken(c, callbackURL, pair.AccessToken) {
			return
		}
	}
	response.OK(c, gin.H{"user": publicUser(u), "tokens": pair})
}

type socialUserInfo struct {
	ID    string
	Login string
	Email string
	Name  string
}

func buildAuthURL(providerID string, p *config.OAuthProvider, callbackURL string) string {
	params := url.Values{}
	params.Set("client_id", p.ClientID)
	params.Set("redirect_uri", p.RedirectURL)
	if callbackURL != "" {
		params.Set("state", callbackURL)
	}
	switch providerID {
	case "github":
		params.Set("scope", "user:email")
		return "https://github.com/login/oauth/authorize?" + params.Encode()
	case "google":
		params.Set("response_type", "code")
		params.Set("scope", "openid email profile")
		params.Set("access_type", "offline")
		return "https://accounts.google.com/o/oauth2/v2/auth?" + params.Encode()
	}
	return ""
}

func exchangeCode(providerID, code string, p *config.OAuthProvider) (string, error) {
	client := &http.Client{Timeout: 15 * time.Second}

	var endpoint string
	body := url.Values{}
	body.Set("client_id", p.ClientID)
	body.Set("client_secret", p.ClientSecret)
	body.Set("code", code)
	body.Set("redirect_uri", p.RedirectURL)

	switch providerID {
	case "github":
		endpoint = "https://github.com/login/oauth/access_token"
	case "google":
		endpoint = "https://oauth2.googleapis.com/token"
		body.Set("grant_type", "authorization_code")
	default:
		return "", fmt.Errorf("unsupported provider %q", providerID)
	}

	req, err := http.NewRequest("POST", endpoint, bytes.NewBufferString(body.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("provider error: %s", result.Error)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("provider returned no access token")
	}
	return result.AccessToken, nil
}

func fetchSocialUser(providerID, accessToken string) (*socialUserInfo, error) {
	client := &http.Client{Timeout: 15 * time.Second}

	var endpoint string
	switch providerID {
	case "github":
		endpoint = "https://api.github.com/user"
	case "google":
		endpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
	default:
		return nil, fmt.Errorf("unsupported provider %q", providerID)
	}

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	switch providerID {
	case "github":
		var body struct {
			ID    int64  `json:"id"`
			Login string `json:"login"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, err
		}
		return &socialUserInfo{
			ID:    strconv.FormatInt(body.ID, 10),
			Login: body.Login,
			Email: body.Email,
			Name:  body.Name,
		}, nil
	default:
		var body struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, err
		}
		return &socialUserInfo{ID: body.ID, Email: body.Email, Name: body.Name}, nil
	}
}

func redirectWithToken(c *gin.Context, callbackURL, token string) bool {
	target, err := url.Parse(strings.TrimSpace(callbackURL))
	if err != nil || target == nil {
		return false
	}
	q := target.Query()
	q.Set("token", token)
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusTemporaryRedirect, target.String())
	return true
}
