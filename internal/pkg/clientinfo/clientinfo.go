package clientinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Info describes the device behind a request. Stored on session records and
// echoed in security notifications.
type Info struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"`
	IP         string `json:"ip"`
	Location   string `json:"location"`
}

// Resolver turns an inbound request into client metadata.
type Resolver interface {
	Resolve(c *gin.Context) Info
}

// HTTPResolver parses the User-Agent locally and, when an endpoint is
// configured, resolves the IP's location over HTTP. Lookup failures degrade to
// an empty location, never an error.
type HTTPResolver struct {
	geoEndpoint string
	client      *http.Client
}

func NewResolver(geoEndpoint string) *HTTPResolver {
	return &HTTPResolver{
		geoEndpoint: strings.TrimSpace(geoEndpoint),
		client:      &http.Client{Timeout: 3 * time.Second},
	}
}

func (r *HTTPResolver) Resolve(c *gin.Context) Info {
	info := ParseUserAgent(c.Request.UserAgent())
	info.IP = c.ClientIP()
	info.Location = r.lookupLocation(c.Request.Context(), info.IP)
	return info
}

func (r *HTTPResolver) lookupLocation(ctx context.Context, ip string) string {
	if r.geoEndpoint == "" || ip == "" || ip == "127.0.0.1" || ip == "::1" {
		return ""
	}
	lookupCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(lookupCtx, http.MethodGet,
		fmt.Sprintf("%s/%s", strings.TrimRight(r.geoEndpoint, "/"), url.PathEscape(ip)), nil)
	if err != nil {
		return ""
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var body struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}
	parts := []string{}
	for _, p := range []string{body.City, body.Region, body.Country} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ParseUserAgent extracts browser/os/device type with substring checks.
func ParseUserAgent(ua string) Info {
	info := Info{Browser: "Unknown", OS: "Unknown", DeviceType: "desktop"}
	lower := strings.ToLower(ua)

	switch {
	case strings.Contains(lower, "edg/"):
		info.Browser = "Edge"
	case strings.Contains(lower, "chrome/"):
		info.Browser = "Chrome"
	case strings.Contains(lower, "safari/") && strings.Contains(lower, "version/"):
		info.Browser = "Safari"
	case strings.Contains(lower, "firefox/"):
		info.Browser = "Firefox"
	}

	// iPhone/iPad UAs carry "like Mac OS X", so check them before macOS.
	switch {
	case strings.Contains(lower, "windows"):
		info.OS = "Windows"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"):
		info.OS = "iOS"
	case strings.Contains(lower, "android"):
		info.OS = "Android"
	case strings.Contains(lower, "mac os"):
		info.OS = "macOS"
	case strings.Contains(lower, "linux"):
		info.OS = "Linux"
	}

	switch {
	case strings.Contains(lower, "bot"), strings.Contains(lower, "crawler"), strings.Contains(lower, "spider"):
		info.DeviceType = "bot"
	case strings.Contains(lower, "tablet"), strings.Contains(lower, "ipad"):
		info.DeviceType = "tablet"
	case strings.Contains(lower, "mobile"):
		info.DeviceType = "mobile"
	}
	return info
}
