package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/contactly/core/internal/config"
)

func applyRuntimeSettings(cfg *config.AppConfig) error {
	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		return nil
	}
	loc, err := resolveTimezone(tz)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", tz, err)
	}
	time.Local = loc
	_ = os.Setenv("TZ", tz)
	return nil
}

// resolveTimezone accepts an IANA zone name or a fixed UTC offset in the
// form ±HH:MM.
func resolveTimezone(tz string) (*time.Location, error) {
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}
	if loc := parseFixedOffset(tz); loc != nil {
		return loc, nil
	}
	return nil, fmt.Errorf("want an IANA zone (Europe/Berlin) or an offset (+02:00)")
}

func parseFixedOffset(tz string) *time.Location {
	if len(tz) != 6 || tz[3] != ':' {
		return nil
	}
	sign := 0
	switch tz[0] {
	case '+':
		sign = 1
	case '-':
		sign = -1
	default:
		return nil
	}
	h, errH := strconv.Atoi(tz[1:3])
	m, errM := strconv.Atoi(tz[4:6])
	if errH != nil || errM != nil || h > 23 || m > 59 {
		return nil
	}
	return time.FixedZone(tz, sign*(h*3600+m*60))
}

// humanizeDuration renders an uptime as "12d 3h 4m" style text, keeping at
// most the two largest units.
func humanizeDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	units := []struct {
		step  time.Duration
		label string
	}{
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	}

	parts := make([]string, 0, 2)
	for _, u := range units {
		if n := d / u.step; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.label))
			d -= n * u.step
		}
		if len(parts) == 2 {
			break
		}
	}
	return strings.Join(parts, " ")
}
