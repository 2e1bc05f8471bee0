package mirror

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// PropPushTimeout is the property key of the per push timeout
	PropPushTimeout = "mirror.push.timeout"

	// DefaultPushTimeout is used when push timeout is not configured
	DefaultPushTimeout = 120 * time.Second
)

// PropertySource provides configuration properties
type PropertySource interface {
	// Duration returns the duration value of the key or def if
	// key is not set or invalid
	Duration(key string, def time.Duration) time.Duration
}

// Properties is a PropertySource backed by a map. duration values can be
// either go duration strings ("2m30s") or whole seconds ("150").
type Properties map[string]string

// Duration implements PropertySource
func (p Properties) Duration(key string, def time.Duration) time.Duration {
	d, ok, err := p.duration(key)
	if !ok || err != nil {
		return def
	}
	return d
}

func (p Properties) duration(key string) (time.Duration, bool, error) {
	v := strings.TrimSpace(p[key])
	if v == "" {
		return 0, false, nil
	}

	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs <= 0 {
			return 0, true, fmt.Errorf("%s must be positive got %s", key, v)
		}
		return time.Duration(secs) * time.Second, true, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, true, fmt.Errorf("invalid duration %s: %q", key, v)
	}
	if d <= 0 {
		return 0, true, fmt.Errorf("%s must be positive got %s", key, v)
	}
	return d, true, nil
}

// Validate verifies values of known properties
func (p Properties) Validate() error {
	if _, _, err := p.duration(PropPushTimeout); err != nil {
		return err
	}
	return nil
}
