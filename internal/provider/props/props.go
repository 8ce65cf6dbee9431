// Package props reads the string-keyed properties of a provider entry in the
// configuration file.
package props

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"bricksync/internal/domain"
)

// Props is the properties map of one provider.
type Props map[string]string

// Get returns the value for key, or def when it is unset or blank.
func (p Props) Get(key, def string) string {
	if v := strings.TrimSpace(p[key]); v != "" {
		return v
	}
	return def
}

// Require returns a *domain.ConfigError naming every missing key.
func (p Props) Require(provider string, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if p.Get(k, "") == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return domain.ErrConfig("provider %s: missing required properties: %s", provider, strings.Join(missing, ", "))
}

// Bool parses key as a boolean, returning def when unset.
func (p Props) Bool(provider, key string, def bool) (bool, error) {
	v := p.Get(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.ErrConfig("provider %s: property %s: invalid boolean %q", provider, key, v)
	}
	return b, nil
}

// Float parses key as a float, returning def when unset.
func (p Props) Float(provider, key string, def float64) (float64, error) {
	v := p.Get(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, domain.ErrConfig("provider %s: property %s: invalid number %q", provider, key, v)
	}
	return f, nil
}

// Duration parses key as a time.Duration, returning def when unset.
func (p Props) Duration(provider, key string, def time.Duration) (time.Duration, error) {
	v := p.Get(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, domain.ErrConfig("provider %s: property %s: invalid duration %q", provider, key, v)
	}
	return d, nil
}
