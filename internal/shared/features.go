package shared

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// FeatureEnabledKey gates the whole card core.
const FeatureEnabledKey = "smart_space_enabled"

// FeatureConstants is a parsed comma-separated key=value list.
type FeatureConstants map[string]string

// ParseFeatureConstants parses "a=1,b=true" into a [FeatureConstants] map.
//
// Blank entries are skipped. An entry without '=' or with an empty key is an error.
func ParseFeatureConstants(s string) (FeatureConstants, error) {
	constants := FeatureConstants{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: bad pair %q", ErrBadFeatureConstants, pair)
		}
		constants[key] = strings.TrimSpace(value)
	}
	return constants, nil
}

// Bool returns the boolean value for key, or def when the key is absent or not a boolean.
func (f FeatureConstants) Bool(key string, def bool) bool {
	v, ok := f[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// FeatureEnabled reports whether the card core should activate for the given constants string.
//
// Unparseable constants are logged and treated as enabled.
func FeatureEnabled(constants string, logger *log.Logger) bool {
	parsed, err := ParseFeatureConstants(constants)
	if err != nil {
		if logger != nil {
			logger.Error("Bad feature constants", "error", err)
		}
		return true
	}
	return parsed.Bool(FeatureEnabledKey, true)
}
