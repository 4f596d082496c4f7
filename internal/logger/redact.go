package logger

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	sensitiveKeyRe = regexp.MustCompile(`(?i)(authorization|token|secret|password|cookie|set-cookie|api[-_]?key)`)
	emailRe        = regexp.MustCompile(`(?i)([a-z0-9._%+-]{1,64})@([a-z0-9.-]+\.[a-z]{2,})`)
)

// RedactionMarker replaces values stored under sensitive keys.
const RedactionMarker = "[REDACTED]"

// MaskEmail keeps the first character of the local part and the full domain,
// so operators can still correlate events without logging the address.
// Non-email input is returned unchanged.
func MaskEmail(s string) string {
	m := emailRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return m[1][:1] + "***@" + m[2]
}

// Redact returns a copy of fields safe for logging: values under keys that
// match the sensitive-key pattern are replaced by the redaction marker and
// email-looking string values are partially masked. Nested maps and string
// slices are walked recursively.
func Redact(fields logrus.Fields) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for k, v := range fields {
		out[k] = redactValue(k, v)
	}
	return out
}

// RedactMap is the map[string]interface{} variant used by the event log.
func RedactMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = redactValue(k, v)
	}
	return out
}

func redactValue(key string, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	if sensitiveKeyRe.MatchString(key) {
		return RedactionMarker
	}
	switch val := v.(type) {
	case string:
		if emailRe.MatchString(val) {
			return MaskEmail(val)
		}
		return val
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			if s, ok := redactValue(key, item).(string); ok {
				out[i] = s
			} else {
				out[i] = RedactionMarker
			}
		}
		return out
	case map[string]interface{}:
		return RedactMap(val)
	case logrus.Fields:
		return Redact(val)
	default:
		return v
	}
}

// SanitizeForLog removes control characters and newlines from user content
// before logging, preventing log injection through request data.
func SanitizeForLog(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	re := regexp.MustCompile(`[\x00-\x1F\x7F]+`)
	return re.ReplaceAllString(s, " ")
}
