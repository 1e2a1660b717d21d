package audit

import (
	"fmt"
	"regexp"
	"strings"
)

// Sensitive key fragments whose values are always redacted.
var sensitiveKeyPatterns = []string{
	"api_key", "apikey", "auth_token", "password", "secret",
	"credential", "private_key", "access_token",
}

var (
	emailPattern = regexp.MustCompile(`([a-zA-Z0-9._%+-]+)@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
	phonePattern = regexp.MustCompile(`\+?(\d{1,3})?[-.\s]?\(?(\d{3})\)?[-.\s]?(\d{3})[-.\s]?(\d{4})`)
)

// MaskDetails returns a deep copy of details with credentials redacted and
// emails/phones partially masked, so PII never lands in the audit table in
// the clear.
func MaskDetails(details map[string]interface{}) map[string]interface{} {
	if details == nil {
		return nil
	}
	masked := make(map[string]interface{}, len(details))
	for key, value := range details {
		masked[key] = maskValue(key, value)
	}
	return masked
}

func maskValue(key string, value interface{}) interface{} {
	lower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(lower, pattern) {
			if s, ok := value.(string); ok && len(s) > 8 {
				return fmt.Sprintf("%s...%s", s[:4], s[len(s)-4:])
			}
			return "****"
		}
	}
	switch v := value.(type) {
	case map[string]interface{}:
		return MaskDetails(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = maskValue(key, item)
		}
		return out
	case string:
		return MaskString(v)
	default:
		return value
	}
}

// MaskString masks emails (keep first two characters and the domain) and
// phone numbers (keep country code and last four digits) inside free text.
func MaskString(text string) string {
	text = emailPattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := emailPattern.FindStringSubmatch(match)
		local := parts[1]
		if len(local) > 2 {
			local = local[:2]
		}
		return local + "***@" + parts[2]
	})
	text = phonePattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := phonePattern.FindStringSubmatch(match)
		cc := parts[1]
		if cc == "" {
			cc = "**"
		}
		return "+" + cc + "***" + parts[4]
	})
	return text
}
