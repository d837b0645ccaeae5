// Package masking redacts credentials before they reach the audit trail.
package masking

import "strings"

const maskToken = "****"

var sensitiveKeyParts = []string{"password", "secret", "token", "api_key", "apikey", "authorization"}

// MaskSecret keeps only the last four characters of a credential.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 8 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// IsSensitiveKey reports whether a metadata key names a credential.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// MaskSensitive returns a copy of metadata with credential-looking string
// values masked. Nested maps are walked; other values pass through.
func MaskSensitive(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		switch cast := value.(type) {
		case string:
			if IsSensitiveKey(key) {
				out[key] = MaskSecret(cast)
				continue
			}
			out[key] = cast
		case map[string]any:
			out[key] = MaskSensitive(cast)
		default:
			out[key] = value
		}
	}
	return out
}
