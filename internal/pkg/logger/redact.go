package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

var secretMarkers = []string{"password", "secret", "api_key", "apikey", "token"}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, m := range secretMarkers {
		if strings.Contains(key, m) {
			return true
		}
	}
	return false
}

// RedactCredentials returns a copy of a credential bag with secret values
// masked, suitable for logs and API responses.
func RedactCredentials(creds map[string]string) map[string]string {
	if creds == nil {
		return nil
	}
	out := make(map[string]string, len(creds))
	for k, v := range creds {
		if isSecretKey(k) && v != "" {
			out[k] = "********"
			continue
		}
		out[k] = v
	}
	return out
}
