package observability

import (
	"net/http"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const redacted = "[REDACTED]"

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// IsSensitiveField reports whether a header or body key likely carries a secret.
func IsSensitiveField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)

	switch {
	case normalized == "authorization":
		return true
	case strings.Contains(normalized, "token"),
		strings.Contains(normalized, "secret"),
		strings.Contains(normalized, "password"),
		strings.Contains(normalized, "apikey"),
		strings.Contains(normalized, "cookie"):
		return true
	default:
		return false
	}
}

// RedactValue returns value, or a placeholder when key is sensitive.
func RedactValue(key, value string) string {
	if IsSensitiveField(key) {
		return redacted
	}
	return value
}

// RedactHeaders renders headers as a zap field with sensitive values masked.
// Keys are lower-cased and sorted so log lines stay diffable.
func RedactHeaders(key string, headers http.Header) zap.Field {
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, k := range names {
		values := headers.Values(k)
		masked := make([]string, len(values))
		for i, v := range values {
			masked[i] = RedactValue(k, v)
		}
		parts = append(parts, strings.ToLower(k)+"="+strings.Join(masked, ", "))
	}
	return zap.String(key, strings.Join(parts, "; "))
}

// RedactBody masks sensitive fields of a JSON payload. Non-JSON bodies and
// payloads that fail to parse are returned unchanged.
func RedactBody(contentType string, body []byte) string {
	text := string(body)
	if !strings.Contains(strings.ToLower(contentType), "json") {
		return text
	}

	var payload any
	if err := jsonCodec.Unmarshal(body, &payload); err != nil {
		return text
	}
	redactTree(payload)

	out, err := jsonCodec.Marshal(payload)
	if err != nil {
		return text
	}
	return string(out)
}

func redactTree(v any) {
	switch typed := v.(type) {
	case map[string]any:
		for k, child := range typed {
			if IsSensitiveField(k) {
				typed[k] = redacted
				continue
			}
			redactTree(child)
		}
	case []any:
		for _, child := range typed {
			redactTree(child)
		}
	}
}
