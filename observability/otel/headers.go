package otel

import (
	"net/url"
	"strings"
)

// ParseHeaders reads OTLP exporter headers in the OTEL_EXPORTER_OTLP_HEADERS
// form: comma separated key=value pairs with percent-encoded values. Pairs
// without a key or with an undecodable value are skipped.
func ParseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		decoded, err := url.PathUnescape(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		headers[key] = decoded
	}
	return headers
}
