package relay

import (
	"net/http"
	"strings"
)

// internalHeaderPrefix marks gateway-internal headers that never reach an upstream.
const internalHeaderPrefix = "x-aiproxy-"

// skippedHeaders are hop-by-hop or gateway-owned headers not forwarded in either direction.
var skippedHeaders = map[string]bool{
	"authorization":       true,
	"x-api-key":           true,
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"content-length":      true,
	"host":                true,
	"accept-encoding":     true,
}

func skipHeader(key string) bool {
	lower := strings.ToLower(key)
	return skippedHeaders[lower] || strings.HasPrefix(lower, internalHeaderPrefix)
}

// CopyHeaders copies src into dst except hop-by-hop and gateway-internal headers.
func CopyHeaders(dst, src http.Header) {
	for key, values := range src {
		if skipHeader(key) {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}
