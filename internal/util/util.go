// Package util holds helpers for keeping credentials out of logs.
package util

import (
	"net/url"
	"strings"
)

// HideAPIKey keeps only the edges of a secret, scaled to its length.
func HideAPIKey(apiKey string) string {
	switch n := len(apiKey); {
	case n > 8:
		return apiKey[:4] + "..." + apiKey[n-4:]
	case n > 4:
		return apiKey[:2] + "..." + apiKey[n-2:]
	case n > 2:
		return apiKey[:1] + "..." + apiKey[n-1:]
	}
	return apiKey
}

// MaskAuthorization masks the credential in an Authorization header value, keeping the scheme.
func MaskAuthorization(value string) string {
	value = strings.TrimSpace(value)
	if scheme, credential, ok := strings.Cut(value, " "); ok {
		return scheme + " " + HideAPIKey(strings.TrimSpace(credential))
	}
	return HideAPIKey(value)
}

// MaskSensitiveQuery masks credential-looking parameters (key, token, secret...) in a raw query string.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		keyPart, valuePart, _ := strings.Cut(part, "=")
		decodedKey, err := url.QueryUnescape(keyPart)
		if err != nil {
			decodedKey = keyPart
		}
		if !isSecretParam(decodedKey) {
			continue
		}
		decodedValue, err := url.QueryUnescape(valuePart)
		if err != nil {
			decodedValue = valuePart
		}
		parts[i] = keyPart + "=" + url.QueryEscape(HideAPIKey(strings.TrimSpace(decodedValue)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func isSecretParam(key string) bool {
	key = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "[]")
	if key == "" {
		return false
	}
	if key == "key" {
		return true
	}
	for _, marker := range []string{"api-key", "apikey", "api_key", "token", "secret"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
