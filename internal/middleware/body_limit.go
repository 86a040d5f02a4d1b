package middleware

import (
	"net/http"
	"strings"
)

// BodyLimitOverride raises or lowers the body limit for requests whose path,
// with or without the /api mount prefix, starts with PathPrefix.
type BodyLimitOverride struct {
	PathPrefix string
	MaxBytes   int64
}

func LimitBodyBytesWithOverrides(defaultMax int64, overrides []BodyLimitOverride) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			maxBytes := bodyLimitFor(r.URL.Path, defaultMax, overrides)
			if maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bodyLimitFor(path string, defaultMax int64, overrides []BodyLimitOverride) int64 {
	apiPath := strings.TrimPrefix(path, "/api")
	for _, override := range overrides {
		if override.PathPrefix == "" || override.MaxBytes <= 0 {
			continue
		}
		if strings.HasPrefix(path, override.PathPrefix) || strings.HasPrefix(apiPath, override.PathPrefix) {
			return override.MaxBytes
		}
	}
	return defaultMax
}
