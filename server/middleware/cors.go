package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig lets browser editors on other origins call the API and read
// run event streams.
type CORSConfig struct {
	// AllowedOrigins are exact origins, "*" or patterns with one leading
	// wildcard label such as "https://*.example.com".
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
	ExposedHeaders   []string `yaml:"exposed_headers" mapstructure:"exposed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials" mapstructure:"allow_credentials"`
	// MaxAge is how long, in seconds, browsers may cache a preflight.
	MaxAge int `yaml:"max_age" mapstructure:"max_age"`
}

// CORS adds CORS headers for allowed origins. Preflight requests are
// answered with 204 and never reach next.
func CORS(cfg *CORSConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if origin != "" && cfg.allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if len(cfg.ExposedHeaders) > 0 {
					h.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposedHeaders, ", "))
				}
				if preflight {
					setPreflightHeaders(h, cfg)
				}
			}

			if preflight {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setPreflightHeaders(h http.Header, cfg *CORSConfig) {
	if len(cfg.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
	}
	if len(cfg.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
	}
	if cfg.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
	}
}

func (cfg *CORSConfig) allows(origin string) bool {
	for _, pattern := range cfg.AllowedOrigins {
		if pattern == "*" || pattern == origin {
			return true
		}
		scheme, host, ok := strings.Cut(pattern, "://*.")
		if !ok {
			continue
		}
		prefix := scheme + "://"
		rest, found := strings.CutPrefix(origin, prefix)
		if found && strings.HasSuffix(rest, "."+host) && !strings.Contains(strings.TrimSuffix(rest, "."+host), "/") {
			return true
		}
	}
	return false
}
