package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/pixelflow/auth"
	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
	"github.com/kbukum/pixelflow/observability"
	"github.com/kbukum/pixelflow/server/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	var body errors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v (%s)", err, rr.Body.String())
	}
	return body.Error.Code
}

// ---------------------------------------------------------------------------
// Recovery
// ---------------------------------------------------------------------------

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Recovery(logger.Nop()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(*gin.Context) { panic("test panic") })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ok", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/panic", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != errors.ErrCodeInternal {
		t.Errorf("unexpected error code %s", code)
	}
}

// ---------------------------------------------------------------------------
// RequestID
// ---------------------------------------------------------------------------

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = logger.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	generated := rr.Header().Get(middleware.HeaderRequestID)
	if generated == "" || generated != seen {
		t.Errorf("expected a generated id on response and context, got %q and %q", generated, seen)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(middleware.HeaderRequestID, "req-123")
	r.ServeHTTP(rr, req)
	if got := rr.Header().Get(middleware.HeaderRequestID); got != "req-123" {
		t.Errorf("expected the incoming id to be preserved, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// CORS
// ---------------------------------------------------------------------------

func corsHandler(cfg *middleware.CORSConfig) http.Handler {
	return middleware.CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS(t *testing.T) {
	cfg := &middleware.CORSConfig{
		AllowedOrigins:   []string{"https://studio.example", "https://*.pixelflow.dev"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization"},
		ExposedHeaders:   []string{middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           600,
	}

	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantCode    int
		wantOrigin  string
		wantMethods string
	}{
		{"simple request", http.MethodGet, "https://studio.example", false, http.StatusOK, "https://studio.example", ""},
		{"wildcard subdomain", http.MethodGet, "https://edit.pixelflow.dev", false, http.StatusOK, "https://edit.pixelflow.dev", ""},
		{"bare wildcard host", http.MethodGet, "https://pixelflow.dev", false, http.StatusOK, "", ""},
		{"other scheme", http.MethodGet, "http://edit.pixelflow.dev", false, http.StatusOK, "", ""},
		{"preflight", http.MethodOptions, "https://studio.example", true, http.StatusNoContent, "https://studio.example", "GET, POST"},
		{"preflight from unknown origin", http.MethodOptions, "https://evil.example", true, http.StatusNoContent, "", ""},
		{"plain options", http.MethodOptions, "https://studio.example", false, http.StatusOK, "https://studio.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			corsHandler(cfg).ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			h := rr.Header()
			if got := h.Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := h.Get("Access-Control-Allow-Methods"); got != tt.wantMethods {
				t.Errorf("allow methods = %q, want %q", got, tt.wantMethods)
			}
			if tt.wantOrigin == "" {
				return
			}
			if h.Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("expected credentials header")
			}
			if h.Get("Access-Control-Expose-Headers") != middleware.HeaderRequestID {
				t.Errorf("unexpected exposed headers %q", h.Get("Access-Control-Expose-Headers"))
			}
			if tt.preflight && h.Get("Access-Control-Max-Age") != "600" {
				t.Errorf("unexpected max age %q", h.Get("Access-Control-Max-Age"))
			}
		})
	}
}

// ---------------------------------------------------------------------------
// BodySizeLimit
// ---------------------------------------------------------------------------

func TestBodySizeLimit(t *testing.T) {
	handler := middleware.BodySizeLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("well over eight bytes")))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// RequestLogger
// ---------------------------------------------------------------------------

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", &buf)
	handler := middleware.RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/runs/x", http.NoBody))
	out := buf.String()
	if !strings.Contains(out, `"status":404`) || !strings.Contains(out, `"path":"/api/v1/runs/x"`) ||
		!strings.Contains(out, `"bytes":7`) {
		t.Errorf("expected the request to be logged, got %s", out)
	}

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if buf.Len() != 0 {
		t.Errorf("probe endpoints should not be logged, got %s", buf.String())
	}
}

type flushRecorder struct {
	http.ResponseWriter
	flushed bool
}

func (f *flushRecorder) Flush() { f.flushed = true }

func TestRequestLoggerKeepsFlusher(t *testing.T) {
	fr := &flushRecorder{ResponseWriter: httptest.NewRecorder()}
	handler := middleware.RequestLogger(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.(http.Flusher).Flush()
	}))

	handler.ServeHTTP(fr, httptest.NewRequest(http.MethodGet, "/stream", http.NoBody))
	if !fr.flushed {
		t.Error("expected Flush to reach the underlying writer")
	}
}

// ---------------------------------------------------------------------------
// Chain
// ---------------------------------------------------------------------------

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-before")
				next.ServeHTTP(w, r)
				order = append(order, name+"-after")
			})
		}
	}

	handler := middleware.Chain(mark("m1"), mark("m2"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	want := "m1-before m2-before handler m2-after m1-after"
	if got := strings.Join(order, " "); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// ---------------------------------------------------------------------------
// Authenticate / RequireScope
// ---------------------------------------------------------------------------

func TestAuthenticate(t *testing.T) {
	svc, err := auth.NewService(auth.Config{Secret: "0123456789abcdef0123"})
	if err != nil {
		t.Fatal(err)
	}
	reader, _ := svc.Issue("viewer", auth.ScopeRunsRead)
	writer, _ := svc.Issue("ci", "runs:*")

	r := gin.New()
	r.Use(middleware.Authenticate(svc))
	r.GET("/runs", middleware.RequireScope(auth.ScopeRunsRead), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/runs", middleware.RequireScope(auth.ScopeRunsWrite), func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name, method, header string
		wantStatus           int
		wantCode             errors.ErrorCode
	}{
		{"no header", http.MethodGet, "", http.StatusUnauthorized, errors.ErrCodeUnauthorized},
		{"bad scheme", http.MethodGet, "Basic abc", http.StatusUnauthorized, errors.ErrCodeUnauthorized},
		{"bad token", http.MethodGet, "Bearer nope", http.StatusUnauthorized, errors.ErrCodeInvalidToken},
		{"reader reads", http.MethodGet, "Bearer " + reader, http.StatusOK, ""},
		{"reader writes", http.MethodPost, "Bearer " + reader, http.StatusForbidden, errors.ErrCodeForbidden},
		{"writer writes", http.MethodPost, "Bearer " + writer, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/runs", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%s)", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantCode != "" {
				if code := errorCode(t, rr); code != tt.wantCode {
					t.Errorf("expected %s, got %s", tt.wantCode, code)
				}
			}
		})
	}
}

func TestAuthenticateDisabled(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Authenticate(nil))
	r.POST("/runs", middleware.RequireScope(auth.ScopeRunsWrite), func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/runs", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 without auth, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// RateLimit
// ---------------------------------------------------------------------------

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RateLimit(middleware.RateLimitConfig{RequestsPerMinute: 2}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	var codes []int
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		codes = append(codes, rr.Code)
		if i == 2 && errorCode(t, rr) != errors.ErrCodeRateLimited {
			t.Errorf("expected RATE_LIMITED, got %s", rr.Body.String())
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence %v", codes)
	}
}

// Telemetry

func TestTelemetry(t *testing.T) {
	prev := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	m, err := observability.NewMetrics("test", noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	var traceID string
	r := gin.New()
	r.Use(middleware.Telemetry(m))
	r.GET("/api/v1/runs/:id", func(c *gin.Context) {
		traceID = observability.TraceID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/runs/abc", http.NoBody))
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
	if len(traceID) != 32 {
		t.Errorf("expected a trace id on the request context, got %q", traceID)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nowhere", http.NoBody))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unmatched routes, got %d", rr.Code)
	}
}
