package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rampellisaieshwar/GravityEdits/internal/store"
)

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://localhost",
		"https://localhost:8443",
		"http://127.0.0.1:3000",
		"http://127.0.0.1",
		"http://[::1]:3000",
	}

	for _, origin := range allowed {
		if !isAllowedOrigin(origin) {
			t.Errorf("isAllowedOrigin(%q) = false, want true", origin)
		}
	}

	denied := []string{
		"https://evil.com",
		"http://localhost.evil.com",
		"http://192.168.1.1:3000",
		"",
		"ftp://localhost:3000",
		"http://localhost:not-a-port",
		"http://localhost:3000/path",
		"http://localhost:99999",
		"http://user@localhost:3000",
	}

	for _, origin := range denied {
		if isAllowedOrigin(origin) {
			t.Errorf("isAllowedOrigin(%q) = true, want false", origin)
		}
	}
}

func TestIsLoopbackRemoteAddr(t *testing.T) {
	loopback := []string{
		"127.0.0.1:12345",
		"[::1]:12345",
		"::1",
		"[::1]",
		"127.0.0.1",
	}

	for _, addr := range loopback {
		if !isLoopbackRemoteAddr(addr) {
			t.Errorf("isLoopbackRemoteAddr(%q) = false, want true", addr)
		}
	}

	nonLoopback := []string{
		"8.8.8.8:12345",
		"192.168.1.1:8080",
		"10.0.0.1:3000",
		"not-an-ip:1234",
		"",
	}

	for _, addr := range nonLoopback {
		if isLoopbackRemoteAddr(addr) {
			t.Errorf("isLoopbackRemoteAddr(%q) = true, want false", addr)
		}
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSAllowlist_AllowedOrigin(t *testing.T) {
	handler := CORSAllowlist()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
	if got := rr.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want %q", got, "Origin")
	}
}

func TestCORSAllowlist_KeepsExistingVary(t *testing.T) {
	handler := CORSAllowlist()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://127.0.0.1:5173")
	rr := httptest.NewRecorder()
	rr.Header().Set("Vary", "Accept-Encoding")

	handler.ServeHTTP(rr, req)

	vary := rr.Header().Values("Vary")
	if len(vary) != 2 || vary[0] != "Accept-Encoding" || vary[1] != "Origin" {
		t.Errorf("Vary = %v, want [Accept-Encoding Origin]", vary)
	}
}

func TestCORSAllowlist_DeniedOrigin_GET(t *testing.T) {
	handler := CORSAllowlist()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (request still served, just no ACAO)", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty for denied origin", got)
	}
}

func TestCORSAllowlist_DeniedOrigin_Preflight(t *testing.T) {
	handler := CORSAllowlist()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for denied preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/media/clip.mp4", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d for denied preflight", rr.Code, http.StatusForbidden)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty for denied preflight", got)
	}
}

func TestCORSAllowlist_NoOrigin(t *testing.T) {
	handler := CORSAllowlist()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty when no Origin header", got)
	}
}

func TestCORSAllowlist_AllowedPreflight(t *testing.T) {
	handler := CORSAllowlist()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/media/clip.mp4", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestCORSAllowlist_RangeHeaders(t *testing.T) {
	handler := CORSAllowlist()(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/media/clip.mp4", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	allowHeaders := rr.Header().Get("Access-Control-Allow-Headers")
	for _, h := range []string{"Range", "Content-Type", "Authorization", "X-Request-ID"} {
		if !containsHeader(allowHeaders, h) {
			t.Errorf("Access-Control-Allow-Headers missing %q, got %q", h, allowHeaders)
		}
	}

	exposeHeaders := rr.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{"Content-Range", "Accept-Ranges", "Content-Length", "Content-Type"} {
		if !containsHeader(exposeHeaders, h) {
			t.Errorf("Access-Control-Expose-Headers missing %q, got %q", h, exposeHeaders)
		}
	}

	allowMethods := rr.Header().Get("Access-Control-Allow-Methods")
	for _, m := range []string{"GET", "HEAD", "OPTIONS"} {
		if !containsHeader(allowMethods, m) {
			t.Errorf("Access-Control-Allow-Methods missing %q, got %q", m, allowMethods)
		}
	}
}

func TestLoopbackGuard(t *testing.T) {
	handler := LoopbackGuard()(okHandler())

	tests := []struct {
		remote string
		want   int
	}{
		{"127.0.0.1:5000", http.StatusOK},
		{"[::1]:5000", http.StatusOK},
		{"10.1.2.3:5000", http.StatusForbidden},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/media/a.mp4", nil)
		req.RemoteAddr = tc.remote
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if rr.Code != tc.want {
			t.Errorf("remote %s: status = %d, want %d", tc.remote, rr.Code, tc.want)
		}
		if tc.want == http.StatusForbidden {
			if body := decodeJSONBody(t, rr); body["code"] != "FORBIDDEN" {
				t.Errorf("code = %v, want FORBIDDEN", body["code"])
			}
		}
	}
}

// configOnlyRepo serves the auth token; every other method is unused.
type configOnlyRepo struct {
	store.Repository
	token string
}

func (r *configOnlyRepo) GetConfig(ctx context.Context, key string) (string, error) {
	return r.token, nil
}

func TestAuthMiddleware(t *testing.T) {
	repo := &configOnlyRepo{token: "secret"}
	handler := AuthMiddleware(repo, testLogger())(okHandler())

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"valid bearer", "Bearer secret", "", http.StatusOK},
		{"query token", "", "secret", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := "/status"
			if tc.query != "" {
				target += "?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestAuthMiddleware_NoStoredToken(t *testing.T) {
	handler := AuthMiddleware(&configOnlyRepo{}, testLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(RequestIDKey).(string)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 8 || rr.Header().Get("X-Request-ID") != seen {
		t.Fatalf("generated id = %q, header = %q", seen, rr.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-42")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if seen != "client-42" {
		t.Fatalf("propagated id = %q, want client-42", seen)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func containsHeader(headerVal, target string) bool {
	for _, part := range splitTrim(headerVal) {
		if part == target {
			return true
		}
	}
	return false
}
